// Package docs provides the generated OpenAPI document for the admin
// API. Code generated by swag. DO NOT EDIT; regenerate with:
//
//	swag init -g cmd/server/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    }
                }
            }
        },
        "/api/v1/health/ready": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {"type": "object", "additionalProperties": {"type": "string"}}
                    }
                }
            }
        },
        "/api/v1/sets": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sets"],
                "summary": "List live resource sets",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/api.setResponse"}}
                    }
                }
            }
        },
        "/api/v1/sets/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sets"],
                "summary": "Get one resource set",
                "parameters": [
                    {"type": "integer", "description": "manager id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.setResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/api/v1/classes": {
            "get": {
                "produces": ["application/json"],
                "tags": ["classes"],
                "summary": "List policy classes",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"type": "string"}}}
                }
            }
        },
        "/api/v1/classes/{name}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["classes"],
                "summary": "List one class's members",
                "parameters": [
                    {"type": "string", "description": "class name", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/api.setResponse"}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/api/v1/transactions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["transactions"],
                "summary": "Transaction coordinator state",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "integer"}}}
                }
            }
        },
        "/api/v1/ws": {
            "get": {
                "tags": ["ws"],
                "summary": "Grant/advice push stream",
                "responses": {"101": {"description": "Switching Protocols"}}
            }
        }
    },
    "definitions": {
        "api.errorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        },
        "api.setResponse": {
            "type": "object",
            "properties": {
                "manager_id": {"type": "integer"},
                "client_id": {"type": "string"},
                "client_addr": {"type": "string"},
                "client_pid": {"type": "integer"},
                "class_name": {"type": "string"},
                "request": {"type": "string"},
                "block": {"type": "boolean"},
                "mandatory": {"type": "string"},
                "optional": {"type": "string"},
                "granted": {"type": "string"},
                "advice": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Resourced Admin API",
	Description:      "Read-only introspection of live resource sets, classes, and transactions.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
