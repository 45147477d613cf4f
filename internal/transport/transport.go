// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

// Package transport is the bus abstraction arbitration
// clients use to send register/acquire/release/audio/video requests and
// receive grant/advice/release-request notifications. resourceset.Transport
// is the narrow outbound slice every implementation here satisfies.
package transport

import (
	"context"

	"github.com/resarbiter/resourced/internal/resource"
)

// RequestKind identifies the operation a client sent.
type RequestKind string

const (
	RequestRegister RequestKind = "register"
	RequestUpdate   RequestKind = "update"
	RequestAcquire  RequestKind = "acquire"
	RequestRelease  RequestKind = "release"
	RequestAudio    RequestKind = "audio"
	RequestVideo    RequestKind = "video"
	RequestUnlink   RequestKind = "unlink"

	// Notification operations, routed to the proxy registry rather than
	// the arbitration manager.
	RequestPlay   RequestKind = "play"
	RequestStop   RequestKind = "stop"
	RequestPause  RequestKind = "pause"
	RequestResume RequestKind = "resume"
)

// Request is the wire-neutral shape of an inbound client request, decoded
// by a transport's codec before reaching internal/arbiter.
type Request struct {
	Kind       RequestKind   `json:"kind"`
	ManagerID  uint32        `json:"manager_id,omitempty"`
	ClientID   string        `json:"client_id,omitempty"`
	ClientAddr string        `json:"client_addr,omitempty"`
	ClientPID  int           `json:"client_pid,omitempty"`
	ClassName  string        `json:"class_name,omitempty"`
	ModeFlags  string        `json:"mode_flags,omitempty"`
	All         resource.Mask `json:"all,omitempty"`
	Opt         resource.Mask `json:"opt,omitempty"`
	Share       resource.Mask `json:"share,omitempty"`
	ReqNo       uint64        `json:"reqno,omitempty"`
	Credentials string        `json:"credentials,omitempty"`

	// Notification fields, for play/stop/pause/resume requests.
	EventName string `json:"event_name,omitempty"`
	ProxyID   uint64 `json:"proxy_id,omitempty"`

	// Audio/video spec fields.
	SpecGroup        string `json:"spec_group,omitempty"`
	SpecPropertyName string `json:"spec_property,omitempty"`
	SpecMatchMethod  string `json:"spec_match_method,omitempty"`
	SpecMatchPattern string `json:"spec_match_pattern,omitempty"`
	SpecRole         string `json:"spec_role,omitempty"`
}

// Handler processes one decoded inbound Request. Implementations live in
// internal/arbiter; transports only decode and dispatch.
type Handler interface {
	HandleRequest(ctx context.Context, req Request) error
}

// Dispatcher is the inbound half of a transport: it receives client bytes,
// decodes them into Requests, and feeds a Handler. Outbound delivery back
// to clients is resourceset.Transport (SendGrant/SendAdvice/
// SendReleaseRequest), implemented alongside each Dispatcher in this
// package.
type Dispatcher interface {
	Run(ctx context.Context, h Handler) error
	Close() error
}
