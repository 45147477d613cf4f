// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package ruleengine

// Operation names the first argument of resource_request/4:
// the arbitration manager operation that triggered this evaluation.
type Operation string

const (
	OperationRegister      Operation = "register"
	OperationUpdate        Operation = "update"
	OperationUpdateRequest Operation = "update_request"
	OperationAcquire       Operation = "acquire"
	OperationRelease       Operation = "release"
	OperationAudio         Operation = "audio"
	OperationVideo         Operation = "video"
	OperationUnregister    Operation = "unregister"
)
