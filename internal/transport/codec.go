// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package transport

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/resarbiter/resourced/internal/resource"
)

// NotificationKind identifies an outbound push to a client.
type NotificationKind string

const (
	NotifyGrant          NotificationKind = "grant"
	NotifyAdvice         NotificationKind = "advice"
	NotifyReleaseRequest NotificationKind = "release_request"
	NotifyRegistered     NotificationKind = "registered"

	// Proxy-facing pushes: a play's status, failure, or
	// completion, keyed by the proxy id rather than a manager_id.
	NotifyProxyStatus    NotificationKind = "proxy_status"
	NotifyProxyFailed    NotificationKind = "proxy_failed"
	NotifyProxyCompleted NotificationKind = "proxy_completed"
)

// Notification is the wire-neutral shape of an outbound grant/advice/
// release-request/proxy-status push.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	ManagerID uint32           `json:"manager_id"`
	ReqNo     uint64           `json:"reqno,omitempty"`
	Value     resource.Mask    `json:"value,omitempty"`

	// ProxyID and Status/Reason are set only on NotifyProxy* kinds.
	ProxyID uint64 `json:"proxy_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Codec encodes/decodes Requests and Notifications for wire transports.
// Concrete Dispatchers embed one; the loopback transport bypasses it
// entirely since it never leaves process memory.
type Codec struct{}

// NewCodec returns the default goccy/go-json codec.
func NewCodec() *Codec { return &Codec{} }

func (Codec) MarshalRequest(req Request) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal request: %w", err)
	}
	return data, nil
}

func (Codec) UnmarshalRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("transport: unmarshal request: %w", err)
	}
	return req, nil
}

func (Codec) MarshalNotification(n Notification) ([]byte, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal notification: %w", err)
	}
	return data, nil
}

func (Codec) UnmarshalNotification(data []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		return Notification{}, fmt.Errorf("transport: unmarshal notification: %w", err)
	}
	return n, nil
}
