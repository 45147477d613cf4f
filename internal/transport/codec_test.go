// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package transport

import (
	"strings"
	"testing"

	"github.com/resarbiter/resourced/internal/resource"
)

func TestCodecRequestRoundTrip(t *testing.T) {
	c := NewCodec()
	in := Request{
		Kind:       RequestRegister,
		ClientID:   "media-player-7",
		ClientAddr: "bus:1.42",
		ClientPID:  1234,
		ClassName:  "player",
		ModeFlags:  "always_reply",
		All:        resource.AudioPlayback | resource.VideoPlayback,
		Opt:        resource.VideoPlayback,
		ReqNo:      9,
	}

	data, err := c.MarshalRequest(in)
	if err != nil {
		t.Fatalf("MarshalRequest() error = %v", err)
	}
	out, err := c.UnmarshalRequest(data)
	if err != nil {
		t.Fatalf("UnmarshalRequest() error = %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", out, in)
	}
}

func TestCodecNotificationRoundTrip(t *testing.T) {
	c := NewCodec()
	in := Notification{
		Kind:      NotifyGrant,
		ManagerID: 3,
		ReqNo:     9,
		Value:     resource.AudioPlayback,
	}

	data, err := c.MarshalNotification(in)
	if err != nil {
		t.Fatalf("MarshalNotification() error = %v", err)
	}
	out, err := c.UnmarshalNotification(data)
	if err != nil {
		t.Fatalf("UnmarshalNotification() error = %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", out, in)
	}
}

func TestCodecUnmarshalGarbageErrors(t *testing.T) {
	c := NewCodec()
	if _, err := c.UnmarshalRequest([]byte("{not json")); err == nil {
		t.Error("UnmarshalRequest(garbage) should error")
	}
	if _, err := c.UnmarshalNotification([]byte("")); err == nil {
		t.Error("UnmarshalNotification(empty) should error")
	}
}

func TestNotificationOmitsEmptyProxyFields(t *testing.T) {
	c := NewCodec()
	data, err := c.MarshalNotification(Notification{Kind: NotifyAdvice, ManagerID: 1})
	if err != nil {
		t.Fatalf("MarshalNotification() error = %v", err)
	}
	s := string(data)
	for _, field := range []string{"proxy_id", "status", "reason", "reqno", "value"} {
		if strings.Contains(s, field) {
			t.Errorf("empty field %q should be omitted, got %s", field, s)
		}
	}
}
