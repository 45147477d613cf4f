// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package resource

import "fmt"

// SpecKind distinguishes an audio from a video Resource Specification.
type SpecKind int

const (
	SpecUnknown SpecKind = iota
	SpecAudio
	SpecVideo
)

func (k SpecKind) String() string {
	switch k {
	case SpecAudio:
		return "audio"
	case SpecVideo:
		return "video"
	default:
		return "unknown"
	}
}

// MatchMethod is how an audio property selector matches a value.
type MatchMethod int

const (
	MatchUnknown MatchMethod = iota
	MatchEquals
	MatchStartsWith
	MatchExists
)

func ParseMatchMethod(s string) (MatchMethod, error) {
	switch s {
	case "equals":
		return MatchEquals, nil
	case "startswith":
		return MatchStartsWith, nil
	case "exists":
		return MatchExists, nil
	default:
		return MatchUnknown, fmt.Errorf("resource: unknown match method %q", s)
	}
}

// AudioRole describes one entry of the audio-role table consulted for
// the "relative priority" input of class_link_priority. RolePriorities
// below is a compiled-in table; no configuration setting changes it.
type AudioRole struct {
	Name    string
	RelPrio uint32
}

// RolePriorities is the default audio-role relative-priority table. Roles
// not listed fall back to relative priority 0.
var RolePriorities = map[string]uint32{
	"flash":  7,
	"alarm":  6,
	"call":   6,
	"ringtone": 5,
	"event":  4,
	"navigator": 3,
	"camera": 2,
	"media":  1,
}

// RolePriority looks up the relative priority of an audio role, defaulting
// to 0 for unknown roles.
func RolePriority(role string) uint32 {
	return RolePriorities[role]
}

// Spec is one Resource Specification: metadata about a single active
// audio or video stream attached to a Resource Set. A set
// holds at most one audio Spec and at most one video Spec at a time; a
// new audio/video message replaces the prior one of the same Kind.
type Spec struct {
	Kind SpecKind
	PID  int

	// Audio-only fields.
	Group         string
	PropertyName  string
	MatchMethod   MatchMethod
	MatchPattern  string
	Role          string
}

// NewAudioSpec builds an audio Resource Specification. group is stored as
// given, even when empty; the arbiter's request dispatcher fills an empty
// group from DefaultAudioGroup before calling it.
func NewAudioSpec(group string, pid int, propertyName string, method MatchMethod, pattern, role string) Spec {
	return Spec{
		Kind:         SpecAudio,
		PID:          pid,
		Group:        group,
		PropertyName: propertyName,
		MatchMethod:  method,
		MatchPattern: pattern,
		Role:         role,
	}
}

// NewVideoSpec builds a video Resource Specification.
func NewVideoSpec(pid int) Spec {
	return Spec{Kind: SpecVideo, PID: pid}
}

// DefaultAudioGroup returns the default audio group name for a class,
// every class defaults to
// its own name except proclaimer, which defaults to "alwayson" (the
// always-on announcer channel never tears its group down between plays).
func DefaultAudioGroup(className string) string {
	if className == "proclaimer" {
		return "alwayson"
	}
	return className
}
