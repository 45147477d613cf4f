// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

// Package resource defines the fixed resource vocabulary and
// the static resource-class directory that the
// rest of the arbitration core is built on.
//
// The vocabulary and the class allowed/shared/flags tables are taken
// long-established on this platform
// (see DESIGN.md): the bit order of Mask and the per-class ALLOWED_*/
// SHARED_*/FLAGS_* tables are not reinvented here, only re-expressed as Go
// constants and a slice of struct literals instead of C's designated
// initializers.
package resource

import "fmt"

// Mask is a bitset over the fixed resource vocabulary a Resource Set can
// request, hold, or be advised about.
type Mask uint32

// The fixed resource vocabulary. Bit order is part of the wire format
// and never changes.
const (
	AudioPlayback Mask = 1 << iota
	VideoPlayback
	AudioRecording
	VideoRecording
	Vibra
	LEDs
	Backlight
	SystemButton
	LockButton
	ScaleButton
	SnapButton
	LensCover
	HeadsetButtons
	LargeScreen

	None Mask = 0
)

// Composite masks over the vocabulary.
const (
	AllAudio     = AudioPlayback | AudioRecording
	AllVideo     = VideoPlayback | VideoRecording
	AllMedia     = AllAudio | AllVideo
	AllPlayback  = AudioPlayback | VideoPlayback
	AllRecording = AudioRecording | VideoRecording
	AllButtons   = SystemButton | LockButton | ScaleButton | SnapButton | HeadsetButtons
)

var names = []struct {
	mask Mask
	name string
}{
	{AudioPlayback, "audio_playback"},
	{VideoPlayback, "video_playback"},
	{AudioRecording, "audio_recording"},
	{VideoRecording, "video_recording"},
	{Vibra, "vibra"},
	{LEDs, "leds"},
	{Backlight, "backlight"},
	{SystemButton, "system_button"},
	{LockButton, "lock_button"},
	{ScaleButton, "scale_button"},
	{SnapButton, "snap_button"},
	{LensCover, "lens_cover"},
	{HeadsetButtons, "headset_buttons"},
	{LargeScreen, "large_screen"},
}

// String renders a Mask as a comma-separated list of resource names, in
// vocabulary order, for debug dumps.
func (m Mask) String() string {
	if m == None {
		return "none"
	}
	s := ""
	for _, n := range names {
		if m&n.mask != 0 {
			if s != "" {
				s += ","
			}
			s += n.name
		}
	}
	return s
}

// Has reports whether m holds every bit set in subset.
func (m Mask) Has(subset Mask) bool { return m&subset == subset }

// Any reports whether m shares any bit with other.
func (m Mask) Any(other Mask) bool { return m&other != 0 }

// ParseName maps a resource name to its Mask bit, or an error if the name
// is unknown. Used by the audio/video spec parser and by admin-API mask
// literals.
func ParseName(name string) (Mask, error) {
	for _, n := range names {
		if n.name == name {
			return n.mask, nil
		}
	}
	return None, fmt.Errorf("resource: unknown resource name %q", name)
}
