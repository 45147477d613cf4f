// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package resource

import "testing"

func TestMaskString(t *testing.T) {
	tests := []struct {
		name string
		mask Mask
		want string
	}{
		{"none", None, "none"},
		{"single", AudioPlayback, "audio_playback"},
		{"pair in vocabulary order", AudioPlayback | Vibra, "audio_playback,vibra"},
		{"order is fixed regardless of bit value", Vibra | AudioPlayback, "audio_playback,vibra"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mask.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseNameRoundTrip(t *testing.T) {
	for _, name := range []string{"audio_playback", "video_recording", "vibra", "backlight", "large_screen"} {
		mask, err := ParseName(name)
		if err != nil {
			t.Fatalf("ParseName(%q) error = %v", name, err)
		}
		if mask.String() != name {
			t.Errorf("ParseName(%q).String() = %q", name, mask.String())
		}
	}
	if _, err := ParseName("flux_capacitor"); err == nil {
		t.Error("ParseName(unknown) should error")
	}
}

func TestMaskHasAny(t *testing.T) {
	m := AudioPlayback | Vibra
	if !m.Has(AudioPlayback) {
		t.Error("Has(audio_playback) = false")
	}
	if m.Has(AudioPlayback | LEDs) {
		t.Error("Has should require every bit")
	}
	if !m.Any(LEDs | Vibra) {
		t.Error("Any(leds|vibra) = false")
	}
	if m.Any(LEDs) {
		t.Error("Any(leds) = true for a mask without leds")
	}
}

func TestFindKnowsEveryDeclaredClass(t *testing.T) {
	for _, want := range []string{
		"proclaimer", "navigator", "call", "videoeditor", "ringtone",
		"camera", "alarm", "game", "player", "implicit", "event",
		"background", "nobody",
	} {
		c, ok := Find(want)
		if !ok {
			t.Errorf("Find(%q) = false", want)
			continue
		}
		if c.Name != want {
			t.Errorf("Find(%q).Name = %q", want, c.Name)
		}
	}
	if _, ok := Find("spaceship"); ok {
		t.Error("Find(unknown) should fail")
	}
}

func TestAllIsLeavesFirstAndStable(t *testing.T) {
	classes := All()
	if len(classes) == 0 {
		t.Fatal("All() returned no classes")
	}
	if classes[0].Name != "proclaimer" {
		t.Errorf("first class = %q, want proclaimer", classes[0].Name)
	}
	if classes[len(classes)-1].Name != NobodyClassName {
		t.Errorf("last class = %q, want %q", classes[len(classes)-1].Name, NobodyClassName)
	}
	for i, c := range classes {
		if c.ID != i {
			t.Errorf("class %q ID = %d, want %d (declaration order)", c.Name, c.ID, i)
		}
	}

	// All returns a copy; mutating it must not corrupt the directory.
	classes[0].Name = "mutated"
	if again := All(); again[0].Name != "proclaimer" {
		t.Error("All() should return an independent copy")
	}
}

func TestCheckResources(t *testing.T) {
	player, _ := Find("player")
	game, _ := Find("game")
	implicit, _ := Find("implicit")

	tests := []struct {
		name         string
		class        Class
		res          Mask
		allowPrivate bool
		want         bool
	}{
		{"player may take audio playback", player, AudioPlayback, false, true},
		{"player may take all media", player, AllMedia, false, true},
		{"game may not record audio", game, AudioRecording, false, false},
		{"private class rejected for ordinary callers", implicit, AudioPlayback, false, false},
		{"private class allowed for internal callers", implicit, AudioPlayback, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckResources(tt.class, tt.res, tt.allowPrivate); got != tt.want {
				t.Errorf("CheckResources(%s, %v) = %v, want %v", tt.class.Name, tt.res, got, tt.want)
			}
		})
	}
}

func TestSpecReplaceSemantics(t *testing.T) {
	audio := NewAudioSpec("player", 10, "media.role", MatchEquals, "x-media", "media")
	if audio.Kind != SpecAudio || audio.Group != "player" {
		t.Fatalf("NewAudioSpec built %+v", audio)
	}
	video := NewVideoSpec(11)
	if video.Kind != SpecVideo || video.PID != 11 {
		t.Fatalf("NewVideoSpec built %+v", video)
	}
}

func TestParseMatchMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    MatchMethod
		wantErr bool
	}{
		{"equals", MatchEquals, false},
		{"startswith", MatchStartsWith, false},
		{"exists", MatchExists, false},
		{"fuzzy", MatchUnknown, true},
	}
	for _, tt := range tests {
		got, err := ParseMatchMethod(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMatchMethod(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMatchMethod(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDefaultAudioGroup(t *testing.T) {
	if got := DefaultAudioGroup("proclaimer"); got != "alwayson" {
		t.Errorf("DefaultAudioGroup(proclaimer) = %q, want alwayson", got)
	}
	if got := DefaultAudioGroup("player"); got != "player" {
		t.Errorf("DefaultAudioGroup(player) = %q, want player", got)
	}
}
