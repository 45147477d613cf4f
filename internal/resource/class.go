// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package resource

// ClassFlags carries a class's PUBLIC/PRIVATE and SHARING bits.
type ClassFlags uint8

const (
	// ClassPublic: ordinary clients may register under this class. A
	// class without this flag is private and only privileged/internal
	// registrants may use it.
	ClassPublic ClassFlags = 1 << iota
	// ClassSharing: more than one set of this class may hold its shared
	// resources concurrently.
	ClassSharing
)

func (f ClassFlags) Public() bool  { return f&ClassPublic != 0 }
func (f ClassFlags) Sharing() bool { return f&ClassSharing != 0 }

// Class is a static policy bucket descriptor: name, priority id, allowed/
// shared resource masks, and PUBLIC/SHARING flags.
//
// Class.ID doubles as the class's coarse priority tier: lower IDs rank
// ahead of later ones, all else equal.
type Class struct {
	Name        string
	ID          int
	AllowedMask Mask
	SharedMask  Mask
	Flags       ClassFlags
}

// AllowedMaskGlobal is the set of resources any class may ever request.
const AllowedMaskGlobal = AllMedia | Vibra | LEDs | Backlight | LargeScreen

// Sentinel class name used by the built-in arbitrator to mean "nobody
// currently owns this resource".
const NobodyClassName = "nobody"

// classTable is the static class directory. Iteration order is
// "leaves-first": the table's declaration order, lowest-priority
// classes last.
var classTable = []Class{
	{
		Name:        "proclaimer",
		ID:          0,
		AllowedMask: AudioPlayback | Vibra | LEDs | Backlight,
		SharedMask:  AudioPlayback,
		Flags:       ClassPublic | ClassSharing,
	},
	{
		Name:        "navigator",
		ID:          1,
		AllowedMask: AllPlayback | Backlight | LargeScreen,
		SharedMask:  AudioPlayback,
		Flags:       ClassPublic | ClassSharing,
	},
	{
		Name:        "call",
		ID:          2,
		AllowedMask: AllMedia | Backlight,
		SharedMask:  None,
		Flags:       ClassPublic,
	},
	{
		Name:        "videoeditor",
		ID:          3,
		AllowedMask: AllMedia | Backlight | LargeScreen,
		SharedMask:  None,
		Flags:       ClassPublic,
	},
	{
		Name:        "ringtone",
		ID:          4,
		AllowedMask: AudioPlayback | Vibra | LEDs | Backlight,
		SharedMask:  None,
		Flags:       ClassPublic,
	},
	{
		Name:        "camera",
		ID:          5,
		AllowedMask: AllMedia | Backlight | LargeScreen,
		SharedMask:  None,
		Flags:       ClassPublic,
	},
	{
		Name:        "alarm",
		ID:          6,
		AllowedMask: AudioPlayback | Vibra | LEDs | Backlight,
		SharedMask:  None,
		Flags:       ClassPublic,
	},
	{
		Name:        "game",
		ID:          7,
		AllowedMask: AllPlayback | Vibra | Backlight | LargeScreen,
		SharedMask:  None,
		Flags:       ClassPublic,
	},
	{
		Name:        "player",
		ID:          8,
		AllowedMask: AllMedia | Backlight | LargeScreen,
		SharedMask:  None,
		Flags:       ClassPublic,
	},
	{
		Name:        "implicit",
		ID:          9,
		AllowedMask: AllMedia | Vibra | Backlight | LargeScreen,
		SharedMask:  None,
		Flags:       0, // private
	},
	{
		Name:        "event",
		ID:          10,
		AllowedMask: AudioPlayback | Vibra | LEDs | Backlight,
		SharedMask:  AudioPlayback,
		Flags:       ClassPublic | ClassSharing,
	},
	{
		Name:        "background",
		ID:          11,
		AllowedMask: AllMedia,
		SharedMask:  None,
		Flags:       ClassPublic,
	},
	{
		Name:        NobodyClassName,
		ID:          12,
		AllowedMask: AllMedia | Vibra | LEDs | Backlight | LargeScreen,
		SharedMask:  None,
		Flags:       0, // private
	},
}

// Find looks up a class by name. Returns (Class{}, false) if unknown.
func Find(name string) (Class, bool) {
	for _, c := range classTable {
		if c.Name == name {
			return c, true
		}
	}
	return Class{}, false
}

// All returns the class directory in its fixed, leaves-first declaration
// order.
func All() []Class {
	out := make([]Class, len(classTable))
	copy(out, classTable)
	return out
}

// CheckResources enforces the allowed_mask gate and the public/private
// flag: res must be a
// subset of both ALLOWED_MASK and the class's own AllowedMask, and the
// class must be public unless allowPrivate is set by an internal caller.
func CheckResources(c Class, res Mask, allowPrivate bool) bool {
	if !c.Flags.Public() && !allowPrivate {
		return false
	}
	return res&^(c.AllowedMask&AllowedMaskGlobal) == 0
}
