// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package arbiter

import (
	"github.com/resarbiter/resourced/internal/factstore"
	"github.com/resarbiter/resourced/internal/resource"
	"github.com/resarbiter/resourced/internal/resourceclass"
	"github.com/resarbiter/resourced/internal/resourceset"
)

const factResourceOwner = "resource_owner"

// ownerMode records whether the owning class shares the resource with
// future sharing-eligible acquirers, or holds it exclusively.
type ownerMode int

const (
	modeShared ownerMode = iota
	modeExclusive
)

func (m ownerMode) String() string {
	if m == modeExclusive {
		return "exclusive"
	}
	return "shared"
}

// resourceBits lists the fixed vocabulary in declaration
// order, giving the built-in arbitrator a stable per-resource owner slot
// index.
var resourceBits = []resource.Mask{
	resource.AudioPlayback,
	resource.VideoPlayback,
	resource.AudioRecording,
	resource.VideoRecording,
	resource.Vibra,
	resource.LEDs,
	resource.Backlight,
	resource.SystemButton,
	resource.LockButton,
	resource.ScaleButton,
	resource.SnapButton,
	resource.LensCover,
	resource.HeadsetButtons,
	resource.LargeScreen,
}

// resourceOwner is the current holder of one resource bit.
type resourceOwner struct {
	mask      resource.Mask
	className string
	priority  resourceclass.Priority
	mode      ownerMode
	pid       int
	role      string
}

// fakeGrants is an override table: a class/mask pair
// that bypasses priority arbitration entirely. proclaimer's announcer
// channel always wins audio_playback so it can always interrupt, never
// queue behind a higher-priority class.
var fakeGrants = []struct {
	className string
	mask      resource.Mask
	grant     bool
}{
	{"proclaimer", resource.AudioPlayback, true},
}

func fakeGrant(className string, bit resource.Mask) (grant bool, matched bool) {
	for _, fg := range fakeGrants {
		if fg.className == className && bit&fg.mask != 0 {
			return fg.grant, true
		}
	}
	return false, false
}

// builtinArbitrator is the Built-in Arbitrator: the class/priority
// fallback resolver the Manager runs whenever no external rule engine
// overrides its decision.
type builtinArbitrator struct {
	owners [14]resourceOwner
}

func newBuiltinArbitrator() *builtinArbitrator {
	a := &builtinArbitrator{}
	a.reset()
	return a
}

// reset reverts every resource to "nobody", shared mode, idle role,
// no pid.
func (a *builtinArbitrator) reset() {
	for i, bit := range resourceBits {
		a.owners[i] = resourceOwner{
			mask:      bit,
			className: resource.NobodyClassName,
			mode:      modeShared,
			role:      "idle",
		}
	}
}

func indexOf(bit resource.Mask) int {
	for i, b := range resourceBits {
		if b == bit {
			return i
		}
	}
	return -1
}

// run walks the class directory leaves-first and resolves grant/advice
// for every acquiring set. A set that is not acquiring gets an empty
// grant and keeps its current advice. It
// returns the per-manager decisions it reached; the caller is responsible
// for publishing them into the fact store so the usual watcher pipeline
// delivers the notifications.
func (a *builtinArbitrator) run(classes *resourceclass.Directory, lookup func(managerID uint32) (*resourceset.Set, bool)) map[uint32]builtinDecision {
	a.reset()
	decisions := make(map[uint32]builtinDecision)

	for _, class := range classes.Scan() {
		list := classes.List(class.Name)
		if list == nil {
			continue
		}
		mode := modeExclusive
		if class.Flags.Sharing() {
			mode = modeShared
		}

		for _, member := range list.Members() {
			set, ok := lookup(member.ManagerID)
			if !ok {
				continue
			}
			if set.Request != resourceset.RequestAcquire {
				decisions[member.ManagerID] = builtinDecision{Grant: resource.None, Advice: set.Advice.Current}
				continue
			}

			mandatory := set.Resources.Mandatory()
			aspec, hasAudio := set.FindSpec(resource.SpecAudio)
			vspec, hasVideo := set.FindSpec(resource.SpecVideo)

			saved := a.snapshot()
			var grant, advice resource.Mask

			for _, bit := range resourceBits {
				if set.Resources.All&bit == 0 {
					continue
				}
				idx := indexOf(bit)
				owner := &a.owners[idx]

				if fg, matched := fakeGrant(class.Name, bit); matched {
					if fg {
						grant |= bit
						advice |= bit
					}
					continue
				}

				if a.forbidGrant(owner, class, bit, set, hasAudio, aspec, hasVideo, vspec) {
					continue
				}
				advice |= a.builtinAdvice(owner, class, member.Priority, bit)
				grant |= a.builtinGrant(owner, class, member.Priority, mode, bit, set, hasAudio, aspec, hasVideo, vspec)
			}

			if grant&mandatory != mandatory {
				grant = resource.None
				a.restore(saved)
			}
			if advice&mandatory != mandatory {
				advice = resource.None
			}

			decisions[member.ManagerID] = builtinDecision{Grant: grant, Advice: advice}
		}
	}

	return decisions
}

// builtinAdvice: a set may be advised
// it could hold a resource nobody owns, a shared resource, or one it
// already owns at no worse than its own priority.
func (a *builtinArbitrator) builtinAdvice(owner *resourceOwner, class resource.Class, priority resourceclass.Priority, bit resource.Mask) resource.Mask {
	if owner.className == resource.NobodyClassName {
		return bit
	}
	if owner.mode == modeShared {
		return bit
	}
	if owner.className == class.Name && owner.priority >= priority {
		return bit
	}
	return resource.None
}

// builtinGrant: an unowned resource is
// claimed outright; a shared one is granted without taking ownership away
// from its current (also sharing) holder.
func (a *builtinArbitrator) builtinGrant(owner *resourceOwner, class resource.Class, priority resourceclass.Priority, mode ownerMode, bit resource.Mask, set *resourceset.Set, hasAudio bool, aspec resource.Spec, hasVideo bool, vspec resource.Spec) resource.Mask {
	if owner.className != resource.NobodyClassName && owner.mode != modeShared {
		return resource.None
	}
	if owner.className != resource.NobodyClassName {
		// Already shared: join without reassigning ownership metadata.
		return bit
	}

	pid := set.ClientPID
	if bit&resource.AllAudio != 0 && hasAudio {
		pid = aspec.PID
	}
	if bit&resource.AllVideo != 0 && hasVideo {
		pid = vspec.PID
	}

	owner.className = class.Name
	owner.priority = priority
	owner.mode = mode
	owner.pid = pid

	return bit
}

// forbidGrant applies the hard-wired forbid overrides, including the one
// counter-intuitive rule: when audio_playback is currently owned (shared)
// by "navigator" and the acquiring class is "call", this resource is left
// unresolved by the built-in path on purpose (escalated to whatever
// external policy handles the call/navigator interaction, rather than
// silently auto-sharing it); a video request is forbidden while flash
// video would play silently under a call, or when its pid doesn't match
// the current audio owner's pid.
func (a *builtinArbitrator) forbidGrant(owner *resourceOwner, class resource.Class, bit resource.Mask, set *resourceset.Set, hasAudio bool, aspec resource.Spec, hasVideo bool, vspec resource.Spec) bool {
	role := class.Name
	if hasAudio {
		role = aspec.Role
	}

	if owner.className != resource.NobodyClassName {
		if ownerSharing, ok := sharingFlagOf(owner.className); ok && ownerSharing {
			if owner.className == "navigator" && bit&resource.AudioPlayback != 0 && class.Name == "call" {
				return true
			}
		}
	}

	if bit&resource.VideoPlayback != 0 {
		audioOwner := &a.owners[indexOf(resource.AudioPlayback)]

		videoPID := set.ClientPID
		if hasVideo {
			videoPID = vspec.PID
		}

		if audioOwner.className == "call" && role == "flash" {
			return true
		}
		if audioOwner.pid != 0 && audioOwner.pid != videoPID {
			return true
		}
	}

	return false
}

func sharingFlagOf(className string) (bool, bool) {
	class, ok := resource.Find(className)
	if !ok {
		return false, false
	}
	return class.Flags.Sharing(), true
}

func (a *builtinArbitrator) snapshot() [14]resourceOwner {
	var out [14]resourceOwner
	copy(out[:], a.owners[:])
	return out
}

func (a *builtinArbitrator) restore(saved [14]resourceOwner) {
	copy(a.owners[:], saved[:])
}

// ownerRows renders the current owner table as resource_owner fact rows
// for publication after every resolution pass.
func (a *builtinArbitrator) ownerRows() []factstore.Row {
	rows := make([]factstore.Row, 0, len(a.owners))
	for _, o := range a.owners {
		rows = append(rows, factstore.Row{
			"resource": factstore.StringValue(o.mask.String()),
			"owner":    factstore.StringValue(o.className),
			"mode":     factstore.StringValue(o.mode.String()),
			"group":    factstore.StringValue(o.role),
			"pid":      factstore.IntValue(int64(o.pid)),
		})
	}
	return rows
}

// builtinDecision is the grant/advice pair the built-in arbitrator reached
// for one manager_id in one resolution pass.
type builtinDecision struct {
	Grant  resource.Mask
	Advice resource.Mask
}
