// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package resourceset

import (
	"sync"

	"github.com/resarbiter/resourced/internal/metrics"
	"github.com/resarbiter/resourced/internal/resource"
	"github.com/resarbiter/resourced/internal/resourceclass"
)

// RequestKind is the last operation a client asked of a set.
type RequestKind int

const (
	RequestNone RequestKind = iota
	RequestRegister
	RequestAcquire
	RequestRelease
)

func (k RequestKind) String() string {
	switch k {
	case RequestRegister:
		return "register"
	case RequestAcquire:
		return "acquire"
	case RequestRelease:
		return "release"
	default:
		return "none"
	}
}

// Resources is the four resource-bitset attributes of a set:
// `all`, `opt`(ional), `share`(able), `mask` (currently
// granted/advised working mask the owner tracks).
type Resources struct {
	All   resource.Mask
	Opt   resource.Mask
	Share resource.Mask
	Mask  resource.Mask
}

// Mandatory returns All minus Opt: `mandatory = all & ~opt`.
func (r Resources) Mandatory() resource.Mask {
	return r.All &^ r.Opt
}

// Transport is the minimal outbound surface a Set needs to deliver
// queued grant/advice notifications and release requests.
// internal/transport's concrete implementations satisfy this;
// resourceset depends only on the interface to avoid an import cycle
// with the transport package's request-side dispatch.
type Transport interface {
	SendGrant(clientAddr string, managerID uint32, reqno uint64, value resource.Mask) error
	SendAdvice(clientAddr string, managerID uint32, reqno uint64, value resource.Mask) error
	SendReleaseRequest(clientAddr string, managerID uint32) error
	SendRegistered(clientAddr string, managerID uint32, reqno uint64) error
}

// Set is a Resource Set: the per-client owned collection of
// granted/requested resources.
type Set struct {
	mu sync.Mutex

	ManagerID   uint32
	ClientID    string
	ClientAddr  string
	ClientPID   int
	ClassName   string
	ModeFlags   ModeFlags
	Resources   Resources
	Request     RequestKind
	Block       bool
	ReqNo       uint64
	Specs       []resource.Spec
	Stamp       uint32 // monotonic acquisition timestamp, highest-order priority input

	Granted FieldState
	Advice  FieldState

	// ClassLinkPriority mirrors the composite priority last computed for
	// this set's position in its class's MemberList.
	ClassLinkPriority resourceclass.Priority
}

// FieldState is the (last-sent-to-client, pending-queue,
// current-in-fact-store) triple kept for `granted` and
// `advice`.
type FieldState struct {
	LastSent resource.Mask
	Current  resource.Mask
	queue    []QueueEntry
}

// QueueEntry is one pending-value FIFO entry.
type QueueEntry struct {
	TxID  uint64
	ReqNo uint64
	Value resource.Mask
}

// New creates a Resource Set. The caller is
// responsible for assigning ManagerID from the process-wide counter and
// linking the set into its class's MemberList and the fact store
// before the set is considered live.
func New(managerID uint32, clientID, clientAddr string, clientPID int, className string, flags ModeFlags, stamp uint32) *Set {
	return &Set{
		ManagerID:  managerID,
		ClientID:   clientID,
		ClientAddr: clientAddr,
		ClientPID:  clientPID,
		ClassName:  className,
		ModeFlags:  flags,
		Request:    RequestRegister,
		Stamp:      stamp,
	}
}

// AddSpec replaces the single spec of its Kind on the set
// (audio/video messages replace, never accumulate).
func (s *Set) AddSpec(spec resource.Spec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.Specs {
		if existing.Kind == spec.Kind {
			s.Specs[i] = spec
			return
		}
	}
	s.Specs = append(s.Specs, spec)
}

// FindSpec returns the set's spec of the given kind, if any.
func (s *Set) FindSpec(kind resource.SpecKind) (resource.Spec, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sp := range s.Specs {
		if sp.Kind == kind {
			return sp, true
		}
	}
	return resource.Spec{}, false
}

// Destroy frees all remaining output-queue entries silently. Callers
// are responsible for unlinking the set from the class MemberList, the
// manager-id index, and the fact store; Destroy only clears the set's
// own queues.
func (s *Set) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	metrics.QueueDepth.WithLabelValues(FieldGranted.String()).Sub(float64(len(s.Granted.queue)))
	metrics.QueueDepth.WithLabelValues(FieldAdvice.String()).Sub(float64(len(s.Advice.queue)))
	s.Granted.queue = nil
	s.Advice.queue = nil
}

// SendReleaseRequest builds and dispatches a minimal release message with
// reqno 0. Send failures are logged by the transport and
// never retried; this call never blocks the caller on a transport error.
func (s *Set) SendReleaseRequest(t Transport) error {
	return t.SendReleaseRequest(s.ClientAddr, s.ManagerID)
}
