// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

// Package arbiter is the heart of the daemon: the Arbitration Manager, which
// dispatches every inbound client operation (register/update/acquire/
// release/audio/video/unregister), and the Built-in Arbitrator,
// the class/priority-driven fallback resolver.
package arbiter

import (
	"context"
	"fmt"
	"sync"

	"github.com/resarbiter/resourced/internal/authz"
	"github.com/resarbiter/resourced/internal/errorkinds"
	"github.com/resarbiter/resourced/internal/factstore"
	"github.com/resarbiter/resourced/internal/logging"
	"github.com/resarbiter/resourced/internal/metrics"
	"github.com/resarbiter/resourced/internal/resource"
	"github.com/resarbiter/resourced/internal/resourceclass"
	"github.com/resarbiter/resourced/internal/resourceset"
	"github.com/resarbiter/resourced/internal/ruleengine"
	"github.com/resarbiter/resourced/internal/transaction"
)

const factResourceSet = "resource_set"

// fieldManagerID, fieldGranted, etc. name the resource_set fact's watched
// columns.
const (
	fieldManagerID = "manager_id"
	fieldGranted   = "granted"
	fieldAdvice    = "advice"
	fieldRequest   = "request"
	fieldBlock     = "block"
)

// regRequest is a parked registration awaiting the authorization
// oracle. Cancel flips canceled so a callback that arrives after the
// client disconnected is a no-op.
type regRequest struct {
	canceled bool
}

// Manager is the Arbitration Manager: the single owner of
// every live Resource Set, the fact store rows that mirror them, and the
// transaction-scoped notification queueing those rows drive.
type Manager struct {
	mu sync.Mutex

	store     *factstore.Store
	classes   *resourceclass.Directory
	txns      *transaction.Coordinator
	engine    ruleengine.Engine
	transport resourceset.Transport
	oracle    *authz.Service

	sets        map[uint32]*resourceset.Set
	byAddr      map[string]uint32
	nextManager uint32

	regReqs map[uint32]*regRequest

	defaultAccept bool

	builtin *builtinArbitrator
}

// Config bundles the collaborators a Manager needs. Engine and Oracle may
// be nil: a nil Engine means every resource_request is resolved by the
// Built-in Arbitrator; a nil Oracle accepts public classes and falls back
// to DefaultAccept for the others.
type Config struct {
	Store         *factstore.Store
	Classes       *resourceclass.Directory
	Txns          *transaction.Coordinator
	Engine        ruleengine.Engine
	Transport     resourceset.Transport
	Oracle        *authz.Service
	DefaultAccept bool
}

// New builds a Manager and installs its fact-store field watchers.
func New(cfg Config) *Manager {
	m := &Manager{
		store:         cfg.Store,
		classes:       cfg.Classes,
		txns:          cfg.Txns,
		engine:        cfg.Engine,
		transport:     cfg.Transport,
		oracle:        cfg.Oracle,
		sets:          make(map[uint32]*resourceset.Set),
		byAddr:        make(map[string]uint32),
		regReqs:       make(map[uint32]*regRequest),
		defaultAccept: cfg.DefaultAccept,
		builtin:       newBuiltinArbitrator(),
	}
	m.installWatchers()
	return m
}

func (m *Manager) installWatchers() {
	m.store.AddFieldWatch(factResourceSet, nil, fieldGranted, m.onGrantedChanged)
	m.store.AddFieldWatch(factResourceSet, nil, fieldAdvice, m.onAdviceChanged)
	m.store.AddFieldWatch(factResourceSet, nil, fieldBlock, m.onBlockChanged)
}

func managerIDOf(row factstore.Row) uint32 {
	v, ok := factstore.GetFieldByEntry(row, fieldManagerID)
	if !ok {
		return 0
	}
	return uint32(v.Uint)
}

// onGrantedChanged enqueues a deferred grant notification under a
// transaction of its own (see enqueueAndFlush); it does not join the
// transaction of an operation that is in progress.
func (m *Manager) onGrantedChanged(_ string, row factstore.Row, _ string, _, newValue factstore.Value) {
	m.withSet(managerIDOf(row), func(s *resourceset.Set) {
		s.SetCurrent(resourceset.FieldGranted, resource.Mask(newValue.Uint))
		m.enqueueAndFlush(s, 0, resourceset.FieldGranted)
	})
}

func (m *Manager) onAdviceChanged(_ string, row factstore.Row, _ string, _, newValue factstore.Value) {
	m.withSet(managerIDOf(row), func(s *resourceset.Set) {
		s.SetCurrent(resourceset.FieldAdvice, resource.Mask(newValue.Uint))
		m.enqueueAndFlush(s, 0, resourceset.FieldAdvice)
	})
}

// onBlockChanged implements the block-flip behavior: true sends
// an immediate release request (or, under AUTO_RELEASE, merely mirrors the
// flag; no release request is sent and no self-release is scheduled);
// false just mirrors.
func (m *Manager) onBlockChanged(_ string, row factstore.Row, _ string, _, newValue factstore.Value) {
	m.withSet(managerIDOf(row), func(s *resourceset.Set) {
		s.Block = newValue.Uint != 0
		if !s.Block {
			return
		}
		if s.ModeFlags.AutoReleaseEnabled() {
			return
		}
		if err := s.SendReleaseRequest(m.transport); err != nil {
			logging.Error().Err(err).Uint32("manager_id", s.ManagerID).Msg("arbiter: release request send failed")
		} else {
			metrics.ReleaseRequestsSent.Inc()
		}
	})
}

func (m *Manager) withSet(managerID uint32, fn func(*resourceset.Set)) {
	m.mu.Lock()
	s, ok := m.sets[managerID]
	m.mu.Unlock()
	if ok {
		fn(s)
	}
}

// enqueueAndFlush is the anonymous-transaction path: on every call it
// opens a single-set transaction, queues the change, and releases its
// reference. The coordinator completes transactions in ascending order,
// so the notification is sent once every earlier open transaction
// (including that of an operation in progress) has completed.
func (m *Manager) enqueueAndFlush(s *resourceset.Set, reqno uint64, field resourceset.Field) {
	txid := m.txns.Create(func(txid uint64, ids []uint32) {
		s.SendQueuedChanges(m.transport, txid)
	})
	if err := m.txns.AddResourceSet(txid, s.ManagerID); err != nil {
		logging.Error().Err(err).Msg("arbiter: add resource set to anonymous transaction")
	}
	s.QueueChange(txid, reqno, field)
	if err := m.txns.Unref(txid); err != nil {
		logging.Error().Err(err).Msg("arbiter: unref anonymous transaction")
	}
}

// withTransaction runs fn with a fresh transaction ref-held for its
// duration, then unrefs — the shape every public operation below shares.
func (m *Manager) withTransaction(sets []*resourceset.Set, fn func(txid uint64)) {
	txid := m.txns.Create(func(txid uint64, ids []uint32) {
		for _, id := range ids {
			m.mu.Lock()
			s, ok := m.sets[id]
			m.mu.Unlock()
			if ok {
				s.SendQueuedChanges(m.transport, txid)
			}
		}
	})
	for _, s := range sets {
		if err := m.txns.AddResourceSet(txid, s.ManagerID); err != nil {
			logging.Error().Err(err).Msg("arbiter: add resource set to transaction")
		}
	}
	fn(txid)
	if err := m.txns.Unref(txid); err != nil {
		logging.Error().Err(err).Msg("arbiter: unref transaction")
	}
}

// Register creates a resource set for a client. credentials is the parsed `creds` list, if
// the class's registration method requires one; pass nil otherwise.
func (m *Manager) Register(ctx context.Context, clientID, clientAddr string, clientPID int, className string, flags resourceset.ModeFlags, mandatory, optional resource.Mask, credentials []string) (uint32, error) {
	class, ok := m.classes.Find(className)
	if !ok {
		return 0, errorkinds.New(errorkinds.KindNotFound, "arbiter.Register", fmt.Sprintf("unknown class %q", className))
	}
	if !resource.CheckResources(class, mandatory, false) {
		return 0, errorkinds.New(errorkinds.KindPermissionDenied, "arbiter.Register", "mandatory mask not allowed for class")
	}

	allowed, err := m.authorize(ctx, className, credentials)
	if err != nil {
		return 0, errorkinds.Wrap(errorkinds.KindPermissionDenied, "arbiter.Register", "authorization oracle failed", err)
	}
	if !allowed {
		return 0, errorkinds.New(errorkinds.KindPermissionDenied, "arbiter.Register", "authorization denied")
	}

	m.mu.Lock()
	m.nextManager++
	managerID := m.nextManager
	stamp := managerID
	set := resourceset.New(managerID, clientID, clientAddr, clientPID, className, flags, stamp)
	set.Resources = resourceset.Resources{All: mandatory | optional, Opt: optional}
	m.sets[managerID] = set
	m.byAddr[clientAddr] = managerID
	m.mu.Unlock()
	metrics.ResourceSetsLive.WithLabelValues(className).Inc()

	prio := classPriority(set, false, false)
	set.ClassLinkPriority = prio
	if list := m.classes.List(className); list != nil {
		list.Insert(managerID, prio)
	}

	m.store.AddEntry(factResourceSet, factstore.Row{
		fieldManagerID: factstore.UintValue(uint64(managerID)),
		fieldGranted:   factstore.UintValue(0),
		fieldAdvice:    factstore.UintValue(0),
		fieldRequest:   factstore.StringValue(resourceset.RequestRegister.String()),
		fieldBlock:     factstore.UintValue(0),
	})

	m.withTransaction([]*resourceset.Set{set}, func(txid uint64) {
		m.evalRequest(ctx, ruleengine.OperationRegister, managerID, clientID)
	})

	return managerID, nil
}

func (m *Manager) authorize(ctx context.Context, className string, credentials []string) (bool, error) {
	if m.oracle == nil {
		class, ok := m.classes.Find(className)
		if ok && class.Flags.Public() {
			return true, nil
		}
		return m.defaultAccept, nil
	}
	return m.oracle.Authorize(ctx, className, credentials)
}

// Update revalidates and replaces a set's flag masks. className must
// match the set's existing class; a mismatch is rejected outright.
func (m *Manager) Update(ctx context.Context, managerID uint32, className string, flags resourceset.ModeFlags, mandatory, optional resource.Mask) error {
	s, err := m.get(managerID)
	if err != nil {
		return err
	}
	if className != s.ClassName {
		return errorkinds.New(errorkinds.KindInvalidArgument, "arbiter.Update", "class name change not permitted")
	}

	newMandatory, newOptional := mandatory, optional
	if m.engine != nil {
		if nm, no, narrowed, err := ruleengine.ResourceClassRequest(ctx, m.engine, className, uint32(mandatory), uint32(optional)); err == nil && narrowed {
			newMandatory, newOptional = resource.Mask(nm), resource.Mask(no)
		}
	}

	unchanged := s.Resources.All == (newMandatory|newOptional) && s.Resources.Opt == newOptional && s.ModeFlags == flags
	if unchanged {
		return nil
	}

	m.withTransaction([]*resourceset.Set{s}, func(txid uint64) {
		s.Resources = resourceset.Resources{All: newMandatory | newOptional, Opt: newOptional}
		s.ModeFlags = flags
		wasAcquiring := s.Request == resourceset.RequestAcquire

		op := ruleengine.OperationUpdate
		if wasAcquiring {
			op = ruleengine.OperationUpdateRequest
		}
		m.evalRequest(ctx, op, managerID, s.ClientID)
	})
	return nil
}

// Acquire asks policy to grant the set's requested resources.
func (m *Manager) Acquire(ctx context.Context, managerID uint32, reqno uint64) error {
	s, err := m.get(managerID)
	if err != nil {
		return err
	}

	needResolve := s.Request != resourceset.RequestAcquire || (s.Advice.Current&^s.Granted.Current != 0)

	m.withTransaction([]*resourceset.Set{s}, func(txid uint64) {
		if s.ModeFlags.AlwaysReplyEnabled() {
			s.QueueChange(txid, reqno, resourceset.FieldGranted)
		}
		if !needResolve {
			return
		}
		s.Request = resourceset.RequestAcquire
		s.ReqNo = reqno
		m.relink(s, true)
		m.evalRequest(ctx, ruleengine.OperationAcquire, managerID, s.ClientID)
	})
	return nil
}

// Release gives the set's resources back and clears any block.
func (m *Manager) Release(ctx context.Context, managerID uint32) error {
	s, err := m.get(managerID)
	if err != nil {
		return err
	}

	m.withTransaction([]*resourceset.Set{s}, func(txid uint64) {
		already := s.Request == resourceset.RequestRelease
		hadGrant := s.Granted.Current != resource.None
		s.Request = resourceset.RequestRelease
		s.Block = false
		m.relink(s, false)

		if !already && hadGrant {
			m.evalRequest(ctx, ruleengine.OperationRelease, managerID, s.ClientID)
		}
	})
	return nil
}

// relink recomputes s's composite priority after an acquire/release
// transition and re-sorts its class membership list accordingly
// (unlink + re-insert is the only legal mutation). The set counts as
// share-eligible when it declares any shared resources.
func (m *Manager) relink(s *resourceset.Set, acquiring bool) {
	prio := classPriority(s, acquiring, s.Resources.Share != resource.None)
	s.ClassLinkPriority = prio
	if list := m.classes.List(s.ClassName); list != nil {
		list.Reorder(s.ManagerID, prio)
	}
}

// Audio adds or replaces the set's audio stream specification.
func (m *Manager) Audio(ctx context.Context, managerID uint32, spec resource.Spec) error {
	s, err := m.get(managerID)
	if err != nil {
		return err
	}
	spec.Kind = resource.SpecAudio
	s.AddSpec(spec)
	m.withTransaction([]*resourceset.Set{s}, func(txid uint64) {
		m.evalRequest(ctx, ruleengine.OperationAudio, managerID, s.ClientID)
	})
	return nil
}

// Video adds or replaces the set's video stream specification.
func (m *Manager) Video(ctx context.Context, managerID uint32, pid int) error {
	s, err := m.get(managerID)
	if err != nil {
		return err
	}
	s.AddSpec(resource.NewVideoSpec(pid))
	m.withTransaction([]*resourceset.Set{s}, func(txid uint64) {
		m.evalRequest(ctx, ruleengine.OperationVideo, managerID, s.ClientID)
	})
	return nil
}

// Unregister cancels any parked registration, destroys
// the set (queues, class link, fact row), and fires a final
// resource_request(unregister, ...).
func (m *Manager) Unregister(ctx context.Context, managerID uint32) error {
	m.mu.Lock()
	if req, ok := m.regReqs[managerID]; ok {
		req.canceled = true
	}
	s, ok := m.sets[managerID]
	if ok {
		delete(m.sets, managerID)
		delete(m.byAddr, s.ClientAddr)
	}
	m.mu.Unlock()
	if !ok {
		return errorkinds.New(errorkinds.KindNotFound, "arbiter.Unregister", fmt.Sprintf("unknown manager_id %d", managerID))
	}

	if list := m.classes.List(s.ClassName); list != nil {
		list.Remove(managerID)
	}
	m.store.DeleteEntry(factResourceSet, factstore.Row{fieldManagerID: factstore.UintValue(uint64(managerID))})
	s.Destroy()
	metrics.ResourceSetsLive.WithLabelValues(s.ClassName).Dec()

	m.evalRequest(ctx, ruleengine.OperationUnregister, managerID, s.ClientID)
	return nil
}

func (m *Manager) get(managerID uint32) (*resourceset.Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[managerID]
	if !ok {
		return nil, errorkinds.New(errorkinds.KindNotFound, "arbiter", fmt.Sprintf("unknown manager_id %d", managerID))
	}
	return s, nil
}

// evalRequest evaluates resource_request/4 and logs rule-engine failures
// without surfacing them to the caller: a rule-engine
// rejection is a policy decision, not a transport or argument error, and
// the manager has already committed the fact-store side effects the rule
// observes. When no external engine is installed, or it has no
// resource_request rule registered, the Built-in Arbitrator
// resolves the same set of pending acquisitions instead.
func (m *Manager) evalRequest(ctx context.Context, op ruleengine.Operation, managerID uint32, clientID string) {
	if m.engine == nil {
		m.runBuiltinArbitration()
		return
	}
	m.mu.Lock()
	s := m.sets[managerID]
	m.mu.Unlock()
	className := ""
	if s != nil {
		className = s.ClassName
	}
	status, err := ruleengine.ResourceRequest(ctx, m.engine, string(op), managerID, className, clientID)
	if err != nil {
		logging.Warn().Err(err).Uint32("manager_id", managerID).Str("op", string(op)).Msg("arbiter: resource_request evaluation failed, falling back to built-in arbitrator")
		m.runBuiltinArbitration()
		return
	}
	if status <= 0 {
		m.runBuiltinArbitration()
	}
}

// runBuiltinArbitration runs the Built-in Arbitrator over every class's
// current membership and publishes its grant/advice decisions
// into the resource_set facts, which the Manager's own field watchers then
// turn into queued notifications exactly as an external rule engine's
// writes would. The resolver runs unconditionally over the whole class
// directory, not just the triggering set.
func (m *Manager) runBuiltinArbitration() {
	metrics.BuiltinArbitrations.Inc()
	m.mu.Lock()
	lookup := func(managerID uint32) (*resourceset.Set, bool) {
		s, ok := m.sets[managerID]
		return s, ok
	}
	decisions := m.builtin.run(m.classes, lookup)
	m.mu.Unlock()

	for managerID, decision := range decisions {
		selector := factstore.Row{fieldManagerID: factstore.UintValue(uint64(managerID))}
		m.store.UpdateEntry(factResourceSet, selector, factstore.Row{
			fieldGranted: factstore.UintValue(uint64(decision.Grant)),
			fieldAdvice:  factstore.UintValue(uint64(decision.Advice)),
		})
	}

	m.store.DeleteEntry(factResourceOwner, factstore.Row{})
	for _, row := range m.builtin.ownerRows() {
		m.store.AddEntry(factResourceOwner, row)
	}
}
