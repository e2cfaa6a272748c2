// SPDX-License-Identifier: AGPL-3.0-or-later

// Package manager implements the Manager (§4.7): it owns the three
// protocol state machines, the local-entity registry, the 5ms ticker
// thread, and the reentrant lock every exported method and SM callback
// runs under. A Manager is the one long-lived object a host application
// constructs; everything else in this module is either stateless or
// owned by exactly one Manager.
package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avdeccgo/avdecc/config"
	"github.com/avdeccgo/avdecc/dispatch"
	"github.com/avdeccgo/avdecc/entity"
	"github.com/avdeccgo/avdecc/executor"
	"github.com/avdeccgo/avdecc/manager/internal/rlock"
	"github.com/avdeccgo/avdecc/statemachine/advertise"
	"github.com/avdeccgo/avdecc/statemachine/command"
	"github.com/avdeccgo/avdecc/statemachine/discovery"
	"github.com/avdeccgo/avdecc/transport"
	"github.com/avdeccgo/avdecc/wire"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"
)

// tickInterval is the ticker thread's cadence (§5).
const tickInterval = 5 * time.Millisecond

var (
	// ErrDuplicateLocalEntityID is returned by RegisterLocalEntity when the
	// EntityID is already registered.
	ErrDuplicateLocalEntityID = errors.New("manager: local entity id already registered")
	// ErrUnknownLocalEntity is returned by UnregisterLocalEntity and any
	// per-local-entity command submission for an EntityID the Manager does
	// not own.
	ErrUnknownLocalEntity = errors.New("manager: unknown local entity id")
	// ErrAlreadyRunning is returned by Run if the Manager's ticker thread is
	// already active.
	ErrAlreadyRunning = errors.New("manager: already running")
)

// InstrumentationPoint names a choke point InstrumentationHook fires at.
type InstrumentationPoint string

const (
	// InstrumentationPreTick fires at the start of every tick, before any
	// state machine advances.
	InstrumentationPreTick InstrumentationPoint = "pre-tick"
	// InstrumentationPostSend fires immediately after an AECP or ACMP
	// command PDU is handed to the endpoint (or the self-targeting fast
	// path, §4.6).
	InstrumentationPostSend InstrumentationPoint = "post-send"
	// InstrumentationInflightTimeout fires when an inflight AECP command
	// times out after its retry. ACMP timeouts do not fire it.
	InstrumentationInflightTimeout InstrumentationPoint = "inflight-timeout"
)

// InstrumentationHook is optional test scaffolding (supplemented from
// original_source's instrumentationNotifier.hpp): a single callback fired
// at named choke points so timing-dependent tests can synchronize on
// notifications instead of sleeping on wall-clock time.
type InstrumentationHook func(point InstrumentationPoint, entityID entity.EntityID)

// LocalInterfaceConfig describes one network interface a local entity
// advertises itself on.
type LocalInterfaceConfig struct {
	InterfaceIndex uint16
	MacAddress     entity.MacAddress
	ValidTime      uint8
}

// localEntity is the Manager's private record for one registered local
// entity.
type localEntity struct {
	fields     advertise.EntityFields
	interfaces []LocalInterfaceConfig
	command    *command.StateMachine
}

// Manager owns and coordinates the advertise, discovery and command state
// machines, routes inbound PDUs decoded by its dispatcher, and drives
// everything under a single reentrant lock (§5). The zero value is not
// usable; construct with New.
type Manager struct {
	cfg      config.Config
	endpoint transport.Endpoint
	logger   *slog.Logger
	metrics  *Metrics

	lock rlock.Mutex

	localEntities *xsync.Map[entity.EntityID, *localEntity]

	advertiseSM          *advertise.StateMachine
	discoverySM          *discovery.StateMachine
	autoDiscoveryEnabled bool

	executor *executor.Executor

	dispatcher *dispatch.Dispatcher

	// selfLoopAecp/selfLoopAcmp hold commands addressed to a local target
	// entity (§4.6's self-targeting fast path): the command is delivered to
	// the target's inbound handling on the next tick rather than being
	// serialized onto the endpoint, but still completes asynchronously
	// like every other command.
	selfLoopAecp []wire.Aecpdu
	selfLoopAcmp []wire.Acmpdu

	transportErrCh chan error

	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once

	// Instrumentation is nil-safe test scaffolding; see InstrumentationHook.
	Instrumentation InstrumentationHook

	OnLocalEntityOnline   func(entity.EntityID)
	OnLocalEntityOffline  func(entity.EntityID)
	OnRemoteEntityOnline  func(discovery.RemoteEntity)
	OnRemoteEntityOffline func(entity.EntityID)
	OnRemoteEntityUpdated func(discovery.RemoteEntity)
	OnAecpCommand         func(pdu wire.Aecpdu)
	OnAcmpCommand         func(pdu wire.Acmpdu)
	OnAcmpResponse        func(pdu wire.Acmpdu)
	OnTransportError      func(error)
}

// New constructs a Manager bound to ep. cfg's ExecutorName is registered
// with the package-level named executor registry (§5); New returns
// executor.ErrDuplicateExecutorName wrapped if that name is already taken.
func New(cfg config.Config, ep transport.Endpoint, metrics *Metrics, logger *slog.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("manager: invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	discoveryDelay := cfg.AutomaticDiscoveryDelay
	autoDiscoveryEnabled := discoveryDelay > 0
	if !autoDiscoveryEnabled {
		discoveryDelay = time.Hour // placeholder; its scheduler is never started
	}
	discoverySM, err := discovery.New(discoveryDelay)
	if err != nil {
		return nil, fmt.Errorf("manager: creating discovery state machine: %w", err)
	}

	exec, err := executor.Default.Register(cfg.ExecutorName)
	if err != nil {
		return nil, fmt.Errorf("manager: registering executor %q: %w", cfg.ExecutorName, err)
	}

	m := &Manager{
		cfg:                  cfg,
		endpoint:             ep,
		logger:               logger,
		metrics:              metrics,
		localEntities:        xsync.NewMap[entity.EntityID, *localEntity](),
		advertiseSM:          advertise.New(),
		discoverySM:          discoverySM,
		autoDiscoveryEnabled: autoDiscoveryEnabled,
		executor:             exec,
		transportErrCh:       make(chan error, 8),
		stopCh:               make(chan struct{}),
	}

	m.discoverySM.OnRemoteEntityOnline = m.notifyRemoteOnline
	m.discoverySM.OnRemoteEntityOffline = m.notifyRemoteOffline
	m.discoverySM.OnRemoteEntityUpdated = m.notifyRemoteUpdated

	m.dispatcher = &dispatch.Dispatcher{
		LocalMac: ep.LocalMac(),
		Logger:   logger,
		OnAdp:    m.onAdp,
		OnAecp:   m.onAecp,
		OnAcmp:   m.onAcmp,
	}
	ep.SetOnFrame(m.dispatcher.Dispatch)
	ep.SetOnTransportError(func(err error) {
		select {
		case m.transportErrCh <- err:
		default:
		}
	})

	return m, nil
}

// RegisterLocalEntity adds entityID to the Manager, begins advertising it
// on every supplied interface, and returns the per-entity command state
// machine used to send AECP/ACMP commands as that entity.
func (m *Manager) RegisterLocalEntity(entityID entity.EntityID, fields advertise.EntityFields, interfaces []LocalInterfaceConfig) (*command.StateMachine, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, loaded := m.localEntities.Load(entityID); loaded {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateLocalEntityID, entityID)
	}

	maxInflight := m.cfg.MaxInflightAecpMessages
	cmdSM := command.New(maxInflight, m.cfg.VendorUniqueAecpTimeouts)
	cmdSM.SendAecp = func(target entity.EntityID, pdu wire.Aecpdu) error {
		return m.sendAecp(target, pdu)
	}
	cmdSM.SendAcmp = func(pdu wire.Acmpdu) error {
		return m.sendAcmp(pdu)
	}
	cmdSM.OnAecpTimeout = func(id entity.EntityID) { m.fireInstrumentation(InstrumentationInflightTimeout, id) }

	le := &localEntity{fields: fields, interfaces: interfaces, command: cmdSM}
	m.localEntities.Store(entityID, le)

	now := time.Now()
	for _, iface := range interfaces {
		m.advertiseSM.EnableAdvertising(entityID, iface.InterfaceIndex, iface.MacAddress, iface.ValidTime, now)
	}

	m.setLocalEntitiesMetric()
	if m.OnLocalEntityOnline != nil {
		m.OnLocalEntityOnline(entityID)
	}
	return cmdSM, nil
}

// UnregisterLocalEntity stops advertising entityID, sends EntityDeparting
// on every interface it was advertised on, and discards it. Any AECP/ACMP
// commands still inflight for it are silently dropped, matching the
// Manager-wide shutdown policy (§5).
func (m *Manager) UnregisterLocalEntity(entityID entity.EntityID) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	le, loaded := m.localEntities.LoadAndDelete(entityID)
	if !loaded {
		return fmt.Errorf("%w: %s", ErrUnknownLocalEntity, entityID)
	}

	for _, out := range m.advertiseSM.DisableAdvertising(entityID, le.fields) {
		if err := m.sendAdp(entityID, out); err != nil {
			m.logger.Debug("manager: sending departing PDU failed", "entity", entityID, "error", err)
		}
	}

	m.setLocalEntitiesMetric()
	if m.OnLocalEntityOffline != nil {
		m.OnLocalEntityOffline(entityID)
	}
	return nil
}

// LocalEntityCommand returns the command state machine for a registered
// local entity, for submitting outbound AECP/ACMP commands.
func (m *Manager) LocalEntityCommand(entityID entity.EntityID) (*command.StateMachine, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	le, ok := m.localEntities.Load(entityID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLocalEntity, entityID)
	}
	return le.command, nil
}

// SetEntityNeedsAdvertise schedules an early re-announce for entityID after
// a mutable advertise field (capabilities, associationID, gPTP GM) changed,
// and records the new field values used on the next announce.
func (m *Manager) SetEntityNeedsAdvertise(entityID entity.EntityID, fields advertise.EntityFields) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	le, ok := m.localEntities.Load(entityID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLocalEntity, entityID)
	}
	le.fields = fields
	m.advertiseSM.SetEntityNeedsAdvertise(entityID, time.Now())
	return nil
}

// DiscoverRemoteEntity sends a single EntityDiscover multicast (id ==
// entity.NullID means "discover everyone") and debounces the automatic
// discovery cadence so it doesn't immediately re-fire on top of it.
func (m *Manager) DiscoverRemoteEntity(id entity.EntityID) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	pdu := wire.Adpdu{MessageType: wire.AdpEntityDiscover, EntityID: id}
	frame := wire.Eth2Frame{
		Destination: entity.AvdeccMulticast,
		Source:      m.endpoint.LocalMac(),
		EtherType:   wire.EtherTypeAvtp,
	}
	var buf bytes.Buffer
	if err := pdu.Serialize(&buf); err != nil {
		return fmt.Errorf("manager: serializing discover PDU: %w", err)
	}
	frame.Payload = buf.Bytes()
	if err := m.endpoint.Send(frame); err != nil {
		return fmt.Errorf("manager: sending discover PDU: %w", err)
	}
	m.discoverySM.DebounceAutomaticDiscovery()
	return nil
}

// Run starts the ticker thread and the transport-error goroutine, blocking
// until ctx is cancelled or Close is called. Run returns ctx.Err() on
// cancellation and nil on an explicit Close.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer m.running.Store(false)

	if m.autoDiscoveryEnabled {
		m.discoverySM.Start()
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return m.tickerLoop(egCtx) })
	eg.Go(func() error { return m.transportErrorLoop(egCtx) })

	err := eg.Wait()
	if errors.Is(err, errStoppedByClose) {
		return nil
	}
	return err
}

// errStoppedByClose is returned internally by the supervised goroutines
// when Close triggers their shutdown, translated to a nil Run result.
var errStoppedByClose = errors.New("manager: stopped")

func (m *Manager) tickerLoop(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.teardown()
			return ctx.Err()
		case <-m.stopCh:
			m.teardown()
			return errStoppedByClose
		case now := <-ticker.C:
			m.tick(now)
		}
	}
}

func (m *Manager) transportErrorLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stopCh:
			return errStoppedByClose
		case err := <-m.transportErrCh:
			m.lock.Lock()
			if m.OnTransportError != nil {
				m.OnTransportError(err)
			}
			m.lock.Unlock()
		}
	}
}

// Close stops the ticker thread (joined via Run's return), destroys the
// Manager's executor, closes the endpoint, and discards inflight work
// (§5's shutdown invariant).
// Close is idempotent.
func (m *Manager) Close() error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	_ = executor.Default.Destroy(m.cfg.ExecutorName)
	return m.endpoint.Close()
}

func (m *Manager) teardown() {
	if err := m.discoverySM.Stop(); err != nil {
		m.logger.Debug("manager: stopping discovery scheduler", "error", err)
	}
	m.executor.Flush()
}

// tick advances every state machine by one 5ms step: it is the single
// place all three SMs' Tick methods are called from, always under the
// reentrant lock.
func (m *Manager) tick(now time.Time) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.fireInstrumentation(InstrumentationPreTick, entity.NullID)

	m.drainSelfLoop()

	entities := make(map[entity.EntityID]advertise.EntityFields)
	m.localEntities.Range(func(id entity.EntityID, le *localEntity) bool {
		entities[id] = le.fields
		return true
	})
	for _, out := range m.advertiseSM.Tick(now, entities) {
		if err := m.sendAdp(out.EntityID, out); err != nil {
			m.logger.Debug("manager: sending advertise PDU failed", "entity", out.EntityID, "error", err)
		}
	}

	m.discoverySM.Tick(now)
	if m.autoDiscoveryEnabled && m.discoverySM.CheckDiscovery() {
		if err := m.DiscoverRemoteEntity(entity.NullID); err != nil {
			m.logger.Debug("manager: automatic discovery probe failed", "error", err)
		}
	}

	m.localEntities.Range(func(_ entity.EntityID, le *localEntity) bool {
		le.command.Tick(now)
		return true
	})
}

func (m *Manager) drainSelfLoop() {
	for _, pdu := range m.selfLoopAecp {
		m.onAecp(pdu, m.endpoint.LocalMac())
	}
	m.selfLoopAecp = nil
	for _, pdu := range m.selfLoopAcmp {
		m.onAcmp(pdu, m.endpoint.LocalMac())
	}
	m.selfLoopAcmp = nil
}

func (m *Manager) fireInstrumentation(point InstrumentationPoint, id entity.EntityID) {
	if m.Instrumentation != nil {
		m.Instrumentation(point, id)
	}
}

func (m *Manager) setLocalEntitiesMetric() {
	if m.metrics == nil {
		return
	}
	m.metrics.LocalEntitiesTotal.Set(float64(m.localEntities.Size()))
}

// --- inbound PDU routing (§4.7) ---

func (m *Manager) onAdp(pdu wire.Adpdu, sourceMac entity.MacAddress) {
	m.lock.Lock()
	defer m.lock.Unlock()

	switch pdu.MessageType {
	case wire.AdpEntityDiscover:
		m.advertiseSM.OnEntityDiscover(pdu.EntityID, m.endpoint.LocalMac(), time.Now())
	case wire.AdpEntityAvailable:
		if _, isLocal := m.localEntities.Load(pdu.EntityID); isLocal {
			return
		}
		m.discoverySM.OnEntityAvailable(pdu, sourceMac, time.Now())
		if m.metrics != nil {
			m.metrics.RemoteEntitiesTotal.Set(float64(m.discoverySM.Count()))
		}
	case wire.AdpEntityDeparting:
		if _, isLocal := m.localEntities.Load(pdu.EntityID); isLocal {
			return
		}
		m.discoverySM.OnEntityDeparting(pdu.EntityID)
		if m.metrics != nil {
			m.metrics.RemoteEntitiesTotal.Set(float64(m.discoverySM.Count()))
		}
	}
}

func (m *Manager) onAecp(pdu wire.Aecpdu, _ entity.MacAddress) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if pdu.MessageType.IsResponse() {
		le, ok := m.localEntities.Load(pdu.ControllerEntityID)
		if !ok {
			return
		}
		le.command.OnAecpResponse(pdu, time.Now())
		return
	}

	if _, ok := m.localEntities.Load(pdu.TargetEntityID); !ok {
		return
	}
	if m.OnAecpCommand != nil {
		m.OnAecpCommand(pdu)
	}
}

func (m *Manager) onAcmp(pdu wire.Acmpdu, _ entity.MacAddress) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if pdu.MessageType.IsResponse() {
		if le, ok := m.localEntities.Load(pdu.ControllerEntityID); ok {
			le.command.OnAcmpResponse(pdu, time.Now())
		}
		if m.OnAcmpResponse != nil {
			m.OnAcmpResponse(pdu)
		}
		return
	}
	if m.OnAcmpCommand != nil {
		m.OnAcmpCommand(pdu)
	}
}

// --- outbound send helpers ---

func (m *Manager) sendAdp(entityID entity.EntityID, out advertise.OutgoingAdp) error {
	var buf bytes.Buffer
	if err := out.PDU.Serialize(&buf); err != nil {
		return err
	}
	frame := wire.Eth2Frame{
		Destination: entity.AvdeccMulticast,
		Source:      m.endpoint.LocalMac(),
		EtherType:   wire.EtherTypeAvtp,
		Payload:     buf.Bytes(),
	}
	return m.endpoint.Send(frame)
}

func (m *Manager) sendAecp(target entity.EntityID, pdu wire.Aecpdu) error {
	if _, ok := m.localEntities.Load(target); ok {
		m.selfLoopAecp = append(m.selfLoopAecp, pdu)
		m.fireInstrumentation(InstrumentationPostSend, target)
		return nil
	}

	var buf bytes.Buffer
	if err := pdu.Serialize(&buf); err != nil {
		return err
	}
	frame := wire.Eth2Frame{
		Destination: m.unicastDestination(target),
		Source:      m.endpoint.LocalMac(),
		EtherType:   wire.EtherTypeAvtp,
		Payload:     buf.Bytes(),
	}
	if err := m.endpoint.Send(frame); err != nil {
		return err
	}
	m.fireInstrumentation(InstrumentationPostSend, target)
	return nil
}

func (m *Manager) sendAcmp(pdu wire.Acmpdu) error {
	target := pdu.TalkerEntityID
	if target == entity.NullID {
		target = pdu.ListenerEntityID
	}
	if _, ok := m.localEntities.Load(target); ok {
		m.selfLoopAcmp = append(m.selfLoopAcmp, pdu)
		m.fireInstrumentation(InstrumentationPostSend, target)
		return nil
	}

	var buf bytes.Buffer
	if err := pdu.Serialize(&buf); err != nil {
		return err
	}
	frame := wire.Eth2Frame{
		Destination: m.unicastDestination(target),
		Source:      m.endpoint.LocalMac(),
		EtherType:   wire.EtherTypeAvtp,
		Payload:     buf.Bytes(),
	}
	if err := m.endpoint.Send(frame); err != nil {
		return err
	}
	m.fireInstrumentation(InstrumentationPostSend, target)
	return nil
}

// unicastDestination returns the MAC address a command addressed to
// target should be sent to: the address of one of its discovered
// interfaces if known, or the AVDECC multicast address as a fallback (the
// target will still accept it; acceptsDestination always allows
// multicast).
func (m *Manager) unicastDestination(target entity.EntityID) entity.MacAddress {
	re, ok := m.discoverySM.Lookup(target)
	if !ok {
		return entity.AvdeccMulticast
	}
	for _, iface := range re.Interfaces {
		return iface.MacAddress
	}
	return entity.AvdeccMulticast
}

func (m *Manager) notifyRemoteOnline(re discovery.RemoteEntity) {
	if m.OnRemoteEntityOnline != nil {
		m.OnRemoteEntityOnline(re)
	}
}

func (m *Manager) notifyRemoteOffline(id entity.EntityID) {
	if m.OnRemoteEntityOffline != nil {
		m.OnRemoteEntityOffline(id)
	}
	for _, le := range m.snapshotLocalEntities() {
		le.command.OnRemoteEntityOffline(id)
	}
}

func (m *Manager) notifyRemoteUpdated(re discovery.RemoteEntity) {
	if m.OnRemoteEntityUpdated != nil {
		m.OnRemoteEntityUpdated(re)
	}
}

func (m *Manager) snapshotLocalEntities() []*localEntity {
	out := make([]*localEntity, 0, m.localEntities.Size())
	m.localEntities.Range(func(_ entity.EntityID, le *localEntity) bool {
		out = append(out, le)
		return true
	})
	return out
}
