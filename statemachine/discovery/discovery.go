// SPDX-License-Identifier: AGPL-3.0-or-later

// Package discovery implements the remote-entity discovery state machine:
// it tracks every remote AVDECC entity seen over ADP, detects misbehaving
// AvailableIndex sequences, expires entities whose advertisements stop
// arriving, and drives the periodic automatic EntityDiscover probe. Like
// statemachine/advertise, it holds no transport of its own and expects to
// be driven under the Manager's reentrant lock.
package discovery

import (
	"sync/atomic"
	"time"

	"github.com/avdeccgo/avdecc/entity"
	"github.com/avdeccgo/avdecc/wire"
	"github.com/go-co-op/gocron/v2"
)

// validTimeoutMultiplier is §4.5's "per-interface timeout = 2·validTime
// seconds".
const validTimeoutMultiplier = 2

// RemoteInterface is one advertised interface of a RemoteEntity.
type RemoteInterface struct {
	MacAddress        entity.MacAddress
	AvailableIndex    uint32
	GptpGrandmasterID entity.ClockID
	GptpDomainNumber  uint8
	Timeout           time.Time
}

// RemoteEntity is a snapshot of a discovered remote entity's ADP-derived
// fields plus its known interfaces.
type RemoteEntity struct {
	EntityID               entity.EntityID
	EntityModelID          entity.EntityModelID
	EntityCapabilities     entity.EntityCapabilities
	TalkerStreamSources    uint16
	TalkerCapabilities     entity.TalkerCapabilities
	ListenerStreamSinks    uint16
	ListenerCapabilities   entity.ListenerCapabilities
	ControllerCapabilities entity.ControllerCapabilities
	IdentifyControlIndex   uint16
	AssociationID          entity.ID
	Interfaces             map[uint16]RemoteInterface
}

func (re RemoteEntity) clone() RemoteEntity {
	out := re
	out.Interfaces = make(map[uint16]RemoteInterface, len(re.Interfaces))
	for k, v := range re.Interfaces {
		out.Interfaces[k] = v
	}
	return out
}

// StateMachine tracks every known remote entity.
type StateMachine struct {
	remote map[entity.EntityID]*RemoteEntity

	discoveryDelay time.Duration
	scheduler      gocron.Scheduler
	job            gocron.Job
	// probePending is set by the gocron job's goroutine (which runs outside
	// the Manager's lock) and drained by CheckDiscovery, which the ticker
	// calls while holding the lock. This keeps the actual EntityDiscover
	// send serialized on the ticker thread like every other observer
	// notification (§5).
	probePending atomic.Bool

	// OnRemoteEntityOnline, OnRemoteEntityOffline and OnRemoteEntityUpdated
	// are invoked synchronously by the state machine's caller-driven
	// methods; they are nil-safe to leave unset.
	OnRemoteEntityOnline  func(RemoteEntity)
	OnRemoteEntityOffline func(entity.EntityID)
	OnRemoteEntityUpdated func(RemoteEntity)
}

// New returns a StateMachine whose automatic discovery probe fires every
// discoveryDelay once Start is called.
func New(discoveryDelay time.Duration) (*StateMachine, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	sm := &StateMachine{
		remote:         make(map[entity.EntityID]*RemoteEntity),
		discoveryDelay: discoveryDelay,
		scheduler:      scheduler,
	}
	job, err := scheduler.NewJob(
		gocron.DurationJob(discoveryDelay),
		gocron.NewTask(func() { sm.probePending.Store(true) }),
	)
	if err != nil {
		return nil, err
	}
	sm.job = job
	return sm, nil
}

// Start starts the automatic discovery scheduler.
func (sm *StateMachine) Start() { sm.scheduler.Start() }

// Stop stops the automatic discovery scheduler.
func (sm *StateMachine) Stop() error { return sm.scheduler.Shutdown() }

// CheckDiscovery reports whether the automatic discovery probe is due,
// clearing the pending flag if so. Call this once per tick.
func (sm *StateMachine) CheckDiscovery() bool {
	return sm.probePending.CompareAndSwap(true, false)
}

// DebounceAutomaticDiscovery pushes the next automatic probe out by a full
// discoveryDelay, for use after a manual DiscoverRemoteEntity call so the
// automatic cadence doesn't immediately re-fire on top of it.
func (sm *StateMachine) DebounceAutomaticDiscovery() {
	sm.probePending.Store(false)
	if sm.job == nil {
		return
	}
	_ = sm.scheduler.RemoveJob(sm.job.ID())
	job, err := sm.scheduler.NewJob(
		gocron.DurationJob(sm.discoveryDelay),
		gocron.NewTask(func() { sm.probePending.Store(true) }),
	)
	if err == nil {
		sm.job = job
	}
}

// OnEntityAvailable processes an inbound ADP EntityAvailable PDU. Callers
// must already have excluded PDUs whose EntityID belongs to a local
// entity and must pass the Ethernet source MAC the frame arrived with.
func (sm *StateMachine) OnEntityAvailable(pdu wire.Adpdu, sourceMac entity.MacAddress, now time.Time) {
	if pdu.EntityCapabilities.Has(entity.EntityCapEntityNotReady) {
		return
	}

	newIface := RemoteInterface{
		MacAddress:        sourceMac,
		AvailableIndex:    pdu.AvailableIndex,
		GptpGrandmasterID: pdu.GptpGrandmasterID,
		GptpDomainNumber:  pdu.GptpDomainNumber,
		Timeout:           now.Add(validTimeoutMultiplier * time.Duration(pdu.ValidTime) * time.Second),
	}

	existing, known := sm.remote[pdu.EntityID]
	if !known {
		re := snapshotFromPDU(pdu)
		re.Interfaces = map[uint16]RemoteInterface{pdu.InterfaceIndex: newIface}
		sm.remote[pdu.EntityID] = &re
		sm.notifyOnline(re)
		return
	}

	immutableChanged := existing.EntityModelID != pdu.EntityModelID ||
		existing.TalkerCapabilities != pdu.TalkerCapabilities ||
		existing.TalkerStreamSources != pdu.TalkerStreamSources ||
		existing.ListenerCapabilities != pdu.ListenerCapabilities ||
		existing.ListenerStreamSinks != pdu.ListenerStreamSinks ||
		existing.ControllerCapabilities != pdu.ControllerCapabilities ||
		existing.IdentifyControlIndex != pdu.IdentifyControlIndex

	prevIface, hadIface := existing.Interfaces[pdu.InterfaceIndex]
	ifaceViolation := hadIface && (prevIface.MacAddress != sourceMac || pdu.AvailableIndex <= prevIface.AvailableIndex)

	if immutableChanged || ifaceViolation {
		sm.notifyOffline(existing.EntityID)
		re := snapshotFromPDU(pdu)
		re.Interfaces = map[uint16]RemoteInterface{pdu.InterfaceIndex: newIface}
		sm.remote[pdu.EntityID] = &re
		sm.notifyOnline(re)
		return
	}

	gptpChanged := !hadIface || prevIface.GptpGrandmasterID != newIface.GptpGrandmasterID || prevIface.GptpDomainNumber != newIface.GptpDomainNumber
	mutableChanged := existing.EntityCapabilities != pdu.EntityCapabilities || existing.AssociationID != pdu.AssociationID
	changed := !hadIface || mutableChanged || gptpChanged

	existing.EntityCapabilities = pdu.EntityCapabilities
	existing.AssociationID = pdu.AssociationID
	existing.Interfaces[pdu.InterfaceIndex] = newIface

	if changed {
		sm.notifyUpdated(existing.clone())
	}
}

// OnEntityDeparting removes entityID entirely and emits RemoteEntityOffline.
func (sm *StateMachine) OnEntityDeparting(entityID entity.EntityID) {
	if _, ok := sm.remote[entityID]; ok {
		delete(sm.remote, entityID)
		sm.notifyOffline(entityID)
	}
}

// Tick expires any interface whose timeout has elapsed, removing the whole
// entity once its last interface expires.
func (sm *StateMachine) Tick(now time.Time) {
	for id, re := range sm.remote {
		expired := false
		for ifaceIdx, iface := range re.Interfaces {
			if now.After(iface.Timeout) {
				delete(re.Interfaces, ifaceIdx)
				expired = true
			}
		}
		if len(re.Interfaces) == 0 {
			delete(sm.remote, id)
			sm.notifyOffline(id)
			continue
		}
		if expired {
			sm.notifyUpdated(re.clone())
		}
	}
}

// Count returns the number of remote entities currently known.
func (sm *StateMachine) Count() int { return len(sm.remote) }

// Lookup returns the known snapshot for id, if any.
func (sm *StateMachine) Lookup(id entity.EntityID) (RemoteEntity, bool) {
	re, ok := sm.remote[id]
	if !ok {
		return RemoteEntity{}, false
	}
	return re.clone(), true
}

func snapshotFromPDU(pdu wire.Adpdu) RemoteEntity {
	return RemoteEntity{
		EntityID:               pdu.EntityID,
		EntityModelID:          pdu.EntityModelID,
		EntityCapabilities:     pdu.EntityCapabilities,
		TalkerStreamSources:    pdu.TalkerStreamSources,
		TalkerCapabilities:     pdu.TalkerCapabilities,
		ListenerStreamSinks:    pdu.ListenerStreamSinks,
		ListenerCapabilities:   pdu.ListenerCapabilities,
		ControllerCapabilities: pdu.ControllerCapabilities,
		IdentifyControlIndex:   pdu.IdentifyControlIndex,
		AssociationID:          pdu.AssociationID,
	}
}

func (sm *StateMachine) notifyOnline(re RemoteEntity) {
	if sm.OnRemoteEntityOnline != nil {
		sm.OnRemoteEntityOnline(re)
	}
}

func (sm *StateMachine) notifyOffline(id entity.EntityID) {
	if sm.OnRemoteEntityOffline != nil {
		sm.OnRemoteEntityOffline(id)
	}
}

func (sm *StateMachine) notifyUpdated(re RemoteEntity) {
	if sm.OnRemoteEntityUpdated != nil {
		sm.OnRemoteEntityUpdated(re)
	}
}
