// SPDX-License-Identifier: AGPL-3.0-or-later

// Package advertise implements the per-(local entity, interface) ADP
// advertising state machine: it decides when to emit EntityAvailable and
// EntityDeparting PDUs. It holds no transport or locking of its own —
// Manager calls it under its reentrant lock and is responsible for
// actually sending the PDUs this package returns.
package advertise

import (
	"math/rand/v2"
	"time"

	"github.com/avdeccgo/avdecc/entity"
	"github.com/avdeccgo/avdecc/wire"
)

// EntityFields is the advertise state machine's read-only view of a local
// entity's current ADP-relevant fields, supplied by the caller on every
// call since these fields may change between ticks (§4.4's
// setEntityNeedsAdvertise).
type EntityFields struct {
	EntityModelID          entity.EntityModelID
	EntityCapabilities     entity.EntityCapabilities
	TalkerStreamSources    uint16
	TalkerCapabilities     entity.TalkerCapabilities
	ListenerStreamSinks    uint16
	ListenerCapabilities   entity.ListenerCapabilities
	ControllerCapabilities entity.ControllerCapabilities
	GptpGrandmasterID      entity.ClockID
	GptpDomainNumber       uint8
	IdentifyControlIndex   uint16
	AssociationID          entity.ID
}

// interfaceKey identifies one (local entity, interface) advertising slot.
type interfaceKey struct {
	EntityID       entity.EntityID
	InterfaceIndex uint16
}

type interfaceState struct {
	MacAddress      entity.MacAddress
	ValidTime       uint8
	Advertising     bool
	NextAdvertiseAt time.Time
	AvailableIndex  uint32
}

// OutgoingAdp pairs an ADPDU this state machine wants sent with which
// local entity and interface should send it.
type OutgoingAdp struct {
	EntityID       entity.EntityID
	InterfaceIndex uint16
	PDU            wire.Adpdu
}

// StateMachine tracks advertising state for every (local entity, interface)
// pair registered with it.
type StateMachine struct {
	interfaces map[interfaceKey]*interfaceState
}

// New returns an empty StateMachine.
func New() *StateMachine {
	return &StateMachine{interfaces: make(map[interfaceKey]*interfaceState)}
}

// EnableAdvertising begins advertising entityID on interfaceIndex over mac,
// scheduling the first EntityAvailable for as soon as the next tick runs.
func (sm *StateMachine) EnableAdvertising(entityID entity.EntityID, interfaceIndex uint16, mac entity.MacAddress, validTime uint8, now time.Time) {
	k := interfaceKey{entityID, interfaceIndex}
	st, ok := sm.interfaces[k]
	if !ok {
		st = &interfaceState{}
		sm.interfaces[k] = st
	}
	st.MacAddress = mac
	st.ValidTime = validTime
	st.Advertising = true
	st.NextAdvertiseAt = now
}

// DisableAdvertising stops advertising every interface of entityID,
// returning one EntityDeparting PDU per interface that was active.
func (sm *StateMachine) DisableAdvertising(entityID entity.EntityID, fields EntityFields) []OutgoingAdp {
	var out []OutgoingAdp
	for k, st := range sm.interfaces {
		if k.EntityID != entityID || !st.Advertising {
			continue
		}
		out = append(out, OutgoingAdp{
			EntityID:       entityID,
			InterfaceIndex: k.InterfaceIndex,
			PDU:            sm.buildPDU(wire.AdpEntityDeparting, k, st, fields),
		})
		st.Advertising = false
	}
	return out
}

// SetEntityNeedsAdvertise schedules an earlier re-announce on every active
// interface of entityID, for use when a mutable advertise field changed.
func (sm *StateMachine) SetEntityNeedsAdvertise(entityID entity.EntityID, now time.Time) {
	for k, st := range sm.interfaces {
		if k.EntityID != entityID || !st.Advertising {
			continue
		}
		candidate := now.Add(randDuration(0, time.Duration(st.ValidTime)*400*time.Millisecond))
		if candidate.Before(st.NextAdvertiseAt) {
			st.NextAdvertiseAt = candidate
		}
	}
}

// OnEntityDiscover handles an inbound EntityDiscover PDU received on the
// interface whose MAC is destMac. It schedules a delayed re-announce for
// any advertising interface the discover addresses (entityID zero means
// "discover everyone").
func (sm *StateMachine) OnEntityDiscover(discoveredEntityID entity.EntityID, destMac entity.MacAddress, now time.Time) {
	for k, st := range sm.interfaces {
		if !st.Advertising || st.MacAddress != destMac {
			continue
		}
		if discoveredEntityID != entity.NullID && discoveredEntityID != k.EntityID {
			continue
		}
		candidate := now.Add(randDuration(0, time.Duration(st.ValidTime)*400*time.Millisecond))
		if candidate.Before(st.NextAdvertiseAt) {
			st.NextAdvertiseAt = candidate
		}
	}
}

// Tick advances time to now, returning one EntityAvailable PDU for every
// interface whose re-announce time has arrived. entities supplies each
// advertising entity's current field values; an interface whose entity is
// absent from entities is skipped (the caller is expected to have disabled
// advertising for it already).
func (sm *StateMachine) Tick(now time.Time, entities map[entity.EntityID]EntityFields) []OutgoingAdp {
	var out []OutgoingAdp
	for k, st := range sm.interfaces {
		if !st.Advertising || now.Before(st.NextAdvertiseAt) {
			continue
		}
		fields, ok := entities[k.EntityID]
		if !ok {
			continue
		}
		out = append(out, OutgoingAdp{
			EntityID:       k.EntityID,
			InterfaceIndex: k.InterfaceIndex,
			PDU:            sm.buildPDU(wire.AdpEntityAvailable, k, st, fields),
		})
		st.NextAdvertiseAt = nextAdvertiseTime(now, st.ValidTime)
	}
	return out
}

func (sm *StateMachine) buildPDU(messageType wire.AdpMessageType, k interfaceKey, st *interfaceState, fields EntityFields) wire.Adpdu {
	availableIndex := st.AvailableIndex
	st.AvailableIndex++
	return wire.Adpdu{
		MessageType:            messageType,
		ValidTime:              st.ValidTime,
		EntityID:               k.EntityID,
		EntityModelID:          fields.EntityModelID,
		EntityCapabilities:     fields.EntityCapabilities,
		TalkerStreamSources:    fields.TalkerStreamSources,
		TalkerCapabilities:     fields.TalkerCapabilities,
		ListenerStreamSinks:    fields.ListenerStreamSinks,
		ListenerCapabilities:   fields.ListenerCapabilities,
		ControllerCapabilities: fields.ControllerCapabilities,
		AvailableIndex:         availableIndex,
		GptpGrandmasterID:      fields.GptpGrandmasterID,
		GptpDomainNumber:       fields.GptpDomainNumber,
		IdentifyControlIndex:   fields.IdentifyControlIndex,
		InterfaceIndex:         k.InterfaceIndex,
		AssociationID:          fields.AssociationID,
	}
}

func nextAdvertiseTime(now time.Time, validTime uint8) time.Time {
	base := time.Duration(validTime) * 500 * time.Millisecond
	if base < time.Second {
		base = time.Second
	}
	return now.Add(base + randDuration(0, time.Duration(validTime)*400*time.Millisecond))
}

func randDuration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)))
}
