// SPDX-License-Identifier: AGPL-3.0-or-later

// Package command implements the per-local-entity AECP/ACMP command state
// machine (§4.6): sequencing outbound commands, matching responses,
// retrying once on timeout, and routing unsolicited notifications. Like
// the other state machines it holds no transport of its own; SendAecp and
// SendAcmp are the caller-supplied hooks that actually put bytes on the wire, and every
// exported method is expected to be called while the caller holds the
// Manager's reentrant lock so completion handlers never race each other.
package command

import (
	"time"

	"github.com/avdeccgo/avdecc/entity"
	"github.com/avdeccgo/avdecc/wire"
)

// Default per-message-type timeouts (§4.6's table, IEEE 1722.1 clauses
// 8.2.2/9.2.1).
const (
	TimeoutAemCommand           = 250 * time.Millisecond
	TimeoutAddressAccessCommand = 250 * time.Millisecond
	TimeoutVendorUniqueDefault  = 250 * time.Millisecond
	TimeoutAcmpConnectTx        = 2000 * time.Millisecond
	TimeoutAcmpDisconnectTx     = 200 * time.Millisecond
	TimeoutAcmpGetTxState       = 200 * time.Millisecond
	TimeoutAcmpConnectRx        = 4500 * time.Millisecond
	TimeoutAcmpDisconnectRx     = 500 * time.Millisecond
	TimeoutAcmpGetRxState       = 200 * time.Millisecond
	TimeoutAcmpGetTxConnection  = 200 * time.Millisecond
)

// ResultKind classifies how an AECP or ACMP command completed.
type ResultKind int

const (
	// ResultCompleted means a response PDU was received; inspect the
	// PDU's Status field for the protocol-level outcome (Success or an
	// error status).
	ResultCompleted ResultKind = iota
	// ResultTimeout means no response arrived after the retry.
	ResultTimeout
	// ResultUnknownEntity means the target went offline while the command
	// was inflight or queued.
	ResultUnknownEntity
	// ResultTransportError means the endpoint failed to send the command.
	ResultTransportError
)

// Result is delivered to a command's handler exactly once.
type Result struct {
	Kind ResultKind
	Err  error // set when Kind is ResultTransportError
}

// AecpHandler receives the decoded response (nil unless Kind ==
// ResultCompleted) and the outcome.
type AecpHandler func(pdu *wire.Aecpdu, result Result)

// AcmpHandler receives the decoded response (nil unless Kind ==
// ResultCompleted) and the outcome.
type AcmpHandler func(pdu *wire.Acmpdu, result Result)

type aecpCommandInfo struct {
	pdu      wire.Aecpdu
	handler  AecpHandler
	sentAt   time.Time
	deadline time.Time
	timeout  time.Duration
	retried  bool
}

type acmpCommandInfo struct {
	pdu      wire.Acmpdu
	handler  AcmpHandler
	deadline time.Time
	timeout  time.Duration
	retried  bool
}

// StateMachine is the command dispatch/matching engine for one local
// entity's outbound AECP and ACMP commands. A Manager owning N local
// entities holds N StateMachines.
type StateMachine struct {
	maxInflightPerTarget int
	vuTimeouts           map[[6]byte]time.Duration

	aecpSeq      entity.SequenceID
	aecpInflight map[entity.EntityID][]*aecpCommandInfo
	aecpQueue    map[entity.EntityID][]*aecpCommandInfo

	acmpSeq      entity.SequenceID
	acmpInflight map[entity.SequenceID]*acmpCommandInfo

	// SendAecp and SendAcmp put a command PDU on the wire, addressed to
	// targetEntityID. A non-nil error means the send failed permanently.
	SendAecp func(targetEntityID entity.EntityID, pdu wire.Aecpdu) error
	SendAcmp func(pdu wire.Acmpdu) error

	OnAecpRetry                   func(entityID entity.EntityID)
	OnAecpTimeout                 func(entityID entity.EntityID)
	OnAecpResponseTime            func(entityID entity.EntityID, responseTime time.Duration)
	OnAecpUnsolicitedResponse     func(entityID entity.EntityID, pdu wire.Aecpdu)
	OnAecpAemIdentifyNotification func(entityID entity.EntityID, pdu wire.Aecpdu)
	OnAecpUnexpectedResponse      func(entityID entity.EntityID)
	// OnAcmpResponseObserved and OnAcmpCommandObserved are invoked for
	// every ACMP response/command OnAcmpResponse/OnAcmpCommand is given
	// that doesn't match an inflight command of this state machine's own
	// (i.e. every message a caller would otherwise have no way to see).
	OnAcmpResponseObserved func(pdu wire.Acmpdu)
	OnAcmpCommandObserved  func(pdu wire.Acmpdu)
}

// New returns a StateMachine that allows at most maxInflightPerTarget AECP
// commands inflight to any one target at a time, with vuTimeouts
// overriding the default VENDOR_UNIQUE_COMMAND timeout per ProtocolIdentifier.
func New(maxInflightPerTarget int, vuTimeouts map[[6]byte]time.Duration) *StateMachine {
	if maxInflightPerTarget < 1 {
		maxInflightPerTarget = 1
	}
	return &StateMachine{
		maxInflightPerTarget: maxInflightPerTarget,
		vuTimeouts:           vuTimeouts,
		aecpInflight:         make(map[entity.EntityID][]*aecpCommandInfo),
		aecpQueue:            make(map[entity.EntityID][]*aecpCommandInfo),
		acmpInflight:         make(map[entity.SequenceID]*acmpCommandInfo),
	}
}

// aecpTimeoutFor returns the timeout for an outbound AECP command.
func (sm *StateMachine) aecpTimeoutFor(pdu wire.Aecpdu) time.Duration {
	switch pdu.MessageType {
	case wire.AecpAemCommand:
		return TimeoutAemCommand
	case wire.AecpAddressAccessCommand:
		return TimeoutAddressAccessCommand
	case wire.AecpVendorUniqueCommand:
		if len(pdu.Payload) >= 6 {
			var id [6]byte
			copy(id[:], pdu.Payload[:6])
			if d, ok := sm.vuTimeouts[id]; ok {
				return d
			}
		}
		return TimeoutVendorUniqueDefault
	default:
		return TimeoutAemCommand
	}
}

func acmpTimeoutFor(messageType wire.AcmpMessageType) time.Duration {
	switch messageType {
	case wire.AcmpConnectTxCommand:
		return TimeoutAcmpConnectTx
	case wire.AcmpDisconnectTxCommand:
		return TimeoutAcmpDisconnectTx
	case wire.AcmpGetTxStateCommand:
		return TimeoutAcmpGetTxState
	case wire.AcmpConnectRxCommand:
		return TimeoutAcmpConnectRx
	case wire.AcmpDisconnectRxCommand:
		return TimeoutAcmpDisconnectRx
	case wire.AcmpGetRxStateCommand:
		return TimeoutAcmpGetRxState
	case wire.AcmpGetTxConnectionCommand:
		return TimeoutAcmpGetTxConnection
	default:
		return TimeoutAcmpGetTxState
	}
}

// SendAecpCommand assigns the next sequence id, records pdu.TargetEntityID
// as the target, and either sends it immediately or queues it behind the
// per-target inflight cap.
func (sm *StateMachine) SendAecpCommand(pdu wire.Aecpdu, now time.Time, handler AecpHandler) {
	pdu.SequenceID = sm.aecpSeq.Next()
	info := &aecpCommandInfo{pdu: pdu, handler: handler, timeout: sm.aecpTimeoutFor(pdu)}

	target := pdu.TargetEntityID
	if len(sm.aecpInflight[target]) >= sm.maxInflightPerTarget {
		sm.aecpQueue[target] = append(sm.aecpQueue[target], info)
		return
	}
	sm.dispatchAecp(target, info, now)
}

func (sm *StateMachine) dispatchAecp(target entity.EntityID, info *aecpCommandInfo, now time.Time) {
	info.sentAt = now
	info.deadline = now.Add(info.timeout)

	var err error
	if sm.SendAecp != nil {
		err = sm.SendAecp(target, info.pdu)
	}
	if err != nil {
		if info.handler != nil {
			info.handler(nil, Result{Kind: ResultTransportError, Err: err})
		}
		sm.promoteQueuedAecp(target, now)
		return
	}
	sm.aecpInflight[target] = append(sm.aecpInflight[target], info)
}

// SendAcmpCommand assigns the next sequence id and sends pdu immediately;
// ACMP has no per-target queueing (§4.6).
func (sm *StateMachine) SendAcmpCommand(pdu wire.Acmpdu, now time.Time, handler AcmpHandler) {
	pdu.SequenceID = sm.acmpSeq.Next()
	timeout := acmpTimeoutFor(pdu.MessageType)
	info := &acmpCommandInfo{pdu: pdu, handler: handler, timeout: timeout, deadline: now.Add(timeout)}
	sm.acmpInflight[pdu.SequenceID] = info

	var err error
	if sm.SendAcmp != nil {
		err = sm.SendAcmp(pdu)
	}
	if err != nil {
		delete(sm.acmpInflight, pdu.SequenceID)
		if info.handler != nil {
			info.handler(nil, Result{Kind: ResultTransportError, Err: err})
		}
	}
}

// OnAecpResponse matches an inbound AECP response against the inflight
// table and resolves, re-arms, or routes it per §4.6's policy branches.
func (sm *StateMachine) OnAecpResponse(pdu wire.Aecpdu, now time.Time) {
	if pdu.MessageType == wire.AecpAemResponse {
		var aem wire.AemPayload
		if err := aem.Deserialize(pdu.Payload); err == nil {
			if aem.IsIdentifyNotification() {
				if sm.OnAecpAemIdentifyNotification != nil {
					sm.OnAecpAemIdentifyNotification(pdu.ControllerEntityID, pdu)
				}
				return
			}
			if aem.Unsolicited {
				if sm.OnAecpUnsolicitedResponse != nil {
					sm.OnAecpUnsolicitedResponse(pdu.TargetEntityID, pdu)
				}
				return
			}
		}
	}

	target := pdu.TargetEntityID
	list := sm.aecpInflight[target]
	for i, info := range list {
		if info.pdu.SequenceID != pdu.SequenceID {
			continue
		}
		if pdu.MessageType == wire.AecpAemResponse && pdu.Status == wire.AecpStatusInProgress {
			info.deadline = now.Add(info.timeout)
			return
		}
		sm.aecpInflight[target] = append(list[:i], list[i+1:]...)
		pduCopy := pdu
		if info.handler != nil {
			info.handler(&pduCopy, Result{Kind: ResultCompleted})
		}
		if sm.OnAecpResponseTime != nil {
			sm.OnAecpResponseTime(target, now.Sub(info.sentAt))
		}
		sm.promoteQueuedAecp(target, now)
		return
	}

	if sm.OnAecpUnexpectedResponse != nil {
		sm.OnAecpUnexpectedResponse(target)
	}
}

// responseMessageTypeFor returns the ACMP response type paired with a
// given command type: pairs are adjacent by numeric code (§4.6).
func responseMessageTypeFor(commandType wire.AcmpMessageType) wire.AcmpMessageType {
	return commandType + 1
}

// OnAcmpResponse matches an inbound ACMP response by (controllerEntityID,
// sequenceID, response-of-sent-command-type); a non-matching message is a
// sniffed response delivered to observers only.
func (sm *StateMachine) OnAcmpResponse(pdu wire.Acmpdu, now time.Time) {
	info, ok := sm.acmpInflight[pdu.SequenceID]
	if !ok || info.pdu.ControllerEntityID != pdu.ControllerEntityID || responseMessageTypeFor(info.pdu.MessageType) != pdu.MessageType {
		if sm.OnAcmpResponseObserved != nil {
			sm.OnAcmpResponseObserved(pdu)
		}
		return
	}
	delete(sm.acmpInflight, pdu.SequenceID)
	pduCopy := pdu
	if info.handler != nil {
		info.handler(&pduCopy, Result{Kind: ResultCompleted})
	}
}

// OnAcmpCommand routes an inbound ACMP command (addressed to a local
// entity acting as talker or listener) to observers; the command SM does
// not itself implement talker/listener command handling.
func (sm *StateMachine) OnAcmpCommand(pdu wire.Acmpdu) {
	if sm.OnAcmpCommandObserved != nil {
		sm.OnAcmpCommandObserved(pdu)
	}
}

func (sm *StateMachine) promoteQueuedAecp(target entity.EntityID, now time.Time) {
	queue := sm.aecpQueue[target]
	if len(queue) == 0 {
		return
	}
	next := queue[0]
	sm.aecpQueue[target] = queue[1:]
	if len(sm.aecpQueue[target]) == 0 {
		delete(sm.aecpQueue, target)
	}
	sm.dispatchAecp(target, next, now)
}

// Tick advances time to now: it resends any AECP command whose deadline
// has elapsed once (§4.6's retry policy), then fails it with ResultTimeout
// on a second elapsed deadline, and expires any ACMP command the same way
// (ACMP has no retry — a single timeout completes it).
func (sm *StateMachine) Tick(now time.Time) {
	for target, list := range sm.aecpInflight {
		kept := list[:0]
		for _, info := range list {
			if now.Before(info.deadline) {
				kept = append(kept, info)
				continue
			}
			if !info.retried {
				info.retried = true
				info.deadline = now.Add(info.timeout)
				if sm.SendAecp != nil {
					_ = sm.SendAecp(target, info.pdu)
				}
				if sm.OnAecpRetry != nil {
					sm.OnAecpRetry(target)
				}
				kept = append(kept, info)
				continue
			}
			if sm.OnAecpTimeout != nil {
				sm.OnAecpTimeout(target)
			}
			if info.handler != nil {
				info.handler(nil, Result{Kind: ResultTimeout})
			}
		}
		if len(kept) == 0 {
			delete(sm.aecpInflight, target)
		} else {
			sm.aecpInflight[target] = kept
		}
		sm.promoteQueuedAecp(target, now)
	}

	for seq, info := range sm.acmpInflight {
		if now.Before(info.deadline) {
			continue
		}
		delete(sm.acmpInflight, seq)
		if info.handler != nil {
			info.handler(nil, Result{Kind: ResultTimeout})
		}
	}
}

// OnRemoteEntityOffline discards every inflight and queued AECP command
// addressed to entityID, completing each handler with ResultUnknownEntity
// (§4.6's entity-offline coupling). Any ACMP commands addressed to
// entityID as talker or listener are discarded the same way.
func (sm *StateMachine) OnRemoteEntityOffline(entityID entity.EntityID) {
	for _, info := range sm.aecpInflight[entityID] {
		if info.handler != nil {
			info.handler(nil, Result{Kind: ResultUnknownEntity})
		}
	}
	delete(sm.aecpInflight, entityID)
	for _, info := range sm.aecpQueue[entityID] {
		if info.handler != nil {
			info.handler(nil, Result{Kind: ResultUnknownEntity})
		}
	}
	delete(sm.aecpQueue, entityID)

	for seq, info := range sm.acmpInflight {
		if info.pdu.TalkerEntityID != entityID && info.pdu.ListenerEntityID != entityID {
			continue
		}
		delete(sm.acmpInflight, seq)
		if info.handler != nil {
			info.handler(nil, Result{Kind: ResultUnknownEntity})
		}
	}
}

// InflightAecpCount returns how many AECP commands are currently inflight
// to target (for tests and observability).
func (sm *StateMachine) InflightAecpCount(target entity.EntityID) int {
	return len(sm.aecpInflight[target])
}

// QueuedAecpCount returns how many AECP commands are queued behind the
// inflight cap for target.
func (sm *StateMachine) QueuedAecpCount(target entity.EntityID) int {
	return len(sm.aecpQueue[target])
}
