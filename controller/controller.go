// SPDX-License-Identifier: AGPL-3.0-or-later

// Package controller is the typed facade a controlling application drives
// instead of building wire.Aecpdu/wire.Acmpdu values by hand (§4.8): it
// turns high-level calls such as ConnectStream or GetStreamFormat into the
// right AEM, Address-Access or ACMP command PDU, submits it through a
// local entity's statemachine/command.StateMachine, and decodes whatever
// comes back before handing it to the caller's handler. It holds no state
// of its own beyond the two identifiers needed to address every outbound
// command, so it costs nothing to construct one per logical operation.
package controller

import (
	"bytes"
	"fmt"
	"time"

	"github.com/avdeccgo/avdecc/entity"
	"github.com/avdeccgo/avdecc/entitymodel"
	"github.com/avdeccgo/avdecc/statemachine/command"
	"github.com/avdeccgo/avdecc/wire"
)

// CommandError is passed to a command's handler (never via a function
// return value) to describe how a command failed. When a response arrived
// with a non-success status, exactly one of AecpStatus/AcmpStatus is set.
// Both are nil, and Err is set instead, for a response or request that
// could not be encoded or decoded (Kind is then the zero value,
// ResultCompleted) and for a state-machine-level failure (timeout, unknown
// entity, transport error).
type CommandError struct {
	Kind       command.ResultKind
	AecpStatus *wire.AecpStatus
	AcmpStatus *wire.AcmpStatus
	Err        error
}

func (e *CommandError) Error() string {
	switch {
	case e.AecpStatus != nil:
		return fmt.Sprintf("aecp command failed: status=%d", *e.AecpStatus)
	case e.AcmpStatus != nil:
		return fmt.Sprintf("acmp command failed: status=%d", *e.AcmpStatus)
	case e.Err != nil:
		return fmt.Sprintf("command failed: kind=%d: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("command failed: kind=%d", e.Kind)
	}
}

func (e *CommandError) Unwrap() error { return e.Err }

func resultError(result command.Result) *CommandError {
	return &CommandError{Kind: result.Kind, Err: result.Err}
}

func aecpStatusError(result command.Result, status wire.AecpStatus) *CommandError {
	return &CommandError{Kind: result.Kind, AecpStatus: &status}
}

func acmpStatusError(result command.Result, status wire.AcmpStatus) *CommandError {
	return &CommandError{Kind: result.Kind, AcmpStatus: &status}
}

// Controller submits AEM, Address-Access and ACMP commands on behalf of
// one local entity, acting as the controller for every command it sends.
type Controller struct {
	controllerID entity.EntityID
	cmd          *command.StateMachine
}

// New returns a Controller that submits commands through cmd, identifying
// itself as controllerID. cmd is normally obtained from
// manager.Manager.RegisterLocalEntity or manager.Manager.LocalEntityCommand.
func New(controllerID entity.EntityID, cmd *command.StateMachine) *Controller {
	return &Controller{controllerID: controllerID, cmd: cmd}
}

// sendAem builds an AEM command from its header fields plus a pre-encoded
// body, submits it, and decodes the response body before calling handler.
// handler always runs exactly once, synchronously on whatever goroutine
// resolves the command: the Manager's ticker thread for a timeout or a
// self-targeted command (delivered on the next tick), the goroutine
// delivering the response frame, or the caller's own goroutine, before
// sendAem returns, when the endpoint rejects the send.
func (c *Controller) sendAem(target entity.EntityID, commandType wire.AemCommandType, descType entitymodel.DescriptorType, descIndex uint16, data []byte, handler func(resp wire.AemPayload, err error)) {
	var buf bytes.Buffer
	body := wire.AemPayload{
		CommandType:     commandType,
		DescriptorType:  uint16(descType),
		DescriptorIndex: descIndex,
		Data:            data,
	}
	_ = body.Serialize(&buf)

	pdu := wire.Aecpdu{
		MessageType:        wire.AecpAemCommand,
		TargetEntityID:     target,
		ControllerEntityID: c.controllerID,
		Payload:            buf.Bytes(),
	}
	c.cmd.SendAecpCommand(pdu, time.Now(), func(resp *wire.Aecpdu, result command.Result) {
		if result.Kind != command.ResultCompleted {
			handler(wire.AemPayload{}, resultError(result))
			return
		}
		if resp.Status != wire.AecpStatusSuccess {
			handler(wire.AemPayload{}, aecpStatusError(result, resp.Status))
			return
		}
		var respBody wire.AemPayload
		if err := respBody.Deserialize(resp.Payload); err != nil {
			handler(wire.AemPayload{}, &CommandError{Kind: result.Kind, Err: err})
			return
		}
		handler(respBody, nil)
	})
}

// ReadDescriptor retrieves the static+dynamic descriptor bytes for
// descType/descIndex; the caller decodes them with entitymodel.
func (c *Controller) ReadDescriptor(target entity.EntityID, descType entitymodel.DescriptorType, descIndex uint16, handler func(data []byte, err error)) {
	c.sendAem(target, wire.AemReadDescriptor, descType, descIndex, nil, func(resp wire.AemPayload, err error) {
		if err != nil {
			handler(nil, err)
			return
		}
		handler(resp.Data, nil)
	})
}

// AcquireEntity sends ACQUIRE_ENTITY against the ENTITY descriptor,
// requesting or releasing exclusive access depending on flags.
func (c *Controller) AcquireEntity(target entity.EntityID, flags uint32, handler func(ownerID entity.EntityID, err error)) {
	var data [12]byte
	putUint32(data[0:4], flags)
	putUint64(data[4:12], uint64(entity.NullID))
	c.sendAem(target, wire.AemAcquireEntity, entitymodel.DescriptorEntity, 0, data[:], func(resp wire.AemPayload, err error) {
		if err != nil {
			handler(entity.NullID, err)
			return
		}
		handler(decodeOwnerID(resp.Data), nil)
	})
}

// LockEntity sends LOCK_ENTITY against the ENTITY descriptor.
func (c *Controller) LockEntity(target entity.EntityID, flags uint32, handler func(lockedID entity.EntityID, err error)) {
	var data [12]byte
	putUint32(data[0:4], flags)
	putUint64(data[4:12], uint64(entity.NullID))
	c.sendAem(target, wire.AemLockEntity, entitymodel.DescriptorEntity, 0, data[:], func(resp wire.AemPayload, err error) {
		if err != nil {
			handler(entity.NullID, err)
			return
		}
		handler(decodeOwnerID(resp.Data), nil)
	})
}

func decodeOwnerID(data []byte) entity.EntityID {
	if len(data) < 12 {
		return entity.NullID
	}
	return entity.EntityID(getUint64(data[4:12]))
}

// SetConfiguration selects the active configuration.
func (c *Controller) SetConfiguration(target entity.EntityID, configIndex entity.ConfigurationIndex, handler func(err error)) {
	var data [4]byte
	putUint16(data[2:4], uint16(configIndex))
	c.sendAem(target, wire.AemSetConfiguration, entitymodel.DescriptorEntity, 0, data[:], func(_ wire.AemPayload, err error) {
		handler(err)
	})
}

// GetConfiguration retrieves the currently active configuration index.
func (c *Controller) GetConfiguration(target entity.EntityID, handler func(configIndex entity.ConfigurationIndex, err error)) {
	c.sendAem(target, wire.AemGetConfiguration, entitymodel.DescriptorEntity, 0, nil, func(resp wire.AemPayload, err error) {
		if err != nil {
			handler(0, err)
			return
		}
		if len(resp.Data) < 4 {
			handler(0, &CommandError{Err: wire.ErrShortFrame})
			return
		}
		handler(entity.ConfigurationIndex(getUint16(resp.Data[2:4])), nil)
	})
}

// SetStreamFormat sets the current stream format on a STREAM_INPUT or
// STREAM_OUTPUT descriptor.
func (c *Controller) SetStreamFormat(target entity.EntityID, descType entitymodel.DescriptorType, streamIndex entity.StreamIndex, format entity.StreamFormat, handler func(err error)) {
	var data [8]byte
	putUint64(data[:], uint64(format))
	c.sendAem(target, wire.AemSetStreamFormat, descType, uint16(streamIndex), data[:], func(_ wire.AemPayload, err error) {
		handler(err)
	})
}

// GetStreamFormat retrieves the current stream format of a STREAM_INPUT or
// STREAM_OUTPUT descriptor.
func (c *Controller) GetStreamFormat(target entity.EntityID, descType entitymodel.DescriptorType, streamIndex entity.StreamIndex, handler func(format entity.StreamFormat, err error)) {
	c.sendAem(target, wire.AemGetStreamFormat, descType, uint16(streamIndex), nil, func(resp wire.AemPayload, err error) {
		if err != nil {
			handler(0, err)
			return
		}
		if len(resp.Data) < 8 {
			handler(0, &CommandError{Err: wire.ErrShortFrame})
			return
		}
		handler(entity.StreamFormat(getUint64(resp.Data[:8])), nil)
	})
}

const nameLength = 64

// SetName sets one of a descriptor's name strings, truncating to 63 bytes
// plus a trailing NUL as IEEE 1722.1 requires.
func (c *Controller) SetName(target entity.EntityID, descType entitymodel.DescriptorType, descIndex uint16, nameIndex uint16, configIndex entity.ConfigurationIndex, name string, handler func(err error)) {
	var data [4 + nameLength]byte
	putUint16(data[0:2], nameIndex)
	putUint16(data[2:4], uint16(configIndex))
	copy(data[4:4+nameLength-1], []byte(name))
	c.sendAem(target, wire.AemSetName, descType, descIndex, data[:], func(_ wire.AemPayload, err error) {
		handler(err)
	})
}

// GetName retrieves one of a descriptor's name strings.
func (c *Controller) GetName(target entity.EntityID, descType entitymodel.DescriptorType, descIndex uint16, nameIndex uint16, configIndex entity.ConfigurationIndex, handler func(name string, err error)) {
	var data [4]byte
	putUint16(data[0:2], nameIndex)
	putUint16(data[2:4], uint16(configIndex))
	c.sendAem(target, wire.AemGetName, descType, descIndex, data[:], func(resp wire.AemPayload, err error) {
		if err != nil {
			handler("", err)
			return
		}
		if len(resp.Data) < 4+nameLength {
			handler("", &CommandError{Err: wire.ErrShortFrame})
			return
		}
		handler(decodeName(resp.Data[4:4+nameLength]), nil)
	})
}

func decodeName(raw []byte) string {
	n := bytes.IndexByte(raw, 0)
	if n < 0 {
		n = len(raw)
	}
	return string(raw[:n])
}

// StartStreaming resumes a previously stopped STREAM_INPUT or
// STREAM_OUTPUT.
func (c *Controller) StartStreaming(target entity.EntityID, descType entitymodel.DescriptorType, streamIndex entity.StreamIndex, handler func(err error)) {
	c.sendAem(target, wire.AemStartStreaming, descType, uint16(streamIndex), nil, func(_ wire.AemPayload, err error) {
		handler(err)
	})
}

// StopStreaming halts a running STREAM_INPUT or STREAM_OUTPUT.
func (c *Controller) StopStreaming(target entity.EntityID, descType entitymodel.DescriptorType, streamIndex entity.StreamIndex, handler func(err error)) {
	c.sendAem(target, wire.AemStopStreaming, descType, uint16(streamIndex), nil, func(_ wire.AemPayload, err error) {
		handler(err)
	})
}

// SetControl writes a CONTROL descriptor's current value.
func (c *Controller) SetControl(target entity.EntityID, controlIndex entity.ControlIndex, value []byte, handler func(err error)) {
	c.sendAem(target, wire.AemSetControl, entitymodel.DescriptorControl, uint16(controlIndex), value, func(_ wire.AemPayload, err error) {
		handler(err)
	})
}

// GetControl reads a CONTROL descriptor's current value.
func (c *Controller) GetControl(target entity.EntityID, controlIndex entity.ControlIndex, handler func(value []byte, err error)) {
	c.sendAem(target, wire.AemGetControl, entitymodel.DescriptorControl, uint16(controlIndex), nil, func(resp wire.AemPayload, err error) {
		if err != nil {
			handler(nil, err)
			return
		}
		handler(resp.Data, nil)
	})
}

func putUint16(b []byte, v uint16) { b[0] = byte(v >> 8); b[1] = byte(v) }
func getUint16(b []byte) uint16    { return uint16(b[0])<<8 | uint16(b[1]) }

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (56 - 8*i))
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// ReadMemory issues an ADDRESS_ACCESS read for length bytes at address.
func (c *Controller) ReadMemory(target entity.EntityID, address uint64, length int, handler func(data []byte, err error)) {
	c.sendAddressAccess(target, []wire.AaTlv{{Mode: wire.AaModeRead, Address: address, Data: make([]byte, length)}}, func(tlvs []wire.AaTlv, err error) {
		if err != nil {
			handler(nil, err)
			return
		}
		if len(tlvs) != 1 {
			handler(nil, &CommandError{Err: wire.ErrShortFrame})
			return
		}
		handler(tlvs[0].Data, nil)
	})
}

// WriteMemory issues an ADDRESS_ACCESS write of data at address.
func (c *Controller) WriteMemory(target entity.EntityID, address uint64, data []byte, handler func(err error)) {
	c.sendAddressAccess(target, []wire.AaTlv{{Mode: wire.AaModeWrite, Address: address, Data: data}}, func(_ []wire.AaTlv, err error) {
		handler(err)
	})
}

// ExecuteMemory issues an ADDRESS_ACCESS execute at address, passing args
// as the TLV's data and returning whatever the target echoes back.
func (c *Controller) ExecuteMemory(target entity.EntityID, address uint64, args []byte, handler func(result []byte, err error)) {
	c.sendAddressAccess(target, []wire.AaTlv{{Mode: wire.AaModeExecute, Address: address, Data: args}}, func(tlvs []wire.AaTlv, err error) {
		if err != nil {
			handler(nil, err)
			return
		}
		if len(tlvs) != 1 {
			handler(nil, &CommandError{Err: wire.ErrShortFrame})
			return
		}
		handler(tlvs[0].Data, nil)
	})
}

func (c *Controller) sendAddressAccess(target entity.EntityID, tlvs []wire.AaTlv, handler func(tlvs []wire.AaTlv, err error)) {
	var buf bytes.Buffer
	body := wire.AaPayload{Tlvs: tlvs}
	if err := body.Serialize(&buf); err != nil {
		handler(nil, &CommandError{Err: err})
		return
	}

	pdu := wire.Aecpdu{
		MessageType:        wire.AecpAddressAccessCommand,
		TargetEntityID:     target,
		ControllerEntityID: c.controllerID,
		Payload:            buf.Bytes(),
	}
	c.cmd.SendAecpCommand(pdu, time.Now(), func(resp *wire.Aecpdu, result command.Result) {
		if result.Kind != command.ResultCompleted {
			handler(nil, resultError(result))
			return
		}
		if resp.Status != wire.AecpStatusSuccess {
			handler(nil, aecpStatusError(result, resp.Status))
			return
		}
		var respBody wire.AaPayload
		if err := respBody.Deserialize(resp.Payload); err != nil {
			handler(nil, &CommandError{Kind: result.Kind, Err: err})
			return
		}
		handler(respBody.Tlvs, nil)
	})
}

// StreamConnection describes the stream-level facts an ACMP response
// carries, independent of whether it came from a *_RX_* or *_TX_*
// exchange.
type StreamConnection struct {
	StreamID         entity.StreamID
	TalkerEntityID   entity.EntityID
	TalkerUniqueID   uint16
	ListenerEntityID entity.EntityID
	ListenerUniqueID uint16
	StreamDestMac    entity.MacAddress
	ConnectionCount  uint16
	Flags            wire.AcmpFlags
}

func streamConnectionFrom(pdu wire.Acmpdu) StreamConnection {
	return StreamConnection{
		StreamID:         pdu.StreamID,
		TalkerEntityID:   pdu.TalkerEntityID,
		TalkerUniqueID:   pdu.TalkerUniqueID,
		ListenerEntityID: pdu.ListenerEntityID,
		ListenerUniqueID: pdu.ListenerUniqueID,
		StreamDestMac:    pdu.StreamDestMac,
		ConnectionCount:  pdu.ConnectionCount,
		Flags:            pdu.Flags,
	}
}

func (c *Controller) sendAcmp(messageType wire.AcmpMessageType, pdu wire.Acmpdu, handler func(resp StreamConnection, err error)) {
	pdu.MessageType = messageType
	pdu.ControllerEntityID = c.controllerID
	c.cmd.SendAcmpCommand(pdu, time.Now(), func(resp *wire.Acmpdu, result command.Result) {
		if result.Kind != command.ResultCompleted {
			handler(StreamConnection{}, resultError(result))
			return
		}
		if resp.Status != wire.AcmpStatusSuccess {
			handler(StreamConnection{}, acmpStatusError(result, resp.Status))
			return
		}
		handler(streamConnectionFrom(*resp), nil)
	})
}

// ConnectStream asks listenerID to connect its listenerUnique sink to
// talkerID's talkerUnique source (ACMP CONNECT_RX).
func (c *Controller) ConnectStream(talkerID entity.EntityID, talkerUnique uint16, listenerID entity.EntityID, listenerUnique uint16, handler func(resp StreamConnection, err error)) {
	c.sendAcmp(wire.AcmpConnectRxCommand, wire.Acmpdu{
		TalkerEntityID:   talkerID,
		TalkerUniqueID:   talkerUnique,
		ListenerEntityID: listenerID,
		ListenerUniqueID: listenerUnique,
	}, handler)
}

// DisconnectStream asks listenerID to tear down its listenerUnique
// connection to talkerID's talkerUnique source (ACMP DISCONNECT_RX).
func (c *Controller) DisconnectStream(talkerID entity.EntityID, talkerUnique uint16, listenerID entity.EntityID, listenerUnique uint16, handler func(resp StreamConnection, err error)) {
	c.sendAcmp(wire.AcmpDisconnectRxCommand, wire.Acmpdu{
		TalkerEntityID:   talkerID,
		TalkerUniqueID:   talkerUnique,
		ListenerEntityID: listenerID,
		ListenerUniqueID: listenerUnique,
	}, handler)
}

// GetListenerStreamState queries listenerID's current connection state for
// listenerUnique (ACMP GET_RX_STATE).
func (c *Controller) GetListenerStreamState(listenerID entity.EntityID, listenerUnique uint16, handler func(resp StreamConnection, err error)) {
	c.sendAcmp(wire.AcmpGetRxStateCommand, wire.Acmpdu{
		ListenerEntityID: listenerID,
		ListenerUniqueID: listenerUnique,
	}, handler)
}

// GetTalkerStreamState queries talkerID's current connection state for
// talkerUnique (ACMP GET_TX_STATE).
func (c *Controller) GetTalkerStreamState(talkerID entity.EntityID, talkerUnique uint16, handler func(resp StreamConnection, err error)) {
	c.sendAcmp(wire.AcmpGetTxStateCommand, wire.Acmpdu{
		TalkerEntityID: talkerID,
		TalkerUniqueID: talkerUnique,
	}, handler)
}

// GetTalkerStreamConnection enumerates talkerID's connections for
// talkerUnique one at a time by connectionIndex (ACMP GET_TX_CONNECTION).
func (c *Controller) GetTalkerStreamConnection(talkerID entity.EntityID, talkerUnique uint16, connectionIndex uint16, handler func(resp StreamConnection, err error)) {
	c.sendAcmp(wire.AcmpGetTxConnectionCommand, wire.Acmpdu{
		TalkerEntityID:  talkerID,
		TalkerUniqueID:  talkerUnique,
		ConnectionCount: connectionIndex,
	}, handler)
}
