// SPDX-License-Identifier: AGPL-3.0-or-later

package wire

import (
	"bytes"
	"encoding/binary"

	"github.com/avdeccgo/avdecc/entity"
)

// AcmpMessageType is the ACMPDU message_type field (§3.2, §4.6).
type AcmpMessageType uint8

const (
	AcmpConnectTxCommand AcmpMessageType = iota
	AcmpConnectTxResponse
	AcmpDisconnectTxCommand
	AcmpDisconnectTxResponse
	AcmpGetTxStateCommand
	AcmpGetTxStateResponse
	AcmpConnectRxCommand
	AcmpConnectRxResponse
	AcmpDisconnectRxCommand
	AcmpDisconnectRxResponse
	AcmpGetRxStateCommand
	AcmpGetRxStateResponse
	AcmpGetTxConnectionCommand
	AcmpGetTxConnectionResponse
)

// AcmpStatus is the ACMPDU status field.
type AcmpStatus uint8

const (
	AcmpStatusSuccess AcmpStatus = iota
	AcmpStatusListenerUnknownID
	AcmpStatusTalkerUnknownID
	AcmpStatusTalkerDestMacFail
	AcmpStatusTalkerNoStreamIndex
	AcmpStatusTalkerNoBandwidth
	AcmpStatusTalkerExclusive
	AcmpStatusListenerTalkerTimeout
	AcmpStatusListenerExclusive
	AcmpStatusStateUnavailable
	AcmpStatusNotConnected
	AcmpStatusNoSuchConnection
	AcmpStatusCouldNotSendMessage
	AcmpStatusTalkerMisbehaving
	AcmpStatusListenerMisbehaving
	AcmpStatusControllerNotAuthorized
	AcmpStatusIncompatibleRequest
	AcmpStatusNotSupported AcmpStatus = 31
)

// AcmpFlags is the ACMPDU connection flags bitfield.
type AcmpFlags uint16

const (
	AcmpFlagClassB AcmpFlags = 1 << iota
	AcmpFlagFastConnect
	AcmpFlagSavedState
	AcmpFlagStreamingWait
	AcmpFlagSupportsEncrypted
	AcmpFlagEncryptedPdu
	AcmpFlagTalkerFailed
)

const acmpPayloadLength = 50 // target/controller/listener ids, counts and dest mac (44) plus sequenceID/flags/streamVlanID (6)

// Acmpdu is an ACMP protocol data unit (§3.2, §4.6).
type Acmpdu struct {
	MessageType          AcmpMessageType
	Status               AcmpStatus
	StreamID             entity.StreamID
	ControllerEntityID   entity.EntityID
	TalkerEntityID       entity.EntityID
	ListenerEntityID     entity.EntityID
	TalkerUniqueID       uint16
	ListenerUniqueID     uint16
	StreamDestMac        entity.MacAddress
	ConnectionCount      uint16
	SequenceID           entity.SequenceID
	Flags                AcmpFlags
	StreamVlanID         uint16
}

// Serialize appends the ACMPDU's wire bytes to buf.
func (a Acmpdu) Serialize(buf *bytes.Buffer) error {
	var header [4]byte
	header[0] = SubtypeACMP
	header[1] = uint8(a.MessageType) << 3
	binary.BigEndian.PutUint16(header[2:4], packControlDataLengthAndField12(acmpPayloadLength, uint8(a.Status)))
	buf.Write(header[:])

	var p [acmpPayloadLength]byte
	binary.BigEndian.PutUint64(p[0:8], uint64(a.StreamID))
	binary.BigEndian.PutUint64(p[8:16], uint64(a.ControllerEntityID))
	binary.BigEndian.PutUint64(p[16:24], uint64(a.TalkerEntityID))
	binary.BigEndian.PutUint64(p[24:32], uint64(a.ListenerEntityID))
	binary.BigEndian.PutUint16(p[32:34], a.TalkerUniqueID)
	binary.BigEndian.PutUint16(p[34:36], a.ListenerUniqueID)
	copy(p[36:42], a.StreamDestMac[:])
	binary.BigEndian.PutUint16(p[42:44], a.ConnectionCount)
	binary.BigEndian.PutUint16(p[44:46], uint16(a.SequenceID))
	binary.BigEndian.PutUint16(p[46:48], uint16(a.Flags))
	binary.BigEndian.PutUint16(p[48:50], a.StreamVlanID)
	buf.Write(p[:])
	return nil
}

// Deserialize parses data into a.
func (a *Acmpdu) Deserialize(data []byte) error {
	const total = 4 + acmpPayloadLength
	if len(data) < total {
		return ErrShortFrame
	}
	if data[0] != SubtypeACMP {
		return ErrBadFrame
	}
	a.MessageType = AcmpMessageType(data[1] >> 3)
	length, status := unpackControlDataLengthAndField12(binary.BigEndian.Uint16(data[2:4]))
	if length != acmpPayloadLength {
		return ErrBadFrame
	}
	a.Status = AcmpStatus(status)

	p := data[4 : 4+acmpPayloadLength]
	a.StreamID = entity.StreamID(binary.BigEndian.Uint64(p[0:8]))
	a.ControllerEntityID = entity.EntityID(binary.BigEndian.Uint64(p[8:16]))
	a.TalkerEntityID = entity.EntityID(binary.BigEndian.Uint64(p[16:24]))
	a.ListenerEntityID = entity.EntityID(binary.BigEndian.Uint64(p[24:32]))
	a.TalkerUniqueID = binary.BigEndian.Uint16(p[32:34])
	a.ListenerUniqueID = binary.BigEndian.Uint16(p[34:36])
	copy(a.StreamDestMac[:], p[36:42])
	a.ConnectionCount = binary.BigEndian.Uint16(p[42:44])
	a.SequenceID = entity.SequenceID(binary.BigEndian.Uint16(p[44:46]))
	a.Flags = AcmpFlags(binary.BigEndian.Uint16(p[46:48]))
	a.StreamVlanID = binary.BigEndian.Uint16(p[48:50])
	return nil
}

// Has reports whether flags has f set.
func (flags AcmpFlags) Has(f AcmpFlags) bool { return flags&f != 0 }

// IsResponse reports whether m is one of the *_RESPONSE values: every
// ACMP response sits one past its paired command in the message_type
// enumeration (§4.6).
func (m AcmpMessageType) IsResponse() bool {
	return m%2 == 1
}
