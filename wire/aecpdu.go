// SPDX-License-Identifier: AGPL-3.0-or-later

package wire

import (
	"bytes"
	"encoding/binary"

	"github.com/avdeccgo/avdecc/entity"
)

// AecpMessageType is the AECPDU message_type field (§3.2, §4.6).
type AecpMessageType uint8

const (
	AecpAemCommand AecpMessageType = iota
	AecpAemResponse
	AecpAddressAccessCommand
	AecpAddressAccessResponse
	AecpAvcCommand
	AecpAvcResponse
	AecpVendorUniqueCommand
	AecpVendorUniqueResponse
)

// AecpStatus is the AECPDU status field (§7's CommandError carries this).
type AecpStatus uint8

const (
	AecpStatusSuccess AecpStatus = iota
	AecpStatusNotImplemented
	AecpStatusNoSuchDescriptor
	AecpStatusEntityLocked
	AecpStatusEntityAcquired
	AecpStatusNotAuthenticated
	AecpStatusAuthenticationDisabled
	AecpStatusBadArguments
	AecpStatusNoResources
	AecpStatusInProgress
	AecpStatusEntityMisbehaving
	AecpStatusNotSupported
	AecpStatusStreamIsRunning
)

const aecpHeaderLength = 18 // 4 common + target(8) + controller(8) - 2 shared below

// Aecpdu is an AECP protocol data unit (§3.2, §4.6). Payload holds the
// command/response-specific bytes, interpreted by wire.AemPayload,
// wire.AaPayload or wire/milan.Payload depending on MessageType.
type Aecpdu struct {
	MessageType        AecpMessageType
	Status             AecpStatus
	TargetEntityID     entity.EntityID
	ControllerEntityID entity.EntityID
	SequenceID         entity.SequenceID
	Payload            []byte
}

// Serialize appends the AECPDU's wire bytes to buf.
func (a Aecpdu) Serialize(buf *bytes.Buffer) error {
	total := 18 + len(a.Payload) // target(8) + controller(8) + sequenceID(2) + payload
	if total > 0x07FF {
		return ErrOverMaxLength
	}
	var header [4]byte
	header[0] = SubtypeAECP
	header[1] = uint8(a.MessageType) << 4
	binary.BigEndian.PutUint16(header[2:4], packControlDataLengthAndField12(uint16(total), uint8(a.Status)))
	buf.Write(header[:])

	var ids [16]byte
	binary.BigEndian.PutUint64(ids[0:8], uint64(a.TargetEntityID))
	binary.BigEndian.PutUint64(ids[8:16], uint64(a.ControllerEntityID))
	buf.Write(ids[:])

	var seq [2]byte
	binary.BigEndian.PutUint16(seq[:], uint16(a.SequenceID))
	buf.Write(seq[:])
	buf.Write(a.Payload)
	return nil
}

// Deserialize parses data into a. Payload aliases the tail of data.
func (a *Aecpdu) Deserialize(data []byte) error {
	const fixedLen = 4 + 16 + 2
	if len(data) < fixedLen {
		return ErrShortFrame
	}
	if data[0] != SubtypeAECP {
		return ErrBadFrame
	}
	a.MessageType = AecpMessageType(data[1] >> 4)
	total, status := unpackControlDataLengthAndField12(binary.BigEndian.Uint16(data[2:4]))
	a.Status = AecpStatus(status)
	if total < 18 || int(total)+4 > len(data) {
		return ErrBadFrame
	}
	a.TargetEntityID = entity.EntityID(binary.BigEndian.Uint64(data[4:12]))
	a.ControllerEntityID = entity.EntityID(binary.BigEndian.Uint64(data[12:20]))
	a.SequenceID = entity.SequenceID(binary.BigEndian.Uint16(data[20:22]))
	a.Payload = data[22 : 4+total]
	return nil
}

// IsResponse reports whether MessageType is one of the *_RESPONSE values.
func (m AecpMessageType) IsResponse() bool {
	switch m {
	case AecpAemResponse, AecpAddressAccessResponse, AecpAvcResponse, AecpVendorUniqueResponse:
		return true
	default:
		return false
	}
}

var _ = aecpHeaderLength
