// SPDX-License-Identifier: AGPL-3.0-or-later

package wire

import (
	"bytes"
	"encoding/binary"

	"github.com/avdeccgo/avdecc/entity"
)

// AdpMessageType is the ADPDU message_type field (§3.2, §4.4/§4.5).
type AdpMessageType uint8

const (
	AdpEntityAvailable AdpMessageType = 0
	AdpEntityDeparting AdpMessageType = 1
	AdpEntityDiscover  AdpMessageType = 2
)

// adpPayloadLength is the fixed ADPDU payload length in bytes, following
// the common 4-byte AVTP control header.
const adpPayloadLength = 60

// Adpdu is an ADP protocol data unit (§3.2, §4.4/§4.5).
type Adpdu struct {
	MessageType            AdpMessageType
	ValidTime               uint8 // units of 2 seconds
	EntityID                entity.EntityID
	EntityModelID           entity.EntityModelID
	EntityCapabilities      entity.EntityCapabilities
	TalkerStreamSources     uint16
	TalkerCapabilities      entity.TalkerCapabilities
	ListenerStreamSinks     uint16
	ListenerCapabilities    entity.ListenerCapabilities
	ControllerCapabilities  entity.ControllerCapabilities
	AvailableIndex          uint32
	GptpGrandmasterID       entity.ClockID
	GptpDomainNumber        uint8
	IdentifyControlIndex    uint16
	InterfaceIndex          uint16
	AssociationID           entity.ID
}

// Serialize appends the ADPDU's wire bytes (including the 4-byte AVTP
// control header) to buf.
func (a Adpdu) Serialize(buf *bytes.Buffer) error {
	var header [4]byte
	header[0] = SubtypeADP
	header[1] = uint8(a.MessageType) << 3 // message_type(5) | reserved(3)
	binary.BigEndian.PutUint16(header[2:4], packControlDataLengthAndField12(adpPayloadLength, a.ValidTime))
	buf.Write(header[:])

	var payload [adpPayloadLength]byte
	binary.BigEndian.PutUint64(payload[0:8], uint64(a.EntityID))
	binary.BigEndian.PutUint64(payload[8:16], uint64(a.EntityModelID))
	binary.BigEndian.PutUint32(payload[16:20], uint32(a.EntityCapabilities))
	binary.BigEndian.PutUint16(payload[20:22], a.TalkerStreamSources)
	binary.BigEndian.PutUint16(payload[22:24], uint16(a.TalkerCapabilities))
	binary.BigEndian.PutUint16(payload[24:26], a.ListenerStreamSinks)
	binary.BigEndian.PutUint16(payload[26:28], uint16(a.ListenerCapabilities))
	binary.BigEndian.PutUint32(payload[28:32], uint32(a.ControllerCapabilities))
	binary.BigEndian.PutUint32(payload[32:36], a.AvailableIndex)
	binary.BigEndian.PutUint64(payload[36:44], uint64(a.GptpGrandmasterID))
	payload[44] = a.GptpDomainNumber
	binary.BigEndian.PutUint16(payload[48:50], a.IdentifyControlIndex)
	binary.BigEndian.PutUint16(payload[50:52], a.InterfaceIndex)
	binary.BigEndian.PutUint64(payload[52:60], uint64(a.AssociationID))
	buf.Write(payload[:])
	return nil
}

// Deserialize parses data (the AVTP control header plus ADPDU payload)
// into a.
func (a *Adpdu) Deserialize(data []byte) error {
	if len(data) < 4+adpPayloadLength {
		return ErrShortFrame
	}
	if data[0] != SubtypeADP {
		return ErrBadFrame
	}
	a.MessageType = AdpMessageType(data[1] >> 3)
	length, validTime := unpackControlDataLengthAndField12(binary.BigEndian.Uint16(data[2:4]))
	if length != adpPayloadLength {
		return ErrBadFrame
	}
	a.ValidTime = validTime

	p := data[4 : 4+adpPayloadLength]
	a.EntityID = entity.EntityID(binary.BigEndian.Uint64(p[0:8]))
	a.EntityModelID = entity.EntityModelID(binary.BigEndian.Uint64(p[8:16]))
	a.EntityCapabilities = entity.EntityCapabilities(binary.BigEndian.Uint32(p[16:20]))
	a.TalkerStreamSources = binary.BigEndian.Uint16(p[20:22])
	a.TalkerCapabilities = entity.TalkerCapabilities(binary.BigEndian.Uint16(p[22:24]))
	a.ListenerStreamSinks = binary.BigEndian.Uint16(p[24:26])
	a.ListenerCapabilities = entity.ListenerCapabilities(binary.BigEndian.Uint16(p[26:28]))
	a.ControllerCapabilities = entity.ControllerCapabilities(binary.BigEndian.Uint32(p[28:32]))
	a.AvailableIndex = binary.BigEndian.Uint32(p[32:36])
	a.GptpGrandmasterID = entity.ClockID(binary.BigEndian.Uint64(p[36:44]))
	a.GptpDomainNumber = p[44]
	a.IdentifyControlIndex = binary.BigEndian.Uint16(p[48:50])
	a.InterfaceIndex = binary.BigEndian.Uint16(p[50:52])
	a.AssociationID = entity.ID(binary.BigEndian.Uint64(p[52:60]))
	return nil
}
