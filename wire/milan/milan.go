// SPDX-License-Identifier: AGPL-3.0-or-later

// Package milan implements the Milan Vendor-Unique AECP sub-protocol (§6):
// a 6-byte ProtocolIdentifier framing contract layered inside an AECPDU
// VENDOR_UNIQUE payload, carrying Milan-specific commands such as
// GET_MILAN_INFO.
package milan

import (
	"bytes"
	"encoding/binary"

	"github.com/avdeccgo/avdecc/wire"
)

// ProtocolID is the 6-byte Milan vendor-unique protocol identifier
// (protocolVuAecpdu.cpp's ProtocolIdentifier), carried in the first 6
// bytes of a VENDOR_UNIQUE AECPDU payload, ahead of the command_type.
var ProtocolID = [6]byte{0x00, 0x1B, 0xC5, 0x0A, 0xC1, 0x00}

// CommandType is the Milan VU command_type field.
type CommandType uint16

const (
	GetMilanInfo CommandType = 0
)

const headerLength = 8 // 6-byte protocol id + 2-byte command_type

// Payload is the body of a Milan vendor-unique AECPDU, nested inside
// wire.Aecpdu.Payload when wire.Aecpdu.MessageType is a
// VENDOR_UNIQUE_COMMAND/RESPONSE.
type Payload struct {
	CommandType CommandType
	Data        []byte
}

// Serialize appends the payload's wire bytes (protocol id + command_type +
// data) to buf.
func (p Payload) Serialize(buf *bytes.Buffer) error {
	var header [headerLength]byte
	copy(header[0:6], ProtocolID[:])
	binary.BigEndian.PutUint16(header[6:8], uint16(p.CommandType))
	buf.Write(header[:])
	buf.Write(p.Data)
	return nil
}

// Deserialize parses data into p. It fails with wire.ErrBadFrame if the
// protocol id does not match ProtocolID.
func (p *Payload) Deserialize(data []byte) error {
	if len(data) < headerLength {
		return wire.ErrShortFrame
	}
	if !bytes.Equal(data[0:6], ProtocolID[:]) {
		return wire.ErrBadFrame
	}
	p.CommandType = CommandType(binary.BigEndian.Uint16(data[6:8]))
	p.Data = data[headerLength:]
	return nil
}

// MilanInfo is the GET_MILAN_INFO response body (protocol version,
// feature flags, certification version).
type MilanInfo struct {
	ProtocolVersion     uint32
	FeaturesFlags       uint32
	CertificationVersion uint32
}

// Serialize appends info's wire bytes to buf.
func (info MilanInfo) Serialize(buf *bytes.Buffer) error {
	var b [12]byte
	binary.BigEndian.PutUint32(b[0:4], info.ProtocolVersion)
	binary.BigEndian.PutUint32(b[4:8], info.FeaturesFlags)
	binary.BigEndian.PutUint32(b[8:12], info.CertificationVersion)
	buf.Write(b[:])
	return nil
}

// Deserialize parses data into info.
func (info *MilanInfo) Deserialize(data []byte) error {
	if len(data) < 12 {
		return wire.ErrShortFrame
	}
	info.ProtocolVersion = binary.BigEndian.Uint32(data[0:4])
	info.FeaturesFlags = binary.BigEndian.Uint32(data[4:8])
	info.CertificationVersion = binary.BigEndian.Uint32(data[8:12])
	return nil
}
