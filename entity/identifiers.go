// SPDX-License-Identifier: AGPL-3.0-or-later

// Package entity defines the value types shared across the AVDECC wire
// codec, entity model, and state machines: 64-bit identifiers, MAC
// addresses, descriptor index types and the stream format descriptor.
package entity

import (
	"encoding/binary"
	"fmt"
)

// ID is a 64-bit opaque AVDECC identifier (EntityID, EntityModelID, StreamID
// or ClockID all share this representation).
type ID uint64

// UninitializedID is the reserved all-ones value meaning "uninitialized".
const UninitializedID ID = 0xFFFFFFFFFFFFFFFF

// NullID is the reserved all-zeros value meaning "null".
const NullID ID = 0

// IsUninitialized reports whether id is the reserved all-ones sentinel.
func (id ID) IsUninitialized() bool { return id == UninitializedID }

// IsNull reports whether id is the reserved all-zeros sentinel.
func (id ID) IsNull() bool { return id == NullID }

func (id ID) String() string { return fmt.Sprintf("0x%016X", uint64(id)) }

// EntityID identifies an AVDECC entity.
type EntityID = ID

// EntityModelID identifies the static entity model a device implements.
type EntityModelID = ID

// StreamID identifies a stream.
type StreamID = ID

// ClockID identifies a clock domain's source.
type ClockID = ID

// MacAddress is a 6-byte Ethernet hardware address.
type MacAddress [6]byte

// AvdeccMulticast is the well-known AVDECC multicast destination address
// 91:E0:F0:01:00:00.
var AvdeccMulticast = MacAddress{0x91, 0xE0, 0xF0, 0x01, 0x00, 0x00}

// IdentifyMulticast is the well-known Identify multicast destination
// address 91:E0:F0:01:00:01.
var IdentifyMulticast = MacAddress{0x91, 0xE0, 0xF0, 0x01, 0x00, 0x01}

func (m MacAddress) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// IsZero reports whether the address is all zero bytes.
func (m MacAddress) IsZero() bool { return m == MacAddress{} }

// Uint64 packs the 6 address bytes into the low 48 bits of a uint64, the
// representation used by EntityID derivation (§8 of the spec).
func (m MacAddress) Uint64() uint64 {
	var buf [8]byte
	copy(buf[2:], m[:])
	return binary.BigEndian.Uint64(buf[:])
}

// recommendedProgIDShift places the 16-bit progId directly below the 48-bit
// MAC, the layout IEEE 1722.1 calls "recommended".
const recommendedProgIDShift = 0

// GenerateEntityID derives an EntityID from a MAC address and a 16-bit
// program id. Two derivation rules are supported:
//
//   - recommended: MAC[0..6] || progId  (MAC high 48 bits, progId low 16)
//   - legacy ("algorithm A"): MAC[0..3] || progId || MAC[3..6]
func GenerateEntityID(mac MacAddress, progID uint16, recommended bool) EntityID {
	if recommended {
		return EntityID(mac.Uint64()<<16 | uint64(progID))
	}
	var v uint64
	v |= uint64(mac[0]) << 56
	v |= uint64(mac[1]) << 48
	v |= uint64(mac[2]) << 40
	v |= uint64(progID) << 24
	v |= uint64(mac[3]) << 16
	v |= uint64(mac[4]) << 8
	v |= uint64(mac[5])
	return EntityID(v)
}

// SequenceID is a 16-bit counter, monotonically increasing modulo 2^16, kept
// separately per local entity for AECP and for ACMP.
type SequenceID uint16

// Next returns the next sequence id, wrapping modulo 2^16.
func (s *SequenceID) Next() SequenceID {
	v := *s
	*s++
	return v
}

// Descriptor index nominal types. All are 16-bit unsigned; the distinct
// named types exist so a ClusterIndex can't be passed where a
// StreamPortIndex is expected.
type (
	ConfigurationIndex uint16
	AudioUnitIndex     uint16
	StreamIndex        uint16
	StreamPortIndex    uint16
	ClusterIndex       uint16
	MapIndex           uint16
	AvbInterfaceIndex  uint16
	ClockSourceIndex   uint16
	ClockDomainIndex   uint16
	LocaleIndex        uint16
	StringsIndex       uint16
	ControlIndex       uint16
	JackIndex          uint16
	PtpInstanceIndex   uint16
	PtpPortIndex       uint16
	MemoryObjectIndex  uint16
	TimingIndex        uint16
)
