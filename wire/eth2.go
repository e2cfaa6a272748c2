// SPDX-License-Identifier: AGPL-3.0-or-later

package wire

import (
	"bytes"
	"encoding/binary"

	"github.com/avdeccgo/avdecc/entity"
)

// EtherTypeAvtp is the EtherType used by every AVDECC/AVTP frame.
const EtherTypeAvtp uint16 = 0x22F0

// MaxFrameLength is the largest Ethernet payload (header + AVTP payload)
// this codec accepts, matching the untagged 1500-byte MTU AVDECC traffic
// is defined to fit within.
const MaxFrameLength = 1500

const eth2HeaderLength = 14

// Eth2Frame is a raw Ethernet II header plus its payload. It carries no
// 802.1Q tag; AVDECC traffic is defined to run on untagged frames.
type Eth2Frame struct {
	Destination entity.MacAddress
	Source      entity.MacAddress
	EtherType   uint16
	Payload     []byte
}

// Serialize appends the frame's wire bytes to buf.
func (f Eth2Frame) Serialize(buf *bytes.Buffer) error {
	if eth2HeaderLength+len(f.Payload) > MaxFrameLength {
		return ErrOverMaxLength
	}
	buf.Write(f.Destination[:])
	buf.Write(f.Source[:])
	var etBuf [2]byte
	binary.BigEndian.PutUint16(etBuf[:], f.EtherType)
	buf.Write(etBuf[:])
	buf.Write(f.Payload)
	return nil
}

// Deserialize parses data into f. Payload aliases the tail of data; callers
// that retain f past the lifetime of data must copy it first.
func (f *Eth2Frame) Deserialize(data []byte) error {
	if len(data) < eth2HeaderLength {
		return ErrShortFrame
	}
	copy(f.Destination[:], data[0:6])
	copy(f.Source[:], data[6:12])
	f.EtherType = binary.BigEndian.Uint16(data[12:14])
	f.Payload = data[eth2HeaderLength:]
	return nil
}

// IsAvdecc reports whether f's EtherType is the AVTP EtherType. The
// destination address is not checked here.
func (f Eth2Frame) IsAvdecc() bool {
	return f.EtherType == EtherTypeAvtp
}
