// SPDX-License-Identifier: AGPL-3.0-or-later

package wire

import (
	"bytes"
	"encoding/binary"
)

// AemCommandType is the AEM command_type field (the low 15 bits of the
// field that also carries the unsolicited flag in its top bit).
type AemCommandType uint16

const (
	AemReadDescriptor AemCommandType = iota
	AemAcquireEntity
	AemLockEntity
	AemEntityAvailable
	AemControllerAvailable
	AemSetConfiguration
	AemGetConfiguration
	AemSetStreamFormat
	AemGetStreamFormat
	AemSetStreamInfo
	AemGetStreamInfo
	AemSetName
	AemGetName
	AemStartStreaming
	AemStopStreaming
	AemRegisterUnsolicitedNotification
	AemDeregisterUnsolicitedNotification
	AemIdentifyNotification
	AemSetControl
	AemGetControl
)

const aemUnsolicitedBit AemCommandType = 1 << 15

// AemPayload is the body of an AEM command or response (§3.2, §4.6).
type AemPayload struct {
	CommandType      AemCommandType
	Unsolicited      bool
	DescriptorType   uint16
	DescriptorIndex  uint16
	Data             []byte
}

// Serialize appends the payload's wire bytes to buf.
func (p AemPayload) Serialize(buf *bytes.Buffer) error {
	var fixed [6]byte
	ct := p.CommandType
	if p.Unsolicited {
		ct |= aemUnsolicitedBit
	}
	binary.BigEndian.PutUint16(fixed[0:2], uint16(ct))
	binary.BigEndian.PutUint16(fixed[2:4], p.DescriptorType)
	binary.BigEndian.PutUint16(fixed[4:6], p.DescriptorIndex)
	buf.Write(fixed[:])
	buf.Write(p.Data)
	return nil
}

// Deserialize parses data into p. Data aliases the tail of data.
func (p *AemPayload) Deserialize(data []byte) error {
	if len(data) < 6 {
		return ErrShortFrame
	}
	raw := binary.BigEndian.Uint16(data[0:2])
	p.Unsolicited = raw&uint16(aemUnsolicitedBit) != 0
	p.CommandType = AemCommandType(raw &^ uint16(aemUnsolicitedBit))
	p.DescriptorType = binary.BigEndian.Uint16(data[2:4])
	p.DescriptorIndex = binary.BigEndian.Uint16(data[4:6])
	p.Data = data[6:]
	return nil
}

// IsIdentifyNotification reports whether p is the dedicated identify
// notification command, which bypasses inflight matching the same way the
// unsolicited bit does (§4.6, supplemented from original_source).
func (p AemPayload) IsIdentifyNotification() bool {
	return p.CommandType == AemIdentifyNotification
}
