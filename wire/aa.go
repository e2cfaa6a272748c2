// SPDX-License-Identifier: AGPL-3.0-or-later

package wire

import (
	"bytes"
	"encoding/binary"
)

// AaMode is an Address Access TLV's mode field.
type AaMode uint8

const (
	AaModeRead AaMode = iota
	AaModeWrite
	AaModeExecute
)

// AaTlv is a single Address-Access Type-Length-Value entry: a memory
// address, an access mode, and the data read from or written to it
// (supplemented from original_source: the distilled spec only gestures at
// "a list of TLVs").
type AaTlv struct {
	Mode    AaMode
	Address uint64
	Data    []byte
}

func (t AaTlv) serializedLength() int { return 2 + 8 + len(t.Data) }

func (t AaTlv) serialize(buf *bytes.Buffer) error {
	if len(t.Data) > 0x1FFF {
		return ErrOverMaxLength
	}
	var header [10]byte
	modeLen := (uint16(t.Mode&0x7) << 13) | uint16(len(t.Data)&0x1FFF)
	binary.BigEndian.PutUint16(header[0:2], modeLen)
	binary.BigEndian.PutUint64(header[2:10], t.Address)
	buf.Write(header[:])
	buf.Write(t.Data)
	return nil
}

func deserializeAaTlv(data []byte) (AaTlv, int, error) {
	if len(data) < 10 {
		return AaTlv{}, 0, ErrShortFrame
	}
	modeLen := binary.BigEndian.Uint16(data[0:2])
	mode := AaMode(modeLen >> 13)
	length := int(modeLen & 0x1FFF)
	if len(data) < 10+length {
		return AaTlv{}, 0, ErrShortFrame
	}
	addr := binary.BigEndian.Uint64(data[2:10])
	return AaTlv{Mode: mode, Address: addr, Data: data[10 : 10+length]}, 10 + length, nil
}

// AaPayload is the body of an ADDRESS_ACCESS command or response: a list
// of TLVs applied in order.
type AaPayload struct {
	Tlvs []AaTlv
}

// Serialize appends the payload's wire bytes to buf.
func (p AaPayload) Serialize(buf *bytes.Buffer) error {
	for _, t := range p.Tlvs {
		if err := t.serialize(buf); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize parses data (every byte must be consumed by the TLV list)
// into p.
func (p *AaPayload) Deserialize(data []byte) error {
	p.Tlvs = nil
	for len(data) > 0 {
		tlv, n, err := deserializeAaTlv(data)
		if err != nil {
			return err
		}
		p.Tlvs = append(p.Tlvs, tlv)
		data = data[n:]
	}
	return nil
}
