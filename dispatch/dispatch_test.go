package dispatch

import (
	"bytes"
	"testing"

	"github.com/avdeccgo/avdecc/entity"
	"github.com/avdeccgo/avdecc/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adpFrame(t *testing.T) wire.Eth2Frame {
	t.Helper()
	pdu := wire.Adpdu{MessageType: wire.AdpEntityAvailable, EntityID: entity.EntityID(1)}
	var buf bytes.Buffer
	require.NoError(t, pdu.Serialize(&buf))
	return wire.Eth2Frame{
		Destination: entity.AvdeccMulticast,
		Source:      entity.MacAddress{0x01},
		EtherType:   wire.EtherTypeAvtp,
		Payload:     buf.Bytes(),
	}
}

func TestDispatchRoutesAdp(t *testing.T) {
	var got *wire.Adpdu
	d := &Dispatcher{OnAdp: func(pdu wire.Adpdu, src entity.MacAddress) { got = &pdu }}
	d.Dispatch(adpFrame(t))
	require.NotNil(t, got)
	assert.Equal(t, entity.EntityID(1), got.EntityID)
}

func TestDispatchIgnoresNonAvdeccEtherType(t *testing.T) {
	called := false
	d := &Dispatcher{OnAdp: func(wire.Adpdu, entity.MacAddress) { called = true }}
	frame := adpFrame(t)
	frame.EtherType = 0x0800
	d.Dispatch(frame)
	assert.False(t, called)
}

func TestDispatchIgnoresUnmatchedDestination(t *testing.T) {
	called := false
	d := &Dispatcher{LocalMac: entity.MacAddress{0x99}, OnAdp: func(wire.Adpdu, entity.MacAddress) { called = true }}
	frame := adpFrame(t)
	frame.Destination = entity.MacAddress{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	d.Dispatch(frame)
	assert.False(t, called)
}

func TestDispatchDropsMalformedFrameWithoutPanicking(t *testing.T) {
	called := false
	d := &Dispatcher{OnAdp: func(wire.Adpdu, entity.MacAddress) { called = true }}
	frame := wire.Eth2Frame{
		Destination: entity.AvdeccMulticast,
		EtherType:   wire.EtherTypeAvtp,
		Payload:     []byte{wire.SubtypeADP, 0x00},
	}
	assert.NotPanics(t, func() { d.Dispatch(frame) })
	assert.False(t, called)
}

func TestDispatchAcceptsUnicastToLocalMac(t *testing.T) {
	local := entity.MacAddress{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	var got *wire.Aecpdu
	d := &Dispatcher{LocalMac: local, OnAecp: func(pdu wire.Aecpdu, src entity.MacAddress) { got = &pdu }}

	pdu := wire.Aecpdu{MessageType: wire.AecpAemResponse, TargetEntityID: entity.EntityID(1), Payload: []byte{}}
	var buf bytes.Buffer
	require.NoError(t, pdu.Serialize(&buf))
	d.Dispatch(wire.Eth2Frame{Destination: local, EtherType: wire.EtherTypeAvtp, Payload: buf.Bytes()})

	require.NotNil(t, got)
	assert.Equal(t, entity.EntityID(1), got.TargetEntityID)
}
