// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/avdeccgo/avdecc/entity"
	"github.com/avdeccgo/avdecc/entitymodel"
	"github.com/avdeccgo/avdecc/statemachine/command"
	"github.com/avdeccgo/avdecc/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	controllerID = entity.EntityID(0x0102030405060001)
	targetID     = entity.EntityID(0x0102030405060002)
)

func newTestController(t *testing.T) (*Controller, *command.StateMachine, *wire.Aecpdu) {
	t.Helper()
	sm := command.New(4, nil)
	var sentAecp wire.Aecpdu
	sm.SendAecp = func(_ entity.EntityID, pdu wire.Aecpdu) error {
		sentAecp = pdu
		return nil
	}
	return New(controllerID, sm), sm, &sentAecp
}

func aemResponse(t *testing.T, target, ctrl entity.EntityID, seq entity.SequenceID, status wire.AecpStatus, cmdType wire.AemCommandType, descType uint16, descIndex uint16, data []byte) wire.Aecpdu {
	t.Helper()
	var buf bytes.Buffer
	body := wire.AemPayload{CommandType: cmdType, DescriptorType: descType, DescriptorIndex: descIndex, Data: data}
	require.NoError(t, body.Serialize(&buf))
	return wire.Aecpdu{
		MessageType:        wire.AecpAemResponse,
		Status:             status,
		TargetEntityID:     target,
		ControllerEntityID: ctrl,
		SequenceID:         seq,
		Payload:            buf.Bytes(),
	}
}

func TestReadDescriptorReturnsDecodedData(t *testing.T) {
	c, sm, sent := newTestController(t)
	now := time.Now()

	var gotData []byte
	var gotErr error
	c.ReadDescriptor(targetID, entitymodel.DescriptorStreamInput, 3, func(data []byte, err error) {
		gotData, gotErr = data, err
	})

	resp := aemResponse(t, targetID, controllerID, sent.SequenceID, wire.AecpStatusSuccess, wire.AemReadDescriptor, uint16(entitymodel.DescriptorStreamInput), 3, []byte("descriptor-bytes"))
	sm.OnAecpResponse(resp, now)

	require.NoError(t, gotErr)
	assert.Equal(t, []byte("descriptor-bytes"), gotData)
}

func TestReadDescriptorSurfacesAecpStatus(t *testing.T) {
	c, sm, sent := newTestController(t)
	now := time.Now()

	var gotErr error
	c.ReadDescriptor(targetID, entitymodel.DescriptorStreamInput, 3, func(_ []byte, err error) {
		gotErr = err
	})

	resp := aemResponse(t, targetID, controllerID, sent.SequenceID, wire.AecpStatusNoSuchDescriptor, wire.AemReadDescriptor, 0, 0, nil)
	sm.OnAecpResponse(resp, now)

	require.Error(t, gotErr)
	var cmdErr *CommandError
	require.True(t, errors.As(gotErr, &cmdErr))
	require.NotNil(t, cmdErr.AecpStatus)
	assert.Equal(t, wire.AecpStatusNoSuchDescriptor, *cmdErr.AecpStatus)
}

func TestAcquireEntityDecodesOwnerID(t *testing.T) {
	c, sm, sent := newTestController(t)
	now := time.Now()

	var gotOwner entity.EntityID
	c.AcquireEntity(targetID, 0, func(ownerID entity.EntityID, err error) {
		require.NoError(t, err)
		gotOwner = ownerID
	})

	var data [12]byte
	putUint64(data[4:12], uint64(controllerID))
	resp := aemResponse(t, targetID, controllerID, sent.SequenceID, wire.AecpStatusSuccess, wire.AemAcquireEntity, uint16(entitymodel.DescriptorEntity), 0, data[:])
	sm.OnAecpResponse(resp, now)

	assert.Equal(t, controllerID, gotOwner)
}

func TestSetAndGetStreamFormatRoundTrip(t *testing.T) {
	c, sm, sent := newTestController(t)
	now := time.Now()
	format := entity.BuildFormatAAF(8, false, entity.Rate48000, entity.FormatInt24, 24, 6)

	var setErr error
	c.SetStreamFormat(targetID, entitymodel.DescriptorStreamOutput, 2, format, func(err error) { setErr = err })
	setResp := aemResponse(t, targetID, controllerID, sent.SequenceID, wire.AecpStatusSuccess, wire.AemSetStreamFormat, uint16(entitymodel.DescriptorStreamOutput), 2, nil)
	sm.OnAecpResponse(setResp, now)
	require.NoError(t, setErr)

	var gotFormat entity.StreamFormat
	c.GetStreamFormat(targetID, entitymodel.DescriptorStreamOutput, 2, func(f entity.StreamFormat, err error) {
		require.NoError(t, err)
		gotFormat = f
	})
	var data [8]byte
	putUint64(data[:], uint64(format))
	getResp := aemResponse(t, targetID, controllerID, sent.SequenceID, wire.AecpStatusSuccess, wire.AemGetStreamFormat, uint16(entitymodel.DescriptorStreamOutput), 2, data[:])
	sm.OnAecpResponse(getResp, now)

	assert.Equal(t, format, gotFormat)
}

func TestGetNameDecodesNulTerminatedString(t *testing.T) {
	c, sm, sent := newTestController(t)
	now := time.Now()

	var gotName string
	c.GetName(targetID, entitymodel.DescriptorEntity, 0, 0, 0, func(name string, err error) {
		require.NoError(t, err)
		gotName = name
	})

	var data [4 + nameLength]byte
	copy(data[4:], []byte("mixing-console"))
	resp := aemResponse(t, targetID, controllerID, sent.SequenceID, wire.AecpStatusSuccess, wire.AemGetName, uint16(entitymodel.DescriptorEntity), 0, data[:])
	sm.OnAecpResponse(resp, now)

	assert.Equal(t, "mixing-console", gotName)
}

func TestReadMemoryReturnsTlvData(t *testing.T) {
	sm := command.New(4, nil)
	var sent wire.Aecpdu
	sm.SendAecp = func(_ entity.EntityID, pdu wire.Aecpdu) error { sent = pdu; return nil }
	c := New(controllerID, sm)
	now := time.Now()

	var gotData []byte
	c.ReadMemory(targetID, 0x1000, 4, func(data []byte, err error) {
		require.NoError(t, err)
		gotData = data
	})

	var buf bytes.Buffer
	body := wire.AaPayload{Tlvs: []wire.AaTlv{{Mode: wire.AaModeRead, Address: 0x1000, Data: []byte{1, 2, 3, 4}}}}
	require.NoError(t, body.Serialize(&buf))
	resp := wire.Aecpdu{
		MessageType:        wire.AecpAddressAccessResponse,
		Status:             wire.AecpStatusSuccess,
		TargetEntityID:     targetID,
		ControllerEntityID: controllerID,
		SequenceID:         sent.SequenceID,
		Payload:            buf.Bytes(),
	}
	sm.OnAecpResponse(resp, now)

	assert.Equal(t, []byte{1, 2, 3, 4}, gotData)
}

func TestConnectStreamReportsStreamDestMac(t *testing.T) {
	sm := command.New(4, nil)
	var sent wire.Acmpdu
	sm.SendAcmp = func(pdu wire.Acmpdu) error { sent = pdu; return nil }
	c := New(controllerID, sm)
	now := time.Now()

	const talkerID = entity.EntityID(10)
	const listenerID = entity.EntityID(11)

	var gotConn StreamConnection
	var gotErr error
	c.ConnectStream(talkerID, 0, listenerID, 0, func(resp StreamConnection, err error) {
		gotConn, gotErr = resp, err
	})
	require.Equal(t, wire.AcmpConnectRxCommand, sent.MessageType)
	require.Equal(t, controllerID, sent.ControllerEntityID)

	resp := wire.Acmpdu{
		MessageType:        wire.AcmpConnectRxResponse,
		Status:             wire.AcmpStatusSuccess,
		ControllerEntityID: controllerID,
		TalkerEntityID:     talkerID,
		ListenerEntityID:   listenerID,
		StreamDestMac:      entity.MacAddress{0x91, 0xE0, 0xF0, 0x00, 0x01, 0x02},
		ConnectionCount:    1,
		SequenceID:         sent.SequenceID,
	}
	sm.OnAcmpResponse(resp, now)

	require.NoError(t, gotErr)
	assert.Equal(t, entity.MacAddress{0x91, 0xE0, 0xF0, 0x00, 0x01, 0x02}, gotConn.StreamDestMac)
	assert.Equal(t, uint16(1), gotConn.ConnectionCount)
}

func TestGetListenerStreamStateSurfacesAcmpStatus(t *testing.T) {
	sm := command.New(4, nil)
	var sent wire.Acmpdu
	sm.SendAcmp = func(pdu wire.Acmpdu) error { sent = pdu; return nil }
	c := New(controllerID, sm)
	now := time.Now()

	const listenerID = entity.EntityID(11)

	var gotErr error
	c.GetListenerStreamState(listenerID, 0, func(_ StreamConnection, err error) { gotErr = err })

	resp := wire.Acmpdu{
		MessageType:        wire.AcmpGetRxStateResponse,
		Status:             wire.AcmpStatusNotConnected,
		ControllerEntityID: controllerID,
		ListenerEntityID:   listenerID,
		SequenceID:         sent.SequenceID,
	}
	sm.OnAcmpResponse(resp, now)

	require.Error(t, gotErr)
	var cmdErr *CommandError
	require.True(t, errors.As(gotErr, &cmdErr))
	require.NotNil(t, cmdErr.AcmpStatus)
	assert.Equal(t, wire.AcmpStatusNotConnected, *cmdErr.AcmpStatus)
}

func TestCommandErrorUnwrapsUnderlyingError(t *testing.T) {
	base := errors.New("boom")
	err := &CommandError{Kind: command.ResultTransportError, Err: base}
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "boom")
}
