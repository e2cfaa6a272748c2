package wire

import (
	"bytes"
	"testing"

	"github.com/avdeccgo/avdecc/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEth2FrameRoundTrip(t *testing.T) {
	want := Eth2Frame{
		Destination: entity.AvdeccMulticast,
		Source:      entity.MacAddress{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		EtherType:   EtherTypeAvtp,
		Payload:     []byte{0x01, 0x02, 0x03},
	}
	var buf bytes.Buffer
	require.NoError(t, want.Serialize(&buf))

	var got Eth2Frame
	require.NoError(t, got.Deserialize(buf.Bytes()))
	assert.Equal(t, want, got)
}

func TestEth2FrameDeserializeShortFrame(t *testing.T) {
	var got Eth2Frame
	assert.ErrorIs(t, got.Deserialize([]byte{0x01, 0x02}), ErrShortFrame)
}

func TestAdpduRoundTrip(t *testing.T) {
	want := Adpdu{
		MessageType:            AdpEntityAvailable,
		ValidTime:              10,
		EntityID:               entity.EntityID(0x0102030405067788),
		EntityModelID:          entity.EntityModelID(0xAABBCCDDEEFF0011),
		EntityCapabilities:     entity.EntityCapEfuMode | entity.EntityCapAemSupported,
		TalkerStreamSources:    2,
		TalkerCapabilities:     entity.TalkerCapImplemented | entity.TalkerCapAudioSource,
		ListenerStreamSinks:    1,
		ListenerCapabilities:   entity.ListenerCapImplemented,
		ControllerCapabilities: entity.ControllerCapImplemented,
		AvailableIndex:         42,
		GptpGrandmasterID:      entity.ClockID(0x1122334455667788),
		GptpDomainNumber:       0,
		IdentifyControlIndex:   3,
		InterfaceIndex:         0,
		AssociationID:          entity.NullID,
	}
	var buf bytes.Buffer
	require.NoError(t, want.Serialize(&buf))

	var got Adpdu
	require.NoError(t, got.Deserialize(buf.Bytes()))
	assert.Equal(t, want, got)
}

func TestAdpduDeserializeRejectsWrongSubtype(t *testing.T) {
	data := make([]byte, 4+adpPayloadLength)
	data[0] = SubtypeAECP
	var got Adpdu
	assert.ErrorIs(t, got.Deserialize(data), ErrBadFrame)
}

func TestAecpduRoundTripWithAemPayload(t *testing.T) {
	aem := AemPayload{
		CommandType:     AemReadDescriptor,
		Unsolicited:     false,
		DescriptorType:  1,
		DescriptorIndex: 0,
		Data:            []byte{0xDE, 0xAD},
	}
	var payloadBuf bytes.Buffer
	require.NoError(t, aem.Serialize(&payloadBuf))

	want := Aecpdu{
		MessageType:        AecpAemCommand,
		Status:             AecpStatusSuccess,
		TargetEntityID:     entity.EntityID(0x1),
		ControllerEntityID: entity.EntityID(0x2),
		SequenceID:         7,
		Payload:            payloadBuf.Bytes(),
	}
	var buf bytes.Buffer
	require.NoError(t, want.Serialize(&buf))

	var got Aecpdu
	require.NoError(t, got.Deserialize(buf.Bytes()))
	assert.Equal(t, want, got)

	var gotAem AemPayload
	require.NoError(t, gotAem.Deserialize(got.Payload))
	assert.Equal(t, aem, gotAem)
}

func TestAemPayloadUnsolicitedBitRoundTrips(t *testing.T) {
	aem := AemPayload{CommandType: AemIdentifyNotification, Unsolicited: true, DescriptorType: 1, DescriptorIndex: 0}
	var buf bytes.Buffer
	require.NoError(t, aem.Serialize(&buf))

	var got AemPayload
	require.NoError(t, got.Deserialize(buf.Bytes()))
	assert.True(t, got.Unsolicited)
	assert.True(t, got.IsIdentifyNotification())
	assert.Equal(t, AemIdentifyNotification, got.CommandType)
}

func TestAaPayloadRoundTrip(t *testing.T) {
	want := AaPayload{Tlvs: []AaTlv{
		{Mode: AaModeRead, Address: 0x1000, Data: []byte{}},
		{Mode: AaModeWrite, Address: 0x2000, Data: []byte{0x01, 0x02, 0x03, 0x04}},
	}}
	var buf bytes.Buffer
	require.NoError(t, want.Serialize(&buf))

	var got AaPayload
	require.NoError(t, got.Deserialize(buf.Bytes()))
	assert.Equal(t, want, got)
}

func TestAcmpduRoundTrip(t *testing.T) {
	want := Acmpdu{
		MessageType:        AcmpConnectRxCommand,
		Status:             AcmpStatusSuccess,
		StreamID:           entity.StreamID(0x1),
		ControllerEntityID: entity.EntityID(0x2),
		TalkerEntityID:     entity.EntityID(0x3),
		ListenerEntityID:   entity.EntityID(0x4),
		TalkerUniqueID:     0,
		ListenerUniqueID:   0,
		StreamDestMac:      entity.MacAddress{0x91, 0xE0, 0xF0, 0x00, 0x01, 0x02},
		ConnectionCount:    1,
		SequenceID:         99,
		Flags:              AcmpFlagClassB | AcmpFlagFastConnect,
		StreamVlanID:       2,
	}
	var buf bytes.Buffer
	require.NoError(t, want.Serialize(&buf))

	var got Acmpdu
	require.NoError(t, got.Deserialize(buf.Bytes()))
	assert.Equal(t, want, got)
	assert.True(t, got.Flags.Has(AcmpFlagClassB))
	assert.False(t, got.Flags.Has(AcmpFlagSavedState))
}

func TestAcmpduDeserializeShortFrame(t *testing.T) {
	var got Acmpdu
	assert.ErrorIs(t, got.Deserialize([]byte{SubtypeACMP, 0, 0}), ErrShortFrame)
}

func TestAcmpMessageTypeIsResponse(t *testing.T) {
	assert.False(t, AcmpConnectRxCommand.IsResponse())
	assert.True(t, AcmpConnectRxResponse.IsResponse())
	assert.False(t, AcmpGetTxConnectionCommand.IsResponse())
	assert.True(t, AcmpGetTxConnectionResponse.IsResponse())
}
