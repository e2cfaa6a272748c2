package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFormatIEC61883_6Vectors(t *testing.T) {
	tests := []struct {
		name     string
		channels uint8
		upTo     bool
		rate     SampleRate
		sample   SampleFormat
		sync     bool
		want     StreamFormat
	}{
		{"1ch_48k_noSync", 1, false, Rate48000, FormatInt24, false, 0x00A0020140000100},
		{"8ch_48k_sync", 8, false, Rate48000, FormatInt24, true, 0x00A0020850000800},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildFormatIEC61883_6(tt.channels, tt.upTo, tt.rate, tt.sample, tt.sync)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, FamilyIEC61883_6, got.Family())
			assert.Equal(t, tt.channels, got.ChannelCount())
		})
	}
}

func TestBuildFormatAAFVector(t *testing.T) {
	got := BuildFormatAAF(8, false, Rate48000, FormatInt16, 16, 64)
	require.Equal(t, StreamFormat(0x0205041002040000), got)
	assert.Equal(t, FamilyAAF, got.Family())
	assert.Equal(t, uint8(8), got.ChannelCount())
	assert.Equal(t, uint16(64), got.SamplesPerFrame())
	assert.False(t, got.IsUpToChannels())
}

func TestBuildFormatCRFVector(t *testing.T) {
	got := BuildFormatCRF(Rate48000, 6, 1)
	require.Equal(t, StreamFormat(0x041006010000bb80), got)
	assert.Equal(t, FamilyCRF, got.Family())
	assert.Equal(t, uint8(0), got.ChannelCount())
}

func TestAreCompatibleSameFamilySameRate(t *testing.T) {
	listener := BuildFormatIEC61883_6(2, true, Rate48000, FormatInt24, true)
	talker := BuildFormatIEC61883_6(8, false, Rate48000, FormatInt24, true)
	assert.True(t, AreCompatible(listener, talker))
}

func TestAreCompatibleRejectsRateMismatch(t *testing.T) {
	listener := BuildFormatIEC61883_6(2, true, Rate48000, FormatInt24, true)
	talker := BuildFormatIEC61883_6(2, true, Rate96000, FormatInt24, true)
	assert.False(t, AreCompatible(listener, talker))
}

func TestAreCompatibleRejectsFamilyMismatch(t *testing.T) {
	listener := BuildFormatIEC61883_6(2, true, Rate48000, FormatInt24, true)
	talker := BuildFormatAAF(2, true, Rate48000, FormatInt16, 16, 64)
	assert.False(t, AreCompatible(listener, talker))
}

func TestAreCompatibleAsyncTalkerRejectedBySyncListener(t *testing.T) {
	listener := BuildFormatIEC61883_6(2, true, Rate48000, FormatInt24, true)
	talker := BuildFormatIEC61883_6(2, true, Rate48000, FormatInt24, false)
	assert.False(t, AreCompatible(listener, talker))
}

func TestGetAdaptedCompatiblePairTakesMinChannelCount(t *testing.T) {
	listener := BuildFormatIEC61883_6(8, true, Rate48000, FormatInt24, true)
	talker := BuildFormatIEC61883_6(2, true, Rate48000, FormatInt24, true)

	adaptedListener, adaptedTalker, ok := GetAdaptedCompatiblePair(listener, talker)
	require.True(t, ok)
	assert.Equal(t, uint8(2), adaptedListener.ChannelCount())
	assert.Equal(t, uint8(2), adaptedTalker.ChannelCount())
}

func TestGetAdaptedCompatiblePairIncompatibleReturnsFalse(t *testing.T) {
	listener := BuildFormatIEC61883_6(2, true, Rate48000, FormatInt24, true)
	talker := BuildFormatAAF(2, true, Rate48000, FormatInt16, 16, 64)
	_, _, ok := GetAdaptedCompatiblePair(listener, talker)
	assert.False(t, ok)
}

func TestAdaptToChannelCountRejectsOverMax(t *testing.T) {
	format := BuildFormatIEC61883_6(8, true, Rate48000, FormatInt24, true)
	_, err := AdaptToChannelCount(format, 16)
	assert.ErrorIs(t, err, ErrChannelCountTooHigh)
}

func TestAdaptToChannelCountRejectsFixedMismatch(t *testing.T) {
	format := BuildFormatIEC61883_6(8, false, Rate48000, FormatInt24, true)
	_, err := AdaptToChannelCount(format, 2)
	assert.ErrorIs(t, err, ErrChannelCountFixed)
}
