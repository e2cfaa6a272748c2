// SPDX-License-Identifier: AGPL-3.0-or-later

package entity

import "errors"

// StreamFormat is the 64-bit packed stream format descriptor (§3.4). It is
// opaque on the wire; the helpers below interpret/build the three defined
// families. Byte 0 (the most significant byte) always carries the family
// subtype discriminator.
type StreamFormat uint64

// Family identifies which of the three stream format encodings a
// StreamFormat value uses.
type Family uint8

const (
	FamilyUnknown Family = iota
	FamilyIEC61883_6
	FamilyAAF
	FamilyCRF
)

const (
	subtypeIEC61883 = 0x00
	subtypeAAF      = 0x02
	subtypeCRF      = 0x04
)

func byteOf(v uint64, index int) uint64 {
	shift := uint((7 - index) * 8)
	return (v >> shift) & 0xFF
}

func setByte(v uint64, index int, b uint64) uint64 {
	shift := uint((7 - index) * 8)
	return v | ((b & 0xFF) << shift)
}

// Family reports which encoding family a raw StreamFormat value uses.
func (f StreamFormat) Family() Family {
	switch byteOf(uint64(f), 0) {
	case subtypeIEC61883:
		return FamilyIEC61883_6
	case subtypeAAF:
		return FamilyAAF
	case subtypeCRF:
		return FamilyCRF
	default:
		return FamilyUnknown
	}
}

// SampleRate enumerates the nominal sampling rates the packed formats can
// carry.
type SampleRate uint8

const (
	Rate8000 SampleRate = iota
	Rate16000
	Rate32000
	Rate44100
	Rate48000
	Rate88200
	Rate96000
	Rate176400
	Rate192000
)

var rateHz = map[SampleRate]uint64{
	Rate8000: 8000, Rate16000: 16000, Rate32000: 32000, Rate44100: 44100,
	Rate48000: 48000, Rate88200: 88200, Rate96000: 96000, Rate176400: 176400,
	Rate192000: 192000,
}

var hzToRate = func() map[uint64]SampleRate {
	m := make(map[uint64]SampleRate, len(rateHz))
	for r, hz := range rateHz {
		m[hz] = r
	}
	return m
}()

// IEC 61883-6 fdf_sfc sample-frequency codes (clause 6.2.2 of IEC 61883-6,
// referenced by IEEE 1722.1 Annex B).
var iecSfcByRate = map[SampleRate]uint64{
	Rate32000: 0, Rate44100: 1, Rate48000: 2, Rate88200: 3,
	Rate96000: 4, Rate176400: 5, Rate192000: 6,
}

var iecRateBySfc = func() map[uint64]SampleRate {
	m := make(map[uint64]SampleRate, len(iecSfcByRate))
	for r, c := range iecSfcByRate {
		m[c] = r
	}
	return m
}()

// AAF nominal_sample_rate codes (IEEE 1722.1 Annex B AAF format table).
var aafNsrByRate = map[SampleRate]uint64{
	Rate8000: 1, Rate16000: 2, Rate32000: 3, Rate44100: 4, Rate48000: 5,
	Rate88200: 6, Rate96000: 7, Rate176400: 8, Rate192000: 9,
}

var aafRateByNsr = func() map[uint64]SampleRate {
	m := make(map[uint64]SampleRate, len(aafNsrByRate))
	for r, c := range aafNsrByRate {
		m[c] = r
	}
	return m
}()

// SampleFormat enumerates the sample containers this core understands.
// IEC 61883-6's AM824 transport always carries 24-bit audio in a 32-bit
// quadlet, so SampleFormat only varies the AAF encoding.
type SampleFormat uint8

const (
	FormatInt16 SampleFormat = iota
	FormatInt24
	FormatInt32
	FormatFloat32
)

// AAF "format" byte values (IEEE 1722.1 Annex B).
var aafFormatCode = map[SampleFormat]uint64{
	FormatFloat32: 1, FormatInt32: 2, FormatInt24: 3, FormatInt16: 4,
}

var aafBitDepthDefault = map[SampleFormat]uint64{
	FormatFloat32: 32, FormatInt32: 32, FormatInt24: 24, FormatInt16: 16,
}

// BuildFormatIEC61883_6 packs an IEC 61883-6 AM824 stream format.
//
// Byte layout:
//
//	[0] subtype = 0x00
//	[1] sf(1)=1 | fmt(6)=0x10 (61883-6) | reserved(1)
//	[2] fdf_evt(5)=0 | fdf_sfc(3) sample-rate code
//	[3] dbs: data block size in quadlets = channel count
//	[4] up_to_channels(bit7) | reserved | sync(bit4)
//	[5] reserved
//	[6] channels_per_frame (mirrors [3])
//	[7] reserved
func BuildFormatIEC61883_6(channels uint8, upToChannels bool, rate SampleRate, _ SampleFormat, sync bool) StreamFormat {
	v := setByte(0, 0, subtypeIEC61883)
	v = setByte(v, 1, 0xA0)
	v = setByte(v, 2, iecSfcByRate[rate])
	v = setByte(v, 3, uint64(channels))
	b4 := uint64(0x40)
	if upToChannels {
		b4 |= 0x80
	}
	if sync {
		b4 |= 0x10
	}
	v = setByte(v, 4, b4)
	v = setByte(v, 6, uint64(channels))
	return StreamFormat(v)
}

// BuildFormatAAF packs an AAF (AVTP Audio Format) stream format.
//
// Byte layout:
//
//	[0] subtype = 0x02
//	[1] sf(1)=0 | reserved(3) | nsr(4) nominal sample rate code
//	[2] format: FLOAT32=1, INT32=2, INT24=3, INT16=4
//	[3] bit_depth
//	[4:7] up_to_channels(bit0 of the 32-bit field) | channels_per_frame(9)
//	      | samples_per_frame(10) | reserved(12)
func BuildFormatAAF(channels uint8, upToChannels bool, rate SampleRate, sample SampleFormat, bitDepth uint8, samplesPerFrame uint16) StreamFormat {
	v := setByte(0, 0, subtypeAAF)
	v = setByte(v, 1, aafNsrByRate[rate])
	v = setByte(v, 2, aafFormatCode[sample])
	v = setByte(v, 3, uint64(bitDepth))

	var low uint32
	if upToChannels {
		low |= 1 << 31
	}
	low |= (uint32(channels) & 0x1FF) << 22
	low |= (uint32(samplesPerFrame) & 0x3FF) << 12
	v |= uint64(low)
	return StreamFormat(v)
}

// BuildFormatCRF packs a CRF (Clock Reference Format) stream format.
//
// Byte layout:
//
//	[0] subtype = 0x04
//	[1] crf_type(4 high bits) = 1 (AUDIO_SAMPLE) | reserved(4)
//	[2] pull: clock-multiplier code
//	[3] timestamps_per_pdu
//	[4:5] reserved
//	[6:7] base_frequency, raw Hz
const crfTypeAudioSample = 1

func BuildFormatCRF(rate SampleRate, pull uint8, timestampsPerPdu uint16) StreamFormat {
	v := setByte(0, 0, subtypeCRF)
	v = setByte(v, 1, crfTypeAudioSample<<4)
	v = setByte(v, 2, uint64(pull))
	v = setByte(v, 3, uint64(timestampsPerPdu))
	v |= rateHz[rate] & 0xFFFF
	return StreamFormat(v)
}

var (
	// ErrChannelCountTooHigh is returned by AdaptToChannelCount when n
	// exceeds an up-to format's declared maximum.
	ErrChannelCountTooHigh = errors.New("entity: channel count exceeds declared maximum")
	// ErrChannelCountFixed is returned by AdaptToChannelCount when the
	// format is not up-to and n does not equal the declared count.
	ErrChannelCountFixed = errors.New("entity: format has a fixed channel count")
)

// ChannelCount returns the number of channels encoded in f's channel field.
// CRF formats carry no channel count and return 0.
func (f StreamFormat) ChannelCount() uint8 {
	v := uint64(f)
	switch f.Family() {
	case FamilyIEC61883_6:
		return uint8(byteOf(v, 3))
	case FamilyAAF:
		return uint8((uint32(v) >> 22) & 0x1FF)
	default:
		return 0
	}
}

// IsUpToChannels reports whether f declares "up to N channels" rather than
// a fixed channel count.
func (f StreamFormat) IsUpToChannels() bool {
	v := uint64(f)
	switch f.Family() {
	case FamilyIEC61883_6:
		return byteOf(v, 4)&0x80 != 0
	case FamilyAAF:
		return uint32(v)&(1<<31) != 0
	default:
		return false
	}
}

// SamplesPerFrame returns the AAF samples-per-frame field (0 for other
// families).
func (f StreamFormat) SamplesPerFrame() uint16 {
	if f.Family() != FamilyAAF {
		return 0
	}
	return uint16((uint32(f) >> 12) & 0x3FF)
}

// AdaptToChannelCount returns the concrete format produced by resolving an
// up-to format to exactly n channels. It fails if n exceeds the declared
// maximum, or — for a fixed format — if n does not equal the declared
// count.
func AdaptToChannelCount(format StreamFormat, n uint8) (StreamFormat, error) {
	max := format.ChannelCount()
	if format.IsUpToChannels() {
		if n > max {
			return 0, ErrChannelCountTooHigh
		}
	} else if n != max {
		return 0, ErrChannelCountFixed
	}
	v := uint64(format)
	switch format.Family() {
	case FamilyIEC61883_6:
		v = v &^ (0xFF << 32) &^ (0xFF << 8) &^ (1 << 31)
		v |= uint64(n) << 32
		v |= uint64(n) << 8
	case FamilyAAF:
		v = v &^ (uint64(0x1FF) << 22) &^ (1 << 31)
		v |= uint64(n) << 22
	}
	return StreamFormat(v), nil
}

func (f StreamFormat) sampleRate() (SampleRate, bool) {
	v := uint64(f)
	switch f.Family() {
	case FamilyIEC61883_6:
		r, ok := iecRateBySfc[byteOf(v, 2)&0x7]
		return r, ok
	case FamilyAAF:
		r, ok := aafRateByNsr[byteOf(v, 1)&0xF]
		return r, ok
	case FamilyCRF:
		r, ok := hzToRate[v&0xFFFF]
		return r, ok
	default:
		return 0, false
	}
}

// isAsyncTalkerClock reports whether an IEC 61883-6 format requests an
// asynchronous (non sample-clock-locked) talker clock.
func (f StreamFormat) isAsyncTalkerClock() bool {
	if f.Family() != FamilyIEC61883_6 {
		return false
	}
	return byteOf(uint64(f), 4)&0x10 == 0
}

// AreCompatible reports whether a listener format can receive from a
// talker format: same family, same sampling rate, same sample-format
// family; an asynchronous talker clock feeding a synchronous listener is
// rejected. Bit depth may differ within the same sample container.
func AreCompatible(listenerFmt, talkerFmt StreamFormat) bool {
	if listenerFmt.Family() != talkerFmt.Family() {
		return false
	}
	lr, lok := listenerFmt.sampleRate()
	tr, tok := talkerFmt.sampleRate()
	if !lok || !tok || lr != tr {
		return false
	}
	if listenerFmt.Family() == FamilyAAF && byteOf(uint64(listenerFmt), 2) != byteOf(uint64(talkerFmt), 2) {
		return false
	}
	if talkerFmt.Family() == FamilyIEC61883_6 && talkerFmt.isAsyncTalkerClock() && !listenerFmt.isAsyncTalkerClock() {
		return false
	}
	return true
}

// GetAdaptedCompatiblePair intersects the up-to channel ranges of a
// listener and talker format, returning concrete formats at the lowest
// common channel count. ok is false if the formats are not compatible at
// all.
func GetAdaptedCompatiblePair(listenerFmt, talkerFmt StreamFormat) (listener, talker StreamFormat, ok bool) {
	if !AreCompatible(listenerFmt, talkerFmt) {
		return 0, 0, false
	}
	n := listenerFmt.ChannelCount()
	if tn := talkerFmt.ChannelCount(); tn < n {
		n = tn
	}
	l, err := AdaptToChannelCount(listenerFmt, n)
	if err != nil {
		return 0, 0, false
	}
	t, err := AdaptToChannelCount(talkerFmt, n)
	if err != nil {
		return 0, 0, false
	}
	return l, t, true
}

var _ = aafBitDepthDefault
