// SPDX-License-Identifier: AGPL-3.0-or-later

package entitymodel

import "github.com/avdeccgo/avdecc/entity"

// AudioUnitDescriptor models a clock-domain-bound group of stream ports.
type AudioUnitDescriptor struct {
	Static  AudioUnitStatic
	Dynamic AudioUnitDynamic
}

type AudioUnitStatic struct {
	Index              entity.AudioUnitIndex
	ObjectName         string
	LocalizedDescription entity.StringsIndex
	ClockDomainIndex   entity.ClockDomainIndex
	NumberOfStreamInputPorts  uint16
	BaseStreamInputPort       entity.StreamPortIndex
	NumberOfStreamOutputPorts uint16
	BaseStreamOutputPort      entity.StreamPortIndex
	SamplingRates      []uint32
}

type AudioUnitDynamic struct {
	ObjectName        string
	CurrentSamplingRate uint32
}

// StreamDescriptor models a STREAM_INPUT or STREAM_OUTPUT descriptor. The
// direction is carried by which slice of ConfigurationDescriptor holds it,
// matching the wire's own twin-descriptor-type convention rather than an
// extra field.
type StreamDescriptor struct {
	Static  StreamStatic
	Dynamic StreamDynamic
}

type StreamStatic struct {
	Index              entity.StreamIndex
	ObjectName         string
	LocalizedDescription entity.StringsIndex
	ClockDomainIndex   entity.ClockDomainIndex
	StreamFlags        uint16
	CurrentFormat      entity.StreamFormat
	FormatsOffered     []entity.StreamFormat
	BackupTalkerEntityID0 entity.EntityID
	AvbInterfaceIndex  entity.AvbInterfaceIndex
}

type StreamDynamic struct {
	ObjectName     string
	CurrentFormat  entity.StreamFormat
	ConnectedTalker entity.EntityID
	ConnectedTalkerStreamIndex entity.StreamIndex
	StreamID       entity.StreamID
	Connected      bool
}

// JackDescriptor models JACK_INPUT or JACK_OUTPUT.
type JackDescriptor struct {
	Static  JackStatic
	Dynamic JackDynamic
}

type JackStatic struct {
	Index              entity.JackIndex
	ObjectName         string
	LocalizedDescription entity.StringsIndex
	JackFlags          uint16
	JackType           uint16
}

type JackDynamic struct {
	ObjectName string
}

// AvbInterfaceDescriptor models an AVB_INTERFACE descriptor: the entity's
// binding to an 802.1AS time-aware network port.
type AvbInterfaceDescriptor struct {
	Static  AvbInterfaceStatic
	Dynamic AvbInterfaceDynamic
}

type AvbInterfaceStatic struct {
	Index              entity.AvbInterfaceIndex
	ObjectName         string
	LocalizedDescription entity.StringsIndex
	MacAddress         entity.MacAddress
	InterfaceFlags     uint16
}

type AvbInterfaceDynamic struct {
	ObjectName       string
	LinkStatus       bool
	GrandmasterID    entity.ClockID
	PropagationDelay uint32
	MsrpMappings     []uint8
}

// ClockSourceDescriptor models a CLOCK_SOURCE descriptor.
type ClockSourceDescriptor struct {
	Static  ClockSourceStatic
	Dynamic ClockSourceDynamic
}

type ClockSourceStatic struct {
	Index              entity.ClockSourceIndex
	ObjectName         string
	LocalizedDescription entity.StringsIndex
	ClockSourceType    uint16
	ClockSourceLocationType DescriptorType
	ClockSourceLocationIndex uint16
}

type ClockSourceDynamic struct {
	ObjectName        string
	ClockSourceFlags  uint16
	ClockSourceIdentifier entity.ClockID
}

// MemoryObjectDescriptor models firmware/configuration blob storage.
type MemoryObjectDescriptor struct {
	Static  MemoryObjectStatic
	Dynamic MemoryObjectDynamic
}

type MemoryObjectStatic struct {
	Index              entity.MemoryObjectIndex
	ObjectName         string
	LocalizedDescription entity.StringsIndex
	MemoryObjectType   uint16
	TargetDescriptorType DescriptorType
	TargetDescriptorIndex uint16
	StartAddress       uint64
	MaximumLength      uint64
}

type MemoryObjectDynamic struct {
	ObjectName string
	Length     uint64
}

// LocaleDescriptor names a language/region's string set.
type LocaleDescriptor struct {
	Index          entity.LocaleIndex
	LocaleID       string
	NumberOfStringsDescriptors uint16
	BaseStringsDescriptor entity.StringsIndex
}

// StringsDescriptor carries up to 7 localized strings (IEEE 1722.1
// AEM_STRINGS fixed layout).
type StringsDescriptor struct {
	Index   entity.StringsIndex
	Strings [7]string
}

// StreamPortDescriptor models STREAM_PORT_INPUT/OUTPUT, the audio-cluster
// aggregation point between an AudioUnit and its clusters/maps.
type StreamPortDescriptor struct {
	Static  StreamPortStatic
	Dynamic StreamPortDynamic

	Clusters []AudioClusterDescriptor
	Maps     []AudioMapDescriptor
}

type StreamPortStatic struct {
	Index               entity.StreamPortIndex
	ClockDomainIndex    entity.ClockDomainIndex
	PortFlags           uint16
	NumberOfControls    uint16
	BaseControl         entity.ControlIndex
	NumberOfClusters    uint16
	BaseCluster         entity.ClusterIndex
	NumberOfMaps        uint16
	BaseMap             entity.MapIndex
}

type StreamPortDynamic struct{}

// AudioClusterDescriptor models an AUDIO_CLUSTER: a contiguous group of
// channels of one format/signal type.
type AudioClusterDescriptor struct {
	Static  AudioClusterStatic
	Dynamic AudioClusterDynamic
}

type AudioClusterStatic struct {
	Index              entity.ClusterIndex
	ObjectName         string
	LocalizedDescription entity.StringsIndex
	SignalType         DescriptorType
	SignalIndex        uint16
	SignalOutput       uint16
	PathLatency        uint32
	BlockLatency       uint32
	ChannelCount       uint16
	Format             uint8
}

type AudioClusterDynamic struct {
	ObjectName string
}

// AudioMapDescriptor lists the channel-to-cluster mappings for a stream
// port.
type AudioMapDescriptor struct {
	Index   entity.MapIndex
	Entries []AudioMapping
}

// AudioMapping is a single stream-channel-to-cluster-channel binding.
type AudioMapping struct {
	StreamIndex      entity.StreamIndex
	StreamChannel    uint16
	ClusterOffset    entity.ClusterIndex
	ClusterChannel   uint16
}

// ControlDescriptor models a CONTROL descriptor: a named, typed value
// exposed for get/set (§9's tagged-variant control value).
type ControlDescriptor struct {
	Static  ControlStatic
	Dynamic ControlDynamic
}

type ControlStatic struct {
	Index              entity.ControlIndex
	ObjectName         string
	LocalizedDescription entity.StringsIndex
	BlockLatency       uint32
	ControlLatency     uint32
	ControlDomain      uint16
	ControlType        entity.ID
	ValueType          entity.ControlValueType
	SignalType         DescriptorType
	SignalIndex        uint16
	SignalOutput       uint16
}

type ControlDynamic struct {
	ObjectName string
	Value      entity.ControlValue
}

// ClockDomainDescriptor models a CLOCK_DOMAIN: a group of descriptors
// sharing a clock source selection.
type ClockDomainDescriptor struct {
	Static  ClockDomainStatic
	Dynamic ClockDomainDynamic
}

type ClockDomainStatic struct {
	Index              entity.ClockDomainIndex
	ObjectName         string
	LocalizedDescription entity.StringsIndex
	ClockSources       []entity.ClockSourceIndex
}

type ClockDomainDynamic struct {
	ObjectName         string
	ClockSourceIndex   entity.ClockSourceIndex
	MediaClockOffset   int32
}

// TimingDescriptor models a TIMING descriptor: a named group of
// PTP_INSTANCE indices that share a timing domain.
type TimingDescriptor struct {
	Static  TimingStatic
	Dynamic TimingDynamic
}

type TimingStatic struct {
	Index              entity.TimingIndex
	ObjectName         string
	LocalizedDescription entity.StringsIndex
	Algorithm          uint16
	PtpInstances       []entity.PtpInstanceIndex
}

type TimingDynamic struct {
	ObjectName string
}

// PtpInstanceDescriptor models a PTP_INSTANCE descriptor.
//
// The dynamic half's wire layout (grandmaster identity, port event
// counters) is left an Open Question upstream (no authoritative byte
// layout found in the source this core is grounded on); DynamicRaw
// preserves whatever bytes a READ_DESCRIPTOR response carries without
// interpreting them, rather than guessing a layout. A future revision
// replaces DynamicRaw with typed fields once that layout is confirmed.
type PtpInstanceDescriptor struct {
	Static  PtpInstanceStatic
	Dynamic PtpInstanceDynamicRaw

	PtpPorts []PtpPortDescriptor
}

type PtpInstanceStatic struct {
	Index              entity.PtpInstanceIndex
	ObjectName         string
	LocalizedDescription entity.StringsIndex
	ClockIdentity      entity.ClockID
	Flags              uint32
	NumberOfControls   uint16
	BaseControl        entity.ControlIndex
	NumberOfPtpPorts   uint16
	BasePtpPort        entity.PtpPortIndex
}

// PtpInstanceDynamicRaw holds the undecoded dynamic-half bytes; see the
// PtpInstanceDescriptor doc comment.
type PtpInstanceDynamicRaw struct {
	Raw []byte
}

// PtpPortDescriptor models a PTP_PORT descriptor. Its dynamic half has the
// same open byte-layout question as PtpInstanceDescriptor's.
type PtpPortDescriptor struct {
	Static  PtpPortStatic
	Dynamic PtpPortDynamicRaw
}

type PtpPortStatic struct {
	Index              entity.PtpPortIndex
	ObjectName         string
	LocalizedDescription entity.StringsIndex
	PortNumber         uint16
	PortType           uint16
	Flags              uint32
	AvbInterfaceIndex  entity.AvbInterfaceIndex
}

type PtpPortDynamicRaw struct {
	Raw []byte
}
