// SPDX-License-Identifier: AGPL-3.0-or-later

// Package entitymodel implements the AVDECC Entity Model (AEM) tree (§3.3):
// an Entity descriptor owning one or more Configuration descriptors, each
// owning the static (immutable, discovered once) and dynamic (mutable,
// re-read or pushed via unsolicited notifications) halves of every other
// descriptor type.
package entitymodel

import "github.com/avdeccgo/avdecc/entity"

// EntityDescriptor is the root of an AEM tree: one per discovered (or
// locally hosted) entity.
type EntityDescriptor struct {
	Static  EntityStatic
	Dynamic EntityDynamic

	Configurations []ConfigurationDescriptor
}

// EntityStatic is the immutable half of the Entity descriptor: fields set
// at manufacture time and never expected to change across power cycles.
type EntityStatic struct {
	EntityID             entity.EntityID
	EntityModelID        entity.EntityModelID
	EntityCapabilities   entity.EntityCapabilities
	TalkerStreamSources  uint16
	TalkerCapabilities   entity.TalkerCapabilities
	ListenerStreamSinks  uint16
	ListenerCapabilities entity.ListenerCapabilities
	ControllerCapabilities entity.ControllerCapabilities
	IdentifyControlIndex entity.ControlIndex
	IdentifyControlIndexValid bool
	InterfaceIndex       entity.AvbInterfaceIndex
	AssociationID        entity.ID
	AssociationIDValid   bool
	EntityName           string
	VendorNameIndex      entity.StringsIndex
	ModelNameIndex       entity.StringsIndex
}

// EntityDynamic is the mutable half of the Entity descriptor, re-read by
// READ_DESCRIPTOR or updated by AEM command side effects (SET_ENTITY_NAME,
// etc.).
type EntityDynamic struct {
	EntityName        string
	GroupName         string
	FirmwareVersion   string
	SerialNumber      string
	CurrentConfiguration entity.ConfigurationIndex
}

// ConfigurationDescriptor groups every descriptor instance active when
// this configuration is selected.
type ConfigurationDescriptor struct {
	Static  ConfigurationStatic
	Dynamic ConfigurationDynamic

	AudioUnits    []AudioUnitDescriptor
	StreamInputs  []StreamDescriptor
	StreamOutputs []StreamDescriptor
	Jacks         []JackDescriptor
	AvbInterfaces []AvbInterfaceDescriptor
	ClockSources  []ClockSourceDescriptor
	MemoryObjects []MemoryObjectDescriptor
	Locales       []LocaleDescriptor
	Strings       []StringsDescriptor
	StreamPorts   []StreamPortDescriptor
	Controls      []ControlDescriptor
	ClockDomains  []ClockDomainDescriptor
	Timings       []TimingDescriptor
	PtpInstances  []PtpInstanceDescriptor
}

// ConfigurationStatic is the immutable half of a Configuration descriptor.
type ConfigurationStatic struct {
	Index          entity.ConfigurationIndex
	LocalizedDescription entity.StringsIndex
	DescriptorCounts map[DescriptorType]uint16
}

// ConfigurationDynamic is the mutable half of a Configuration descriptor.
type ConfigurationDynamic struct {
	ObjectName string
}

// DescriptorType enumerates the AEM descriptor kinds (§3.3), replacing the
// original's class hierarchy with a plain enum plus string table (§9).
type DescriptorType uint16

const (
	DescriptorEntity DescriptorType = iota
	DescriptorConfiguration
	DescriptorAudioUnit
	DescriptorStreamInput
	DescriptorStreamOutput
	DescriptorJackInput
	DescriptorJackOutput
	DescriptorAvbInterface
	DescriptorClockSource
	DescriptorMemoryObject
	DescriptorLocale
	DescriptorStrings
	DescriptorStreamPortInput
	DescriptorStreamPortOutput
	DescriptorAudioCluster
	DescriptorAudioMap
	DescriptorControl
	DescriptorClockDomain
	DescriptorTiming
	DescriptorPtpInstance
	DescriptorPtpPort
)

var descriptorTypeNames = map[DescriptorType]string{
	DescriptorEntity:          "ENTITY",
	DescriptorConfiguration:   "CONFIGURATION",
	DescriptorAudioUnit:       "AUDIO_UNIT",
	DescriptorStreamInput:     "STREAM_INPUT",
	DescriptorStreamOutput:    "STREAM_OUTPUT",
	DescriptorJackInput:       "JACK_INPUT",
	DescriptorJackOutput:      "JACK_OUTPUT",
	DescriptorAvbInterface:    "AVB_INTERFACE",
	DescriptorClockSource:     "CLOCK_SOURCE",
	DescriptorMemoryObject:    "MEMORY_OBJECT",
	DescriptorLocale:          "LOCALE",
	DescriptorStrings:         "STRINGS",
	DescriptorStreamPortInput: "STREAM_PORT_INPUT",
	DescriptorStreamPortOutput: "STREAM_PORT_OUTPUT",
	DescriptorAudioCluster:    "AUDIO_CLUSTER",
	DescriptorAudioMap:        "AUDIO_MAP",
	DescriptorControl:         "CONTROL",
	DescriptorClockDomain:     "CLOCK_DOMAIN",
	DescriptorTiming:          "TIMING",
	DescriptorPtpInstance:     "PTP_INSTANCE",
	DescriptorPtpPort:         "PTP_PORT",
}

func (t DescriptorType) String() string {
	if n, ok := descriptorTypeNames[t]; ok {
		return n
	}
	return "UNKNOWN"
}
