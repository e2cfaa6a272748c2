// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config holds the host-visible options that parameterize a
// Manager: the local network interface, executor naming, AECP inflight
// limits, discovery cadence, and EntityID generation policy (§6).
package config

import "time"

// Config is the set of options a host passes when constructing a Manager.
// None of it is loaded from the environment or a file by this package —
// that is a concern of the embedding application, consistent with this
// being a library rather than a standalone service.
type Config struct {
	// InterfaceName is the network interface the transport endpoint binds
	// to. The core never enumerates interfaces itself (out of scope); the
	// host resolves a name to an Endpoint and this field is carried only
	// for logging/identification.
	InterfaceName string

	// ExecutorName identifies the named executor (§5) local entities are
	// dispatched on. Must be unique within a process; Manager returns
	// ErrDuplicateExecutorName otherwise.
	ExecutorName string

	// MaxInflightAecpMessages caps the number of AECP commands in flight
	// at once per target entity; further commands queue (§4.6).
	MaxInflightAecpMessages int

	// AutomaticDiscoveryDelay is the cadence of the periodic
	// ENTITY_DISCOVER broadcast. Zero disables automatic discovery.
	AutomaticDiscoveryDelay time.Duration

	// ProgID is the 16-bit program identifier folded into generated
	// EntityIDs.
	ProgID uint16

	// EntityIDRecommended selects the EntityID derivation algorithm: true
	// for the "recommended" MAC||progId layout, false for the legacy
	// layout (§8).
	EntityIDRecommended bool

	// VendorUniqueAecpTimeouts overrides the default 250ms
	// VENDOR_UNIQUE_COMMAND timeout (§4.6) for specific VU
	// ProtocolIdentifiers (e.g. Milan's). A protocol identifier absent from
	// this map uses the built-in default.
	VendorUniqueAecpTimeouts map[[6]byte]time.Duration
}

// DefaultMaxInflightAecpMessages is used when Config.MaxInflightAecpMessages
// is left at its zero value.
const DefaultMaxInflightAecpMessages = 1

// DefaultAutomaticDiscoveryDelay is used when
// Config.AutomaticDiscoveryDelay is left at its zero value.
const DefaultAutomaticDiscoveryDelay = 10 * time.Second

// WithDefaults returns a copy of c with zero-valued fields replaced by
// their documented defaults.
func (c Config) WithDefaults() Config {
	if c.MaxInflightAecpMessages == 0 {
		c.MaxInflightAecpMessages = DefaultMaxInflightAecpMessages
	}
	if c.AutomaticDiscoveryDelay == 0 {
		c.AutomaticDiscoveryDelay = DefaultAutomaticDiscoveryDelay
	}
	return c
}
