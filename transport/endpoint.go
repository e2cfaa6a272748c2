// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport defines the Endpoint plug-in contract a host
// implements over its chosen Layer-2 binding (§4.2, §6). The core never
// opens a raw socket or enumerates network interfaces itself — both are
// explicitly out of scope — it only consumes whatever Endpoint a host
// constructs and hands it.
package transport

import (
	"errors"

	"github.com/avdeccgo/avdecc/entity"
	"github.com/avdeccgo/avdecc/wire"
)

var (
	// ErrTransportClosed indicates an operation on an Endpoint that has
	// already been closed.
	ErrTransportClosed = errors.New("transport: endpoint closed")
	// ErrSendFailed is wrapped by an Endpoint's Send when the underlying
	// medium rejects a frame.
	ErrSendFailed = errors.New("transport: send failed")
)

// Endpoint is a Layer-2 send/receive binding a host plugs into a Manager.
// Implementations are not required to be safe for concurrent Send calls
// from multiple goroutines unless they document otherwise; the Manager
// serializes sends through its own lock.
type Endpoint interface {
	// Send transmits frame. It must not block indefinitely; a blocked
	// send eventually returns ErrSendFailed rather than hanging the
	// caller's tick loop.
	Send(frame wire.Eth2Frame) error

	// SetOnFrame registers the callback invoked for every inbound frame
	// the endpoint receives. Replacing a non-nil callback is valid; the
	// previous one stops being invoked once SetOnFrame returns.
	SetOnFrame(func(wire.Eth2Frame))

	// SetOnTransportError registers the callback invoked when the
	// endpoint's receive loop encounters an unrecoverable error (the
	// interface went down, the underlying socket closed unexpectedly).
	SetOnTransportError(func(error))

	// LocalMac returns the endpoint's own hardware address, used as the
	// source of outbound frames and as the unicast destination the
	// dispatcher accepts.
	LocalMac() entity.MacAddress

	// IsAvailable reports whether the endpoint can currently send and
	// receive (link up, not yet closed).
	IsAvailable() bool

	// Close releases the endpoint's resources. Close is idempotent.
	Close() error
}
