// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch implements the inbound packet dispatcher (§4.3):
// Ethernet parsing, destination-MAC filtering, and AVTP subtype-based
// routing to the ADP, AECP or ACMP decoders. A decode failure is always
// logged and dropped, never fatal to the process (§7).
package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/avdeccgo/avdecc/entity"
	"github.com/avdeccgo/avdecc/wire"
)

// Dispatcher parses inbound Ethernet frames and routes decoded AVDECC
// PDUs to registered handlers.
type Dispatcher struct {
	// LocalMac, when non-zero, is accepted as a destination in addition to
	// the AVDECC and Identify multicast addresses; frames unicast to any
	// other address are dropped.
	LocalMac entity.MacAddress
	Logger   *slog.Logger

	OnAdp  func(wire.Adpdu, entity.MacAddress)
	OnAecp func(wire.Aecpdu, entity.MacAddress)
	OnAcmp func(wire.Acmpdu, entity.MacAddress)
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// acceptsDestination reports whether frame's destination MAC is traffic
// this dispatcher should process: AVDECC multicast, Identify multicast, or
// addressed directly to LocalMac.
func (d *Dispatcher) acceptsDestination(dest entity.MacAddress) bool {
	if dest == entity.AvdeccMulticast || dest == entity.IdentifyMulticast {
		return true
	}
	return !d.LocalMac.IsZero() && dest == d.LocalMac
}

// Dispatch parses frame and invokes the matching handler. A short frame or
// unknown subtype is logged at Debug, any other parse failure at Warn, and
// the frame is dropped; Dispatch never returns an error and never panics.
func (d *Dispatcher) Dispatch(frame wire.Eth2Frame) {
	if !frame.IsAvdecc() {
		return
	}
	if !d.acceptsDestination(frame.Destination) {
		return
	}
	if len(frame.Payload) == 0 {
		return
	}

	switch frame.Payload[0] {
	case wire.SubtypeADP:
		var pdu wire.Adpdu
		if err := pdu.Deserialize(frame.Payload); err != nil {
			d.logDecodeFailure("ADP", err)
			return
		}
		if d.OnAdp != nil {
			d.OnAdp(pdu, frame.Source)
		}
	case wire.SubtypeAECP:
		var pdu wire.Aecpdu
		if err := pdu.Deserialize(frame.Payload); err != nil {
			d.logDecodeFailure("AECP", err)
			return
		}
		if d.OnAecp != nil {
			d.OnAecp(pdu, frame.Source)
		}
	case wire.SubtypeACMP:
		var pdu wire.Acmpdu
		if err := pdu.Deserialize(frame.Payload); err != nil {
			d.logDecodeFailure("ACMP", err)
			return
		}
		if d.OnAcmp != nil {
			d.OnAcmp(pdu, frame.Source)
		}
	default:
		d.logger().Debug("dispatch: unknown AVTP subtype dropped", "subtype", frame.Payload[0])
	}
}

func (d *Dispatcher) logDecodeFailure(kind string, err error) {
	level := slog.LevelDebug
	if !errors.Is(err, wire.ErrShortFrame) {
		level = slog.LevelWarn
	}
	d.logger().Log(context.Background(), level, "dispatch: decode failure, dropping frame", "pdu", kind, "error", err)
}
