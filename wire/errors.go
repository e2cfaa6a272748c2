// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wire implements the byte-level codec for AVDECC PDUs (§3.2,
// §4.1): Ethernet/AVTP framing and the ADP, AECP and ACMP protocol data
// units layered on top of it.
package wire

import "errors"

var (
	// ErrShortFrame indicates a buffer too short to contain the PDU it
	// claims to be.
	ErrShortFrame = errors.New("wire: frame too short")
	// ErrBadFrame indicates a structurally invalid frame (bad AVTP
	// subtype, control_data_length mismatch, or unknown vendor-unique
	// protocol identifier).
	ErrBadFrame = errors.New("wire: malformed frame")
	// ErrOverMaxLength indicates a frame exceeding the maximum AVDECC PDU
	// size.
	ErrOverMaxLength = errors.New("wire: frame exceeds maximum length")
)
