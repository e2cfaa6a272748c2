// SPDX-License-Identifier: AGPL-3.0-or-later

// Package bitreverse reverses the bit order of fixed-width unsigned
// integers. It lives under wire as a private utility; no codec in this
// module calls it.
package bitreverse

import "math/bits"

// Unsigned is the set of integer widths Reverse supports.
type Unsigned interface {
	uint8 | uint16 | uint32 | uint64
}

// Reverse returns x with its bits reversed within its own width: bit i of x
// becomes bit (width-1-i) of the result.
func Reverse[T Unsigned](x T) T {
	switch v := any(x).(type) {
	case uint8:
		return T(bits.Reverse8(v))
	case uint16:
		return T(bits.Reverse16(v))
	case uint32:
		return T(bits.Reverse32(v))
	case uint64:
		return T(bits.Reverse64(v))
	default:
		panic("bitreverse: unsupported type")
	}
}
