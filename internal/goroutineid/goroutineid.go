// SPDX-License-Identifier: AGPL-3.0-or-later

// Package goroutineid extracts the calling goroutine's runtime id. Go has
// no supported API for this; every user of this package exists because it
// needs to implement a contract the standard library deliberately omits
// (a recursive mutex, a single-goroutine executor's reentrant submit) and
// that contract cannot be built correctly without it. Treat this as a
// narrowly-scoped, deliberate exception, not a general-purpose tool.
package goroutineid

import (
	"bytes"
	"runtime"
	"strconv"
)

// Current returns the calling goroutine's id, parsed out of its stack
// trace header ("goroutine 123 [running]:"). It is comparatively slow;
// callers should not call it on a hot path more than once per lock
// acquisition attempt.
func Current() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]

	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}
	buf = buf[len(prefix):]
	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(buf[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
