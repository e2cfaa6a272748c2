// SPDX-License-Identifier: AGPL-3.0-or-later

// Package rlock implements a recursive (reentrant) mutex: the same
// goroutine can call Lock again while it already holds the lock without
// deadlocking, and must call Unlock the same number of times to release
// it. Go's sync.Mutex is deliberately non-reentrant; Manager's callback
// model (§4.7, §9) requires reentrancy because a command completion
// handler invoked while the Manager lock is held is allowed to call back
// into Manager methods that also take the lock.
package rlock

import (
	"runtime"
	"sync"
	"time"

	"github.com/avdeccgo/avdecc/internal/goroutineid"
)

// Mutex is a recursive mutual-exclusion lock. The zero value is unlocked
// and ready to use.
type Mutex struct {
	mu    sync.Mutex
	owner uint64
	depth int
}

// Lock acquires m. If the calling goroutine already holds m, Lock
// increments the reentrancy depth and returns immediately instead of
// blocking.
func (m *Mutex) Lock() {
	id := goroutineid.Current()

	m.mu.Lock()
	if m.depth > 0 && m.owner == id {
		m.depth++
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.acquire(id)
}

const spinIterationsBeforeSleep = 64

func (m *Mutex) acquire(id uint64) {
	spins := 0
	for {
		m.mu.Lock()
		if m.depth == 0 {
			m.owner = id
			m.depth = 1
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()
		// Another goroutine holds the lock; yield and retry. A condition
		// variable would avoid the spin, but the window is bounded by
		// the Manager tick cadence (§5), not by caller-controlled work.
		spins++
		if spins < spinIterationsBeforeSleep {
			runtime.Gosched()
		} else {
			time.Sleep(time.Millisecond)
		}
	}
}

// Unlock releases one level of the calling goroutine's recursive hold on
// m. It panics if called by a goroutine that does not currently hold m, or
// if called by a goroutine that never called Lock.
func (m *Mutex) Unlock() {
	id := goroutineid.Current()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.depth == 0 || m.owner != id {
		panic("rlock: Unlock of unlocked or not-owned Mutex")
	}
	m.depth--
}

// IsSelfLocked reports whether the calling goroutine currently holds m
// (§4.7/§9's BasicLockable + isSelfLocked() contract).
func (m *Mutex) IsSelfLocked() bool {
	id := goroutineid.Current()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.depth > 0 && m.owner == id
}
