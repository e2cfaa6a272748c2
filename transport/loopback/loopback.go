// SPDX-License-Identifier: AGPL-3.0-or-later

// Package loopback implements an in-process fanout transport.Endpoint,
// grounded on internal/pubsub's channel-based publish/subscribe pattern:
// a Bus is the shared medium, and every Endpoint created against it both
// publishes its sent frames onto the bus and receives every other
// endpoint's frames in the order they were sent.
package loopback

import (
	"sync"

	"github.com/avdeccgo/avdecc/entity"
	"github.com/avdeccgo/avdecc/transport"
	"github.com/avdeccgo/avdecc/wire"
)

// Bus is the shared medium a set of loopback Endpoints attach to. A single
// goroutine drains the queue so frame delivery order matches send order
// across every endpoint sharing the bus.
type Bus struct {
	mu        sync.Mutex
	endpoints map[*Endpoint]struct{}
	queue     chan queuedFrame
	closeOnce sync.Once
	done      chan struct{}
}

type queuedFrame struct {
	from  *Endpoint
	frame wire.Eth2Frame
}

const queueDepth = 256

// NewBus creates a Bus and starts its delivery goroutine.
func NewBus() *Bus {
	b := &Bus{
		endpoints: make(map[*Endpoint]struct{}),
		queue:     make(chan queuedFrame, queueDepth),
		done:      make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Bus) run() {
	for {
		select {
		case qf, ok := <-b.queue:
			if !ok {
				return
			}
			b.deliver(qf)
		case <-b.done:
			return
		}
	}
}

func (b *Bus) deliver(qf queuedFrame) {
	b.mu.Lock()
	targets := make([]*Endpoint, 0, len(b.endpoints))
	for ep := range b.endpoints {
		if ep == qf.from {
			continue
		}
		targets = append(targets, ep)
	}
	b.mu.Unlock()

	for _, ep := range targets {
		ep.deliver(qf.frame)
	}
}

// NewEndpoint creates an Endpoint attached to b.
func (b *Bus) NewEndpoint(mac entity.MacAddress) *Endpoint {
	ep := &Endpoint{bus: b, mac: mac, available: true}
	b.mu.Lock()
	b.endpoints[ep] = struct{}{}
	b.mu.Unlock()
	return ep
}

func (b *Bus) remove(ep *Endpoint) {
	b.mu.Lock()
	delete(b.endpoints, ep)
	empty := len(b.endpoints) == 0
	b.mu.Unlock()
	if empty {
		b.closeOnce.Do(func() { close(b.done) })
	}
}

// Endpoint is a transport.Endpoint backed by a Bus.
type Endpoint struct {
	bus *Bus
	mac entity.MacAddress

	mu              sync.Mutex
	onFrame         func(wire.Eth2Frame)
	onTransportError func(error)
	available       bool
}

var _ transport.Endpoint = (*Endpoint)(nil)

// Send queues frame for delivery to every other endpoint on the bus.
func (e *Endpoint) Send(frame wire.Eth2Frame) error {
	e.mu.Lock()
	available := e.available
	e.mu.Unlock()
	if !available {
		return transport.ErrTransportClosed
	}
	select {
	case e.bus.queue <- queuedFrame{from: e, frame: frame}:
		return nil
	default:
		return transport.ErrSendFailed
	}
}

func (e *Endpoint) deliver(frame wire.Eth2Frame) {
	e.mu.Lock()
	cb := e.onFrame
	available := e.available
	e.mu.Unlock()
	if available && cb != nil {
		cb(frame)
	}
}

// SetOnFrame implements transport.Endpoint.
func (e *Endpoint) SetOnFrame(fn func(wire.Eth2Frame)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onFrame = fn
}

// SetOnTransportError implements transport.Endpoint.
func (e *Endpoint) SetOnTransportError(fn func(error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTransportError = fn
}

// LocalMac implements transport.Endpoint.
func (e *Endpoint) LocalMac() entity.MacAddress { return e.mac }

// IsAvailable implements transport.Endpoint.
func (e *Endpoint) IsAvailable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.available
}

// Close implements transport.Endpoint. It is idempotent and removes e from
// its bus, stopping the bus's delivery goroutine once no endpoint remains
// attached. It does not invoke the transport-error callback of e or of any
// other endpoint on the bus.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	if !e.available {
		e.mu.Unlock()
		return nil
	}
	e.available = false
	e.mu.Unlock()
	e.bus.remove(e)
	return nil
}
