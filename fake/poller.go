// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Poller stands in for epoll/kqueue so tests can inject readiness, including
// spurious wakeups for descriptors with nothing to read.

package fake

import (
	"sync"

	"github.com/momentics/hioload-rawfd/api"
	"github.com/pkg/errors"
)

// Poller is a fake api.Poller. Injected events are returned by the next Wait
// whether or not the descriptor is armed, the way a stale kernel event would be.
type Poller struct {
	mu      sync.Mutex
	armed   map[int]api.TriggerMode
	pending []api.Event
	wakes   int
	closed  bool

	// AddErr, when set, is returned by Add.
	AddErr error
	// DeleteErr, when set, is returned by Delete after removing the fd.
	DeleteErr error
}

// NewPoller creates an empty fake poller.
func NewPoller() *Poller {
	return &Poller{armed: make(map[int]api.TriggerMode)}
}

// Inject queues a readiness event for fd.
func (p *Poller) Inject(fd int, t api.EventType) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, api.Event{Fd: fd, Type: t})
}

// Armed reports whether fd is in the interest list and with which mode.
func (p *Poller) Armed(fd int) (api.TriggerMode, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.armed[fd]
	return m, ok
}

// Wakes returns how many times Wake was called.
func (p *Poller) Wakes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wakes
}

// Closed reports whether Close was called.
func (p *Poller) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Add puts fd in the interest list, failing if it is already there.
func (p *Poller) Add(fd int, mode api.TriggerMode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.AddErr != nil {
		return p.AddErr
	}
	if _, ok := p.armed[fd]; ok {
		return errors.Wrapf(api.ErrAlreadyExists, "fake add fd=%d", fd)
	}
	p.armed[fd] = mode
	return nil
}

// Delete removes fd from the interest list and then reports DeleteErr.
func (p *Poller) Delete(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.armed[fd]; !ok {
		return errors.Wrapf(api.ErrNotFound, "fake delete fd=%d", fd)
	}
	delete(p.armed, fd)
	return p.DeleteErr
}

// Wait never blocks; it hands out injected events up to len(events).
func (p *Poller) Wait(events []api.Event, _ int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, api.ErrReactorClosed
	}
	n := copy(events, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// Wake counts the call; Wait never blocks, so there is nothing to interrupt.
func (p *Poller) Wake() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wakes++
	return nil
}

// Close marks the poller closed; later Waits fail with api.ErrReactorClosed.
func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

var _ api.Poller = (*Poller)(nil)
