// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral readiness loop: registration bookkeeping, event dispatch
// and cross-goroutine task posting.

package reactor

import (
	"context"
	"sync"
	"syscall"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-rawfd/affinity"
	"github.com/momentics/hioload-rawfd/api"
	"github.com/momentics/hioload-rawfd/control"
	"github.com/momentics/hioload-rawfd/internal/logging"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned by Run when another Run is active.
var ErrAlreadyRunning = errors.New("reactor already running")

// Callback receives readiness for one registered descriptor.
type Callback func(ev api.Event)

// Reactor multiplexes readiness for registered descriptors onto the goroutine
// that calls Poll or Run.
type Reactor struct {
	logging.Log
	poller  api.Poller
	mode    api.TriggerMode
	events  []api.Event
	regs    map[int]*Registration
	metrics *control.Metrics
	cpu     int

	mu      sync.Mutex
	tasks   *queue.Queue // func(), guarded by mu
	closed  bool
	running bool
	polling bool
}

type options struct {
	mode      api.TriggerMode
	maxEvents int
	metrics   *control.Metrics
	poller    api.Poller
	cpu       int
}

// Option customizes reactor construction.
type Option func(*options)

// WithTriggerMode selects level- or edge-triggered readiness for all registrations.
func WithTriggerMode(m api.TriggerMode) Option {
	return func(o *options) { o.mode = m }
}

// WithMaxEvents bounds the events collected per poll cycle.
func WithMaxEvents(n int) Option {
	return func(o *options) { o.maxEvents = n }
}

// WithMetrics attaches collectors for dispatched events and tasks.
func WithMetrics(m *control.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithPoller replaces the platform poller, e.g. with fake.Poller in tests.
func WithPoller(p api.Poller) Option {
	return func(o *options) { o.poller = p }
}

// WithCPU pins the thread running Run to cpu. Negative disables pinning.
func WithCPU(cpu int) Option {
	return func(o *options) { o.cpu = cpu }
}

// FromConfig translates cfg into reactor options.
func FromConfig(cfg *control.Config) []Option {
	return []Option{WithTriggerMode(cfg.TriggerMode), WithMaxEvents(cfg.MaxEvents), WithCPU(cfg.CPU)}
}

// New creates a reactor over the platform readiness facility.
func New(opts ...Option) (*Reactor, error) {
	o := options{mode: api.LevelTriggered, maxEvents: control.DefaultConfig().MaxEvents, cpu: -1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxEvents <= 0 {
		return nil, errors.Wrapf(api.ErrInvalidArgument, "max events %d", o.maxEvents)
	}
	if o.poller == nil {
		p, err := newPoller()
		if err != nil {
			return nil, err
		}
		o.poller = p
	}
	r := &Reactor{
		Log:     logging.NewLog("reactor"),
		poller:  o.poller,
		mode:    o.mode,
		events:  make([]api.Event, o.maxEvents),
		regs:    make(map[int]*Registration),
		metrics: o.metrics,
		cpu:     o.cpu,
		tasks:   queue.New(),
	}
	r.Debug("reactor created", zap.Stringer("mode", o.mode), zap.Int("maxEvents", o.maxEvents))
	return r, nil
}

// TriggerMode reports the readiness mode registrations are armed with.
func (r *Reactor) TriggerMode() api.TriggerMode { return r.mode }

// Len returns the number of live registrations.
func (r *Reactor) Len() int { return len(r.regs) }

// Register records fd with the reactor without arming it. cb runs on the
// reactor goroutine for each readiness event while the registration is armed.
func (r *Reactor) Register(fd int, cb Callback) (*Registration, error) {
	if fd < 0 {
		return nil, errors.Wrapf(api.ErrInvalidArgument, "descriptor %d", fd)
	}
	if cb == nil {
		return nil, errors.Wrap(api.ErrInvalidArgument, "nil readiness callback")
	}
	if r.isClosed() {
		return nil, api.ErrReactorClosed
	}
	if _, ok := r.regs[fd]; ok {
		return nil, errors.Wrapf(api.ErrAlreadyExists, "descriptor %d", fd)
	}
	g := &Registration{r: r, fd: fd, cb: cb}
	r.regs[fd] = g
	return g, nil
}

// Poll runs pending tasks, waits up to timeoutMs for readiness (negative blocks)
// and dispatches the collected events. It returns the number of callbacks invoked.
func (r *Reactor) Poll(timeoutMs int) (int, error) {
	if err := r.enterPoll(); err != nil {
		return 0, err
	}
	defer r.exitPoll()
	if r.runTasks() > 0 || r.pendingTasks() {
		timeoutMs = 0
	}
	n, err := r.poller.Wait(r.events, timeoutMs)
	if err != nil {
		if errors.Is(err, syscall.EINTR) {
			return 0, nil
		}
		return 0, errors.WithMessage(err, "reactor wait")
	}
	dispatched := 0
	for i := 0; i < n; i++ {
		ev := r.events[i]
		// a callback earlier in this batch may have disarmed or released fd
		g, ok := r.regs[ev.Fd]
		if !ok || !g.armed {
			continue
		}
		r.dispatch(g, ev)
		dispatched++
	}
	r.metrics.Events(dispatched)
	r.runTasks()
	return dispatched, nil
}

// Run polls until ctx is done or the reactor is closed.
func (r *Reactor) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return api.ErrReactorClosed
	}
	if r.running {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	r.running = true
	r.mu.Unlock()

	if r.cpu >= 0 {
		// the calling goroutine stays locked to the pinned thread
		if err := affinity.Pin(r.cpu); err != nil {
			r.mu.Lock()
			r.running = false
			r.mu.Unlock()
			return errors.WithMessage(err, "pin reactor thread")
		}
		r.Debug("reactor thread pinned", zap.Int("cpu", r.cpu))
	}

	stop := context.AfterFunc(ctx, r.wake)
	defer stop()
	defer r.exitRun()

	r.Debug("reactor loop started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.Poll(-1); err != nil {
			if errors.Is(err, api.ErrReactorClosed) {
				return nil
			}
			r.Error("reactor loop failed", zap.Error(err))
			return err
		}
	}
}

func (r *Reactor) exitRun() {
	r.mu.Lock()
	r.running = false
	closed := r.closed
	r.mu.Unlock()
	r.Debug("reactor loop stopped")
	if closed {
		r.closePoller()
		return
	}
	// tasks accepted before the loop stopped would otherwise wait for the next Run
	r.runTasks()
}

func (r *Reactor) enterPoll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return api.ErrReactorClosed
	}
	r.polling = true
	return nil
}

// exitPoll releases the poller when Close arrived during a Poll that is not
// driven by Run; Run releases it on its own exit.
func (r *Reactor) exitPoll() {
	r.mu.Lock()
	r.polling = false
	release := r.closed && !r.running
	r.mu.Unlock()
	if release {
		r.closePoller()
	}
}

// Post queues fn to run on the reactor goroutine and wakes the poller.
// Safe for concurrent use.
func (r *Reactor) Post(fn func()) error {
	if fn == nil {
		return errors.Wrap(api.ErrInvalidArgument, "nil task")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return api.ErrReactorClosed
	}
	r.tasks.Add(fn)
	if err := r.poller.Wake(); err != nil && !api.IsWouldBlock(err) {
		return errors.WithMessage(err, "reactor wake")
	}
	return nil
}

// Close shuts the reactor down. Registrations still present are detached:
// Arm and Disarm on them report api.ErrReactorClosed and Release only forgets
// them. Their descriptors stay owned by their handles. Close may be called from
// any goroutine; while Run or Poll is active the poller is released by the
// polling goroutine on its way out.
func (r *Reactor) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return api.ErrReactorClosed
	}
	r.closed = true
	if r.running || r.polling {
		err := r.poller.Wake()
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()
	return r.closePoller()
}

func (r *Reactor) closePoller() error {
	// Post is refused from here on; run what was accepted so waiters are released.
	r.runTasks()
	if len(r.regs) > 0 {
		r.Warn("reactor closed with live registrations", zap.Int("count", len(r.regs)))
	}
	for _, g := range r.regs {
		g.armed = false
	}
	r.regs = make(map[int]*Registration)
	if err := r.poller.Close(); err != nil {
		r.Error("poller close failed", zap.Error(err))
		return err
	}
	return nil
}

func (r *Reactor) wake() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		_ = r.poller.Wake()
	}
}

func (r *Reactor) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Reactor) pendingTasks() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tasks.Length() > 0
}

// runTasks drains tasks queued before the call returns.
func (r *Reactor) runTasks() int {
	r.mu.Lock()
	n := r.tasks.Length()
	r.mu.Unlock()
	for i := 0; i < n; i++ {
		r.mu.Lock()
		fn := r.tasks.Remove().(func())
		r.mu.Unlock()
		r.safeCall("task", -1, fn)
		r.metrics.Task()
	}
	return n
}

func (r *Reactor) dispatch(g *Registration, ev api.Event) {
	r.safeCall("callback", g.fd, func() { g.cb(ev) })
}

// safeCall keeps the loop alive when a callback or task panics.
func (r *Reactor) safeCall(kind string, fd int, fn func()) {
	defer func() {
		if v := recover(); v != nil {
			r.Error("recovered panic in reactor "+kind, zap.Int("fd", fd), zap.Any("panic", v), zap.Stack("stack"))
		}
	}()
	fn()
}

// Registration is the reactor record for one descriptor. It is armed while the
// owning handle watches for readability.
type Registration struct {
	r        *Reactor
	fd       int
	cb       Callback
	armed    bool
	released bool
}

// Fd returns the registered descriptor.
func (g *Registration) Fd() int { return g.fd }

// Armed reports whether read readiness is currently requested.
func (g *Registration) Armed() bool { return g.armed }

// Arm requests read readiness. Arming an armed registration is a no-op.
func (g *Registration) Arm() error {
	if g.released {
		return api.ErrNotFound
	}
	if g.r.isClosed() {
		return api.ErrReactorClosed
	}
	if g.armed {
		return nil
	}
	if err := g.r.poller.Add(g.fd, g.r.mode); err != nil {
		return err
	}
	g.armed = true
	return nil
}

// Disarm withdraws read readiness. Disarming an unarmed registration is a no-op.
// The registration is marked unarmed even when the poller rejects the removal,
// so no further callbacks are delivered for it.
func (g *Registration) Disarm() error {
	if g.released {
		return api.ErrNotFound
	}
	if g.r.isClosed() {
		g.armed = false
		return api.ErrReactorClosed
	}
	if !g.armed {
		return nil
	}
	g.armed = false
	return g.r.poller.Delete(g.fd)
}

// Release disarms and forgets the registration. It always releases the
// record; the returned error reports a failed disarm, or api.ErrReactorClosed
// when the reactor is gone and only the record was dropped.
func (g *Registration) Release() error {
	if g.released {
		return api.ErrNotFound
	}
	err := g.Disarm()
	g.released = true
	if cur, ok := g.r.regs[g.fd]; ok && cur == g {
		delete(g.r.regs, g.fd)
	}
	return err
}
