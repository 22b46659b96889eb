// File: rawfd/handle.go
// Author: momentics <momentics@gmail.com>
//
// Handle owns one raw descriptor and its reactor registration.

package rawfd

import (
	"syscall"

	"github.com/momentics/hioload-rawfd/api"
	"github.com/momentics/hioload-rawfd/control"
	"github.com/momentics/hioload-rawfd/internal/logging"
	"github.com/momentics/hioload-rawfd/reactor"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Reactor is the part of reactor.Reactor a Handle needs.
type Reactor interface {
	Register(fd int, cb reactor.Callback) (*reactor.Registration, error)
	TriggerMode() api.TriggerMode
}

// Handle wraps one descriptor. See the package documentation for the
// threading contract.
type Handle struct {
	log     logging.Log
	fd      int
	sink    Sink
	reg     *reactor.Registration
	state   State
	edge    bool
	buf     []byte
	metrics *control.Metrics
}

// New takes ownership of fd, which must be open and non-blocking, and registers
// it with r without watching it yet.
func New(r Reactor, fd int, sink Sink, opts ...Option) (*Handle, error) {
	if r == nil {
		return nil, errors.Wrap(api.ErrInvalidArgument, "nil reactor")
	}
	if fd < 0 {
		return nil, errors.Wrapf(api.ErrInvalidArgument, "descriptor %d", fd)
	}
	if sink == nil {
		return nil, errors.Wrap(api.ErrInvalidArgument, "nil sink")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.readBufferSize <= 0 {
		return nil, errors.Wrapf(api.ErrInvalidArgument, "read buffer size %d", o.readBufferSize)
	}
	if o.log == nil {
		o.log = logging.NewLog("rawfd")
	}

	h := &Handle{
		log:     o.log,
		fd:      fd,
		sink:    sink,
		state:   Created,
		edge:    r.TriggerMode() == api.EdgeTriggered,
		buf:     make([]byte, o.readBufferSize),
		metrics: o.metrics,
	}
	reg, err := r.Register(fd, h.onReady)
	if err != nil {
		return nil, err
	}
	h.reg = reg
	h.metrics.HandleOpened()
	h.log.Debug("handle created", zap.Int("fd", fd), zap.Bool("edge", h.edge))
	return h, nil
}

// Fd returns the owned descriptor. It must not be used after Close.
func (h *Handle) Fd() int { return h.fd }

// State returns the current lifecycle state.
func (h *Handle) State() State { return h.state }

// Start begins watching for readability. It is a no-op while watching.
func (h *Handle) Start() error {
	switch h.state {
	case Closed:
		return api.ErrUseAfterClose
	case Watching:
		return nil
	}
	if err := h.reg.Arm(); err != nil {
		if errors.Is(err, api.ErrReactorClosed) {
			return errors.WithMessagef(err, "start fd=%d", h.fd)
		}
		return api.NewIoError("arm", h.fd, err)
	}
	h.state = Watching
	h.log.Debug("watching", zap.Int("fd", h.fd))
	return nil
}

// Stop stops watching without closing the descriptor. It is a no-op unless
// watching. No Sink call happens after Stop until the next Start.
func (h *Handle) Stop() error {
	switch h.state {
	case Closed:
		return api.ErrUseAfterClose
	case Watching:
	default:
		return nil
	}
	h.state = Stopped
	// a closed reactor delivers nothing, so there is nothing left to disarm
	if err := h.reg.Disarm(); err != nil && !errors.Is(err, api.ErrReactorClosed) {
		return api.NewIoError("disarm", h.fd, err)
	}
	h.log.Debug("stopped", zap.Int("fd", h.fd))
	return nil
}

// Write makes one non-blocking write attempt and returns how many bytes the
// descriptor accepted. A full descriptor yields (0, nil). The remainder of a
// partial write is the caller's to resubmit.
func (h *Handle) Write(p []byte) (int, error) {
	if h.state == Closed {
		return 0, api.ErrUseAfterClose
	}
	if len(p) == 0 {
		return 0, errors.Wrap(api.ErrInvalidArgument, "empty write")
	}
	n, err := ignoringEINTR(func() (int, error) { return writeFunc(h.fd, p) })
	if err != nil {
		if api.IsWouldBlock(err) {
			h.metrics.Write(0)
			return 0, nil
		}
		h.metrics.WriteError()
		return 0, api.NewIoError("write", h.fd, err)
	}
	h.metrics.Write(n)
	return n, nil
}

// Close stops watching, releases the registration and closes the descriptor.
// The handle is closed even when close(2) fails; that failure is returned.
// Every later call, Close included, returns api.ErrUseAfterClose.
func (h *Handle) Close() error {
	if h.state == Closed {
		return api.ErrUseAfterClose
	}
	h.state = Closed
	if err := h.reg.Release(); errors.Is(err, api.ErrReactorClosed) {
		h.log.Debug("reactor closed before handle", zap.Int("fd", h.fd))
	} else if err != nil {
		h.log.Warn("release registration failed", zap.Int("fd", h.fd), zap.Error(err))
	}
	h.metrics.HandleClosed()
	if err := closeFunc(h.fd); err != nil {
		h.log.Warn("close failed", zap.Int("fd", h.fd), zap.Error(err))
		return api.NewIoError("close", h.fd, err)
	}
	h.log.Debug("closed", zap.Int("fd", h.fd))
	return nil
}

func ignoringEINTR(fn func() (int, error)) (int, error) {
	for {
		n, err := fn()
		if err != syscall.EINTR {
			return n, err
		}
	}
}
