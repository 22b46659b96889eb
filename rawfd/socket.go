// File: rawfd/socket.go
// Author: momentics <momentics@gmail.com>
//
// Socket exposes a Handle as an io.ReadWriteCloser for ordinary goroutines.
// Handle calls are marshalled onto the reactor goroutine with Reactor.Post, so
// the reactor must be running (Reactor.Run) for the Socket's lifetime. Closing
// the reactor releases any caller still waiting on it.

package rawfd

import (
	"io"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/eapache/queue"
	"github.com/momentics/hioload-rawfd/api"
	"github.com/momentics/hioload-rawfd/control"
	"github.com/momentics/hioload-rawfd/reactor"
	"github.com/pkg/errors"
)

// Socket is a stream over one descriptor. Reads are armed on demand and
// paused while more than the high-water mark of bytes sits unread.
// EOF and ECONNABORTED end the stream with io.EOF; other read failures are
// returned once queued data has been consumed, and stay sticky.
type Socket struct {
	r            *reactor.Reactor
	h            *Handle // reactor goroutine only
	fd           int
	highWater    int
	writeTimeout time.Duration

	mu      sync.Mutex
	cond    *sync.Cond
	chunks  *queue.Queue // []byte
	cur     []byte
	queued  int
	err     error
	reading bool
	paused  bool
	closed  bool
}

// NewSocket wraps fd, which must be open and non-blocking, in a Socket bound to r.
func NewSocket(r *reactor.Reactor, fd int, opts ...SocketOption) (*Socket, error) {
	if r == nil {
		return nil, errors.Wrap(api.ErrInvalidArgument, "nil reactor")
	}
	o := socketOptions{highWaterMark: control.DefaultConfig().HighWaterMark}
	for _, opt := range opts {
		opt(&o)
	}
	if o.highWaterMark <= 0 {
		return nil, errors.Wrapf(api.ErrInvalidArgument, "high water mark %d", o.highWaterMark)
	}
	s := &Socket{
		r:            r,
		fd:           fd,
		highWater:    o.highWaterMark,
		writeTimeout: o.writeTimeout,
		chunks:       queue.New(),
	}
	s.cond = sync.NewCond(&s.mu)
	err := s.exec(func() error {
		h, err := New(r, fd, s.onRead, o.handleOpts...)
		if err != nil {
			return err
		}
		s.h = h
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Fd returns the wrapped descriptor.
func (s *Socket) Fd() int { return s.fd }

// Read blocks until data, end of stream or an error is available.
func (s *Socket) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.closed {
			return 0, api.ErrUseAfterClose
		}
		if len(s.cur) == 0 && s.chunks.Length() > 0 {
			s.cur = s.chunks.Remove().([]byte)
		}
		if len(s.cur) > 0 {
			n := copy(p, s.cur)
			s.cur = s.cur[n:]
			s.queued -= n
			if s.paused && s.queued < s.highWater && s.err == nil {
				s.paused = false
				s.post(s.resume)
			}
			return n, nil
		}
		if s.err != nil {
			return 0, s.err
		}
		if !s.reading {
			s.reading = true
			s.post(s.resume)
		}
		s.cond.Wait()
	}
}

// Write writes all of p, waiting with exponential backoff while the
// descriptor is full.
func (s *Socket) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	b.MaxElapsedTime = s.writeTimeout
	b.Reset()

	written := 0
	for written < len(p) {
		var n int
		err := s.exec(func() error {
			var werr error
			n, werr = s.h.Write(p[written:])
			return werr
		})
		if err != nil {
			return written, err
		}
		written += n
		if n > 0 {
			b.Reset()
			continue
		}
		d := b.NextBackOff()
		if d == backoff.Stop {
			return written, api.NewIoError("write", s.fd, syscall.ETIMEDOUT)
		}
		time.Sleep(d)
	}
	return written, nil
}

// Close closes the underlying handle. Readers blocked in Read return
// api.ErrUseAfterClose.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return api.ErrUseAfterClose
	}
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
	return s.exec(func() error { return s.h.Close() })
}

// onRead is the handle's sink; it runs on the reactor goroutine.
func (s *Socket) onRead(data []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	defer s.cond.Broadcast()
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, syscall.ECONNABORTED) {
			s.err = io.EOF
		} else {
			s.err = err
		}
		_ = s.h.Stop()
		return
	}
	s.chunks.Add(data)
	s.queued += len(data)
	if s.queued >= s.highWater && !s.paused {
		s.paused = true
		_ = s.h.Stop()
	}
}

// resume (re)arms the handle; it runs on the reactor goroutine.
func (s *Socket) resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.err != nil || s.paused {
		return
	}
	if err := s.h.Start(); err != nil {
		s.err = err
		s.cond.Broadcast()
	}
}

// post queues fn on the reactor; a refused post ends the stream.
// Called with s.mu held.
func (s *Socket) post(fn func()) {
	if err := s.r.Post(fn); err != nil {
		s.err = err
		s.cond.Broadcast()
	}
}

// exec runs fn on the reactor goroutine and waits for its result. A panic in
// fn is returned as an error so the caller is never left waiting.
func (s *Socket) exec(fn func() error) error {
	done := make(chan error, 1)
	task := func() {
		defer func() {
			if v := recover(); v != nil {
				done <- errors.Errorf("socket fd=%d: panic on reactor: %v", s.fd, v)
			}
		}()
		done <- fn()
	}
	if err := s.r.Post(task); err != nil {
		return err
	}
	return <-done
}

var _ io.ReadWriteCloser = (*Socket)(nil)
