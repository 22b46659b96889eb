//go:build linux || darwin || freebsd || dragonfly

package rawfd

import (
	"bytes"
	"context"
	"io"
	"syscall"
	"testing"
	"time"

	"github.com/momentics/hioload-rawfd/api"
	"github.com/momentics/hioload-rawfd/reactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// runningReactor returns a real reactor driven by Run on its own goroutine.
func runningReactor(t *testing.T, opts ...reactor.Option) *reactor.Reactor {
	t.Helper()
	r := newRealReactor(t, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("reactor did not stop")
		}
	})
	return r
}

func TestSocketReadWrite(t *testing.T) {
	r := runningReactor(t)
	a, b := socketPair(t)
	defer unix.Close(b)

	s, err := NewSocket(r, a)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, a, s.Fd())

	_, err = unix.Write(b, []byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(s, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	n, err := s.Write([]byte("pong"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	got := make([]byte, 4)
	_, err = unix.Read(b, got)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(got))
}

func TestSocketPeerCloseIsEOF(t *testing.T) {
	r := runningReactor(t)
	a, b := socketPair(t)

	s, err := NewSocket(r, a)
	require.NoError(t, err)
	defer s.Close()

	_, err = unix.Write(b, []byte("last words"))
	require.NoError(t, err)
	require.NoError(t, unix.Close(b))

	data, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "last words", string(data))

	// end of stream is sticky
	n, err := s.Read(make([]byte, 1))
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)
}

func TestSocketHighWaterBackpressure(t *testing.T) {
	r := runningReactor(t)
	a, b := socketPair(t)
	defer unix.Close(b)

	s, err := NewSocket(r, a,
		WithHighWaterMark(8),
		WithHandleOptions(WithReadBufferSize(4)),
	)
	require.NoError(t, err)
	defer s.Close()

	payload := bytes.Repeat([]byte("0123456789abcdef"), 4)
	_, err = unix.Write(b, payload)
	require.NoError(t, err)

	got := make([]byte, len(payload))
	_, err = io.ReadFull(s, got)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestSocketCloseUnblocksReader(t *testing.T) {
	r := runningReactor(t)
	a, b := socketPair(t)
	defer unix.Close(b)

	s, err := NewSocket(r, a)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Read(make([]byte, 16))
		errc <- err
	}()

	// let the reader park before closing
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Close())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, api.ErrUseAfterClose)
	case <-time.After(5 * time.Second):
		t.Fatal("reader still blocked after close")
	}
	assert.ErrorIs(t, s.Close(), api.ErrUseAfterClose)
	_, err = s.Write([]byte("x"))
	assert.ErrorIs(t, err, api.ErrUseAfterClose)
}

func TestSocketLargeWrite(t *testing.T) {
	r := runningReactor(t)
	a, b := socketPair(t)
	defer unix.Close(b)

	s, err := NewSocket(r, a, WithWriteTimeout(5*time.Second))
	require.NoError(t, err)
	defer s.Close()

	payload := bytes.Repeat([]byte("rawfd"), 200_000)
	readc := make(chan []byte, 1)
	go func() {
		var out bytes.Buffer
		buf := make([]byte, 32*1024)
		for out.Len() < len(payload) {
			n, err := unix.Read(b, buf)
			if err != nil || n == 0 {
				break
			}
			out.Write(buf[:n])
		}
		readc <- out.Bytes()
	}()

	n, err := s.Write(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, <-readc)
}

func TestSocketWriteTimeout(t *testing.T) {
	r := runningReactor(t)
	a, b := socketPair(t)
	defer unix.Close(b)

	s, err := NewSocket(r, a, WithWriteTimeout(50*time.Millisecond))
	require.NoError(t, err)
	defer s.Close()

	// nobody reads b, so the socket buffer fills up
	payload := bytes.Repeat([]byte{'w'}, 16<<20)
	n, err := s.Write(payload)
	require.Error(t, err)
	assert.ErrorIs(t, err, syscall.ETIMEDOUT)
	assert.Less(t, n, len(payload))

	var ioErr *api.IoError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "write", ioErr.Op)
	assert.Equal(t, a, ioErr.Fd)
}

func TestNewSocketValidation(t *testing.T) {
	_, err := NewSocket(nil, 0)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	r := runningReactor(t)
	_, err = NewSocket(r, 0, WithHighWaterMark(0))
	assert.ErrorIs(t, err, api.ErrInvalidArgument)

	_, err = NewSocket(r, -1)
	assert.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestNewSocketOnClosedReactor(t *testing.T) {
	r := newRealReactor(t)
	require.NoError(t, r.Close())
	_, err := NewSocket(r, 0)
	assert.ErrorIs(t, err, api.ErrReactorClosed)
}

func TestSocketExecReturnsPanic(t *testing.T) {
	r := runningReactor(t)
	a, b := socketPair(t)
	defer unix.Close(b)

	s, err := NewSocket(r, a)
	require.NoError(t, err)
	defer s.Close()

	errc := make(chan error, 1)
	go func() { errc <- s.exec(func() error { panic("boom") }) }()
	select {
	case err := <-errc:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	case <-time.After(5 * time.Second):
		t.Fatal("exec did not return after a panicking task")
	}

	// the loop survived and keeps serving the socket
	n, err := s.Write([]byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
