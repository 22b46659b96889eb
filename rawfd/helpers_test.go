//go:build linux || darwin || freebsd || dragonfly

package rawfd

import (
	"testing"

	"github.com/momentics/hioload-rawfd/api"
	"github.com/momentics/hioload-rawfd/fake"
	"github.com/momentics/hioload-rawfd/reactor"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// nonblockingPipe returns a non-blocking pipe. The write end is closed on
// cleanup; the read end belongs to the handle under test.
func nonblockingPipe(t *testing.T) (rfd, wfd int) {
	t.Helper()
	var p [2]int
	require.NoError(t, unix.Pipe(p[:]))
	for _, fd := range p {
		unix.CloseOnExec(fd)
		require.NoError(t, unix.SetNonblock(fd, true))
	}
	t.Cleanup(func() { _ = unix.Close(p[1]) })
	return p[0], p[1]
}

func socketPair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	require.NoError(t, unix.SetNonblock(fds[0], true))
	return fds[0], fds[1]
}

func newRealReactor(t *testing.T, opts ...reactor.Option) *reactor.Reactor {
	t.Helper()
	r, err := reactor.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func newFakeReactor(t *testing.T, mode api.TriggerMode) (*reactor.Reactor, *fake.Poller) {
	t.Helper()
	p := fake.NewPoller()
	r, err := reactor.New(reactor.WithPoller(p), reactor.WithTriggerMode(mode))
	require.NoError(t, err)
	return r, p
}

type recorder struct {
	results []Result
}

func (rec *recorder) sink(data []byte, err error) {
	rec.results = append(rec.results, Result{Data: data, Err: err})
}

func withReadFunc(t *testing.T, fn func(int, []byte) (int, error)) {
	old := readFunc
	readFunc = fn
	t.Cleanup(func() { readFunc = old })
}

func withWriteFunc(t *testing.T, fn func(int, []byte) (int, error)) {
	old := writeFunc
	writeFunc = fn
	t.Cleanup(func() { writeFunc = old })
}

func withCloseFunc(t *testing.T, fn func(int) error) {
	old := closeFunc
	closeFunc = fn
	t.Cleanup(func() { closeFunc = old })
}
