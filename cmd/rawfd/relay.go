// File: cmd/rawfd/relay.go
// Author: momentics <momentics@gmail.com>

package main

import (
	"context"
	"io"
	"os"

	"github.com/momentics/hioload-rawfd/rawfd"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// errDeviceEOF ends a relay once the device side has nothing more to say.
var errDeviceEOF = errors.New("device reached end of stream")

var cmdRelay = &cobra.Command{
	Use:   "relay <path>",
	Short: "Copy stdin to a descriptor and the descriptor to stdout",
	Long: `
relay opens path read-write. Bytes from stdin are written to it and bytes read
from it are written to stdout. The relay ends when the device reports end of
stream or on SIGINT/SIGTERM; end of stdin only stops the forwarding direction.
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cfg)
		if err != nil {
			return err
		}
		return s.run(cmd.Context(), func(ctx context.Context) error {
			return s.relay(ctx, args[0])
		})
	},
}

func (s *session) relay(ctx context.Context, path string) error {
	dev, err := s.open(path, unix.O_RDWR)
	if err != nil {
		return err
	}
	in, err := s.stdin()
	if err != nil {
		_ = dev.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	releaseDev := closeOnDone(gctx, dev)
	defer releaseDev()
	releaseIn := closeOnDone(gctx, in)
	defer releaseIn()

	g.Go(func() error {
		n, err := io.Copy(os.Stdout, dev)
		s.Info("device to stdout finished", zap.Int64("bytes", n))
		if err == nil {
			return errDeviceEOF
		}
		return err
	})
	g.Go(func() error {
		n, err := io.Copy(dev, in)
		s.Info("stdin to device finished", zap.Int64("bytes", n))
		return err
	})

	err = g.Wait()
	if errors.Is(err, errDeviceEOF) || endOfStream(gctx, err) {
		return nil
	}
	return err
}

// stdin returns a reactor-driven reader for standard input. Regular files
// cannot be registered for readiness and never block, so they are read directly.
func (s *session) stdin() (io.ReadCloser, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(os.Stdin.Fd()), &st); err != nil {
		return nil, errors.Wrap(err, "stat stdin")
	}
	if st.Mode&unix.S_IFMT == unix.S_IFREG {
		return io.NopCloser(os.Stdin), nil
	}
	fd, err := unix.Dup(int(os.Stdin.Fd()))
	if err != nil {
		return nil, errors.Wrap(err, "dup stdin")
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, errors.Wrap(err, "stdin non-blocking")
	}
	sock, err := rawfd.NewSocket(s.r, fd, s.socketOptions()...)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return stdinSocket{sock}, nil
}

// stdinSocket puts the shared stdin description back into blocking mode on close.
type stdinSocket struct{ *rawfd.Socket }

func (s stdinSocket) Close() error {
	err := s.Socket.Close()
	_ = unix.SetNonblock(int(os.Stdin.Fd()), false)
	return err
}
