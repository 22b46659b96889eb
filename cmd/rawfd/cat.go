// File: cmd/rawfd/cat.go
// Author: momentics <momentics@gmail.com>

package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

var cmdCat = &cobra.Command{
	Use:   "cat <path>",
	Short: "Copy a readable descriptor to stdout until end of stream",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cfg)
		if err != nil {
			return err
		}
		return s.run(cmd.Context(), func(ctx context.Context) error {
			return s.cat(ctx, args[0], os.Stdout)
		})
	},
}

func (s *session) cat(ctx context.Context, path string, out io.Writer) error {
	sock, err := s.open(path, unix.O_RDONLY)
	if err != nil {
		return err
	}
	release := closeOnDone(ctx, sock)
	defer release()

	n, err := io.Copy(out, sock)
	s.Info("cat finished", zap.String("path", path), zap.Int64("bytes", n))
	if endOfStream(ctx, err) {
		return nil
	}
	return err
}
