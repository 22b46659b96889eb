//go:build unix

package rawfd

import "golang.org/x/sys/unix"

// Hooks for the descriptor syscalls; tests replace them.
var (
	readFunc  func(fd int, p []byte) (int, error) = unix.Read
	writeFunc func(fd int, p []byte) (int, error) = unix.Write
	closeFunc func(fd int) error                  = unix.Close
)
