// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error classification for hioload-rawfd.

package api

import (
	"fmt"
	"io"
	"syscall"

	"github.com/pkg/errors"
)

// Common errors used across the library.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUseAfterClose   = errors.New("use of closed descriptor handle")
	ErrReactorClosed   = errors.New("reactor is closed")
	ErrAlreadyExists   = errors.New("descriptor already registered")
	ErrNotFound        = errors.New("descriptor not registered")
	ErrNotSupported    = errors.New("operation not supported on this platform")
)

// ErrorCode classifies an error returned or delivered by the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeWouldBlock
	ErrCodeIO
	ErrCodeUseAfterClose
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeInvalidArgument:
		return "invalid_argument"
	case ErrCodeWouldBlock:
		return "would_block"
	case ErrCodeIO:
		return "io"
	case ErrCodeUseAfterClose:
		return "use_after_close"
	default:
		return "internal"
	}
}

// IoError is an OS-reported failure on read, write, close or readiness
// registration. Err is a syscall.Errno, or io.EOF for an orderly end of stream.
type IoError struct {
	Op  string
	Fd  int
	Err error
}

// Error implements the error interface.
func (e *IoError) Error() string {
	return fmt.Sprintf("%s fd=%d: %v", e.Op, e.Fd, e.Err)
}

// Unwrap exposes the underlying errno or io.EOF to errors.Is / errors.As.
func (e *IoError) Unwrap() error { return e.Err }

// Errno returns the native error code, or 0 when the error is not an errno (EOF).
func (e *IoError) Errno() syscall.Errno {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		return errno
	}
	return 0
}

// EOF reports whether the error marks the end of the stream.
func (e *IoError) EOF() bool {
	return e.Err == io.EOF
}

// NewIoError builds an IoError for op on fd.
func NewIoError(op string, fd int, err error) *IoError {
	return &IoError{Op: op, Fd: fd, Err: err}
}

// IsWouldBlock reports whether err is EAGAIN/EWOULDBLOCK.
func IsWouldBlock(err error) bool {
	return errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK)
}

// CodeOf maps err onto the library taxonomy.
func CodeOf(err error) ErrorCode {
	var ioErr *IoError
	switch {
	case err == nil:
		return ErrCodeOK
	case errors.Is(err, ErrInvalidArgument):
		return ErrCodeInvalidArgument
	case errors.Is(err, ErrUseAfterClose):
		return ErrCodeUseAfterClose
	case IsWouldBlock(err):
		return ErrCodeWouldBlock
	case errors.As(err, &ioErr):
		return ErrCodeIO
	default:
		return ErrCodeInternal
	}
}
