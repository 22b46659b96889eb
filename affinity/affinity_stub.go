//go:build !linux

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>

package affinity

import (
	"github.com/momentics/hioload-rawfd/api"
	"github.com/pkg/errors"
)

func setAffinity(cpu int) error {
	return errors.Wrap(api.ErrNotSupported, "thread affinity")
}

// Allowed is not available on this platform.
func Allowed() ([]int, error) {
	return nil, errors.Wrap(api.ErrNotSupported, "thread affinity")
}
