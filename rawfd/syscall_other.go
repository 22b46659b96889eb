//go:build !unix

package rawfd

import (
	"github.com/momentics/hioload-rawfd/api"
)

var (
	readFunc  = func(int, []byte) (int, error) { return 0, api.ErrNotSupported }
	writeFunc = func(int, []byte) (int, error) { return 0, api.ErrNotSupported }
	closeFunc = func(int) error { return api.ErrNotSupported }
)
