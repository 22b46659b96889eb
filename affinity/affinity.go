// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// CPU pinning for the OS thread that runs a reactor loop. Platform-specific
// implementations live in separate files guarded by build tags.

package affinity

import (
	"runtime"

	"github.com/momentics/hioload-rawfd/api"
	"github.com/pkg/errors"
)

// Pin locks the calling goroutine to its OS thread and restricts that thread
// to cpu. The goroutine stays locked, so the runtime terminates the thread
// when the goroutine exits instead of reusing it with the narrowed mask.
func Pin(cpu int) error {
	if cpu < 0 {
		return errors.Wrapf(api.ErrInvalidArgument, "cpu %d", cpu)
	}
	runtime.LockOSThread()
	if err := setAffinity(cpu); err != nil {
		runtime.UnlockOSThread()
		return err
	}
	return nil
}
