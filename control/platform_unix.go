//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

// control/platform_unix.go
// Author: momentics <momentics@gmail.com>
//
// Unix debug probes: descriptor limits relevant to handle ownership.

package control

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// RegisterPlatformProbes sets platform-specific debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.os", func() any {
		return runtime.GOOS
	})
	dp.RegisterProbe("platform.nofile", func() any {
		var lim unix.Rlimit
		if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &lim); err != nil {
			return err.Error()
		}
		return map[string]uint64{"cur": uint64(lim.Cur), "max": uint64(lim.Max)}
	})
}
