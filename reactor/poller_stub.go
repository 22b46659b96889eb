//go:build !linux && !darwin && !freebsd && !dragonfly
// +build !linux,!darwin,!freebsd,!dragonfly

// File: reactor/poller_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub poller for platforms without a readiness facility wired up.
// A custom api.Poller can still be supplied through WithPoller.

package reactor

import (
	"runtime"

	"github.com/momentics/hioload-rawfd/api"
	"github.com/pkg/errors"
)

func newPoller() (api.Poller, error) {
	return nil, errors.Wrapf(api.ErrNotSupported, "readiness poller on %s", runtime.GOOS)
}
