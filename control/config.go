// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Static configuration shared by the reactor, descriptor handles and the CLI.

package control

import (
	"github.com/momentics/hioload-rawfd/api"
	"github.com/pkg/errors"
)

// Config holds tunables for one reactor and the handles registered with it.
type Config struct {
	ReadBufferSize int             // scratch buffer per handle, bytes per read
	TriggerMode    api.TriggerMode // level or edge readiness
	MaxEvents      int             // events collected per poll cycle
	HighWaterMark  int             // Socket: queued bytes before reads are paused
	CPU            int             // pin the reactor thread, -1 disables
	LogLevel       string
	LogFile        string
	MetricsAddr    string // serve /metrics when non-empty
}

// DefaultConfig returns a Config populated with library defaults.
func DefaultConfig() *Config {
	return &Config{
		ReadBufferSize: 1024, // matches a single read(2) per readiness event
		TriggerMode:    api.LevelTriggered,
		MaxEvents:      128,
		HighWaterMark:  64 * 1024,
		CPU:            -1,
		LogLevel:       "info",
	}
}

// Validate rejects values the reactor and handles cannot operate with.
func (c *Config) Validate() error {
	if c.ReadBufferSize <= 0 {
		return errors.Wrapf(api.ErrInvalidArgument, "read buffer size %d", c.ReadBufferSize)
	}
	if c.MaxEvents <= 0 {
		return errors.Wrapf(api.ErrInvalidArgument, "max events %d", c.MaxEvents)
	}
	if c.HighWaterMark < c.ReadBufferSize {
		return errors.Wrapf(api.ErrInvalidArgument, "high water mark %d below read buffer size %d",
			c.HighWaterMark, c.ReadBufferSize)
	}
	if c.CPU < -1 {
		return errors.Wrapf(api.ErrInvalidArgument, "cpu %d", c.CPU)
	}
	if c.TriggerMode != api.LevelTriggered && c.TriggerMode != api.EdgeTriggered {
		return errors.Wrapf(api.ErrInvalidArgument, "trigger mode %d", c.TriggerMode)
	}
	return nil
}
