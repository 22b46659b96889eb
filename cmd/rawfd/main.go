// File: cmd/rawfd/main.go
// Author: momentics <momentics@gmail.com>
//
// rawfd moves bytes between standard streams and a device, FIFO or socket
// path through the readiness reactor.

package main

import (
	"fmt"
	"os"

	"github.com/momentics/hioload-rawfd/api"
	"github.com/momentics/hioload-rawfd/control"
	"github.com/momentics/hioload-rawfd/internal/logging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	cfg  = control.DefaultConfig()
	edge bool

	cmdRoot = &cobra.Command{
		Use:   "rawfd",
		Short: "Stream a raw descriptor through a readiness reactor",
		Long: `
rawfd opens a character device, FIFO or unix socket path in non-blocking mode
and drives it with the epoll/kqueue reactor. Regular files are rejected by the
kernel readiness facility and cannot be used.
`,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if edge {
				cfg.TriggerMode = api.EdgeTriggered
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return configureLogging(cfg)
		},
	}
)

func init() {
	f := cmdRoot.PersistentFlags()
	f.IntVar(&cfg.ReadBufferSize, "buffer-size", cfg.ReadBufferSize, "bytes read per readiness event")
	f.BoolVar(&edge, "edge", false, "use edge-triggered readiness and drain until would-block")
	f.IntVar(&cfg.MaxEvents, "max-events", cfg.MaxEvents, "readiness events collected per poll cycle")
	f.IntVar(&cfg.HighWaterMark, "high-water", cfg.HighWaterMark, "unread bytes queued before reads pause")
	f.IntVar(&cfg.CPU, "cpu", cfg.CPU, "pin the reactor thread to this CPU (-1 disables)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	f.StringVar(&cfg.LogFile, "log-file", "", "also write logs to this file, rotated")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	cmdRoot.AddCommand(cmdCat, cmdRelay)
}

func configureLogging(c *control.Config) error {
	lvl, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return errors.Wrapf(api.ErrInvalidArgument, "log level %q", c.LogLevel)
	}
	opts := logging.NewOptions()
	opts.Level = lvl
	opts.File = c.LogFile
	logging.Configure(opts)
	return nil
}

func main() {
	err := cmdRoot.Execute()
	_ = logging.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "rawfd:", err)
		os.Exit(1)
	}
}
