// File: rawfd/options.go
// Author: momentics <momentics@gmail.com>
//
// Functional options for handles and sockets.

package rawfd

import (
	"time"

	"github.com/momentics/hioload-rawfd/control"
	"github.com/momentics/hioload-rawfd/internal/logging"
)

type options struct {
	readBufferSize int
	metrics        *control.Metrics
	log            logging.Log
}

func defaultOptions() options {
	return options{
		readBufferSize: control.DefaultConfig().ReadBufferSize,
	}
}

// Option customizes a Handle.
type Option func(*options)

// WithReadBufferSize sets the scratch buffer size, the upper bound of one read.
func WithReadBufferSize(n int) Option {
	return func(o *options) { o.readBufferSize = n }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *control.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger replaces the default "rawfd" component logger.
func WithLogger(l logging.Log) Option {
	return func(o *options) { o.log = l }
}

// FromConfig translates cfg into handle options.
func FromConfig(cfg *control.Config) []Option {
	return []Option{WithReadBufferSize(cfg.ReadBufferSize)}
}

type socketOptions struct {
	highWaterMark int
	writeTimeout  time.Duration
	handleOpts    []Option
}

// SocketOption customizes a Socket.
type SocketOption func(*socketOptions)

// WithHighWaterMark pauses reads while this many bytes are queued unread.
func WithHighWaterMark(n int) SocketOption {
	return func(o *socketOptions) { o.highWaterMark = n }
}

// WithWriteTimeout bounds how long Write waits for a full descriptor to drain.
// Zero waits indefinitely.
func WithWriteTimeout(d time.Duration) SocketOption {
	return func(o *socketOptions) { o.writeTimeout = d }
}

// WithHandleOptions passes options through to the underlying Handle.
func WithHandleOptions(opts ...Option) SocketOption {
	return func(o *socketOptions) { o.handleOpts = append(o.handleOpts, opts...) }
}

// SocketFromConfig translates cfg into socket options.
func SocketFromConfig(cfg *control.Config) []SocketOption {
	return []SocketOption{
		WithHighWaterMark(cfg.HighWaterMark),
		WithHandleOptions(FromConfig(cfg)...),
	}
}
