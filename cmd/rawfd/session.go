// File: cmd/rawfd/session.go
// Author: momentics <momentics@gmail.com>
//
// Process wiring shared by the subcommands: reactor goroutine, signal
// handling, metrics endpoint and exit-time state dump.

package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/momentics/hioload-rawfd/api"
	"github.com/momentics/hioload-rawfd/control"
	"github.com/momentics/hioload-rawfd/internal/logging"
	"github.com/momentics/hioload-rawfd/rawfd"
	"github.com/momentics/hioload-rawfd/reactor"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

type session struct {
	logging.Log
	cfg     *control.Config
	r       *reactor.Reactor
	metrics *control.Metrics
	reg     *prometheus.Registry
	probes  *control.DebugProbes
}

func newSession(c *control.Config) (*session, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := control.NewMetrics(reg)
	r, err := reactor.New(append(reactor.FromConfig(c), reactor.WithMetrics(m))...)
	if err != nil {
		return nil, err
	}
	s := &session{
		Log:     logging.NewLog("rawfd"),
		cfg:     c,
		r:       r,
		metrics: m,
		reg:     reg,
		probes:  control.NewDebugProbes(),
	}
	control.RegisterPlatformProbes(s.probes)
	s.probes.RegisterProbe("reactor.mode", func() any { return c.TriggerMode.String() })
	s.probes.RegisterProbe("reactor.registrations", func() any { return r.Len() })
	return s, nil
}

// socketOptions are the per-descriptor options derived from the config.
func (s *session) socketOptions() []rawfd.SocketOption {
	return append(rawfd.SocketFromConfig(s.cfg),
		rawfd.WithHandleOptions(rawfd.WithMetrics(s.metrics)))
}

// open opens path non-blocking and wraps it in a Socket.
func (s *session) open(path string, flags int) (*rawfd.Socket, error) {
	fd, err := unix.Open(path, flags|unix.O_NONBLOCK|unix.O_CLOEXEC|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, api.NewIoError("open", -1, err)
	}
	sock, err := rawfd.NewSocket(s.r, fd, s.socketOptions()...)
	if err != nil {
		_ = unix.Close(fd)
		return nil, errors.WithMessagef(err, "open %s", path)
	}
	s.Info("descriptor opened", zap.String("path", path), zap.Int("fd", fd))
	return sock, nil
}

// run drives the reactor on its own goroutine while work runs. work's context
// is cancelled on SIGINT/SIGTERM or when the loop fails; otherwise the loop
// keeps running until work returns so that sockets can still be closed through it.
func (s *session) run(parent context.Context, work func(ctx context.Context) error) error {
	sigCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancelWork := context.WithCancel(sigCtx)
	defer cancelWork()

	loopCtx, stopLoop := context.WithCancel(context.Background())
	var g errgroup.Group
	g.Go(func() error {
		defer cancelWork()
		// refuse posts once the loop is gone so no caller waits on it
		defer s.r.Close()
		err := s.r.Run(loopCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if s.cfg.MetricsAddr != "" {
		srv := s.serveMetrics()
		defer shutdown(srv)
	}
	g.Go(func() error {
		defer stopLoop()
		return work(ctx)
	})
	err := g.Wait()
	s.Debug("session finished", s.probes.Fields()...)
	return err
}

func (s *session) serveMetrics() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{Registry: s.reg}))
	srv := &http.Server{Addr: s.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Error("metrics server failed", zap.Error(err))
		}
	}()
	s.Info("serving metrics", zap.String("addr", s.cfg.MetricsAddr))
	return srv
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// closeOnDone closes c when ctx is done. The returned func releases the
// hook and closes c itself if the hook has not fired.
func closeOnDone(ctx context.Context, c io.Closer) func() {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	return func() {
		if stop() {
			_ = c.Close()
		}
	}
}

// endOfStream reports whether err only reflects the stream being closed
// because ctx ended.
func endOfStream(ctx context.Context, err error) bool {
	return err == nil || (ctx.Err() != nil && errors.Is(err, api.ErrUseAfterClose))
}
