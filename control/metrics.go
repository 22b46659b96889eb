// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for the reactor loop and descriptor handles.
// A nil *Metrics is valid and records nothing.

package control

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors updated by reactors and handles.
type Metrics struct {
	reads           prometheus.Counter
	readBytes       prometheus.Counter
	spurious        prometheus.Counter
	readErrors      *prometheus.CounterVec
	writes          prometheus.Counter
	writeBytes      prometheus.Counter
	writeWouldBlock prometheus.Counter
	writeErrors     prometheus.Counter
	openHandles     prometheus.Gauge
	events          prometheus.Counter
	tasks           prometheus.Counter
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reads: f.NewCounter(prometheus.CounterOpts{
			Name: "rawfd_reads_total",
			Help: "Successful reads delivered to completion sinks.",
		}),
		readBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "rawfd_read_bytes_total",
			Help: "Bytes delivered to completion sinks.",
		}),
		spurious: f.NewCounter(prometheus.CounterOpts{
			Name: "rawfd_spurious_wakeups_total",
			Help: "Readiness events whose read would have blocked.",
		}),
		readErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rawfd_read_errors_total",
			Help: "Read failures delivered to completion sinks.",
		}, []string{"kind"}),
		writes: f.NewCounter(prometheus.CounterOpts{
			Name: "rawfd_writes_total",
			Help: "Write attempts that accepted at least one byte.",
		}),
		writeBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "rawfd_write_bytes_total",
			Help: "Bytes accepted by write attempts.",
		}),
		writeWouldBlock: f.NewCounter(prometheus.CounterOpts{
			Name: "rawfd_write_would_block_total",
			Help: "Write attempts that accepted nothing because the descriptor was full.",
		}),
		writeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "rawfd_write_errors_total",
			Help: "Write attempts that failed with an OS error.",
		}),
		openHandles: f.NewGauge(prometheus.GaugeOpts{
			Name: "rawfd_open_handles",
			Help: "Descriptor handles created and not yet closed.",
		}),
		events: f.NewCounter(prometheus.CounterOpts{
			Name: "reactor_events_total",
			Help: "Readiness events dispatched by the reactor.",
		}),
		tasks: f.NewCounter(prometheus.CounterOpts{
			Name: "reactor_tasks_total",
			Help: "Posted tasks executed on the reactor goroutine.",
		}),
	}
}

func (m *Metrics) Read(n int) {
	if m == nil {
		return
	}
	m.reads.Inc()
	m.readBytes.Add(float64(n))
}

func (m *Metrics) SpuriousWakeup() {
	if m == nil {
		return
	}
	m.spurious.Inc()
}

// ReadError counts a read failure; kind is "eof" or "errno".
func (m *Metrics) ReadError(kind string) {
	if m == nil {
		return
	}
	m.readErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) Write(n int) {
	if m == nil {
		return
	}
	if n == 0 {
		m.writeWouldBlock.Inc()
		return
	}
	m.writes.Inc()
	m.writeBytes.Add(float64(n))
}

func (m *Metrics) WriteError() {
	if m == nil {
		return
	}
	m.writeErrors.Inc()
}

func (m *Metrics) HandleOpened() {
	if m == nil {
		return
	}
	m.openHandles.Inc()
}

func (m *Metrics) HandleClosed() {
	if m == nil {
		return
	}
	m.openHandles.Dec()
}

func (m *Metrics) Events(n int) {
	if m == nil || n == 0 {
		return
	}
	m.events.Add(float64(n))
}

func (m *Metrics) Task() {
	if m == nil {
		return
	}
	m.tasks.Inc()
}
