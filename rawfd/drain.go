package rawfd

import (
	"io"

	"github.com/momentics/hioload-rawfd/api"
	"go.uber.org/zap"
)

// onReady is the readiness callback. Level-triggered handles read once and
// rely on the reactor to signal again; edge-triggered handles keep reading
// until the descriptor would block, since no further signal is coming.
// Either way the loop ends as soon as the handle stops watching, which the
// sink may cause by calling Stop or Close.
func (h *Handle) onReady(ev api.Event) {
	for reads := 0; h.state == Watching; reads++ {
		n, err := ignoringEINTR(func() (int, error) { return readFunc(h.fd, h.buf) })
		switch {
		case err == nil && n > 0:
			data := make([]byte, n)
			copy(data, h.buf[:n])
			h.metrics.Read(n)
			h.sink(data, nil)
			if !h.edge {
				return
			}
		case api.IsWouldBlock(err):
			if reads == 0 {
				h.metrics.SpuriousWakeup()
				h.log.Debug("spurious wakeup", zap.Int("fd", h.fd), zap.Stringer("event", ev.Type))
			}
			return
		case err == nil:
			h.metrics.ReadError("eof")
			h.sink(nil, api.NewIoError("read", h.fd, io.EOF))
			return
		default:
			h.metrics.ReadError("errno")
			h.sink(nil, api.NewIoError("read", h.fd, err))
			return
		}
	}
}
