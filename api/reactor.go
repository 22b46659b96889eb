// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Defines the abstract interface for the OS readiness facility (epoll, kqueue)
// driven by the reactor loop.

package api

// EventType is a bitmask describing why a descriptor was signalled.
type EventType uint8

const (
	EventRead EventType = 1 << iota
	EventHangup
	EventError
)

func (t EventType) String() string {
	s := ""
	if t&EventRead != 0 {
		s += "read|"
	}
	if t&EventHangup != 0 {
		s += "hup|"
	}
	if t&EventError != 0 {
		s += "err|"
	}
	if s == "" {
		return "none"
	}
	return s[:len(s)-1]
}

// TriggerMode selects level- or edge-triggered readiness.
type TriggerMode uint8

const (
	// LevelTriggered re-signals while data remains readable.
	LevelTriggered TriggerMode = iota
	// EdgeTriggered signals once per readiness transition.
	EdgeTriggered
)

func (m TriggerMode) String() string {
	if m == EdgeTriggered {
		return "edge"
	}
	return "level"
}

// Event encapsulates the result of an OS-level readiness notification.
type Event struct {
	Fd   int
	Type EventType
}

// Poller is the platform readiness facility. Add arms read readiness for fd,
// Delete disarms it. Wait blocks up to timeoutMs (negative blocks forever) and
// fills events; wakeups caused by Wake are consumed internally and may yield n == 0.
// Add, Delete and Wait are called from the reactor goroutine only; Wake is safe
// from any goroutine.
type Poller interface {
	Add(fd int, mode TriggerMode) error
	Delete(fd int) error
	Wait(events []Event, timeoutMs int) (n int, err error)
	Wake() error
	Close() error
}
