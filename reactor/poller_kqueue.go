//go:build darwin || freebsd || dragonfly
// +build darwin freebsd dragonfly

// File: reactor/poller_kqueue.go
// Author: momentics <momentics@gmail.com>
//
// kqueue(2)-based poller; an EVFILT_USER note wakes a blocked Wait.

package reactor

import (
	"os"

	"github.com/momentics/hioload-rawfd/api"
	"golang.org/x/sys/unix"
)

const wakeIdent = 0

// kqueuePoller implements api.Poller using kqueue.
type kqueuePoller struct {
	kq  int
	raw []unix.Kevent_t
}

func newPoller() (api.Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, os.NewSyscallError("kqueue", err)
	}
	unix.CloseOnExec(kq)
	p := &kqueuePoller{kq: kq}
	if _, err := unix.Kevent(kq, []unix.Kevent_t{{
		Ident:  wakeIdent,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}, nil, nil); err != nil {
		_ = unix.Close(kq)
		return nil, os.NewSyscallError("kevent add", err)
	}
	return p, nil
}

// Add registers fd for read readiness.
func (p *kqueuePoller) Add(fd int, mode api.TriggerMode) error {
	flags := unix.EV_ADD | unix.EV_ENABLE
	if mode == api.EdgeTriggered {
		flags |= unix.EV_CLEAR
	}
	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, unix.EVFILT_READ, flags)
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil)
	return os.NewSyscallError("kevent add", err)
}

// Delete removes fd from the read filter.
func (p *kqueuePoller) Delete(fd int) error {
	var ev unix.Kevent_t
	unix.SetKevent(&ev, fd, unix.EVFILT_READ, unix.EV_DELETE)
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{ev}, nil, nil)
	return os.NewSyscallError("kevent delete", err)
}

// Wait blocks for kevents and translates them into events.
func (p *kqueuePoller) Wait(events []api.Event, timeoutMs int) (int, error) {
	if cap(p.raw) < len(events) {
		p.raw = make([]unix.Kevent_t, len(events))
	}
	raw := p.raw[:len(events)]
	var tsp *unix.Timespec
	if timeoutMs >= 0 {
		ts := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		tsp = &ts
	}
	n, err := unix.Kevent(p.kq, nil, raw, tsp)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, os.NewSyscallError("kevent wait", err)
	}
	j := 0
	for i := 0; i < n; i++ {
		ev := raw[i]
		if ev.Filter == unix.EVFILT_USER {
			continue
		}
		t := api.EventRead
		if ev.Flags&unix.EV_EOF != 0 {
			t |= api.EventHangup
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			t |= api.EventError
		}
		events[j] = api.Event{Fd: int(ev.Ident), Type: t}
		j++
	}
	return j, nil
}

// Wake interrupts a blocked Wait.
func (p *kqueuePoller) Wake() error {
	_, err := unix.Kevent(p.kq, []unix.Kevent_t{{
		Ident:  wakeIdent,
		Filter: unix.EVFILT_USER,
		Fflags: unix.NOTE_TRIGGER,
	}}, nil, nil)
	return os.NewSyscallError("kevent trigger", err)
}

// Close releases the kqueue.
func (p *kqueuePoller) Close() error {
	return os.NewSyscallError("close", unix.Close(p.kq))
}
