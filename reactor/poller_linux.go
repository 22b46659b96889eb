//go:build linux
// +build linux

// File: reactor/poller_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based poller with an eventfd for cross-goroutine wakeups.

package reactor

import (
	"encoding/binary"
	"os"

	"github.com/momentics/hioload-rawfd/api"
	"golang.org/x/sys/unix"
)

const (
	readEvents  = unix.EPOLLIN | unix.EPOLLPRI
	hupEvents   = unix.EPOLLHUP | unix.EPOLLRDHUP
	errorEvents = unix.EPOLLERR
)

// epollPoller implements api.Poller using Linux epoll.
type epollPoller struct {
	epfd   int
	efd    int
	efdBuf []byte // 8-byte eventfd counter
	raw    []unix.EpollEvent
}

func newPoller() (api.Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}
	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, os.NewSyscallError("eventfd", err)
	}
	p := &epollPoller{epfd: epfd, efd: efd, efdBuf: make([]byte, 8)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, efd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(efd)}); err != nil {
		_ = p.Close()
		return nil, os.NewSyscallError("epoll_ctl add", err)
	}
	return p, nil
}

// Add registers fd for read readiness.
func (p *epollPoller) Add(fd int, mode api.TriggerMode) error {
	ev := unix.EpollEvent{Events: readEvents | unix.EPOLLRDHUP, Fd: int32(fd)}
	if mode == api.EdgeTriggered {
		ev.Events |= unix.EPOLLET
	}
	return os.NewSyscallError("epoll_ctl add", unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev))
}

// Delete removes fd from the interest list.
func (p *epollPoller) Delete(fd int) error {
	return os.NewSyscallError("epoll_ctl del", unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil))
}

// Wait blocks for epoll events and translates them into events.
func (p *epollPoller) Wait(events []api.Event, timeoutMs int) (int, error) {
	if cap(p.raw) < len(events) {
		p.raw = make([]unix.EpollEvent, len(events))
	}
	raw := p.raw[:len(events)]
	if timeoutMs < 0 {
		timeoutMs = -1
	}
	n, err := unix.EpollWait(p.epfd, raw, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, os.NewSyscallError("epoll_wait", err)
	}
	j := 0
	for i := 0; i < n; i++ {
		ev := raw[i]
		fd := int(ev.Fd)
		if fd == p.efd {
			_, _ = unix.Read(p.efd, p.efdBuf)
			continue
		}
		var t api.EventType
		if ev.Events&readEvents != 0 {
			t |= api.EventRead
		}
		if ev.Events&hupEvents != 0 {
			t |= api.EventHangup
		}
		if ev.Events&errorEvents != 0 {
			t |= api.EventError
		}
		events[j] = api.Event{Fd: fd, Type: t}
		j++
	}
	return j, nil
}

// Wake interrupts a blocked Wait.
func (p *epollPoller) Wake() error {
	var b [8]byte
	binary.NativeEndian.PutUint64(b[:], 1)
	_, err := unix.Write(p.efd, b[:])
	if err != nil && err != unix.EAGAIN {
		return os.NewSyscallError("eventfd write", err)
	}
	return nil
}

// Close releases the epoll instance and the eventfd.
func (p *epollPoller) Close() error {
	err := os.NewSyscallError("close", unix.Close(p.efd))
	if cerr := os.NewSyscallError("close", unix.Close(p.epfd)); err == nil {
		err = cerr
	}
	return err
}
