// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the single-goroutine readiness loop that descriptor
// handles register with, over epoll (Linux) or kqueue (Darwin/FreeBSD/DragonFly).
//
// Poll, Run, Register and the Registration methods must all be used from the
// goroutine driving the loop. Post and Close are safe from other goroutines.
// Post queues a task for the loop goroutine and wakes the poller. Close wakes
// an active Poll or Run and leaves releasing the poller to that goroutine.
// Registrations that outlive Close are detached and report ErrReactorClosed.
package reactor
