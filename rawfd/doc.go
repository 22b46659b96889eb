// Package rawfd
// Author: momentics <momentics@gmail.com>
//
// Reactor-integrated wrapper around a single raw OS descriptor.
//
// A Handle owns one already-open, non-blocking descriptor (socket, pipe,
// device file). While watching, every readiness event performs one bounded
// read and hands the chunk, or the classified failure, to the caller's Sink.
// Write is a single non-blocking attempt; Close releases the registration and
// the descriptor exactly once.
//
// Handles are not safe for concurrent use. All calls, including those made
// from inside a Sink, belong on the goroutine driving the reactor; other
// goroutines go through reactor.Post, or use Socket, which does that for them.
package rawfd
