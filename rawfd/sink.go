package rawfd

// Sink receives the outcome of each drain step: (data, nil) for a chunk read
// from the descriptor, (nil, err) for a failure. It runs on the reactor
// goroutine and owns data.
type Sink func(data []byte, err error)

// Result is one Sink invocation in value form.
type Result struct {
	Data []byte
	Err  error
}

// ChanSink adapts ch into a Sink. Sends block the reactor goroutine, so ch must
// be buffered or drained concurrently.
func ChanSink(ch chan<- Result) Sink {
	return func(data []byte, err error) {
		ch <- Result{Data: data, Err: err}
	}
}
