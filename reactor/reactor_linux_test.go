//go:build linux

package reactor_test

import (
	"context"
	"testing"
	"time"

	"github.com/momentics/hioload-rawfd/affinity"
	"github.com/momentics/hioload-rawfd/reactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPinnedToCPU(t *testing.T) {
	cpus, err := affinity.Allowed()
	require.NoError(t, err)

	r, err := reactor.New(reactor.WithCPU(cpus[0]))
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	pinned := make(chan []int, 1)
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.NoError(t, r.Post(func() {
		got, _ := affinity.Allowed()
		pinned <- got
	}))
	select {
	case got := <-pinned:
		assert.Equal(t, []int{cpus[0]}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunPinFailure(t *testing.T) {
	// outside any CPUSet the kernel will accept
	r, err := reactor.New(reactor.WithCPU(1023))
	require.NoError(t, err)
	defer r.Close()

	require.Error(t, r.Run(context.Background()))
	// a failed pin leaves the reactor usable
	_, err = r.Poll(0)
	assert.NoError(t, err)
}
