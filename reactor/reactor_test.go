package reactor_test

import (
	"context"
	"testing"

	"github.com/momentics/hioload-rawfd/api"
	"github.com/momentics/hioload-rawfd/fake"
	"github.com/momentics/hioload-rawfd/reactor"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeReactor(t *testing.T, opts ...reactor.Option) (*reactor.Reactor, *fake.Poller) {
	t.Helper()
	p := fake.NewPoller()
	r, err := reactor.New(append([]reactor.Option{reactor.WithPoller(p)}, opts...)...)
	require.NoError(t, err)
	return r, p
}

func TestRegisterValidation(t *testing.T) {
	r, _ := newFakeReactor(t)
	cb := func(api.Event) {}

	_, err := r.Register(-1, cb)
	require.ErrorIs(t, err, api.ErrInvalidArgument)

	_, err = r.Register(3, nil)
	require.ErrorIs(t, err, api.ErrInvalidArgument)

	_, err = r.Register(3, cb)
	require.NoError(t, err)
	_, err = r.Register(3, cb)
	require.ErrorIs(t, err, api.ErrAlreadyExists)
	assert.Equal(t, 1, r.Len())
}

func TestNewRejectsZeroMaxEvents(t *testing.T) {
	_, err := reactor.New(reactor.WithPoller(fake.NewPoller()), reactor.WithMaxEvents(0))
	require.ErrorIs(t, err, api.ErrInvalidArgument)
}

func TestArmDisarmIdempotent(t *testing.T) {
	r, p := newFakeReactor(t, reactor.WithTriggerMode(api.EdgeTriggered))
	g, err := r.Register(7, func(api.Event) {})
	require.NoError(t, err)

	require.NoError(t, g.Arm())
	require.NoError(t, g.Arm())
	mode, ok := p.Armed(7)
	require.True(t, ok)
	assert.Equal(t, api.EdgeTriggered, mode)
	assert.True(t, g.Armed())

	require.NoError(t, g.Disarm())
	require.NoError(t, g.Disarm())
	_, ok = p.Armed(7)
	assert.False(t, ok)
	assert.False(t, g.Armed())
}

func TestDispatchOnlyWhenArmed(t *testing.T) {
	r, p := newFakeReactor(t)
	var got []api.Event
	g, err := r.Register(5, func(ev api.Event) { got = append(got, ev) })
	require.NoError(t, err)

	p.Inject(5, api.EventRead)
	n, err := r.Poll(0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, got)

	require.NoError(t, g.Arm())
	p.Inject(5, api.EventRead|api.EventHangup)
	p.Inject(99, api.EventRead) // unknown descriptor
	n, err = r.Poll(0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, got, 1)
	assert.Equal(t, api.Event{Fd: 5, Type: api.EventRead | api.EventHangup}, got[0])
}

func TestDisarmDuringBatchSuppressesLaterEvents(t *testing.T) {
	r, p := newFakeReactor(t)
	var second *reactor.Registration
	calls := map[int]int{}
	first, err := r.Register(1, func(ev api.Event) {
		calls[ev.Fd]++
		require.NoError(t, second.Disarm())
	})
	require.NoError(t, err)
	second, err = r.Register(2, func(ev api.Event) { calls[ev.Fd]++ })
	require.NoError(t, err)
	require.NoError(t, first.Arm())
	require.NoError(t, second.Arm())

	p.Inject(1, api.EventRead)
	p.Inject(2, api.EventRead)
	_, err = r.Poll(0)
	require.NoError(t, err)
	assert.Equal(t, 1, calls[1])
	assert.Equal(t, 0, calls[2])
}

func TestReleaseForgetsRegistration(t *testing.T) {
	r, p := newFakeReactor(t)
	g, err := r.Register(4, func(api.Event) { t.Fatal("released registration dispatched") })
	require.NoError(t, err)
	require.NoError(t, g.Arm())

	p.Inject(4, api.EventRead)
	require.NoError(t, g.Release())
	assert.Equal(t, 0, r.Len())
	_, ok := p.Armed(4)
	assert.False(t, ok)

	_, err = r.Poll(0)
	require.NoError(t, err)

	require.ErrorIs(t, g.Release(), api.ErrNotFound)
	require.ErrorIs(t, g.Arm(), api.ErrNotFound)

	// the descriptor value can be registered again
	_, err = r.Register(4, func(api.Event) {})
	require.NoError(t, err)
}

func TestReleaseAfterFailedDisarm(t *testing.T) {
	r, p := newFakeReactor(t)
	g, err := r.Register(4, func(api.Event) {})
	require.NoError(t, err)
	require.NoError(t, g.Arm())

	p.DeleteErr = assert.AnError
	require.ErrorIs(t, g.Release(), assert.AnError)
	assert.Equal(t, 0, r.Len())
}

func TestPanickingCallbackIsRecovered(t *testing.T) {
	r, p := newFakeReactor(t)
	g1, err := r.Register(1, func(api.Event) { panic("boom") })
	require.NoError(t, err)
	called := false
	g2, err := r.Register(2, func(api.Event) { called = true })
	require.NoError(t, err)
	require.NoError(t, g1.Arm())
	require.NoError(t, g2.Arm())

	p.Inject(1, api.EventRead)
	p.Inject(2, api.EventRead)
	assert.NotPanics(t, func() {
		_, err = r.Poll(0)
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestPostRunsOnPoll(t *testing.T) {
	r, p := newFakeReactor(t)
	ran := 0
	require.NoError(t, r.Post(func() { ran++ }))
	require.NoError(t, r.Post(func() { ran++ }))
	assert.Equal(t, 2, p.Wakes())
	assert.Equal(t, 0, ran)

	_, err := r.Poll(0)
	require.NoError(t, err)
	assert.Equal(t, 2, ran)

	require.ErrorIs(t, r.Post(nil), api.ErrInvalidArgument)
}

func TestCloseReactor(t *testing.T) {
	r, p := newFakeReactor(t)
	require.NoError(t, r.Close())
	assert.True(t, p.Closed())

	require.ErrorIs(t, r.Close(), api.ErrReactorClosed)
	require.ErrorIs(t, r.Post(func() {}), api.ErrReactorClosed)
	_, err := r.Poll(0)
	require.ErrorIs(t, err, api.ErrReactorClosed)
	_, err = r.Register(1, func(api.Event) {})
	require.ErrorIs(t, err, api.ErrReactorClosed)
}

func TestRegistrationDetachedByClose(t *testing.T) {
	r, p := newFakeReactor(t)
	armed, err := r.Register(1, func(api.Event) {})
	require.NoError(t, err)
	idle, err := r.Register(2, func(api.Event) {})
	require.NoError(t, err)
	require.NoError(t, armed.Arm())

	require.NoError(t, r.Close())
	assert.False(t, armed.Armed())

	// nothing reaches the closed poller
	p.AddErr = errors.New("poller used after close")
	require.ErrorIs(t, idle.Arm(), api.ErrReactorClosed)
	require.ErrorIs(t, armed.Disarm(), api.ErrReactorClosed)
	require.ErrorIs(t, armed.Release(), api.ErrReactorClosed)
	require.ErrorIs(t, idle.Release(), api.ErrReactorClosed)
	require.ErrorIs(t, idle.Release(), api.ErrNotFound)
	assert.Equal(t, 0, r.Len())
}

func TestCloseDuringPollDefersPollerRelease(t *testing.T) {
	r, p := newFakeReactor(t)
	closedInside := true
	g, err := r.Register(1, func(api.Event) {
		require.NoError(t, r.Close())
		closedInside = p.Closed()
	})
	require.NoError(t, err)
	require.NoError(t, g.Arm())

	p.Inject(1, api.EventRead)
	n, err := r.Poll(0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, closedInside, "poller released while Poll was using it")
	assert.True(t, p.Closed())

	_, err = r.Poll(0)
	require.ErrorIs(t, err, api.ErrReactorClosed)
}

func TestRunExitRunsAcceptedTasks(t *testing.T) {
	r, _ := newFakeReactor(t)
	ran := false
	require.NoError(t, r.Post(func() { ran = true }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, r.Run(ctx), context.Canceled)
	assert.True(t, ran)
}
