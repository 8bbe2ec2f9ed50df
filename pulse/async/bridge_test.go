package async

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/fsasync/host"
)

// completedJob builds a job as a worker would hand it over
func completedJob(cb host.Callback, id string, status Status) *Job {
	job := NewJob(id, id, nil, ModeWrite, cb)
	job.Result = status
	return job
}

func TestBridge_OneCompletionPerTick(t *testing.T) {
	loop := host.NewLoop()
	bridge := NewBridge(loop, "fsasync", createTestLogger())
	rec := &recorder{}

	loop.Call(func(th host.Thread) {
		for _, id := range []string{"a.txt", "b.txt", "c.txt"} {
			bridge.Track(th)
			require.True(t, bridge.Send(completedJob(rec.callback(loop, th), id, StatusOK)))
		}
	})
	require.True(t, loop.Subscribed("fsasync"))
	require.Equal(t, int64(3), bridge.Pending())

	loop.Think()
	assert.Len(t, rec.calls, 1)
	assert.Equal(t, int64(2), bridge.Pending())
	assert.True(t, bridge.Subscribed())

	loop.Think()
	loop.Think()
	assert.Len(t, rec.calls, 3)
	assert.Equal(t, []callbackResult{{"a.txt", 0}, {"b.txt", 0}, {"c.txt", 0}}, rec.calls, "delivery follows arrival order")

	assert.Equal(t, int64(0), bridge.Pending())
	assert.False(t, bridge.Subscribed(), "hook must unsubscribe when pending reaches zero")
	assert.False(t, loop.Subscribed("fsasync"))
	assert.Equal(t, 0, loop.Live(), "every handle consumed")
}

func TestBridge_EmptyTickDoesNothing(t *testing.T) {
	loop := host.NewLoop()
	bridge := NewBridge(loop, "fsasync", createTestLogger())

	loop.Call(func(th host.Thread) { bridge.Track(th) })
	loop.Think()
	loop.Think()

	assert.Equal(t, int64(1), bridge.Pending())
	assert.True(t, bridge.Subscribed())
}

func TestBridge_TrackIsIdempotentForSubscription(t *testing.T) {
	loop := host.NewLoop()
	bridge := NewBridge(loop, "fsasync", createTestLogger())

	loop.Call(func(th host.Thread) {
		bridge.Track(th)
		bridge.Track(th)
	})

	assert.Equal(t, 1, loop.HookCount())
	assert.Equal(t, int64(2), bridge.Pending())
}

func TestBridge_ClosedUnsubscribesWithoutTouchingCounter(t *testing.T) {
	loop := host.NewLoop()
	bridge := NewBridge(loop, "fsasync", createTestLogger())

	loop.Call(func(th host.Thread) {
		bridge.Track(th)
		bridge.Track(th)
	})
	bridge.Close()
	assert.False(t, bridge.Send(completedJob(nil, "late.txt", StatusOK)))

	loop.Think()

	assert.False(t, bridge.Subscribed())
	assert.Equal(t, int64(2), bridge.Pending())
}

func TestBridge_ClosedStillDrainsQueuedCompletions(t *testing.T) {
	loop := host.NewLoop()
	bridge := NewBridge(loop, "fsasync", createTestLogger())
	rec := &recorder{}

	loop.Call(func(th host.Thread) {
		bridge.Track(th)
		bridge.Track(th)
		bridge.Send(completedJob(rec.callback(loop, th), "a.txt", StatusFailure))
	})
	bridge.Close()

	loop.Think()
	assert.Equal(t, []callbackResult{{"a.txt", int(StatusFailure)}}, rec.calls)
	assert.True(t, bridge.Subscribed(), "one job still unaccounted for")

	loop.Think()
	assert.False(t, bridge.Subscribed())
}

func TestBridge_Untrack(t *testing.T) {
	loop := host.NewLoop()
	bridge := NewBridge(loop, "fsasync", createTestLogger())

	loop.Call(func(th host.Thread) {
		bridge.Track(th)
		bridge.Untrack(th)
	})

	assert.Equal(t, int64(0), bridge.Pending())
	assert.False(t, bridge.Subscribed())
}

func TestBridge_ResubscribesAfterDrain(t *testing.T) {
	loop := host.NewLoop()
	bridge := NewBridge(loop, "fsasync", createTestLogger())
	rec := &recorder{}

	for round := 0; round < 2; round++ {
		loop.Call(func(th host.Thread) {
			bridge.Track(th)
			bridge.Send(completedJob(rec.callback(loop, th), "a.txt", StatusOK))
		})
		assert.True(t, bridge.Subscribed())
		loop.Think()
		assert.False(t, bridge.Subscribed())
	}
	assert.Len(t, rec.calls, 2)
}

// failingCallback reports an error from Invoke, like a trapping guest
type failingCallback struct{ invoked int }

func (c *failingCallback) Invoke(host.Thread, string, int) error {
	c.invoked++
	return assert.AnError
}

func (c *failingCallback) Release(host.Thread) {}

func TestBridge_FailingCallbackStillCounts(t *testing.T) {
	loop := host.NewLoop()
	bridge := NewBridge(loop, "fsasync", createTestLogger())
	cb := &failingCallback{}

	loop.Call(func(th host.Thread) {
		bridge.Track(th)
		bridge.Send(completedJob(cb, "a.txt", StatusOK))
	})
	loop.Think()

	assert.Equal(t, 1, cb.invoked)
	assert.Equal(t, int64(0), bridge.Pending())
	assert.False(t, bridge.Subscribed())
}
