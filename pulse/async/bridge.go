package async

import (
	"sync/atomic"
	"time"

	"github.com/teranos/fsasync/errors"
	"github.com/teranos/fsasync/host"
	"github.com/teranos/fsasync/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Bridge carries completed jobs from worker goroutines to the host thread and
// counts the callback-bound jobs not yet delivered.
//
// Send is the only method workers may call. Everything else runs on the host
// thread, which is why subscribed needs no synchronisation.
type Bridge struct {
	completions *Queue[*Job]
	pending     atomic.Int64

	hooks      host.Hooks
	hookName   string
	subscribed bool

	idleLog rate.Sometimes
	logger  pulseLogger
}

// NewBridge creates a bridge whose poll hook is registered with hooks under
// hookName.
func NewBridge(hooks host.Hooks, hookName string, logger *zap.SugaredLogger) *Bridge {
	return &Bridge{
		completions: NewQueue[*Job](),
		hooks:       hooks,
		hookName:    hookName,
		idleLog:     rate.Sometimes{Interval: time.Second},
		logger:      pulseLogger{logger.Named("bridge")},
	}
}

// Send hands a completed job to the host side. It never blocks and returns
// false if the bridge has been closed.
func (b *Bridge) Send(job *Job) bool {
	return b.completions.Push(job)
}

// Close permanently closes the send side. Completions already queued are still
// delivered; after that the poll hook unsubscribes itself.
func (b *Bridge) Close() {
	b.completions.Close()
}

// Pending returns the number of callback-bound jobs not yet delivered.
func (b *Bridge) Pending() int64 {
	return b.pending.Load()
}

// Subscribed reports whether the poll hook is currently registered.
func (b *Bridge) Subscribed() bool {
	return b.subscribed
}

// Track registers interest in one more callback-bound job: it subscribes the
// poll hook if needed and increments the pending counter. Must happen before
// the job is enqueued so a fast completion can never be delivered against a
// counter that has not yet counted it.
func (b *Bridge) Track(t host.Thread) {
	t.Assert()
	b.listen(t)
	b.pending.Add(1)
}

// Untrack reverses Track for a job that never made it onto the intake queue.
func (b *Bridge) Untrack(t host.Thread) {
	t.Assert()
	if b.pending.Add(-1) == 0 {
		b.deafen(t)
	}
}

// Poll is the host tick hook. It performs at most one non-blocking receive,
// delivering that completion's callback on the host thread.
func (b *Bridge) Poll(t host.Thread) {
	t.Assert()

	delivered := int64(0)
	job, state := b.completions.TryPop()
	switch state {
	case RecvOK:
		delivered++
		b.deliver(t, job)
	case RecvEmpty:
		b.idleLog.Do(func() {
			b.logger.Debugw("waiting for completions", logger.FieldPending, b.pending.Load())
		})
	case RecvClosed:
		b.deafen(t)
		return
	}

	if delivered > 0 {
		remaining := b.pending.Add(-delivered)
		if remaining < 0 {
			// Every queued completion was counted by Track; this cannot happen
			// unless a job was sent twice.
			b.logger.Errorw("pending counter went negative",
				logger.FieldError, errors.AssertionFailedf("pending=%d after delivering %d", remaining, delivered))
			b.pending.Store(0)
			remaining = 0
		}
		if remaining == 0 {
			b.deafen(t)
		}
	}
}

func (b *Bridge) deliver(t host.Thread, job *Job) {
	cb := job.Callback
	job.Callback = nil

	if err := cb.Invoke(t, job.RawID, int(job.Result)); err != nil {
		b.logger.Warnw("callback failed",
			logger.FieldJobID, job.ID,
			logger.FieldID, job.RawID,
			logger.FieldStatus, job.Result,
			logger.FieldError, err,
		)
		return
	}
	b.logger.Debugw("delivered completion", logger.FieldJobID, job.ID, logger.FieldStatus, job.Result)
}

func (b *Bridge) listen(t host.Thread) {
	if b.subscribed {
		return
	}
	b.logger.Debugw("listen", logger.FieldHook, b.hookName)
	b.hooks.AddTick(t, b.hookName, b.Poll)
	b.subscribed = true
}

func (b *Bridge) deafen(t host.Thread) {
	if !b.subscribed {
		return
	}
	b.logger.Debugw("deafen", logger.FieldHook, b.hookName)
	b.hooks.RemoveTick(t, b.hookName)
	b.subscribed = false
}
