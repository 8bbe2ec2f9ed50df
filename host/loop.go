package host

import (
	"context"
	"time"

	"github.com/teranos/fsasync/errors"
)

// Function is a host-side callable as seen by the reference loop.
type Function func(id string, status int)

// Ref identifies a registered Function in the loop's registry.
type Ref int

// Loop is an in-process cooperative host: a single goroutine drives it by
// calling Call for entry points and Think for ticks. It is not safe for
// concurrent use, which is the point; workers never see it.
type Loop struct {
	Affinity

	hooks     map[string]TickFunc
	hookOrder []string

	registry map[Ref]Function
	nextRef  Ref

	ticks uint64
}

// NewLoop creates an idle host loop with no hooks and an empty registry.
func NewLoop() *Loop {
	return &Loop{
		hooks:    make(map[string]TickFunc),
		registry: make(map[Ref]Function),
	}
}

// Call runs fn as a host entry point.
func (l *Loop) Call(fn func(t Thread)) {
	t, exit := l.Enter()
	defer exit()
	fn(t)
}

// Think runs one host tick: every subscribed hook once, in subscription order.
// Hooks added or removed during the tick take effect from the next tick,
// except that a removed hook is not run.
func (l *Loop) Think() {
	t, exit := l.Enter()
	defer exit()

	l.ticks++
	names := append([]string(nil), l.hookOrder...)
	for _, name := range names {
		if fn, ok := l.hooks[name]; ok {
			fn(t)
		}
	}
}

// Run ticks every interval until done reports true or ctx ends.
func (l *Loop) Run(ctx context.Context, interval time.Duration, done func() bool) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if done != nil && done() {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "host loop stopped")
		case <-ticker.C:
			l.Think()
		}
	}
}

// Ticks returns the number of ticks run so far.
func (l *Loop) Ticks() uint64 { return l.ticks }

// AddTick subscribes fn under name, replacing any hook of the same name.
func (l *Loop) AddTick(t Thread, name string, fn TickFunc) {
	t.Assert()
	if _, ok := l.hooks[name]; !ok {
		l.hookOrder = append(l.hookOrder, name)
	}
	l.hooks[name] = fn
}

// RemoveTick unsubscribes the hook registered under name, if any.
func (l *Loop) RemoveTick(t Thread, name string) {
	t.Assert()
	if _, ok := l.hooks[name]; !ok {
		return
	}
	delete(l.hooks, name)
	for i, n := range l.hookOrder {
		if n == name {
			l.hookOrder = append(l.hookOrder[:i], l.hookOrder[i+1:]...)
			break
		}
	}
}

// Subscribed reports whether a hook is registered under name.
func (l *Loop) Subscribed(name string) bool {
	_, ok := l.hooks[name]
	return ok
}

// HookCount returns the number of subscribed hooks.
func (l *Loop) HookCount() int { return len(l.hooks) }

// Register stores fn in the registry and returns a one-shot handle to it.
func (l *Loop) Register(t Thread, fn Function) Callback {
	t.Assert()
	l.nextRef++
	l.registry[l.nextRef] = fn
	return &loopCallback{loop: l, ref: l.nextRef}
}

// Live returns the number of registered handles not yet consumed.
func (l *Loop) Live() int { return len(l.registry) }

type loopCallback struct {
	loop *Loop
	ref  Ref
}

func (c *loopCallback) Invoke(t Thread, id string, status int) error {
	t.Assert()
	fn, ok := c.loop.registry[c.ref]
	if !ok {
		return errors.Newf("callback ref %d already consumed", c.ref)
	}
	delete(c.loop.registry, c.ref)
	fn(id, status)
	return nil
}

func (c *loopCallback) Release(t Thread) {
	t.Assert()
	delete(c.loop.registry, c.ref)
}
