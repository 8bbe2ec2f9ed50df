package host

import (
	"fmt"
	"sync/atomic"
)

// Affinity tracks whether the host is currently inside one of its own entry
// points. Host implementations embed one and mint a Thread on every entry.
type Affinity struct {
	depth atomic.Int32
	epoch atomic.Uint64
}

// Enter marks the start of a host entry point and returns the capability for
// it plus the function that ends it. Nested entries (a callback that submits
// another request) share the outer capability.
func (a *Affinity) Enter() (Thread, func()) {
	if a.depth.Add(1) == 1 {
		a.epoch.Add(1)
	}
	return Thread{affinity: a, epoch: a.epoch.Load()}, func() { a.depth.Add(-1) }
}

// Active reports whether a host entry point is executing.
func (a *Affinity) Active() bool {
	return a.depth.Load() > 0
}

// Thread is proof that the holder is running on the host thread. It is only
// valid for the duration of the entry point that minted it and must not be
// retained or handed to another goroutine.
type Thread struct {
	affinity *Affinity
	epoch    uint64
}

// Valid reports whether t belongs to the host entry point currently running.
func (t Thread) Valid() bool {
	return t.affinity != nil &&
		t.affinity.depth.Load() > 0 &&
		t.affinity.epoch.Load() == t.epoch
}

// Assert panics in fsasync_debug builds when t is used outside the entry
// point that minted it. Release builds compile it to nothing.
func (t Thread) Assert() {
	if debugAssertions && !t.Valid() {
		panic(fmt.Sprintf("host: thread capability used outside its host entry point (epoch %d)", t.epoch))
	}
}
