// Package host models the single-threaded cooperative environment that calls
// into fsasync: a thread capability, a periodic tick facility and one-shot
// callback handles.
//
// Everything in this package that takes a Thread may only be used from the
// host thread, i.e. from inside an entry point the host itself invoked.
package host

// TickFunc is run by the host once per tick while subscribed.
type TickFunc func(t Thread)

// Hooks is the host's periodic-tick facility. Adding a hook under a name that
// is already subscribed replaces it rather than adding a second one.
type Hooks interface {
	AddTick(t Thread, name string, fn TickFunc)
	RemoveTick(t Thread, name string)
}

// Callback is a one-shot handle to a host-side callable, registered when a
// request is submitted. Exactly one of Invoke or Release is called, once.
type Callback interface {
	// Invoke calls the host function with the raw identifier and status code,
	// then releases the handle.
	Invoke(t Thread, id string, status int) error
	// Release drops the handle without calling it.
	Release(t Thread)
}
