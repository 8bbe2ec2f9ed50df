package async

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/teranos/fsasync/am"
	"github.com/teranos/fsasync/errors"
	"github.com/teranos/fsasync/host"
	"github.com/teranos/fsasync/logger"
	"github.com/teranos/fsasync/sandbox"
	"go.uber.org/zap"
)

// Module is the process-wide state for one host: the intake queue, the
// completion bridge and the lazily started worker pool. Construct one when the
// host loads the module and Close it when the host unloads it.
type Module struct {
	config *am.Config

	intake     *Queue[*Job]
	bridge     *Bridge
	dispatcher *Dispatcher
	executor   JobExecutor

	poolOnce sync.Once
	pool     atomic.Pointer[WorkerPool]
	closed   atomic.Bool

	logger *zap.SugaredLogger
}

// Option configures a Module
type Option func(*moduleOptions)

type moduleOptions struct {
	executor  JobExecutor
	validator Validator
	logger    *zap.SugaredLogger
}

// WithExecutor replaces the filesystem executor (tests use this to control timing).
func WithExecutor(e JobExecutor) Option {
	return func(o *moduleOptions) { o.executor = e }
}

// WithValidator replaces the sandbox validator built from the config.
func WithValidator(v Validator) Option {
	return func(o *moduleOptions) { o.validator = v }
}

// WithLogger sets the logger; defaults to logger.Logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *moduleOptions) { o.logger = l }
}

// New creates a Module bound to the host's tick facility. No goroutines are
// started until the first asynchronous request.
func New(cfg *am.Config, hooks host.Hooks, opts ...Option) (*Module, error) {
	if cfg == nil {
		return nil, errors.New("async: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "async: invalid config")
	}
	if hooks == nil {
		return nil, errors.New("async: nil host hooks")
	}

	o := moduleOptions{logger: logger.Logger}
	for _, opt := range opts {
		opt(&o)
	}
	if o.executor == nil {
		o.executor = FileExecutor{Fsync: cfg.Pulse.Fsync}
	}
	if o.validator == nil {
		o.validator = sandbox.New(cfg.Sandbox.Root, sandbox.NewWhitelist(cfg.Sandbox.Extensions))
	}

	m := &Module{
		config:   cfg,
		intake:   NewQueue[*Job](),
		executor: o.executor,
		logger:   o.logger,
	}
	m.bridge = NewBridge(hooks, cfg.Pulse.HookName, o.logger)
	m.dispatcher = NewDispatcher(o.validator, o.executor, m.bridge, m.enqueue, o.logger)
	return m, nil
}

// Write truncates (or creates) the file named by id and writes data to it.
func (m *Module) Write(t host.Thread, id string, data []byte, cb host.Callback, synchronous bool) Status {
	return m.Submit(t, Request{ID: id, Data: data, Callback: cb, Sync: synchronous, Mode: ModeWrite})
}

// Append appends data to the file named by id, creating it if needed.
func (m *Module) Append(t host.Thread, id string, data []byte, cb host.Callback, synchronous bool) Status {
	return m.Submit(t, Request{ID: id, Data: data, Callback: cb, Sync: synchronous, Mode: ModeAppend})
}

// Submit dispatches a request on the host thread. After Close every request
// fails with StatusFailure and its callback is released uninvoked.
func (m *Module) Submit(t host.Thread, req Request) Status {
	if m.closed.Load() {
		if req.Callback != nil {
			req.Callback.Release(t)
		}
		return StatusFailure
	}
	return m.dispatcher.Dispatch(t, req)
}

// Pending returns the number of callback-bound jobs not yet delivered.
func (m *Module) Pending() int64 { return m.bridge.Pending() }

// Subscribed reports whether the poll hook is registered with the host.
func (m *Module) Subscribed() bool { return m.bridge.Subscribed() }

// Started reports whether the worker pool has been created.
func (m *Module) Started() bool { return m.workerPool(false) != nil }

// Close shuts the worker pool down, waiting for in-flight jobs until ctx's
// deadline or, without one, the configured shutdown timeout.
func (m *Module) Close(ctx context.Context) error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	pool := m.workerPool(false)
	if pool == nil {
		m.intake.Close()
		m.bridge.Close()
		return nil
	}

	m.logger.Infow("shutting down worker pool", logger.FieldTimeout, m.config.Pulse.ShutdownTimeout)
	return pool.Stop(ctx)
}

func (m *Module) enqueue(job *Job) bool {
	return m.workerPool(true).intake.Push(job)
}

// workerPool returns the pool, creating and starting it on first use when
// create is set.
func (m *Module) workerPool(create bool) *WorkerPool {
	if create {
		m.poolOnce.Do(func() {
			pool := NewWorkerPool(m.intake, m.bridge, m.executor, WorkerPoolConfig{
				MaxInFlight:     m.config.Pulse.MaxInFlight,
				ShutdownTimeout: m.config.Pulse.ShutdownTimeout,
			}, m.logger)
			pool.Start()
			m.pool.Store(pool)
		})
	}
	return m.pool.Load()
}
