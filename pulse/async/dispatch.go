package async

import (
	"context"

	"github.com/teranos/fsasync/host"
	"github.com/teranos/fsasync/logger"
	"go.uber.org/zap"
)

// Validator maps a host identifier to a sandboxed path, or rejects it.
type Validator interface {
	Validate(id string) (string, bool)
}

// Request is one submission from the host
type Request struct {
	ID       string        // Raw identifier, relative to the sandbox root
	Data     []byte        // Payload; copied before Dispatch returns for async requests
	Callback host.Callback // Optional; consumed by Dispatch one way or another
	Sync     bool          // Execute inline on the host thread
	Mode     Mode
}

// Dispatcher turns requests into inline executions or queued jobs.
type Dispatcher struct {
	validator Validator
	executor  JobExecutor
	bridge    *Bridge
	enqueue   func(*Job) bool
	logger    *zap.SugaredLogger
}

// NewDispatcher creates a dispatcher. enqueue hands a job to the worker pool
// and reports false if the pool no longer accepts work.
func NewDispatcher(validator Validator, executor JobExecutor, bridge *Bridge, enqueue func(*Job) bool, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		validator: validator,
		executor:  executor,
		bridge:    bridge,
		enqueue:   enqueue,
		logger:    logger.Named("dispatch"),
	}
}

// Dispatch handles one request on the host thread.
//
// Invalid identifiers return StatusFileOpen without creating a job, touching
// the pending counter, or invoking the callback (which is released instead).
// Synchronous requests execute inline, invoke the callback immediately and
// return the outcome. Asynchronous requests return StatusOK once queued; the
// outcome arrives later through the callback, if there is one.
func (d *Dispatcher) Dispatch(t host.Thread, req Request) Status {
	t.Assert()

	path, ok := d.validator.Validate(req.ID)
	if !ok {
		d.logger.Debugw("rejected identifier", logger.FieldID, req.ID, logger.FieldMode, req.Mode)
		if req.Callback != nil {
			req.Callback.Release(t)
		}
		return StatusFileOpen
	}

	if req.Sync {
		return d.runSync(t, path, req)
	}
	return d.runAsync(t, path, req)
}

func (d *Dispatcher) runSync(t host.Thread, path string, req Request) Status {
	// The host is blocked for the duration by request; no copy needed
	job := &Job{RawID: req.ID, Path: path, Data: req.Data, Mode: req.Mode}
	status := d.executor.Execute(context.Background(), job)

	d.logger.Debugw("processed job [sync]", logger.FieldID, req.ID, logger.FieldMode, req.Mode, logger.FieldStatus, status)

	if req.Callback != nil {
		if err := req.Callback.Invoke(t, req.ID, int(status)); err != nil {
			d.logger.Warnw("callback failed", logger.FieldID, req.ID, logger.FieldStatus, status, logger.FieldError, err)
		}
	}
	// Real outcome, not OK: a host without a callback has no other way to see a failure
	return status
}

func (d *Dispatcher) runAsync(t host.Thread, path string, req Request) Status {
	job := NewJob(req.ID, path, req.Data, req.Mode, req.Callback)

	if job.HasCallback() {
		d.bridge.Track(t)
	}

	d.logger.Debugw("spawning job", logger.FieldJobID, job.ID, logger.FieldID, job.RawID, logger.FieldPath, job.Path, logger.FieldMode, job.Mode, logger.FieldSize, len(job.Data), logger.FieldCallback, job.HasCallback())

	if !d.enqueue(job) {
		if job.HasCallback() {
			d.bridge.Untrack(t)
			job.Callback.Release(t)
		}
		d.logger.Warnw("worker pool closed, job rejected", logger.FieldJobID, job.ID, logger.FieldID, job.RawID)
		return StatusFailure
	}
	return StatusOK
}
