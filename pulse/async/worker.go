package async

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teranos/fsasync/errors"
	"github.com/teranos/fsasync/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// pulseLogger wraps zap.SugaredLogger with special methods for Pulse operations
// Uses different log levels to create visual distinction:
// - DEBUG level → STARTING (✿ Opening operations)
// - WARN level → CLOSING (❀ Closing operations)
// - INFO level → PULSE (general worker operations)
type pulseLogger struct {
	*zap.SugaredLogger
}

// Starting logs an Opening (✿) event
func (l pulseLogger) Starting(msg string, keysAndValues ...interface{}) {
	l.Debugw("✿ "+msg, keysAndValues...)
}

// Closing logs a Closing (❀) event
func (l pulseLogger) Closing(msg string, keysAndValues ...interface{}) {
	l.Warnw("❀ "+msg, keysAndValues...)
}

// Pulse logs general Pulse/worker operations
func (l pulseLogger) Pulse(msg string, keysAndValues ...interface{}) {
	l.Infow(msg, keysAndValues...)
}

// JobExecutor performs the file operation a Job describes and reports the
// outcome. Implementations run on worker goroutines and on the host thread
// (synchronous requests), so they must not touch host state.
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) Status
}

// FileExecutor writes jobs to the local filesystem.
type FileExecutor struct {
	Fsync bool // Sync file contents to stable storage before reporting success
}

// Execute opens the job's path (truncating or appending, creating if absent),
// writes the whole payload and closes the file.
func (e FileExecutor) Execute(_ context.Context, job *Job) Status {
	flags := os.O_WRONLY | os.O_CREATE
	if job.Mode == ModeAppend {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(job.Path, flags, 0o644)
	if err != nil {
		return ClassifyError(StageOpen, err)
	}

	if _, err := f.Write(job.Data); err != nil {
		f.Close()
		return ClassifyError(StageWrite, err)
	}
	if e.Fsync {
		if err := f.Sync(); err != nil {
			f.Close()
			return ClassifyError(StageSync, err)
		}
	}
	if err := f.Close(); err != nil {
		return ClassifyError(StageClose, err)
	}
	return StatusOK
}

// WorkerPoolConfig contains configuration for the worker pool
type WorkerPoolConfig struct {
	MaxInFlight     int           // 0 = unbounded, one goroutine per job
	ShutdownTimeout time.Duration // Used by Stop when the caller's context has no deadline
}

// WorkerPool drains the intake queue on a single consumer goroutine and runs
// each Job on its own goroutine. There is no ordering between jobs, including
// jobs for the same path.
type WorkerPool struct {
	intake   *Queue[*Job]
	bridge   *Bridge
	executor JobExecutor
	config   WorkerPoolConfig
	sem      *semaphore.Weighted // nil when unbounded

	ctx    context.Context
	cancel context.CancelFunc

	consumerDone chan struct{}
	inflight     sync.WaitGroup
	active       atomic.Int64
	processed    atomic.Int64

	startOnce sync.Once
	stopOnce  sync.Once
	stopErr   error

	logger pulseLogger
}

// NewWorkerPool creates a worker pool consuming intake and delivering
// callback-bound results to bridge. Call Start before submitting.
func NewWorkerPool(intake *Queue[*Job], bridge *Bridge, executor JobExecutor, cfg WorkerPoolConfig, logger *zap.SugaredLogger) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	wp := &WorkerPool{
		intake:       intake,
		bridge:       bridge,
		executor:     executor,
		config:       cfg,
		ctx:          ctx,
		cancel:       cancel,
		consumerDone: make(chan struct{}),
		logger:       pulseLogger{logger.Named("pulse")},
	}
	if cfg.MaxInFlight > 0 {
		wp.sem = semaphore.NewWeighted(int64(cfg.MaxInFlight))
	}
	return wp
}

// Start launches the consumer goroutine. Calling it again is a no-op.
func (wp *WorkerPool) Start() {
	wp.startOnce.Do(func() {
		wp.logger.Starting("spawning worker pool", logger.FieldMaxInFlight, wp.config.MaxInFlight)
		go wp.consume()
	})
}

// Stop closes the intake queue and waits for queued and in-flight jobs to
// finish. If ctx has no deadline, the configured shutdown timeout applies.
// Jobs still running at the deadline are abandoned: their results are
// dropped and Stop returns ErrShutdownTimeout. The bridge is closed either
// way, which unsubscribes the poll hook once it has drained.
func (wp *WorkerPool) Stop(ctx context.Context) error {
	wp.stopOnce.Do(func() {
		wp.stopErr = wp.stop(ctx)
	})
	return wp.stopErr
}

func (wp *WorkerPool) stop(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wp.config.ShutdownTimeout)
		defer cancel()
	}

	wp.intake.Close()
	// Stop before Start: nothing will ever consume the intake
	wp.startOnce.Do(func() { close(wp.consumerDone) })

	done := make(chan struct{})
	go func() {
		<-wp.consumerDone
		wp.inflight.Wait()
		close(done)
	}()

	defer wp.bridge.Close()

	select {
	case <-done:
		wp.cancel()
		wp.logger.Pulse("worker pool stopped", logger.FieldProcessed, wp.processed.Load())
		return nil
	case <-ctx.Done():
		abandoned := wp.active.Load() + int64(wp.intake.Len())
		wp.cancel()
		wp.logger.Closing("worker pool shutdown timed out, abandoning jobs", logger.FieldAbandoned, abandoned)
		return errors.Wrapf(errors.ErrShutdownTimeout, "%d jobs abandoned", abandoned)
	}
}

// Active returns the number of jobs currently executing.
func (wp *WorkerPool) Active() int { return int(wp.active.Load()) }

// Processed returns the number of jobs that finished executing.
func (wp *WorkerPool) Processed() int { return int(wp.processed.Load()) }

// consume is the single long-lived intake consumer
func (wp *WorkerPool) consume() {
	defer close(wp.consumerDone)
	wp.logger.Starting("worker consumer started")

	for {
		job, ok := wp.intake.Pop(wp.ctx)
		if !ok {
			wp.logger.Debugw("worker consumer exiting")
			return
		}

		if wp.sem != nil {
			if err := wp.sem.Acquire(wp.ctx, 1); err != nil {
				// Abandoned at shutdown
				return
			}
		}

		wp.inflight.Add(1)
		wp.active.Add(1)
		go wp.process(job)
	}
}

// process executes one job and hands callback-bound results to the bridge
func (wp *WorkerPool) process(job *Job) {
	defer func() {
		wp.active.Add(-1)
		wp.processed.Add(1)
		if wp.sem != nil {
			wp.sem.Release(1)
		}
		wp.inflight.Done()
	}()

	jobLog := logger.ChildLogger(wp.logger.SugaredLogger, logger.FieldJobID, job.ID)

	status := wp.executor.Execute(wp.ctx, job)
	job.Data = nil

	if !job.HasCallback() {
		// Fire-and-forget: the caller declared no interest in the outcome
		jobLog.Debugw("processed job [no callback]")
		return
	}

	job.Result = status
	jobLog.Debugw("processed job [calling back]", logger.FieldStatus, status)
	if !wp.bridge.Send(job) {
		jobLog.Debugw("bridge closed, dropping completion")
	}
}
