package async

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/teranos/fsasync/am"
	"github.com/teranos/fsasync/host"
	"go.uber.org/zap"
)

// createTestConfig creates a default config sandboxed to a temp dir
func createTestConfig(t *testing.T) *am.Config {
	t.Helper()
	cfg := am.Default()
	cfg.Sandbox.Root = t.TempDir()
	cfg.Pulse.ShutdownTimeout = 5 * time.Second
	return cfg
}

// createTestLogger creates a no-op logger for testing
func createTestLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// newTestModule builds a Module on a fresh host loop and closes it at cleanup
func newTestModule(t *testing.T, cfg *am.Config, opts ...Option) (*Module, *host.Loop) {
	t.Helper()
	loop := host.NewLoop()
	opts = append([]Option{WithLogger(createTestLogger())}, opts...)
	m, err := New(cfg, loop, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Close(ctx)
	})
	return m, loop
}

// driveUntil ticks the host loop until done reports true
func driveUntil(t *testing.T, loop *host.Loop, done func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !done() {
		if time.Now().After(deadline) {
			t.Fatal("timed out driving host ticks")
		}
		loop.Think()
		time.Sleep(time.Millisecond)
	}
}

type callbackResult struct {
	id     string
	status int
}

// recorder registers callbacks and remembers every invocation
type recorder struct {
	calls []callbackResult
}

func (r *recorder) callback(loop *host.Loop, th host.Thread) host.Callback {
	return loop.Register(th, func(id string, status int) {
		r.calls = append(r.calls, callbackResult{id: id, status: status})
	})
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// blockingExecutor parks every job until release is closed
type blockingExecutor struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{
		started: make(chan struct{}, 64),
		release: make(chan struct{}),
	}
}

func (e *blockingExecutor) Execute(_ context.Context, _ *Job) Status {
	e.started <- struct{}{}
	<-e.release
	return StatusOK
}

// concurrencyExecutor records the highest number of simultaneous executions
type concurrencyExecutor struct {
	current atomic.Int64
	max     atomic.Int64
	done    atomic.Int64
	hold    time.Duration
}

func (e *concurrencyExecutor) Execute(_ context.Context, _ *Job) Status {
	n := e.current.Add(1)
	for {
		m := e.max.Load()
		if n <= m || e.max.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(e.hold)
	e.current.Add(-1)
	e.done.Add(1)
	return StatusOK
}
