// Package wasmhost runs a WebAssembly guest as the scripting environment of
// an fsasync host.
//
// The engine is the single-threaded host: every guest export it calls and
// every tick it runs executes on the calling goroutine, one at a time. Guests
// import two functions from module "file":
//
//	async_write(id_ptr, id_len, data_ptr, data_len, callback, sync i32) -> i32
//	async_append(id_ptr, id_len, data_ptr, data_len, callback, sync i32) -> i32
//
// callback is a guest-chosen non-zero token, or 0 for none. Results are
// delivered to the guest export fsasync_callback(token, id_ptr, id_len, status).
//
// Memory protocol: the raw identifier is copied into guest memory through the
// guest's wasm_alloc(size) -> ptr export and released with wasm_free(ptr, size)
// once fsasync_callback returns.
package wasmhost

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/teranos/fsasync/am"
	"github.com/teranos/fsasync/errors"
	"github.com/teranos/fsasync/host"
	"github.com/teranos/fsasync/logger"
	"github.com/teranos/fsasync/pulse/async"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

const (
	// ImportModule is the module name guests import the file functions from
	ImportModule = "file"

	// CallbackExport is the guest export results are delivered to
	CallbackExport = "fsasync_callback"

	allocExport = "wasm_alloc"
	freeExport  = "wasm_free"
)

// Engine wraps a wazero runtime with one instantiated guest module and the
// fsasync Module serving it. An Engine is not safe for concurrent use; the
// goroutine that calls Call and Think is the host thread.
type Engine struct {
	loop    *host.Loop
	files   *async.Module
	runtime wazero.Runtime
	guest   api.Module

	// ctx of the Call or Think currently running, for callback delivery
	ctx context.Context

	delivered int
	released  int
	closed    bool

	logger *zap.SugaredLogger
}

// Config controls guest instantiation
type Config struct {
	Name   string    // Guest module name; defaults to "guest"
	Stdout io.Writer // WASI stdout; defaults to os.Stdout
	Stderr io.Writer // WASI stderr; defaults to os.Stderr
	Logger *zap.SugaredLogger

	// Options are passed through to async.New
	Options []async.Option
}

// New compiles and instantiates guest against a fresh runtime. Start
// functions are not run; use Call to run the guest's entry point.
func New(ctx context.Context, cfg *am.Config, guest []byte, ec Config) (*Engine, error) {
	if ec.Name == "" {
		ec.Name = "guest"
	}
	if ec.Stdout == nil {
		ec.Stdout = os.Stdout
	}
	if ec.Stderr == nil {
		ec.Stderr = os.Stderr
	}
	if ec.Logger == nil {
		ec.Logger = logger.Logger
	}

	e := &Engine{
		loop:   host.NewLoop(),
		ctx:    ctx,
		logger: ec.Logger.Named("wasm"),
	}

	opts := append([]async.Option{async.WithLogger(ec.Logger)}, ec.Options...)
	files, err := async.New(cfg, e.loop, opts...)
	if err != nil {
		return nil, err
	}
	e.files = files

	r := wazero.NewRuntime(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		r.Close(ctx)
		return nil, errors.Wrap(err, "failed to instantiate WASI")
	}

	if err := e.instantiateFileModule(ctx, r); err != nil {
		r.Close(ctx)
		return nil, err
	}

	compiled, err := r.CompileModule(ctx, guest)
	if err != nil {
		r.Close(ctx)
		return nil, errors.Wrap(err, "wasm compile")
	}

	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().
		WithName(ec.Name).
		WithStartFunctions().
		WithStdout(ec.Stdout).
		WithStderr(ec.Stderr))
	if err != nil {
		r.Close(ctx)
		return nil, errors.Wrap(err, "wasm instantiate")
	}

	if mod.Memory() == nil {
		r.Close(ctx)
		return nil, errors.Wrap(errors.ErrGuestMemory, "guest exports no memory")
	}
	for _, name := range []string{allocExport, freeExport, CallbackExport} {
		if mod.ExportedFunction(name) == nil {
			e.logger.Warnw("guest is missing an export, callbacks will fail", logger.FieldExport, name)
		}
	}

	e.runtime = r
	e.guest = mod
	return e, nil
}

// instantiateFileModule registers the "file" host module
func (e *Engine) instantiateFileModule(ctx context.Context, r wazero.Runtime) error {
	params := []api.ValueType{
		api.ValueTypeI32, api.ValueTypeI32, // id
		api.ValueTypeI32, api.ValueTypeI32, // data
		api.ValueTypeI32, // callback token
		api.ValueTypeI32, // sync
	}
	results := []api.ValueType{api.ValueTypeI32}

	_, err := r.NewHostModuleBuilder(ImportModule).
		NewFunctionBuilder().
		WithGoModuleFunction(e.fileFunc(async.ModeWrite), params, results).
		Export("async_write").
		NewFunctionBuilder().
		WithGoModuleFunction(e.fileFunc(async.ModeAppend), params, results).
		Export("async_append").
		Instantiate(ctx)
	if err != nil {
		return errors.Wrapf(err, "wasm instantiate host module %q", ImportModule)
	}
	return nil
}

func (e *Engine) fileFunc(mode async.Mode) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		idPtr := api.DecodeU32(stack[0])
		idLen := api.DecodeU32(stack[1])
		dataPtr := api.DecodeU32(stack[2])
		dataLen := api.DecodeU32(stack[3])
		token := api.DecodeU32(stack[4])
		synchronous := api.DecodeU32(stack[5]) != 0

		// Guest code only runs inside Call or Think, so this nests
		t, exit := e.loop.Enter()
		defer exit()
		prev := e.ctx
		e.ctx = ctx
		defer func() { e.ctx = prev }()

		status := e.submit(t, mod, mode, idPtr, idLen, dataPtr, dataLen, token, synchronous)
		stack[0] = api.EncodeI32(int32(status))
	}
}

func (e *Engine) submit(t host.Thread, mod api.Module, mode async.Mode, idPtr, idLen, dataPtr, dataLen, token uint32, synchronous bool) async.Status {
	mem := mod.Memory()

	idBytes, ok := mem.Read(idPtr, idLen)
	if !ok {
		e.logger.Debugw("guest id out of range", logger.FieldPtr, idPtr, logger.FieldLen, idLen)
		return async.StatusFailure
	}
	data, ok := mem.Read(dataPtr, dataLen)
	if !ok {
		e.logger.Debugw("guest data out of range", logger.FieldPtr, dataPtr, logger.FieldLen, dataLen)
		return async.StatusFailure
	}

	var cb host.Callback
	if token != 0 {
		cb = &guestCallback{engine: e, token: token}
	}

	// data aliases guest memory; async jobs copy it before Submit returns and
	// synchronous ones finish with it before the guest resumes
	return e.files.Submit(t, async.Request{
		ID:       string(idBytes),
		Data:     data,
		Callback: cb,
		Sync:     synchronous,
		Mode:     mode,
	})
}

// Call runs a guest export as a host entry point.
func (e *Engine) Call(ctx context.Context, export string, params ...uint64) ([]uint64, error) {
	if e.closed {
		return nil, errors.Wrapf(errors.ErrClosed, "wasm call %s", export)
	}
	fn := e.guest.ExportedFunction(export)
	if fn == nil {
		return nil, errors.Newf("wasm: missing export %q", export)
	}

	var (
		results []uint64
		err     error
	)
	e.enter(ctx, func(host.Thread) {
		results, err = fn.Call(ctx, params...)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "wasm call %s", export)
	}
	return results, nil
}

// Think runs one host tick, delivering at most one completion to the guest.
// It does nothing once the engine is closed.
func (e *Engine) Think(ctx context.Context) {
	if e.closed {
		return
	}
	prev := e.ctx
	e.ctx = ctx
	defer func() { e.ctx = prev }()
	e.loop.Think()
}

// Run ticks every interval until no completions are pending or ctx ends.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	if e.closed {
		return errors.Wrap(errors.ErrClosed, "wasm run")
	}
	prev := e.ctx
	e.ctx = ctx
	defer func() { e.ctx = prev }()

	return e.loop.Run(ctx, interval, func() bool { return e.files.Pending() == 0 })
}

// Pending returns the number of guest callbacks not yet delivered.
func (e *Engine) Pending() int64 { return e.files.Pending() }

// Subscribed reports whether the poll hook is registered.
func (e *Engine) Subscribed() bool { return e.files.Subscribed() }

// Delivered returns the number of callbacks delivered to the guest.
func (e *Engine) Delivered() int { return e.delivered }

// Released returns the number of callback tokens dropped without delivery.
func (e *Engine) Released() int { return e.released }

// Ticks returns the number of host ticks run so far.
func (e *Engine) Ticks() uint64 { return e.loop.Ticks() }

// Guest returns the instantiated guest module.
func (e *Engine) Guest() api.Module { return e.guest }

// Close shuts down the worker pool, then releases all WASM resources.
func (e *Engine) Close(ctx context.Context) error {
	if e.closed {
		return nil
	}
	e.closed = true

	err := e.files.Close(ctx)
	if cerr := e.runtime.Close(ctx); cerr != nil {
		err = errors.CombineErrors(err, errors.Wrap(cerr, "wasm runtime close"))
	}
	return err
}

func (e *Engine) enter(ctx context.Context, fn func(host.Thread)) {
	prev := e.ctx
	e.ctx = ctx
	defer func() { e.ctx = prev }()
	e.loop.Call(fn)
}
