package commands

import (
	"context"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/fsasync/errors"
	"github.com/teranos/fsasync/logger"
	"github.com/teranos/fsasync/wasmhost"
)

// RunCmd runs a WebAssembly guest with the file module available
var RunCmd = &cobra.Command{
	Use:   "run <guest.wasm>",
	Short: "Run a WebAssembly guest against the file module",
	Long: `Instantiate a WebAssembly guest, call its entry point and tick the host
until every callback the guest registered has been delivered.

The guest imports async_write and async_append from module "file" and exports
fsasync_callback, wasm_alloc and wasm_free. WASI preview1 is available.

Examples:
  fsasync run guest.wasm
  fsasync run guest.wasm --entry main --timeout 5s`,
	Args: cobra.ExactArgs(1),
	RunE: runGuest,
}

var (
	runEntry   string
	runTimeout time.Duration
)

func init() {
	RunCmd.Flags().StringVar(&runEntry, "entry", "_start", "Guest export to call")
	RunCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Second, "Give up waiting for callbacks after this long")
}

func runGuest(cmd *cobra.Command, args []string) error {
	guest, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrapf(err, "failed to read guest %s", args[0])
	}

	cfg, err := LoadConfig(cmd)
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	engine, err := wasmhost.New(ctx, cfg, guest, wasmhost.Config{
		Name:   args[0],
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
		Logger: logger.ComponentLogger("fsasync"),
	})
	if err != nil {
		return err
	}

	start := time.Now()
	if _, err := engine.Call(ctx, runEntry); err != nil {
		_ = engine.Close(ctx)
		return err
	}

	runErr := engine.Run(ctx, cfg.Host.TickInterval)
	pending := engine.Pending()
	if err := engine.Close(ctx); err != nil {
		logger.Warnw("guest shutdown incomplete", logger.FieldError, err)
	}
	if runErr != nil {
		return errors.WithDetailf(runErr, "%d callbacks still pending", pending)
	}

	pterm.Success.Printfln("%s: %d callbacks delivered, %d released, %d ticks in %s",
		args[0], engine.Delivered(), engine.Released(), engine.Ticks(), time.Since(start).Round(time.Millisecond))
	return nil
}
