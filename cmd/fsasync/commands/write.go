package commands

import (
	"context"
	"io"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/fsasync/errors"
	"github.com/teranos/fsasync/host"
	"github.com/teranos/fsasync/logger"
	"github.com/teranos/fsasync/pulse/async"
)

// WriteCmd truncate-writes a file in the sandbox
var WriteCmd = &cobra.Command{
	Use:   "write <id> <data>",
	Short: "Truncate-write a file in the sandbox",
	Long: `Write data to the file named by id, relative to the sandbox root.
The file is created if absent and truncated otherwise. Pass "-" as data to
read it from stdin.

Examples:
  fsasync write notes.txt "hello"
  fsasync write notes.txt "hello" --sync
  cat image.png | fsasync write shots/a.png - --callback`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFileOp(cmd, args, async.ModeWrite)
	},
}

// AppendCmd appends to a file in the sandbox
var AppendCmd = &cobra.Command{
	Use:   "append <id> <data>",
	Short: "Append to a file in the sandbox",
	Long: `Append data to the file named by id, relative to the sandbox root,
creating it if absent. Pass "-" as data to read it from stdin.

Examples:
  fsasync append log.txt "line\n"
  fsasync append log.txt "line\n" --sync --callback`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFileOp(cmd, args, async.ModeAppend)
	},
}

var (
	fileSync     bool
	fileCallback bool
	fileTimeout  time.Duration
)

func init() {
	for _, c := range []*cobra.Command{WriteCmd, AppendCmd} {
		c.Flags().BoolVar(&fileSync, "sync", false, "Perform the operation on the host thread before returning")
		c.Flags().BoolVar(&fileCallback, "callback", false, "Register a callback and print its result")
		c.Flags().DurationVar(&fileTimeout, "timeout", 30*time.Second, "Give up waiting for completion after this long")
	}
}

func runFileOp(cmd *cobra.Command, args []string, mode async.Mode) error {
	id := args[0]
	data, err := readData(cmd, args[1])
	if err != nil {
		return err
	}

	cfg, err := LoadConfig(cmd)
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	loop := host.NewLoop()
	m, err := async.New(cfg, loop, async.WithLogger(logger.ComponentLogger("fsasync")))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), fileTimeout)
	defer cancel()

	var (
		status    async.Status
		delivered bool
		result    async.Status
	)
	loop.Call(func(t host.Thread) {
		var cb host.Callback
		if fileCallback {
			cb = loop.Register(t, func(_ string, s int) {
				delivered = true
				result = async.Status(s)
			})
		}
		if mode == async.ModeAppend {
			status = m.Append(t, id, data, cb, fileSync)
		} else {
			status = m.Write(t, id, data, cb, fileSync)
		}
	})

	if status.IsError() {
		_ = m.Close(ctx)
		pterm.Error.Printfln("%s %s: %s", mode, id, status)
		return errors.Newf("%s %s failed with %s", mode, id, status)
	}

	// Tick until the callback has been delivered
	runErr := loop.Run(ctx, cfg.Host.TickInterval, func() bool { return m.Pending() == 0 })
	closeErr := m.Close(ctx)
	if runErr != nil {
		return errors.Wrapf(runErr, "waiting for %s %s", mode, id)
	}
	if closeErr != nil {
		return closeErr
	}

	if !fileCallback {
		pterm.Success.Printfln("%s %s: %d bytes (%s)", mode, id, len(data), status)
		return nil
	}
	if !delivered {
		return errors.Newf("%s %s: callback never ran", mode, id)
	}
	if result.IsError() {
		pterm.Error.Printfln("%s %s: callback %s", mode, id, result)
		return errors.Newf("%s %s failed with %s", mode, id, result)
	}
	pterm.Success.Printfln("%s %s: %d bytes, callback %s after %d ticks", mode, id, len(data), result, loop.Ticks())
	return nil
}

func readData(cmd *cobra.Command, arg string) ([]byte, error) {
	if arg != "-" {
		return []byte(arg), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, errors.Wrap(err, "failed to read data from stdin")
	}
	return data, nil
}
