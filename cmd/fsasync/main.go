package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/teranos/fsasync/cmd/fsasync/commands"
	"github.com/teranos/fsasync/logger"
)

var rootCmd = &cobra.Command{
	Use:   "fsasync",
	Short: "fsasync - Asynchronous sandboxed file writes",
	Long: `fsasync - Asynchronous sandboxed file writes for single-threaded hosts.

Writes and appends run on worker goroutines; results are delivered back on the
host thread one per tick. Identifiers are confined to the sandbox root and an
extension whitelist.

Available commands:
  write   - Truncate-write a file in the sandbox
  append  - Append to a file in the sandbox
  run     - Run a WebAssembly guest against the file module
  am      - Show fsasync configuration ("I am")
  version - Show version information

Examples:
  fsasync write notes.txt "hello" --callback   # Async write, print the result
  fsasync append log.txt "line" --sync         # Synchronous append
  fsasync run guest.wasm --entry main          # Run a guest
  fsasync am show --format yaml                # Show configuration`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLog, _ := cmd.Flags().GetBool("json-log")

		cfg, err := commands.LoadConfig(cmd)
		if err == nil && cfg.Log.JSON {
			jsonLog = true
		}

		if err := logger.InitializeWithLevel(jsonLog, logger.VerbosityToLevel(verbosity)); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.Debugw("logger initialized", logger.FieldVerbosity, logger.LevelName(verbosity))
		return nil
	},
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Bool("json-log", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().String("config", "", "Load configuration from this file only")

	// Add commands
	rootCmd.AddCommand(commands.WriteCmd)
	rootCmd.AddCommand(commands.AppendCmd)
	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	err := rootCmd.Execute()
	logger.Cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
