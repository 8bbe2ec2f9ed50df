// Package am loads fsasync configuration ("I am") from defaults, TOML files
// and FSASYNC_* environment variables.
package am

import "time"

// Config represents the fsasync configuration
type Config struct {
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Pulse   PulseConfig   `mapstructure:"pulse"`
	Host    HostConfig    `mapstructure:"host"`
	Log     LogConfig     `mapstructure:"log"`
}

// SandboxConfig configures where host identifiers may resolve to
type SandboxConfig struct {
	Root       string   `mapstructure:"root"`       // All writes are confined below this directory
	Extensions []string `mapstructure:"extensions"` // Permitted file extensions, without the dot
}

// PulseConfig configures the async write pipeline
type PulseConfig struct {
	HookName        string        `mapstructure:"hook_name"`        // Name the poll hook is registered under
	MaxInFlight     int           `mapstructure:"max_in_flight"`    // 0 = unbounded (one goroutine per job)
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // Grace period for in-flight jobs at teardown
	Fsync           bool          `mapstructure:"fsync"`            // Sync file contents before reporting completion
}

// HostConfig configures the reference host loop used by the CLI
type HostConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// LogConfig configures log output
type LogConfig struct {
	JSON bool `mapstructure:"json"`
}

// Default values
const (
	DefaultSandboxRoot     = "garrysmod/data"
	DefaultHookName        = "fsasync"
	DefaultShutdownTimeout = 20 * time.Second
	DefaultTickInterval    = 15 * time.Millisecond

	// DefaultDirPermissions is used when creating ~/.fsasync
	DefaultDirPermissions = 0o755
)

// DefaultExtensions is the whitelist of file types considered safe to write
var DefaultExtensions = []string{
	"txt", "dat", "json", "xml", "csv", "jpg",
	"jpeg", "png", "vtf", "vmt", "mp3", "wav",
	"ogg",
}
