package am

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Sandbox defaults
	v.SetDefault("sandbox.root", DefaultSandboxRoot)
	v.SetDefault("sandbox.extensions", DefaultExtensions)

	// Pulse (async write pipeline) defaults
	v.SetDefault("pulse.hook_name", DefaultHookName)
	v.SetDefault("pulse.max_in_flight", 0) // Unbounded, one goroutine per job
	v.SetDefault("pulse.shutdown_timeout", DefaultShutdownTimeout)
	v.SetDefault("pulse.fsync", false)

	// Host loop defaults
	v.SetDefault("host.tick_interval", DefaultTickInterval)

	// Logging defaults
	v.SetDefault("log.json", false)
}

// Default returns a Config populated only from defaults
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadWithViper(v)
	if err != nil {
		// Defaults are static; failing to decode them is a programming error
		panic(err)
	}
	return cfg
}
