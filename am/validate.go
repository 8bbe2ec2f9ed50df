package am

import "github.com/teranos/fsasync/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Sandbox.Root == "" {
		return errors.NewInvalidConfigError("sandbox.root cannot be empty")
	}
	if len(c.Sandbox.Extensions) == 0 {
		return errors.NewInvalidConfigError("sandbox.extensions cannot be empty (nothing could ever be written)")
	}

	if c.Pulse.HookName == "" {
		return errors.NewInvalidConfigError("pulse.hook_name cannot be empty")
	}

	// 0 = unbounded, negative = invalid
	if c.Pulse.MaxInFlight < 0 {
		return errors.NewInvalidConfigError("pulse.max_in_flight must be >= 0, got %d", c.Pulse.MaxInFlight)
	}

	// 0 = abandon in-flight jobs immediately at shutdown
	if c.Pulse.ShutdownTimeout < 0 {
		return errors.NewInvalidConfigError("pulse.shutdown_timeout must be >= 0, got %s", c.Pulse.ShutdownTimeout)
	}

	if c.Host.TickInterval <= 0 {
		return errors.NewInvalidConfigError("host.tick_interval must be > 0, got %s", c.Host.TickInterval)
	}

	return nil
}
