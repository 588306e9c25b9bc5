package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rovlink/rovconsole/internal/command"
	"github.com/rovlink/rovconsole/internal/connection"
)

// Validate checks that all required fields are set and values are valid.
func (c *ConsoleConfig) Validate() error {
	if c.Vehicle.Port < 1 || c.Vehicle.Port > 65535 {
		return fmt.Errorf("vehicle.port must be between 1 and 65535, got %d", c.Vehicle.Port)
	}
	if c.Vehicle.Address != "" {
		if _, err := connection.ParseAddress(c.Vehicle.Address, c.Vehicle.Port); err != nil {
			return fmt.Errorf("vehicle.address: %w", err)
		}
	}

	if c.Connection.ConnectTimeout <= 0 {
		return errors.New("connection.connect_timeout must be > 0")
	}
	if c.Connection.RetryDelay < 0 {
		return errors.New("connection.retry_delay must be >= 0")
	}
	if c.Connection.MaxRetryAttempts < 1 {
		return errors.New("connection.max_retry_attempts must be >= 1")
	}
	if c.Connection.PingTimeout < c.Connection.PingInterval {
		return fmt.Errorf("connection.ping_timeout (%s) cannot be shorter than ping_interval (%s)",
			c.Connection.PingTimeout, c.Connection.PingInterval)
	}
	if c.Connection.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}

	if !c.Storage.Disabled && c.Storage.Path == "" {
		return errors.New("storage.path is required")
	}

	if c.Telemetry.Enabled {
		if err := c.Telemetry.Database.validate("telemetry.database"); err != nil {
			return err
		}
		if c.Telemetry.BatchSize < 1 {
			return errors.New("telemetry.batch_size must be >= 1")
		}
		if c.Telemetry.BufferSize < 1 {
			return errors.New("telemetry.buffer_size must be >= 1")
		}
	}

	if c.Diagnostics.Port < 0 || c.Diagnostics.Port > 65535 {
		return fmt.Errorf("diagnostics.port must be between 0 and 65535, got %d", c.Diagnostics.Port)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	names := make([]string, 0, len(c.Locks))
	for name := range c.Locks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := command.Lookup(command.Feature(name)); !ok {
			return fmt.Errorf("locks.%s: unknown feature", name)
		}
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

// ApplyLocks applies the configured lock overrides to l.
func (c *ConsoleConfig) ApplyLocks(l *command.LockSet) error {
	for name, locked := range c.Locks {
		f := command.Feature(name)
		var err error
		if locked {
			err = l.Lock(f)
		} else {
			err = l.Unlock(f)
		}
		if err != nil {
			return fmt.Errorf("locks.%s: %w", name, err)
		}
	}
	return nil
}
