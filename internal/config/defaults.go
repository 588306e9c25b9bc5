package config

import (
	"time"

	"github.com/rovlink/rovconsole/internal/connection"
)

// Default values for optional configuration fields.
const (
	DefaultVehiclePort      = connection.DefaultPort
	DefaultConnectTimeout   = 5 * time.Second
	DefaultRetryDelay       = 5 * time.Second
	DefaultMaxRetryAttempts = 3
	DefaultPingInterval     = 10 * time.Second
	DefaultPingTimeout      = 30 * time.Second
	DefaultWriteTimeout     = 2 * time.Second
	DefaultBufferSize       = 256
	DefaultStoragePath      = "data/rovconsole.db"
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 4
	DefaultMinConns         = 1
	DefaultBatchSize        = 500
	DefaultFlushInterval    = 1 * time.Second
	DefaultTelemetryBuffer  = 4096
	DefaultDiagnosticsHost  = "127.0.0.1"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "text"
)

func (c *ConsoleConfig) applyDefaults() {
	if c.Vehicle.Port == 0 {
		c.Vehicle.Port = DefaultVehiclePort
	}

	// Connection defaults
	if c.Connection.ConnectTimeout == 0 {
		c.Connection.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Connection.RetryDelay == 0 {
		c.Connection.RetryDelay = DefaultRetryDelay
	}
	if c.Connection.MaxRetryAttempts == 0 {
		c.Connection.MaxRetryAttempts = DefaultMaxRetryAttempts
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultBufferSize
	}
	if c.Connection.AutoReconnect == nil {
		on := true
		c.Connection.AutoReconnect = &on
	}

	if c.Storage.Path == "" {
		c.Storage.Path = DefaultStoragePath
	}

	// Telemetry defaults
	applyDBDefaults(&c.Telemetry.Database)
	if c.Telemetry.BatchSize == 0 {
		c.Telemetry.BatchSize = DefaultBatchSize
	}
	if c.Telemetry.FlushInterval == 0 {
		c.Telemetry.FlushInterval = DefaultFlushInterval
	}
	if c.Telemetry.BufferSize == 0 {
		c.Telemetry.BufferSize = DefaultTelemetryBuffer
	}

	if c.Diagnostics.Host == "" {
		c.Diagnostics.Host = DefaultDiagnosticsHost
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

// ManagerConfig returns the Connection Manager settings.
func (c *ConsoleConfig) ManagerConfig() connection.ManagerConfig {
	cfg := connection.DefaultManagerConfig()
	cfg.Port = c.Vehicle.Port
	cfg.ConnectTimeout = c.Connection.ConnectTimeout
	cfg.RetryDelay = c.Connection.RetryDelay
	cfg.MaxRetryAttempts = c.Connection.MaxRetryAttempts
	if c.Connection.AutoReconnect != nil {
		cfg.AutoReconnect = *c.Connection.AutoReconnect
	}
	cfg.Client.PingInterval = c.Connection.PingInterval
	cfg.Client.PingTimeout = c.Connection.PingTimeout
	cfg.Client.WriteTimeout = c.Connection.WriteTimeout
	cfg.Client.BufferSize = c.Connection.BufferSize
	return cfg
}
