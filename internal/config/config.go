package config

import "time"

// ConsoleConfig is the root configuration for an operator console.
type ConsoleConfig struct {
	Console       ConsoleIdentity     `yaml:"console"`
	Vehicle       VehicleConfig       `yaml:"vehicle"`
	Connection    ConnectionConfig    `yaml:"connection"`
	Storage       StorageConfig       `yaml:"storage"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Diagnostics   DiagnosticsConfig   `yaml:"diagnostics"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`

	// Locks overrides the default feature locks, keyed by wire name.
	Locks map[string]bool `yaml:"locks"`
}

// ConsoleIdentity identifies this console session. An empty ID is replaced
// with a random UUID at startup.
type ConsoleIdentity struct {
	ID string `yaml:"id"`
}

// VehicleConfig holds the vehicle controller endpoint.
type VehicleConfig struct {
	Address string `yaml:"address"` // optional; connected to at startup when set
	Port    int    `yaml:"port"`
}

// ConnectionConfig holds Connection Manager settings.
type ConnectionConfig struct {
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	MaxRetryAttempts int           `yaml:"max_retry_attempts"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	BufferSize       int           `yaml:"buffer_size"`
	AutoReconnect    *bool         `yaml:"auto_reconnect"`
}

// StorageConfig holds the last-known-good address database.
type StorageConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"` // keep addresses in memory only
}

// TelemetryConfig holds the sensor recorder settings.
type TelemetryConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// DiagnosticsConfig holds the local read-only HTTP endpoint. Port 0 disables it.
type DiagnosticsConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type NotificationsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
	File   string `yaml:"file"`   // optional; tee to this file
}
