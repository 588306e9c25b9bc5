package connection

import (
	"errors"
	"time"

	"github.com/rovlink/rovconsole/internal/command"
	"github.com/rovlink/rovconsole/internal/router"
)

// Errors
var (
	ErrInvalidAddress     = errors.New("invalid vehicle address")
	ErrConnectionTimeout  = errors.New("connection timeout")
	ErrConnectionRefused  = errors.New("connection refused")
	ErrNotConnected       = errors.New("not connected")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
	ErrNoAddressAvailable = errors.New("no last known good address")
	ErrAttemptCanceled    = errors.New("connection attempt canceled")
	ErrAlreadyClosed      = errors.New("already closed")
	ErrStaleConnection    = errors.New("connection stale (no ping)")

	// ErrSerialization is returned by Send for values that have no JSON form.
	ErrSerialization = command.ErrSerialization
)

// DefaultPort is the vehicle controller's command/telemetry port.
const DefaultPort = 8765

// Status is the connection state. Exactly one value holds at a time.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the status name in JSON and YAML.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StatusEvent describes one transition. Observers receive events in transition order.
type StatusEvent struct {
	Status   Status
	Previous Status
	Address  string
	Err      error // cause of a failed/disconnected transition, if any
	Attempt  int   // reconnect attempt number (0 for manual connects)
	At       time.Time
}

// RetryState is a read-only view of the reconnect loop.
type RetryState struct {
	Attempts    int    `json:"attempts"`
	Max         int    `json:"max"`
	InFlight    bool   `json:"in_flight"`
	Exhausted   bool   `json:"exhausted"`
	LastAddress string `json:"last_address,omitempty"`
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ManagerStats is a diagnostic snapshot of the manager.
type ManagerStats struct {
	Status           Status             `json:"status"`
	Address          string             `json:"address,omitempty"`
	Retry            RetryState         `json:"retry"`
	CommandsSent     int64              `json:"commands_sent"`
	CommandsDropped  int64              `json:"commands_dropped"`
	CommandsRejected int64              `json:"commands_rejected"`
	Inbound          router.Stats       `json:"inbound"`
	StatusEvents     router.BufferStats `json:"status_events"`
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // WebSocket URL (e.g., ws://192.168.1.100:8765)
	PingInterval time.Duration // Keepalive ping period
	PingTimeout  time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval: 10 * time.Second,
		PingTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Second,
		BufferSize:   256,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Port             int           // Vehicle controller port
	ConnectTimeout   time.Duration // Deadline for one transport open
	RetryDelay       time.Duration // Fixed wait between reconnect attempts
	MaxRetryAttempts int           // Total attempts per reconnect
	AutoReconnect    bool          // Reconnect automatically after a remote close
	EventBufferSize  int           // Initial capacity of the status event queue
	Client           ClientConfig  // Transport settings; URL is filled per attempt
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Port:             DefaultPort,
		ConnectTimeout:   5 * time.Second,
		RetryDelay:       5 * time.Second,
		MaxRetryAttempts: 3,
		AutoReconnect:    true,
		EventBufferSize:  64,
		Client:           DefaultClientConfig(),
	}
}

func (c *ManagerConfig) applyDefaults() {
	d := DefaultManagerConfig()
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.MaxRetryAttempts <= 0 {
		c.MaxRetryAttempts = d.MaxRetryAttempts
	}
	if c.EventBufferSize <= 0 {
		c.EventBufferSize = d.EventBufferSize
	}
	if c.Client.PingInterval <= 0 {
		c.Client.PingInterval = d.Client.PingInterval
	}
	if c.Client.PingTimeout <= 0 {
		c.Client.PingTimeout = d.Client.PingTimeout
	}
	if c.Client.WriteTimeout <= 0 {
		c.Client.WriteTimeout = d.Client.WriteTimeout
	}
	if c.Client.BufferSize <= 0 {
		c.Client.BufferSize = d.Client.BufferSize
	}
}
