// Package store persists the last-known-good vehicle address.
//
// SQLiteStore keeps every endpoint the console has successfully connected to,
// so the most recent one can be used for automatic reconnects across sessions.
// MemoryStore is used when persistence is disabled and in tests.
package store

import (
	"context"
	"time"
)

// AddressStore remembers addresses that produced a working connection.
type AddressStore interface {
	// LastKnownGood returns the most recently remembered address, or "" if none.
	LastKnownGood(ctx context.Context) (string, error)

	// Remember records a successful connection to address.
	Remember(ctx context.Context, address string) error
}

// Endpoint is one remembered address.
type Endpoint struct {
	Address          string    `json:"address" yaml:"address"`
	FirstConnectedAt time.Time `json:"first_connected_at" yaml:"first_connected_at"`
	LastConnectedAt  time.Time `json:"last_connected_at" yaml:"last_connected_at"`
	ConnectCount     int64     `json:"connect_count" yaml:"connect_count"`
}

func toUnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMillis(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(v)
}
