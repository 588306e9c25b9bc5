package connection

import (
	"log/slog"

	"github.com/rovlink/rovconsole/internal/command"
	"github.com/rovlink/rovconsole/internal/router"
	"github.com/rovlink/rovconsole/internal/store"
)

// Option customizes a Manager.
type Option func(*manager)

// WithLogger sets the logger. nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithAddressStore sets where the last-known-good address is persisted.
func WithAddressStore(s store.AddressStore) Option {
	return func(m *manager) {
		if s != nil {
			m.store = s
		}
	}
}

// WithClientFactory replaces the WebSocket transport.
func WithClientFactory(f ClientFactory) Option {
	return func(m *manager) {
		if f != nil {
			m.newClient = f
		}
	}
}

// WithLockSet sets the feature locks checked by Send.
func WithLockSet(l *command.LockSet) Option {
	return func(m *manager) {
		m.locks = l
	}
}

// WithRouter sets the inbound router.
func WithRouter(r *router.Router) Option {
	return func(m *manager) {
		if r != nil {
			m.router = r
		}
	}
}
