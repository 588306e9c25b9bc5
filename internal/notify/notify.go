// Package notify turns connection status events into desktop notifications.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gen2brain/beeep"

	"github.com/rovlink/rovconsole/internal/bus"
	"github.com/rovlink/rovconsole/internal/connection"
)

const (
	TitleConnectionLost  = "Connection lost"
	TitleReconnectFailed = "Reconnect failed"
	TitleReconnected     = "Vehicle reconnected"
)

// Payload is a user-facing notification.
type Payload struct {
	Title   string
	Content string
}

// Sender sends notifications using a platform-specific backend.
type Sender interface {
	Send(p Payload) error
}

// DesktopSender sends notifications through the OS notification center.
type DesktopSender struct{}

func (DesktopSender) Send(p Payload) error {
	return beeep.Notify(p.Title, p.Content, "")
}

// Service listens to bus status events and emits notifications.
type Service struct {
	bus    bus.MessageBus
	sender Sender
	logger *slog.Logger
}

func NewService(b bus.MessageBus, sender Sender, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		bus:    b,
		sender: sender,
		logger: logger.With("component", "notify"),
	}
}

// Run delivers notifications until ctx is done or the bus shuts down.
func (s *Service) Run(ctx context.Context) error {
	sub := s.bus.Subscribe(bus.TopicConnStatus)
	defer s.bus.Release(sub)

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-sub:
			if !ok {
				return nil
			}
			ev, ok := raw.(connection.StatusEvent)
			if !ok {
				continue
			}
			p, ok := payloadFor(ev)
			if !ok {
				continue
			}
			if err := s.sender.Send(p); err != nil {
				s.logger.Warn("failed to send notification", "title", p.Title, "error", err)
			}
		}
	}
}

// payloadFor maps a status event to a notification, if it deserves one.
func payloadFor(ev connection.StatusEvent) (Payload, bool) {
	switch {
	case ev.Status == connection.StatusDisconnected && ev.Previous == connection.StatusConnected && ev.Err != nil:
		return Payload{
			Title:   TitleConnectionLost,
			Content: fmt.Sprintf("Lost the channel to %s: %v", ev.Address, ev.Err),
		}, true
	case ev.Status == connection.StatusFailed && errors.Is(ev.Err, connection.ErrReconnectExhausted):
		return Payload{
			Title:   TitleReconnectFailed,
			Content: fmt.Sprintf("Could not reach %s. Enter the vehicle address manually.", ev.Address),
		}, true
	case ev.Status == connection.StatusConnected && ev.Attempt > 0:
		return Payload{
			Title:   TitleReconnected,
			Content: fmt.Sprintf("Connected to %s after %d attempt(s).", ev.Address, ev.Attempt),
		}, true
	default:
		return Payload{}, false
	}
}
