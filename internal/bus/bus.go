// Package bus fans console events out to independent consumers.
package bus

import (
	"log/slog"
	"reflect"
	"sync"

	"github.com/cskr/pubsub"

	"github.com/rovlink/rovconsole/internal/connection"
	"github.com/rovlink/rovconsole/internal/router"
)

const (
	TopicConnStatus      = "conn.status"
	TopicTelemetrySensor = "telemetry.sensor"
	TopicTelemetryCamera = "telemetry.camera"
	TopicCommandSent     = "command.sent"
)

// DefaultCapacity is the per-subscriber channel capacity.
const DefaultCapacity = 128

type Subscription chan any

type MessageBus interface {
	Publish(topic string, msg any)
	// TryPublish drops msg for subscribers whose buffer is full.
	TryPublish(topic string, msg any)
	Subscribe(topics ...string) Subscription
	Unsubscribe(ch Subscription, topics ...string)
	// Release unsubscribes ch from every topic. Subscribers call it from
	// their own goroutine when they stop reading.
	Release(ch Subscription)
	Close()
}

// PubSubBus is a MessageBus on cskr/pubsub. Operations after Close are no-ops.
type PubSubBus struct {
	ps     *pubsub.PubSub
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func New(capacity int, logger *slog.Logger) *PubSubBus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PubSubBus{
		ps:     pubsub.New(capacity),
		logger: logger.With("component", "bus"),
	}
}

func (b *PubSubBus) Publish(topic string, msg any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.logger.Debug("publish", "topic", topic, "payload_type", payloadType(msg))
	b.ps.Pub(msg, topic)
}

func (b *PubSubBus) TryPublish(topic string, msg any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	b.ps.TryPub(msg, topic)
}

func (b *PubSubBus) Subscribe(topics ...string) Subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		ch := make(Subscription)
		close(ch)
		return ch
	}
	ch := b.ps.Sub(topics...)
	b.logger.Debug("subscribe", "topics", topics)
	return ch
}

// Unsubscribe must not be called from the goroutine reading ch while
// publishers may still target it. Use Release there.
func (b *PubSubBus) Unsubscribe(ch Subscription, topics ...string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	if len(topics) == 0 {
		b.ps.Unsub(ch)
		b.logger.Debug("unsubscribe", "mode", "all")
		return
	}
	b.ps.Unsub(ch, topics...)
	b.logger.Debug("unsubscribe", "topics", topics)
}

func (b *PubSubBus) Release(ch Subscription) {
	// The drain must run before taking mu: a publisher blocked on ch holds it.
	go func() {
		for range ch {
		}
	}()
	b.Unsubscribe(ch)
}

func (b *PubSubBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.ps.Shutdown()
}

// Attach publishes the manager's status events and inbound telemetry on b.
// Status events go to TopicConnStatus, sensor readings to TopicTelemetrySensor
// and camera frames to TopicTelemetryCamera. Telemetry is dropped for a
// subscriber that falls behind. The returned func detaches.
func Attach(b MessageBus, m connection.Manager) (detach func()) {
	offStatus := m.OnStatus(func(ev connection.StatusEvent) {
		b.Publish(TopicConnStatus, ev)
	})
	offMessages := m.OnMessage(func(msg router.Message) {
		switch msg.Type {
		case router.TypeSensor:
			b.TryPublish(TopicTelemetrySensor, msg)
		case router.TypeCamera:
			b.TryPublish(TopicTelemetryCamera, msg)
		}
	})
	return func() {
		offStatus()
		offMessages()
	}
}

func payloadType(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
