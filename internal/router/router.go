package router

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Router decodes inbound frames and hands valid messages to subscribed handlers.
// Route is called from a single pump goroutine, so handlers observe messages in
// transport order.
type Router struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers []subscription
	nextID   uint64

	statsMu sync.Mutex
	stats   Stats
}

type subscription struct {
	id uint64
	fn Handler
}

// NewRouter creates an inbound router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{logger: logger.With("component", "router")}
}

// Subscribe registers a handler. The returned func removes it; calling it twice is a no-op.
func (r *Router) Subscribe(h Handler) func() {
	if h == nil {
		return func() {}
	}

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.handlers = append(r.handlers, subscription{id: id, fn: h})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.unsubscribe(id) })
	}
}

func (r *Router) unsubscribe(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.handlers {
		if s.id == id {
			r.handlers = append(r.handlers[:i:i], r.handlers[i+1:]...)
			return
		}
	}
}

// Clear removes every handler.
func (r *Router) Clear() {
	r.mu.Lock()
	r.handlers = nil
	r.mu.Unlock()
}

// Route decodes one frame and dispatches it. Invalid frames are counted, logged
// and returned as errors; they never reach handlers.
func (r *Router) Route(data []byte, receivedAt time.Time) (Message, error) {
	r.count(func(s *Stats) { s.Received++ })

	msg, err := Decode(data, receivedAt)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownType) && isReply(data):
			r.count(func(s *Stats) { s.Replies++; s.UnknownTypes++ })
			r.logger.Debug("controller reply", "payload", string(data))
		case errors.Is(err, ErrUnknownType):
			r.count(func(s *Stats) { s.UnknownTypes++ })
			r.logger.Debug("dropping inbound message", "error", err)
		default:
			r.count(func(s *Stats) { s.ParseErrors++ })
			r.logger.Warn("dropping malformed inbound message", "error", err)
		}
		return Message{}, err
	}

	r.count(func(s *Stats) {
		s.Routed++
		if msg.Type == TypeCamera {
			s.Camera++
		} else {
			s.Sensor++
		}
	})
	r.dispatch(msg)
	return msg, nil
}

// Stats returns a copy of the counters.
func (r *Router) Stats() Stats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}

func (r *Router) dispatch(msg Message) {
	r.mu.RLock()
	handlers := make([]Handler, len(r.handlers))
	for i, s := range r.handlers {
		handlers[i] = s.fn
	}
	r.mu.RUnlock()

	for _, h := range handlers {
		r.call(h, msg)
	}
}

func (r *Router) call(h Handler, msg Message) {
	defer func() {
		if p := recover(); p != nil {
			r.count(func(s *Stats) { s.HandlerPanics++ })
			r.logger.Error("message handler panicked", "type", msg.Type, "panic", p)
		}
	}()
	h(msg)
}

func (r *Router) count(f func(*Stats)) {
	r.statsMu.Lock()
	f(&r.stats)
	r.statsMu.Unlock()
}
