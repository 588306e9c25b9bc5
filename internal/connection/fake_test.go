package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// errHang makes a fake dial block until its context ends.
var errHang = errors.New("hang until context done")

type dialRecord struct {
	url string
	at  time.Time
}

// fakeTransport is a ClientFactory that records dials and scripts their outcome.
type fakeTransport struct {
	mu      sync.Mutex
	dials   []dialRecord
	clients []*fakeClient

	// outcome returns the dial result for the n-th dial (1-based).
	outcome func(n int) error
	// gate, when set, delays every dial until it is closed and ignores the context.
	gate chan struct{}
}

func newFakeTransport(outcome func(n int) error) *fakeTransport {
	if outcome == nil {
		outcome = func(int) error { return nil }
	}
	return &fakeTransport{outcome: outcome}
}

func (f *fakeTransport) factory(cfg ClientConfig, _ *slog.Logger) Client {
	c := &fakeClient{
		transport: f,
		cfg:       cfg,
		messages:  make(chan TimestampedMessage, 16),
		errors:    make(chan error, 1),
	}
	f.mu.Lock()
	f.clients = append(f.clients, c)
	f.mu.Unlock()
	return c
}

func (f *fakeTransport) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dials)
}

func (f *fakeTransport) dialTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Time, len(f.dials))
	for i, d := range f.dials {
		out[i] = d.at
	}
	return out
}

func (f *fakeTransport) dialURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.dials))
	for i, d := range f.dials {
		out[i] = d.url
	}
	return out
}

func (f *fakeTransport) last() *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clients) == 0 {
		return nil
	}
	return f.clients[len(f.clients)-1]
}

func (f *fakeTransport) totalWrites() int {
	f.mu.Lock()
	clients := append([]*fakeClient(nil), f.clients...)
	f.mu.Unlock()

	n := 0
	for _, c := range clients {
		n += len(c.written())
	}
	return n
}

type fakeClient struct {
	transport *fakeTransport
	cfg       ClientConfig
	messages  chan TimestampedMessage
	errors    chan error

	mu        sync.Mutex
	connected bool
	closed    bool
	sent      [][]byte
}

func (c *fakeClient) Connect(ctx context.Context) error {
	f := c.transport
	f.mu.Lock()
	f.dials = append(f.dials, dialRecord{url: c.cfg.URL, at: time.Now()})
	n := len(f.dials)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	err := f.outcome(n)
	if errors.Is(err, errHang) {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.connected = false
	return nil
}

func (c *fakeClient) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *fakeClient) Messages() <-chan TimestampedMessage { return c.messages }
func (c *fakeClient) Errors() <-chan error                { return c.errors }

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeClient) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

// push simulates an inbound frame from the vehicle.
func (c *fakeClient) push(data string) {
	c.messages <- TimestampedMessage{Data: []byte(data), ReceivedAt: time.Now()}
}

// fail simulates a remote close.
func (c *fakeClient) fail(err error) {
	c.errors <- err
}

// eventLog collects status events delivered to an observer.
type eventLog struct {
	mu     sync.Mutex
	events []StatusEvent
}

func (l *eventLog) record(ev StatusEvent) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []StatusEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]StatusEvent(nil), l.events...)
}

func (l *eventLog) statuses() []Status {
	evs := l.snapshot()
	out := make([]Status, len(evs))
	for i, ev := range evs {
		out[i] = ev.Status
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}
