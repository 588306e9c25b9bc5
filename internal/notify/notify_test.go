package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rovlink/rovconsole/internal/bus"
	"github.com/rovlink/rovconsole/internal/connection"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Payload
	err  error
}

func (r *recordingSender) Send(p Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, p)
	return r.err
}

func (r *recordingSender) payloads() []Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Payload(nil), r.sent...)
}

func TestPayloadFor(t *testing.T) {
	exhausted := fmt.Errorf("%w after 3 attempts", connection.ErrReconnectExhausted)

	tests := []struct {
		name      string
		ev        connection.StatusEvent
		wantTitle string
	}{
		{
			name: "channel lost",
			ev: connection.StatusEvent{
				Status: connection.StatusDisconnected, Previous: connection.StatusConnected,
				Address: "192.168.1.100", Err: io.EOF,
			},
			wantTitle: TitleConnectionLost,
		},
		{
			name: "operator disconnect",
			ev: connection.StatusEvent{
				Status: connection.StatusDisconnected, Previous: connection.StatusConnected,
			},
		},
		{
			name: "reconnect exhausted",
			ev: connection.StatusEvent{
				Status: connection.StatusFailed, Previous: connection.StatusConnecting,
				Address: "192.168.1.100", Err: exhausted,
			},
			wantTitle: TitleReconnectFailed,
		},
		{
			name: "manual connect failed",
			ev: connection.StatusEvent{
				Status: connection.StatusFailed, Err: connection.ErrConnectionRefused,
			},
		},
		{
			name: "reconnected",
			ev: connection.StatusEvent{
				Status: connection.StatusConnected, Address: "192.168.1.100", Attempt: 2,
			},
			wantTitle: TitleReconnected,
		},
		{
			name: "manual connect",
			ev:   connection.StatusEvent{Status: connection.StatusConnected},
		},
		{
			name: "connecting",
			ev:   connection.StatusEvent{Status: connection.StatusConnecting, Attempt: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := payloadFor(tt.ev)
			if ok != (tt.wantTitle != "") {
				t.Fatalf("payloadFor ok = %v, want %v", ok, tt.wantTitle != "")
			}
			if p.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", p.Title, tt.wantTitle)
			}
		})
	}
}

func TestService_Run(t *testing.T) {
	b := bus.New(8, nil)
	defer b.Close()

	sender := &recordingSender{err: errors.New("no notification daemon")}
	svc := NewService(b, sender, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	// Run subscribes asynchronously; publish until the first event lands.
	lost := connection.StatusEvent{
		Status: connection.StatusDisconnected, Previous: connection.StatusConnected,
		Address: "192.168.1.100", Err: io.EOF,
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(sender.payloads()) == 0 && time.Now().Before(deadline) {
		b.Publish(bus.TopicConnStatus, lost)
		b.Publish(bus.TopicConnStatus, "not an event")
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	got := sender.payloads()
	if len(got) == 0 {
		t.Fatal("no notification sent")
	}
	for _, p := range got {
		if p.Title != TitleConnectionLost {
			t.Errorf("Title = %q, want %q", p.Title, TitleConnectionLost)
		}
	}
}
