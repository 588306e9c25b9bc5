package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rovlink/rovconsole/internal/command"
	"github.com/rovlink/rovconsole/internal/router"
	"github.com/rovlink/rovconsole/internal/store"
)

const storeTimeout = 2 * time.Second

var errChannelClosed = errors.New("message channel closed")

// Manager owns the single channel to the vehicle controller.
type Manager interface {
	// Connect validates address and opens a channel to it, superseding any
	// attempt or reconnect loop in flight.
	Connect(ctx context.Context, address string) (Status, error)

	// Disconnect cancels pending attempts, closes the channel and forces
	// StatusDisconnected. Idempotent.
	Disconnect()

	// Send writes one command. It never queues: while not connected it returns
	// ErrNotConnected and writes nothing.
	Send(cmd command.Command) error

	// OnMessage registers an inbound handler. Handlers run on the pump goroutine
	// in transport order.
	OnMessage(h func(router.Message)) (unsubscribe func())

	// OnStatus registers a status observer. Events arrive in transition order.
	OnStatus(h func(StatusEvent)) (unsubscribe func())

	// Reconnect retries the last-known-good address up to MaxRetryAttempts times.
	// Concurrent calls share one loop.
	Reconnect(ctx context.Context) (Status, error)

	Status() Status
	Retry() RetryState
	LastAddress() string
	Stats() ManagerStats

	// Close disconnects and stops event delivery. Handlers must not call it.
	Close() error
}

// manager implements the Manager interface.
type manager struct {
	cfg       ManagerConfig
	logger    *slog.Logger
	store     store.AddressStore
	newClient ClientFactory
	locks     *command.LockSet
	router    *router.Router

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	events    *router.GrowableBuffer[StatusEvent]
	obsMu     sync.RWMutex
	observers []statusObserver
	nextObs   uint64

	reconnects singleflight.Group
	sendMu     sync.Mutex

	// Connection state. Only manager methods touch it, always under mu.
	mu            sync.Mutex
	status        Status
	addr          Address
	lastGood      string
	client        Client
	pumpStop      chan struct{}
	token         uint64
	attemptCancel context.CancelFunc
	connectDone   chan struct{} // closed when the latest manual Connect returns
	retry         RetryState
	closed        bool

	sent     atomic.Int64
	dropped  atomic.Int64
	rejected atomic.Int64
}

type statusObserver struct {
	id uint64
	fn func(StatusEvent)
}

// NewManager creates a Connection Manager. Without options it uses the
// WebSocket client, an in-memory address store, default feature locks and
// slog.Default().
func NewManager(cfg ManagerConfig, opts ...Option) Manager {
	cfg.applyDefaults()

	m := &manager{
		cfg:       cfg,
		logger:    slog.Default(),
		store:     store.NewMemoryStore(),
		newClient: NewClient,
		locks:     command.NewLockSet(),
		events:    router.NewGrowableBuffer[StatusEvent](cfg.EventBufferSize),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.router == nil {
		m.router = router.NewRouter(m.logger)
	}
	m.logger = m.logger.With("component", "connection")
	m.retry.Max = cfg.MaxRetryAttempts
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go m.deliverStatus()

	return m
}

// Connect opens a channel to address.
func (m *manager) Connect(ctx context.Context, address string) (Status, error) {
	addr, err := ParseAddress(address, m.cfg.Port)
	if err != nil {
		m.logger.Warn("rejected vehicle address", "address", address, "error", err)
		return m.Status(), err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return StatusDisconnected, ErrAlreadyClosed
	}
	token, attemptCtx := m.beginAttemptLocked(ctx)
	m.reconnects.Forget(reconnectKey)
	done := make(chan struct{})
	m.connectDone = done
	old := m.detachLocked()
	m.addr = addr
	m.retry = RetryState{Max: m.cfg.MaxRetryAttempts, LastAddress: m.lastGood}
	if m.status != StatusConnecting {
		m.setStatusLocked(StatusConnecting, nil, 0)
	}
	m.mu.Unlock()
	defer close(done)

	closeClient(old)

	return m.attempt(attemptCtx, token, addr, 0)
}

// Disconnect closes the channel and cancels anything in flight.
func (m *manager) Disconnect() {
	m.mu.Lock()
	old := m.disconnectLocked()
	m.mu.Unlock()

	closeClient(old)
}

// Send validates, encodes and writes one command.
func (m *manager) Send(cmd command.Command) error {
	m.mu.Lock()
	status, c := m.status, m.client
	m.mu.Unlock()

	if status != StatusConnected || c == nil {
		m.dropped.Add(1)
		m.logger.Warn("dropping command, vehicle not connected",
			"status", status,
			"command", cmd.Kind,
		)
		return ErrNotConnected
	}

	if err := m.locks.Check(cmd); err != nil {
		m.rejected.Add(1)
		m.logger.Warn("rejected command", "error", err)
		return err
	}

	data, err := cmd.Encode()
	if err != nil {
		m.rejected.Add(1)
		m.logger.Error("failed to encode command", "command", cmd.Kind, "error", err)
		return err
	}

	m.sendMu.Lock()
	err = c.Send(data)
	m.sendMu.Unlock()

	if err != nil {
		if errors.Is(err, ErrNotConnected) {
			m.dropped.Add(1)
			return ErrNotConnected
		}
		return fmt.Errorf("send command: %w", err)
	}

	m.sent.Add(1)
	m.logger.Debug("command sent", "payload", string(data))
	return nil
}

// OnMessage registers an inbound message handler.
func (m *manager) OnMessage(h func(router.Message)) func() {
	if h == nil {
		return func() {}
	}
	return m.router.Subscribe(router.Handler(h))
}

// OnStatus registers a status observer.
func (m *manager) OnStatus(h func(StatusEvent)) func() {
	if h == nil {
		return func() {}
	}

	m.obsMu.Lock()
	m.nextObs++
	id := m.nextObs
	m.observers = append(m.observers, statusObserver{id: id, fn: h})
	m.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.obsMu.Lock()
			defer m.obsMu.Unlock()
			for i, o := range m.observers {
				if o.id == id {
					m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// Status returns the current status.
func (m *manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Retry returns a copy of the retry state.
func (m *manager) Retry() RetryState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retry
}

// LastAddress returns the last-known-good address, or "" if none is on file.
func (m *manager) LastAddress() string {
	addr, err := m.lastKnownGood()
	if err != nil {
		return ""
	}
	return addr.String()
}

// Stats returns a diagnostic snapshot.
func (m *manager) Stats() ManagerStats {
	m.mu.Lock()
	status, addr, retry := m.status, m.addr.String(), m.retry
	m.mu.Unlock()

	return ManagerStats{
		Status:           status,
		Address:          addr,
		Retry:            retry,
		CommandsSent:     m.sent.Load(),
		CommandsDropped:  m.dropped.Load(),
		CommandsRejected: m.rejected.Load(),
		Inbound:          m.router.Stats(),
		StatusEvents:     m.events.Stats(),
	}
}

// Close shuts the manager down.
func (m *manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrAlreadyClosed
	}
	old := m.disconnectLocked()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	closeClient(old)

	m.events.Close()
	m.wg.Wait()

	m.router.Clear()
	m.obsMu.Lock()
	m.observers = nil
	m.obsMu.Unlock()

	m.logger.Info("connection manager closed")
	return nil
}

// attempt opens one transport to addr. n is the reconnect attempt number, 0
// for a manual connect. A failed manual connect moves to StatusFailed; a failed
// reconnect attempt stays in StatusConnecting and leaves the verdict to the loop.
func (m *manager) attempt(ctx context.Context, token uint64, addr Address, n int) (Status, error) {
	ccfg := m.cfg.Client
	ccfg.URL = addr.URL()
	c := m.newClient(ccfg, m.logger.With("address", addr.String()))

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	err := c.Connect(dialCtx)
	timedOut := errors.Is(dialCtx.Err(), context.DeadlineExceeded)
	cancel()

	m.mu.Lock()
	if token != m.token || m.closed {
		status := m.status
		m.mu.Unlock()
		_ = c.Close()
		m.logger.Debug("discarding superseded connection attempt",
			"address", addr.String(),
			"attempt", n,
		)
		return status, ErrAttemptCanceled
	}

	if err != nil {
		err = classifyDialError(ctx, err, timedOut)
		switch {
		case errors.Is(err, ErrAttemptCanceled):
			m.setStatusLocked(StatusDisconnected, err, n)
		case n == 0:
			m.setStatusLocked(StatusFailed, err, n)
		}
		status := m.status
		m.mu.Unlock()
		_ = c.Close()
		if n == 0 {
			m.logger.Warn("connection failed", "address", addr.String(), "error", err)
		}
		return status, err
	}

	stop := make(chan struct{})
	m.client = c
	m.pumpStop = stop
	m.lastGood = addr.String()
	m.retry = RetryState{Max: m.cfg.MaxRetryAttempts, LastAddress: m.lastGood}
	m.setStatusLocked(StatusConnected, nil, n)
	m.wg.Add(1)
	go m.pump(c, stop)
	m.mu.Unlock()

	m.remember(addr)
	return StatusConnected, nil
}

// pump routes inbound frames until the channel fails or is detached.
func (m *manager) pump(c Client, stop <-chan struct{}) {
	defer m.wg.Done()

	for {
		select {
		case <-stop:
			return
		case msg, ok := <-c.Messages():
			if !ok {
				m.channelLost(c, errChannelClosed)
				return
			}
			if isStopped(stop) {
				return
			}
			m.router.Route(msg.Data, msg.ReceivedAt)
		case err := <-c.Errors():
			m.drain(c, stop)
			m.channelLost(c, err)
			return
		}
	}
}

// drain routes frames that were read before the channel failed.
func (m *manager) drain(c Client, stop <-chan struct{}) {
	for {
		select {
		case msg, ok := <-c.Messages():
			if !ok || isStopped(stop) {
				return
			}
			m.router.Route(msg.Data, msg.ReceivedAt)
		default:
			return
		}
	}
}

// channelLost handles a remote close or transport error on the live channel.
func (m *manager) channelLost(c Client, cause error) {
	m.mu.Lock()
	if m.client != c {
		m.mu.Unlock()
		return
	}
	m.detachLocked()
	m.setStatusLocked(StatusDisconnected, fmt.Errorf("channel lost: %w", cause), 0)
	addr := m.addr.String()
	auto := m.cfg.AutoReconnect && m.lastGood != "" && !m.closed
	token := m.token
	m.mu.Unlock()

	_ = c.Close()

	m.logger.Warn("vehicle channel lost",
		"address", addr,
		"error", cause,
		"auto_reconnect", auto,
	)

	if auto {
		go func() {
			if _, err := m.autoReconnect(token); err != nil && !errors.Is(err, ErrAttemptCanceled) {
				m.logger.Warn("automatic reconnect failed", "error", err)
			}
		}()
	}
}

// disconnectLocked bumps the attempt token, cancels in-flight work and
// detaches the live client. The caller closes the returned client after unlocking.
func (m *manager) disconnectLocked() Client {
	m.token++
	m.reconnects.Forget(reconnectKey)
	if m.attemptCancel != nil {
		m.attemptCancel()
		m.attemptCancel = nil
	}
	old := m.detachLocked()
	m.retry.InFlight = false
	if m.status != StatusDisconnected {
		m.setStatusLocked(StatusDisconnected, nil, 0)
	}
	return old
}

// beginAttemptLocked supersedes any attempt in flight and returns the new
// token with a context that Disconnect can cancel.
func (m *manager) beginAttemptLocked(parent context.Context) (uint64, context.Context) {
	m.token++
	if m.attemptCancel != nil {
		m.attemptCancel()
	}
	ctx, cancel := context.WithCancel(parent)
	m.attemptCancel = cancel
	return m.token, ctx
}

func (m *manager) detachLocked() Client {
	c := m.client
	m.client = nil
	if m.pumpStop != nil {
		close(m.pumpStop)
		m.pumpStop = nil
	}
	return c
}

func (m *manager) setStatusLocked(s Status, cause error, attempt int) {
	prev := m.status
	m.status = s
	m.events.Push(StatusEvent{
		Status:   s,
		Previous: prev,
		Address:  m.addr.String(),
		Err:      cause,
		Attempt:  attempt,
		At:       time.Now(),
	})

	attrs := []any{"from", prev, "to", s, "address", m.addr.String()}
	if attempt > 0 {
		attrs = append(attrs, "attempt", attempt)
	}
	if cause != nil {
		attrs = append(attrs, "error", cause)
	}
	m.logger.Info("connection status changed", attrs...)
}

// deliverStatus hands queued status events to observers, one at a time.
func (m *manager) deliverStatus() {
	defer m.wg.Done()

	for {
		ev, ok := m.events.Pop()
		if !ok {
			return
		}

		m.obsMu.RLock()
		observers := make([]func(StatusEvent), len(m.observers))
		for i, o := range m.observers {
			observers[i] = o.fn
		}
		m.obsMu.RUnlock()

		for _, fn := range observers {
			m.notify(fn, ev)
		}
	}
}

func (m *manager) notify(fn func(StatusEvent), ev StatusEvent) {
	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("status observer panicked", "status", ev.Status, "panic", p)
		}
	}()
	fn(ev)
}

func (m *manager) remember(addr Address) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := m.store.Remember(ctx, addr.String()); err != nil {
		m.logger.Warn("failed to persist last known good address",
			"address", addr.String(),
			"error", err,
		)
	}
}

// lastKnownGood returns the cached address or falls back to the store.
func (m *manager) lastKnownGood() (Address, error) {
	m.mu.Lock()
	raw := m.lastGood
	m.mu.Unlock()

	if raw == "" {
		ctx, cancel := context.WithTimeout(m.ctx, storeTimeout)
		defer cancel()

		stored, err := m.store.LastKnownGood(ctx)
		if err != nil {
			return Address{}, fmt.Errorf("%w: %v", ErrNoAddressAvailable, err)
		}
		raw = stored
	}
	if raw == "" {
		return Address{}, ErrNoAddressAvailable
	}

	addr, err := ParseAddress(raw, m.cfg.Port)
	if err != nil {
		return Address{}, fmt.Errorf("%w: stored address: %v", ErrNoAddressAvailable, err)
	}
	return addr, nil
}

func classifyDialError(parent context.Context, err error, timedOut bool) error {
	var netErr net.Error
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return fmt.Errorf("%w: %v", ErrAttemptCanceled, err)
	case timedOut, errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %v", ErrConnectionTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrConnectionRefused, err)
	}
}

func closeClient(c Client) {
	if c != nil {
		_ = c.Close()
	}
}

func isStopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
