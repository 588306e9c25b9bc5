// Package console wires the Connection Manager and its supporting components
// into a running operator console.
package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/rovlink/rovconsole/internal/bus"
	"github.com/rovlink/rovconsole/internal/command"
	"github.com/rovlink/rovconsole/internal/config"
	"github.com/rovlink/rovconsole/internal/connection"
	"github.com/rovlink/rovconsole/internal/database"
	"github.com/rovlink/rovconsole/internal/diagnostics"
	"github.com/rovlink/rovconsole/internal/notify"
	"github.com/rovlink/rovconsole/internal/router"
	"github.com/rovlink/rovconsole/internal/store"
	"github.com/rovlink/rovconsole/internal/writer"
)

const stopTimeout = 5 * time.Second

// AddressHistory lists recently used endpoints.
type AddressHistory interface {
	Recent(ctx context.Context, n int) ([]store.Endpoint, error)
}

// Console owns every component of a running operator console.
type Console struct {
	cfg       *config.ConsoleConfig
	logger    *slog.Logger
	sessionID uuid.UUID

	manager connection.Manager
	bus     *bus.PubSubBus
	locks   *command.LockSet
	store   store.AddressStore
	sqlite  *store.SQLiteStore
	history AddressHistory

	pool     *pgxpool.Pool
	recorder *writer.SensorWriter
	notifier *notify.Service
	diag     *diagnostics.Server
	detach   func()

	telemetryMu sync.RWMutex
	latest      *router.Message

	closeOnce sync.Once
}

type options struct {
	logger        *slog.Logger
	clientFactory connection.ClientFactory
	addressStore  store.AddressStore
	sender        notify.Sender
}

// Option customizes a Console.
type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClientFactory replaces the WebSocket transport.
func WithClientFactory(f connection.ClientFactory) Option {
	return func(o *options) { o.clientFactory = f }
}

// WithAddressStore replaces the configured address store.
func WithAddressStore(s store.AddressStore) Option {
	return func(o *options) { o.addressStore = s }
}

// WithNotificationSender replaces the desktop notification backend.
func WithNotificationSender(s notify.Sender) Option {
	return func(o *options) { o.sender = s }
}

// New builds a console from cfg. Defaults must already be applied.
func New(ctx context.Context, cfg *config.ConsoleConfig, opts ...Option) (*Console, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	sessionID := sessionFor(cfg.Console.ID)

	c := &Console{
		cfg:       cfg,
		logger:    o.logger.With("component", "console"),
		sessionID: sessionID,
		locks:     command.NewLockSet(),
	}
	if err := cfg.ApplyLocks(c.locks); err != nil {
		return nil, err
	}

	if err := c.openStore(ctx, o.addressStore); err != nil {
		return nil, err
	}

	c.bus = bus.New(bus.DefaultCapacity, o.logger)

	mopts := []connection.Option{
		connection.WithLogger(o.logger),
		connection.WithAddressStore(c.store),
		connection.WithLockSet(c.locks),
	}
	if o.clientFactory != nil {
		mopts = append(mopts, connection.WithClientFactory(o.clientFactory))
	}
	c.manager = connection.NewManager(cfg.ManagerConfig(), mopts...)
	c.detach = bus.Attach(c.bus, c.manager)
	c.manager.OnMessage(c.trackTelemetry)

	if cfg.Telemetry.Enabled {
		if err := c.openRecorder(ctx, o.logger); err != nil {
			c.Close()
			return nil, err
		}
	}

	if cfg.Notifications.Enabled {
		sender := o.sender
		if sender == nil {
			sender = notify.DesktopSender{}
		}
		c.notifier = notify.NewService(c.bus, sender, o.logger)
	}

	if cfg.Diagnostics.Port > 0 {
		dopts := []diagnostics.Option{diagnostics.WithSessionID(sessionID.String())}
		if c.history != nil {
			dopts = append(dopts, diagnostics.WithAddressLister(c.history))
		}
		if c.recorder != nil {
			dopts = append(dopts, diagnostics.WithTelemetry(c.recorder))
		}
		c.diag = diagnostics.New(cfg.Diagnostics.Host, cfg.Diagnostics.Port, c.manager, o.logger, dopts...)
	}

	c.logger.Info("console ready",
		"session_id", sessionID,
		"telemetry", c.recorder != nil,
		"notifications", c.notifier != nil,
		"diagnostics_port", cfg.Diagnostics.Port,
	)
	return c, nil
}

// sessionFor returns id as a UUID. Human-readable console names map to a
// stable name-based UUID; an empty id gets a random one.
func sessionFor(id string) uuid.UUID {
	if id == "" {
		return uuid.New()
	}
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id))
}

func (c *Console) openStore(ctx context.Context, override store.AddressStore) error {
	switch {
	case override != nil:
		c.store = override
	case c.cfg.Storage.Disabled:
		c.store = store.NewMemoryStore()
	default:
		s, err := store.OpenSQLite(ctx, c.cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open address store: %w", err)
		}
		c.sqlite = s
		c.store = s
	}
	if h, ok := c.store.(AddressHistory); ok {
		c.history = h
	}
	return nil
}

func (c *Console) openRecorder(ctx context.Context, logger *slog.Logger) error {
	pool, err := database.Connect(ctx, c.cfg.Telemetry.Database)
	if err != nil {
		return fmt.Errorf("connect telemetry database: %w", err)
	}
	c.pool = pool
	if err := database.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	input := router.NewGrowableBuffer[writer.SensorSample](c.cfg.Telemetry.BufferSize)
	c.recorder = writer.NewSensorWriter(writer.WriterConfig{
		BatchSize:     c.cfg.Telemetry.BatchSize,
		FlushInterval: c.cfg.Telemetry.FlushInterval,
	}, c.sessionID, input, pool, logger)
	return nil
}

// Manager returns the Connection Manager.
func (c *Console) Manager() connection.Manager { return c.manager }

// Bus returns the event bus.
func (c *Console) Bus() bus.MessageBus { return c.bus }

// SessionID returns the console session ID.
func (c *Console) SessionID() uuid.UUID { return c.sessionID }

// Run starts the background components and connects to the vehicle. It
// returns when ctx is done or a component fails.
func (c *Console) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if c.recorder != nil {
		g.Go(func() error { return c.runRecorder(gctx) })
	}
	if c.notifier != nil {
		g.Go(func() error { return c.notifier.Run(gctx) })
	}
	if c.diag != nil {
		g.Go(func() error { return c.diag.Run(gctx) })
	}

	g.Go(func() error {
		c.connectAtStartup(gctx)
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("console stopped with error", "error", err)
		return err
	}
	return nil
}

// connectAtStartup connects to the configured address, or else retries the
// last-known-good one. Failures are reported through status events.
func (c *Console) connectAtStartup(ctx context.Context) {
	if addr := c.cfg.Vehicle.Address; addr != "" {
		if _, err := c.manager.Connect(ctx, addr); err != nil {
			c.logger.Warn("initial connect failed", "address", addr, "error", err)
		}
		return
	}

	if c.manager.LastAddress() == "" {
		c.logger.Info("no vehicle address on file, waiting for operator")
		return
	}
	if _, err := c.manager.Reconnect(ctx); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warn("startup reconnect failed", "error", err)
	}
}

// runRecorder forwards sensor readings from the bus to the telemetry writer.
func (c *Console) runRecorder(ctx context.Context) error {
	if err := c.recorder.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = c.recorder.Stop(stopCtx)
	}()

	sub := c.bus.Subscribe(bus.TopicTelemetrySensor)
	defer c.bus.Release(sub)

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-sub:
			if !ok {
				return nil
			}
			if msg, ok := raw.(router.Message); ok {
				c.recorder.Enqueue(c.manager.LastAddress(), msg)
			}
		}
	}
}

func (c *Console) trackTelemetry(msg router.Message) {
	if msg.Type != router.TypeSensor {
		return
	}
	c.telemetryMu.Lock()
	c.latest = &msg
	c.telemetryMu.Unlock()
}

// LatestSensor returns the most recent sensor reading, if any.
func (c *Console) LatestSensor() (router.Message, bool) {
	c.telemetryMu.RLock()
	defer c.telemetryMu.RUnlock()
	if c.latest == nil {
		return router.Message{}, false
	}
	return *c.latest, true
}

// Close releases every component. Safe to call more than once.
func (c *Console) Close() error {
	var errs []error
	c.closeOnce.Do(func() {
		if c.detach != nil {
			c.detach()
		}
		if c.manager != nil {
			if err := c.manager.Close(); err != nil && !errors.Is(err, connection.ErrAlreadyClosed) {
				errs = append(errs, err)
			}
		}
		if c.bus != nil {
			c.bus.Close()
		}
		if c.pool != nil {
			c.pool.Close()
		}
		if c.sqlite != nil {
			if err := c.sqlite.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close address store: %w", err))
			}
		}
		c.logger.Info("console closed")
	})
	return errors.Join(errs...)
}
