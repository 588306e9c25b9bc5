package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rovlink/rovconsole/internal/router"
)

// BatchSender is the subset of *pgxpool.Pool used by the writer.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// SensorSample is one sensor reading tagged with the vehicle it came from.
type SensorSample struct {
	Vehicle    string
	Reading    router.SensorReading
	ReceivedAt time.Time
}

// sensorRow is the database representation of a sensor reading.
type sensorRow struct {
	ReadingID   uuid.UUID
	SessionID   uuid.UUID
	Vehicle     string
	ReceivedAt  int64 // µs since epoch
	Depth       *float64
	Pressure    *float64
	Temperature *float64
	Battery     *int
}

// SensorWriter consumes SensorSample from its input buffer and writes to the sensor_readings table.
type SensorWriter struct {
	cfg       WriterConfig
	logger    *slog.Logger
	sessionID uuid.UUID

	input *router.GrowableBuffer[SensorSample]
	db    BatchSender

	batch       []sensorRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewSensorWriter creates a SensorWriter for one console session.
func NewSensorWriter(
	cfg WriterConfig,
	sessionID uuid.UUID,
	input *router.GrowableBuffer[SensorSample],
	db BatchSender,
	logger *slog.Logger,
) *SensorWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	return &SensorWriter{
		cfg:       cfg,
		sessionID: sessionID,
		input:     input,
		db:        db,
		logger:    logger.With("component", "sensor_writer"),
		batch:     make([]sensorRow, 0, cfg.BatchSize),
		ctx:       context.Background(),
	}
}

// Enqueue queues a sensor message for recording. Non-sensor messages are ignored.
func (w *SensorWriter) Enqueue(vehicle string, msg router.Message) bool {
	if msg.Type != router.TypeSensor || msg.Sensor == nil {
		return false
	}
	return w.input.Push(SensorSample{
		Vehicle:    vehicle,
		Reading:    *msg.Sensor,
		ReceivedAt: msg.ReceivedAt,
	})
}

// Start begins consuming samples and writing to the database.
func (w *SensorWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("sensor writer started",
		"session_id", w.sessionID,
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop drains what is already queued, flushes and shuts the writer down.
func (w *SensorWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping sensor writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("sensor writer stop timed out")
	}

	for _, s := range w.input.Drain(0) {
		w.add(w.transform(s))
	}

	// The run context is gone; the final flush uses the caller's.
	w.flushWith(ctx)
	w.logger.Info("sensor writer stopped", "inserts", w.Stats().Inserts)
	return nil
}

// Stats returns current metrics.
func (w *SensorWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input buffer and accumulates batches.
func (w *SensorWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		sample, ok := w.input.TryPop()
		if !ok {
			select {
			case <-w.ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
				continue
			}
		}
		w.handleSample(sample)
	}
}

// flushLoop periodically flushes the batch.
func (w *SensorWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush()
		}
	}
}

func (w *SensorWriter) handleSample(s SensorSample) {
	if w.add(w.transform(s)) {
		w.flush()
	}
}

// add appends a row and reports whether the batch is full.
func (w *SensorWriter) add(row sensorRow) bool {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.metrics.Received++
	w.batch = append(w.batch, row)
	return len(w.batch) >= w.cfg.BatchSize
}

// transform converts a SensorSample to a sensorRow.
func (w *SensorWriter) transform(s SensorSample) sensorRow {
	return sensorRow{
		ReadingID:   uuid.New(),
		SessionID:   w.sessionID,
		Vehicle:     s.Vehicle,
		ReceivedAt:  s.ReceivedAt.UnixMicro(),
		Depth:       s.Reading.Depth,
		Pressure:    s.Reading.Pressure,
		Temperature: s.Reading.Temperature,
		Battery:     s.Reading.Battery,
	}
}

func (w *SensorWriter) flush() {
	w.flushWith(w.ctx)
}

// flushWith writes the current batch to the database.
func (w *SensorWriter) flushWith(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	batch := w.batch
	w.batch = make([]sensorRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	if w.db == nil {
		w.logger.Warn("no telemetry database, discarding batch", "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.metrics.Inserts += int64(len(batch) - conflicts)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed sensor readings",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *SensorWriter) batchInsert(ctx context.Context, rows []sensorRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO sensor_readings (reading_id, session_id, vehicle, received_at, depth, pressure, temperature, battery)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (reading_id) DO NOTHING
		`, r.ReadingID, r.SessionID, r.Vehicle, r.ReceivedAt, r.Depth, r.Pressure, r.Temperature, r.Battery)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
