package writer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rovlink/rovconsole/internal/router"
)

// fakeDB records queued batches and answers every Exec with tag.
type fakeDB struct {
	mu      sync.Mutex
	batches []*pgx.Batch
	tag     string
	err     error
}

func (f *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	f.mu.Lock()
	f.batches = append(f.batches, b)
	f.mu.Unlock()
	return &fakeResults{tag: f.tag, err: f.err}
}

func (f *fakeDB) queued() []*pgx.QueuedQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*pgx.QueuedQuery
	for _, b := range f.batches {
		out = append(out, b.QueuedQueries...)
	}
	return out
}

type fakeResults struct {
	tag string
	err error
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	return pgconn.NewCommandTag(r.tag), nil
}
func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }
func (r *fakeResults) QueryRow() pgx.Row        { return nil }
func (r *fakeResults) Close() error             { return nil }

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func TestSensorWriter_Transform(t *testing.T) {
	session := uuid.New()
	input := router.NewGrowableBuffer[SensorSample](10)
	w := NewSensorWriter(DefaultWriterConfig(), session, input, nil, nil)

	receivedAt := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	row := w.transform(SensorSample{
		Vehicle: "192.168.1.100",
		Reading: router.SensorReading{
			Depth:    floatPtr(12.5),
			Pressure: floatPtr(2.26),
			Battery:  intPtr(87),
		},
		ReceivedAt: receivedAt,
	})

	if row.ReadingID == uuid.Nil {
		t.Error("ReadingID should be set")
	}
	if row.SessionID != session {
		t.Errorf("SessionID = %s, want %s", row.SessionID, session)
	}
	if row.Vehicle != "192.168.1.100" {
		t.Errorf("Vehicle = %s, want 192.168.1.100", row.Vehicle)
	}
	if row.ReceivedAt != receivedAt.UnixMicro() {
		t.Errorf("ReceivedAt = %d, want %d", row.ReceivedAt, receivedAt.UnixMicro())
	}
	if row.Depth == nil || *row.Depth != 12.5 {
		t.Errorf("Depth = %v, want 12.5", row.Depth)
	}
	if row.Temperature != nil {
		t.Errorf("Temperature = %v, want nil for a missing field", *row.Temperature)
	}
	if row.Battery == nil || *row.Battery != 87 {
		t.Errorf("Battery = %v, want 87", row.Battery)
	}

	other := w.transform(SensorSample{ReceivedAt: receivedAt})
	if other.ReadingID == row.ReadingID {
		t.Error("ReadingID must be unique per reading")
	}
}

func TestSensorWriter_Enqueue(t *testing.T) {
	input := router.NewGrowableBuffer[SensorSample](10)
	w := NewSensorWriter(DefaultWriterConfig(), uuid.New(), input, nil, nil)

	if !w.Enqueue("10.0.0.1", router.Message{Type: router.TypeSensor, Sensor: &router.SensorReading{}}) {
		t.Error("sensor message should be queued")
	}
	if w.Enqueue("10.0.0.1", router.Message{Type: router.TypeCamera, Camera: &router.CameraFrame{}}) {
		t.Error("camera message should be ignored")
	}
	if input.Len() != 1 {
		t.Errorf("queue length = %d, want 1", input.Len())
	}
}

func TestSensorWriter_FlushOnBatchSize(t *testing.T) {
	db := &fakeDB{tag: "INSERT 0 1"}
	cfg := WriterConfig{BatchSize: 2, FlushInterval: time.Hour}
	input := router.NewGrowableBuffer[SensorSample](10)
	w := NewSensorWriter(cfg, uuid.New(), input, db, nil)

	w.handleSample(SensorSample{Vehicle: "10.0.0.1", ReceivedAt: time.Now()})
	if n := len(db.queued()); n != 0 {
		t.Fatalf("queued = %d before the batch filled, want 0", n)
	}
	w.handleSample(SensorSample{Vehicle: "10.0.0.1", ReceivedAt: time.Now()})

	queued := db.queued()
	if len(queued) != 2 {
		t.Fatalf("queued = %d, want 2", len(queued))
	}
	if got := len(queued[0].Arguments); got != 8 {
		t.Errorf("arguments = %d, want 8", got)
	}

	stats := w.Stats()
	if stats.Inserts != 2 || stats.Flushes != 1 || stats.Received != 2 {
		t.Errorf("Stats() = %+v, want 2 inserts, 1 flush, 2 received", stats)
	}
}

func TestSensorWriter_Conflicts(t *testing.T) {
	db := &fakeDB{tag: "INSERT 0 0"}
	input := router.NewGrowableBuffer[SensorSample](10)
	w := NewSensorWriter(WriterConfig{BatchSize: 1, FlushInterval: time.Hour}, uuid.New(), input, db, nil)

	w.handleSample(SensorSample{ReceivedAt: time.Now()})

	stats := w.Stats()
	if stats.Conflicts != 1 || stats.Inserts != 0 {
		t.Errorf("Stats() = %+v, want 1 conflict, 0 inserts", stats)
	}
}

func TestSensorWriter_InsertError(t *testing.T) {
	db := &fakeDB{err: errors.New("connection reset")}
	input := router.NewGrowableBuffer[SensorSample](10)
	w := NewSensorWriter(WriterConfig{BatchSize: 1, FlushInterval: time.Hour}, uuid.New(), input, db, nil)

	w.handleSample(SensorSample{ReceivedAt: time.Now()})

	if stats := w.Stats(); stats.Errors != 1 || stats.Flushes != 0 {
		t.Errorf("Stats() = %+v, want 1 error, 0 flushes", stats)
	}
}

func TestSensorWriter_Lifecycle(t *testing.T) {
	db := &fakeDB{tag: "INSERT 0 1"}
	cfg := WriterConfig{BatchSize: 100, FlushInterval: time.Hour}
	input := router.NewGrowableBuffer[SensorSample](10)
	w := NewSensorWriter(cfg, uuid.New(), input, db, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		w.Enqueue("10.0.0.1", router.Message{
			Type:       router.TypeSensor,
			Sensor:     &router.SensorReading{Depth: floatPtr(float64(i))},
			ReceivedAt: time.Now(),
		})
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	if n := len(db.queued()); n != 3 {
		t.Errorf("queued = %d after Stop, want 3", n)
	}
	if got := w.Stats().Inserts; got != 3 {
		t.Errorf("Inserts = %d, want 3", got)
	}
}

func TestSensorWriter_NoDatabase(t *testing.T) {
	input := router.NewGrowableBuffer[SensorSample](10)
	w := NewSensorWriter(WriterConfig{BatchSize: 1}, uuid.New(), input, nil, nil)

	w.handleSample(SensorSample{ReceivedAt: time.Now()})

	if got := w.Stats().Errors; got != 1 {
		t.Errorf("Errors = %d, want 1", got)
	}
}

func TestDefaultWriterConfig(t *testing.T) {
	cfg := DefaultWriterConfig()

	if cfg.BatchSize != 500 {
		t.Errorf("BatchSize = %d, want 500", cfg.BatchSize)
	}
	if cfg.FlushInterval != time.Second {
		t.Errorf("FlushInterval = %v, want 1s", cfg.FlushInterval)
	}
}
