package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "console.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_EmptyHasNoAddress(t *testing.T) {
	s := openTestStore(t)

	addr, err := s.LastKnownGood(context.Background())
	if err != nil {
		t.Fatalf("LastKnownGood: %v", err)
	}
	if addr != "" {
		t.Errorf("LastKnownGood() = %q, want empty", addr)
	}
}

func TestSQLiteStore_RememberAndRecent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	s.now = func() time.Time { return clock }

	for i, addr := range []string{"192.168.1.100", "10.0.0.7", "192.168.1.100"} {
		clock = base.Add(time.Duration(i) * time.Minute)
		if err := s.Remember(ctx, addr); err != nil {
			t.Fatalf("Remember(%s): %v", addr, err)
		}
	}

	got, err := s.LastKnownGood(ctx)
	if err != nil {
		t.Fatalf("LastKnownGood: %v", err)
	}
	if got != "192.168.1.100" {
		t.Errorf("LastKnownGood() = %q, want 192.168.1.100", got)
	}

	recent, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len(Recent()) = %d, want 2", len(recent))
	}
	if recent[0].Address != "192.168.1.100" || recent[1].Address != "10.0.0.7" {
		t.Errorf("Recent() order = [%s %s], want [192.168.1.100 10.0.0.7]", recent[0].Address, recent[1].Address)
	}
	if recent[0].ConnectCount != 2 {
		t.Errorf("ConnectCount = %d, want 2", recent[0].ConnectCount)
	}
	if !recent[0].FirstConnectedAt.Equal(base) {
		t.Errorf("FirstConnectedAt = %v, want %v", recent[0].FirstConnectedAt, base)
	}
	if !recent[0].LastConnectedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("LastConnectedAt = %v, want %v", recent[0].LastConnectedAt, base.Add(2*time.Minute))
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "console.db")

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := s.Remember(ctx, "172.16.0.2"); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	_ = s.Close()

	s, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = s.Close() }()

	got, err := s.LastKnownGood(ctx)
	if err != nil {
		t.Fatalf("LastKnownGood: %v", err)
	}
	if got != "172.16.0.2" {
		t.Errorf("LastKnownGood() = %q, want 172.16.0.2", got)
	}
}

func TestSQLiteStore_SameInstantKeepsCallOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	for _, addr := range []string{"10.0.0.7", "10.0.0.7", "192.168.1.100"} {
		if err := s.Remember(ctx, addr); err != nil {
			t.Fatalf("Remember(%s): %v", addr, err)
		}
	}

	got, err := s.LastKnownGood(ctx)
	if err != nil {
		t.Fatalf("LastKnownGood: %v", err)
	}
	if got != "192.168.1.100" {
		t.Errorf("LastKnownGood() = %q, want 192.168.1.100", got)
	}

	if err := s.Remember(ctx, "10.0.0.7"); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	recent, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Address != "10.0.0.7" || recent[1].Address != "192.168.1.100" {
		t.Errorf("Recent() = %+v, want 10.0.0.7 then 192.168.1.100", recent)
	}
}

func TestSQLiteStore_MigratesStoreWithoutSeq(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "console.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	_, err = db.ExecContext(ctx, `
		CREATE TABLE endpoints (
			address            TEXT PRIMARY KEY,
			first_connected_at INTEGER NOT NULL,
			last_connected_at  INTEGER NOT NULL,
			connect_count      INTEGER NOT NULL DEFAULT 0
		);
		INSERT INTO endpoints VALUES ('172.16.0.2', 1000, 1000, 3);
	`)
	if err != nil {
		t.Fatalf("seed old schema: %v", err)
	}
	_ = db.Close()

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open migrated store: %v", err)
	}
	defer func() { _ = s.Close() }()

	if got, err := s.LastKnownGood(ctx); err != nil || got != "172.16.0.2" {
		t.Fatalf("LastKnownGood() = %q, %v, want 172.16.0.2", got, err)
	}
	if err := s.Remember(ctx, "10.0.0.7"); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if got, _ := s.LastKnownGood(ctx); got != "10.0.0.7" {
		t.Errorf("LastKnownGood() after Remember = %q, want 10.0.0.7", got)
	}
}

func TestSQLiteStore_RejectsEmptyAddress(t *testing.T) {
	s := openTestStore(t)
	if err := s.Remember(context.Background(), ""); err == nil {
		t.Error("Remember(\"\") should fail")
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	empty := NewMemoryStore()
	if got, _ := empty.LastKnownGood(ctx); got != "" {
		t.Errorf("LastKnownGood() on empty store = %q, want empty", got)
	}

	s := NewMemoryStore("10.0.0.1")
	_ = s.Remember(ctx, "10.0.0.2")
	_ = s.Remember(ctx, "10.0.0.1")

	got, err := s.LastKnownGood(ctx)
	if err != nil {
		t.Fatalf("LastKnownGood: %v", err)
	}
	if got != "10.0.0.1" {
		t.Errorf("LastKnownGood() = %q, want 10.0.0.1", got)
	}

	recent, _ := s.Recent(ctx, 1)
	if len(recent) != 1 || recent[0].ConnectCount != 2 {
		t.Errorf("Recent(1) = %+v, want one endpoint with 2 connects", recent)
	}
}
