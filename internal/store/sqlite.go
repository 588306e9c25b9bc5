package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver
)

// seq orders remembers that share a timestamp.
const schema = `
CREATE TABLE IF NOT EXISTS endpoints (
	address            TEXT PRIMARY KEY,
	first_connected_at INTEGER NOT NULL,
	last_connected_at  INTEGER NOT NULL,
	connect_count      INTEGER NOT NULL DEFAULT 0,
	seq                INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS endpoints_last_connected_at_idx ON endpoints(last_connected_at DESC);
`

const seqIndex = `CREATE INDEX IF NOT EXISTS endpoints_seq_idx ON endpoints(seq DESC);`

// SQLiteStore is an AddressStore backed by a local SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (and creates if needed) the store at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create endpoints table: %w", err)
	}
	if err := migrateSeq(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// migrateSeq adds the seq column to stores created before it existed.
func migrateSeq(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info('endpoints')`)
	if err != nil {
		return fmt.Errorf("inspect endpoints table: %w", err)
	}
	hasSeq := false
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return fmt.Errorf("inspect endpoints table: %w", err)
		}
		if name == "seq" {
			hasSeq = true
		}
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("inspect endpoints table: %w", err)
	}

	if !hasSeq {
		if _, err := db.ExecContext(ctx, `ALTER TABLE endpoints ADD COLUMN seq INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("add seq column: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, seqIndex); err != nil {
		return fmt.Errorf("create seq index: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Remember upserts address and bumps its connect count.
func (s *SQLiteStore) Remember(ctx context.Context, address string) error {
	if address == "" {
		return errors.New("remember: empty address")
	}
	now := toUnixMillis(s.now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO endpoints(address, first_connected_at, last_connected_at, connect_count, seq)
		VALUES (?, ?, ?, 1, (SELECT COALESCE(MAX(seq), 0) + 1 FROM endpoints))
		ON CONFLICT(address) DO UPDATE SET
			last_connected_at = excluded.last_connected_at,
			connect_count = endpoints.connect_count + 1,
			seq = excluded.seq
	`, address, now, now)
	if err != nil {
		return fmt.Errorf("remember endpoint: %w", err)
	}
	return nil
}

// LastKnownGood returns the address with the latest successful connection.
func (s *SQLiteStore) LastKnownGood(ctx context.Context) (string, error) {
	var address string
	err := s.db.QueryRowContext(ctx, `
		SELECT address FROM endpoints
		ORDER BY seq DESC, last_connected_at DESC
		LIMIT 1
	`).Scan(&address)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load last known good: %w", err)
	}
	return address, nil
}

// Recent lists up to n endpoints, most recently connected first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Endpoint, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, first_connected_at, last_connected_at, connect_count
		FROM endpoints
		ORDER BY seq DESC, last_connected_at DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("list endpoints: %w", err)
	}
	defer rows.Close()

	var out []Endpoint
	for rows.Next() {
		var (
			e           Endpoint
			first, last int64
		)
		if err := rows.Scan(&e.Address, &first, &last, &e.ConnectCount); err != nil {
			return nil, fmt.Errorf("scan endpoint: %w", err)
		}
		e.FirstConnectedAt = fromUnixMillis(first)
		e.LastConnectedAt = fromUnixMillis(last)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate endpoints: %w", err)
	}
	return out, nil
}
