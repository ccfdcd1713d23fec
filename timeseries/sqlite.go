package timeseries

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/poiesic/machinerag/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS entity_history (
	entity_id   TEXT    NOT NULL,
	attribute   TEXT    NOT NULL,
	observed_at INTEGER NOT NULL,
	value       REAL    NOT NULL,
	PRIMARY KEY (entity_id, attribute, observed_at)
);
CREATE INDEX IF NOT EXISTS idx_entity_history_time ON entity_history (entity_id, observed_at);
`

// Sample is one row of entity_history.
type Sample struct {
	EntityID   string
	Attribute  string
	ObservedAt time.Time
	Value      float64
}

// SQLStore is a Resolver backed by a SQLite database.
type SQLStore struct {
	db   *sql.DB
	path string
}

// OpenSQLStore opens or creates the database at path. An empty path or
// ":memory:" opens a private in-memory database.
func OpenSQLStore(path string) (*SQLStore, error) {
	dsn := ":memory:"
	if path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if dsn == ":memory:" {
		// every connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLStore{db: db, path: dsn}, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Fetch implements Resolver.
func (s *SQLStore) Fetch(ctx context.Context, assetRef, metric string, from, to time.Time) ([]core.Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT observed_at, value FROM entity_history
		WHERE entity_id = ?
		  AND (? = '' OR attribute = ? OR attribute LIKE '%/' || ? OR attribute LIKE '%#' || ?)
		  AND observed_at BETWEEN ? AND ?
		ORDER BY observed_at ASC`,
		assetRef, metric, metric, metric, metric, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("querying entity history: %w", err)
	}
	defer rows.Close()

	var out []core.Reading
	for rows.Next() {
		var ms int64
		var v float64
		if err := rows.Scan(&ms, &v); err != nil {
			return nil, fmt.Errorf("scanning entity history: %w", err)
		}
		out = append(out, core.Reading{Timestamp: time.UnixMilli(ms).UTC(), Value: v})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity history: %w", err)
	}
	return out, nil
}

// Insert stores samples in a single transaction. A sample with the same
// entity, attribute and timestamp replaces the existing one.
func (s *SQLStore) Insert(ctx context.Context, samples []Sample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO entity_history (entity_id, attribute, observed_at, value)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, sm := range samples {
		if sm.EntityID == "" || sm.Attribute == "" {
			return fmt.Errorf("sample at %s: entity and attribute are required", sm.ObservedAt.Format(time.RFC3339))
		}
		if _, err := stmt.ExecContext(ctx, sm.EntityID, sm.Attribute, sm.ObservedAt.UnixMilli(), sm.Value); err != nil {
			return fmt.Errorf("inserting sample: %w", err)
		}
	}
	return tx.Commit()
}

// Count returns the number of stored samples.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entity_history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting entity history: %w", err)
	}
	return n, nil
}
