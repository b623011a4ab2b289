package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"hfexport/internal/storage"
)

// Ledger implements storage.Ledger on SQLite.
//
// SQLite has no timestamp type; started_at and finished_at are stored as
// RFC3339Nano text so they sort and round-trip cleanly.
type Ledger struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

// New opens the database at cfg.DSN (a file path or "file:" URI).
func New(ctx context.Context, cfg storage.Config) (storage.Ledger, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() { _ = l.db.Close() }

const createSQL = `CREATE TABLE IF NOT EXISTS ` + storage.Table + ` (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT    NOT NULL,
	dataset     TEXT    NOT NULL,
	split       TEXT    NOT NULL DEFAULT '',
	output_file TEXT    NOT NULL DEFAULT '',
	records     INTEGER NOT NULL DEFAULT 0,
	sha256      TEXT    NOT NULL DEFAULT '',
	status      TEXT    NOT NULL,
	error       TEXT    NOT NULL DEFAULT '',
	started_at  TEXT    NOT NULL,
	finished_at TEXT    NOT NULL
)`

const indexSQL = `CREATE INDEX IF NOT EXISTS ` + storage.Table + `_dataset_idx ON ` + storage.Table + ` (dataset, finished_at)`

func (l *Ledger) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create table %s: %w", storage.Table, err)
	}
	if _, err := l.db.ExecContext(ctx, indexSQL); err != nil {
		return fmt.Errorf("create index on %s: %w", storage.Table, err)
	}
	return nil
}

var insertSQL = storage.InsertSQL(storage.Table, func(int) string { return "?" })

func (l *Ledger) RecordExport(ctx context.Context, e storage.Entry) error {
	args := e.Values()
	for i, v := range args {
		if t, ok := v.(time.Time); ok {
			args[i] = storage.FormatTime(t)
		}
	}
	if _, err := l.db.ExecContext(ctx, insertSQL, args...); err != nil {
		return fmt.Errorf("insert %s: %w", storage.Table, err)
	}
	return nil
}
