package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hfexport/internal/storage"
)

func init() {
	storage.Register("postgres", New)
}

// Ledger implements storage.Ledger on Postgres through a pgx pool.
type Ledger struct {
	pool *pgxpool.Pool
}

// New connects to cfg.DSN and verifies the connection.
func New(ctx context.Context, cfg storage.Config) (storage.Ledger, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Ledger{pool: pool}, nil
}

// Close closes the connection pool.
func (l *Ledger) Close() { l.pool.Close() }

var table = pgx.Identifier{storage.Table}.Sanitize()

func createSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id          BIGSERIAL PRIMARY KEY,
	run_id      UUID        NOT NULL,
	dataset     TEXT        NOT NULL,
	split       TEXT        NOT NULL DEFAULT '',
	output_file TEXT        NOT NULL DEFAULT '',
	records     BIGINT      NOT NULL DEFAULT 0,
	sha256      TEXT        NOT NULL DEFAULT '',
	status      TEXT        NOT NULL,
	error       TEXT        NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
)`, table)
}

func indexSQL() string {
	return fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (dataset, finished_at)`,
		pgx.Identifier{storage.Table + "_dataset_idx"}.Sanitize(), table)
}

func insertSQL() string {
	return storage.InsertSQL(table, func(i int) string { return "$" + strconv.Itoa(i) })
}

// EnsureSchema creates the ledger table and its index in one transaction.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, createSQL()); err != nil {
		return fmt.Errorf("create table %s: %w", storage.Table, err)
	}
	if _, err := tx.Exec(ctx, indexSQL()); err != nil {
		return fmt.Errorf("create index on %s: %w", storage.Table, err)
	}
	return tx.Commit(ctx)
}

func (l *Ledger) RecordExport(ctx context.Context, e storage.Entry) error {
	if _, err := l.pool.Exec(ctx, insertSQL(), e.Values()...); err != nil {
		return fmt.Errorf("insert %s: %w", storage.Table, err)
	}
	return nil
}
