package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/microsoft/go-mssqldb"

	"hfexport/internal/storage"
)

func init() {
	storage.Register("mssql", New)
}

// execer is the subset of *sql.DB the ledger uses; tests substitute a fake.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Close() error
}

// Ledger implements storage.Ledger on Microsoft SQL Server.
type Ledger struct {
	db execer
}

// New opens cfg.DSN with the "sqlserver" driver and verifies connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Ledger, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	raw.SetMaxOpenConns(4)
	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Ledger{db: raw}, nil
}

// Close releases database resources held by this ledger.
func (l *Ledger) Close() {
	if l == nil || l.db == nil {
		return
	}
	_ = l.db.Close()
}

// SQL Server has no CREATE TABLE IF NOT EXISTS; guard with OBJECT_ID.
const createSQL = `IF OBJECT_ID(N'dbo.` + storage.Table + `', N'U') IS NULL
BEGIN
	CREATE TABLE dbo.` + storage.Table + ` (
		id          BIGINT IDENTITY(1,1) PRIMARY KEY,
		run_id      UNIQUEIDENTIFIER NOT NULL,
		dataset     NVARCHAR(400)    NOT NULL,
		split       NVARCHAR(200)    NOT NULL DEFAULT N'',
		output_file NVARCHAR(1000)   NOT NULL DEFAULT N'',
		records     BIGINT           NOT NULL DEFAULT 0,
		sha256      CHAR(64)         NULL,
		status      NVARCHAR(16)     NOT NULL,
		error       NVARCHAR(MAX)    NOT NULL DEFAULT N'',
		started_at  DATETIMEOFFSET   NOT NULL,
		finished_at DATETIMEOFFSET   NOT NULL
	);
	CREATE INDEX ` + storage.Table + `_dataset_idx ON dbo.` + storage.Table + ` (dataset, finished_at);
END`

var insertSQL = storage.InsertSQL("dbo."+storage.Table, func(i int) string { return "@p" + strconv.Itoa(i) })

// EnsureSchema creates the table and index on first use.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create table %s: %w", storage.Table, err)
	}
	return nil
}

func (l *Ledger) RecordExport(ctx context.Context, e storage.Entry) error {
	args := e.Values()
	// CHAR(64) NULL: store failures without a digest as NULL.
	if e.SHA256 == "" {
		args[5] = nil
	}
	if _, err := l.db.ExecContext(ctx, insertSQL, args...); err != nil {
		return fmt.Errorf("insert %s: %w", storage.Table, err)
	}
	return nil
}
