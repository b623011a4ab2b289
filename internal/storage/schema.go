package storage

import (
	"fmt"
	"strings"
	"time"
)

// Table is the ledger table name used by every backend.
const Table = "hf_exports"

// Columns is the insert column order shared by all backends. Entry.Values
// returns values in the same order.
var Columns = []string{
	"run_id",
	"dataset",
	"split",
	"output_file",
	"records",
	"sha256",
	"status",
	"error",
	"started_at",
	"finished_at",
}

// Values returns e's column values in Columns order. Timestamps are UTC.
func (e Entry) Values() []any {
	return []any{
		e.RunID,
		e.Dataset,
		e.Split,
		e.OutputFile,
		int64(e.Records),
		e.SHA256,
		e.Status,
		e.Error,
		e.StartedAt.UTC(),
		e.FinishedAt.UTC(),
	}
}

// InsertSQL builds "INSERT INTO <table> (<Columns>) VALUES (...)" with
// placeholders produced by ph (1-based), e.g. "$1" for Postgres.
func InsertSQL(table string, ph func(i int) string) string {
	marks := make([]string, len(Columns))
	for i := range Columns {
		marks[i] = ph(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(Columns, ", "), strings.Join(marks, ", "))
}

// FormatTime renders t for backends that store timestamps as text.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
