package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"hfexport/internal/storage"
)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "ledger.db")
	l, err := New(context.Background(), storage.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(l.Close)
	return l.(*Ledger)
}

func TestRecordExport_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := openTemp(t)

	// Twice: schema creation is idempotent.
	for i := 0; i < 2; i++ {
		if err := l.EnsureSchema(ctx); err != nil {
			t.Fatalf("EnsureSchema #%d: %v", i, err)
		}
	}

	start := time.Date(2024, 5, 6, 7, 8, 9, 123, time.UTC)
	entries := []storage.Entry{
		{
			RunID: "run-1", Dataset: "org/a", Split: "train", OutputFile: "org_a.txt",
			Records: 3, SHA256: "abc", Status: storage.StatusOK,
			StartedAt: start, FinishedAt: start.Add(time.Second),
		},
		{
			RunID: "run-1", Dataset: "org/b", Status: storage.StatusFailed, Error: "http status 404",
			StartedAt: start, FinishedAt: start,
		},
	}
	for _, e := range entries {
		if err := l.RecordExport(ctx, e); err != nil {
			t.Fatalf("RecordExport(%s): %v", e.Dataset, err)
		}
	}

	rows, err := l.db.QueryContext(ctx, `SELECT dataset, split, records, status, error, started_at FROM hf_exports ORDER BY id`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	type got struct {
		dataset, split string
		records        int
		status, errMsg string
		started        string
	}
	var all []got
	for rows.Next() {
		var g got
		if err := rows.Scan(&g.dataset, &g.split, &g.records, &g.status, &g.errMsg, &g.started); err != nil {
			t.Fatalf("scan: %v", err)
		}
		all = append(all, g)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}

	if len(all) != 2 {
		t.Fatalf("rows=%d, want 2", len(all))
	}
	if all[0].dataset != "org/a" || all[0].split != "train" || all[0].records != 3 || all[0].status != "ok" {
		t.Fatalf("row 0=%+v", all[0])
	}
	if all[0].started != "2024-05-06T07:08:09.000000123Z" {
		t.Fatalf("started_at=%q, want RFC3339Nano UTC", all[0].started)
	}
	if all[1].status != "failed" || all[1].errMsg != "http status 404" {
		t.Fatalf("row 1=%+v", all[1])
	}
}

func TestNew_RegisteredAsSqlite(t *testing.T) {
	t.Parallel()

	l, err := storage.New(context.Background(), storage.Config{
		Kind: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "x.db"),
	})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	l.Close()
}
