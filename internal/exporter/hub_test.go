package exporter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"hfexport/internal/hub"
)

// rowsServer serves a single-split dataset whose one /rows page is either
// partial or carries a truncated text cell.
func rowsServer(t *testing.T, partial, truncated bool) *httptest.Server {
	t.Helper()
	cells := `[]`
	if truncated {
		cells = `["text"]`
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/splits", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"splits":[{"dataset":"org/ds","config":"default","split":"train"}]}`)
	})
	mux.HandleFunc("/rows", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"features":[],"rows":[
			{"row_idx":0,"row":{"text":"complete"},"truncated_cells":[]},
			{"row_idx":1,"row":{"text":"abc (cut"},"truncated_cells":%s}],
			"num_rows_total":2,"partial":%t}`, cells, partial)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestExportOne_IncompleteProviderRowsFail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		partial   bool
		truncated bool
		want      error
	}{
		{name: "truncated cell", truncated: true, want: hub.ErrTruncatedCells},
		{name: "partial split", partial: true, want: hub.ErrPartialSplit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := rowsServer(t, tt.partial, tt.truncated)
			c := hub.NewClient(hub.Options{Endpoint: srv.URL, MaxAttempts: 1})
			e, dir := newTestExporter(t, "org/ds", c, Options{})

			res := e.ExportOne(context.Background(), "org/ds")
			if !errors.Is(res.Err, tt.want) {
				t.Fatalf("err=%v, want %v", res.Err, tt.want)
			}
			if res.Count != 0 {
				t.Fatalf("Count=%d, want 0", res.Count)
			}
			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatalf("ReadDir: %v", err)
			}
			if len(entries) != 0 {
				t.Fatalf("dir has %d entries, want none", len(entries))
			}
		})
	}
}
