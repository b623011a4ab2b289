// Package probe samples a remote dataset without exporting it.
//
// A probe resolves the same configuration and split the exporter would use,
// reads a bounded prefix of that split and reports:
//   - the configs and splits the provider lists
//   - the declared features
//   - per-field value kinds and uniqueness over the sample
//   - which field the text selection picks per record, and its value
//
// Probing is read-only; nothing is written to disk.
package probe

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"hfexport/internal/exporter"
	"hfexport/internal/hub"
	"hfexport/internal/record"
)

// Source is the subset of *hub.Client a probe needs.
type Source interface {
	SplitInfos(ctx context.Context, dataset string) ([]hub.SplitInfo, error)
	RowsPage(ctx context.Context, dataset, config, split string, offset, length int) (*hub.RowsPage, error)
}

// Options bound a probe.
type Options struct {
	Dataset string
	// Config forces a dataset configuration; empty uses the exporter's rule.
	Config string
	// Rows is the sample size, capped at 100 (one page).
	Rows int
}

// Sample is one record's text selection.
type Sample struct {
	Row   int
	Field string
	Text  string
	OK    bool
}

// FieldStats summarizes one field over the sampled records.
type FieldStats struct {
	Name     string
	Present  int
	Distinct int
	Kinds    map[record.Kind]int
}

// Report is the outcome of a probe.
type Report struct {
	Dataset  string
	Configs  []string
	Config   string
	Splits   []string
	Split    string
	NumRows  int
	Partial  bool
	Features []hub.Feature
	Fields   []FieldStats
	Samples  []Sample
}

// Selected counts sampled records that yield a text value.
func (r *Report) Selected() int {
	n := 0
	for _, s := range r.Samples {
		if s.OK {
			n++
		}
	}
	return n
}

// Run probes opt.Dataset.
func Run(ctx context.Context, src Source, opt Options) (*Report, error) {
	if strings.TrimSpace(opt.Dataset) == "" {
		return nil, fmt.Errorf("probe: missing dataset")
	}
	n := opt.Rows
	if n <= 0 {
		n = 5
	}
	if n > 100 {
		n = 100
	}

	infos, err := src.SplitInfos(ctx, opt.Dataset)
	if err != nil {
		return nil, err
	}
	cfg, err := hub.ChooseConfig(infos, opt.Config)
	if err != nil {
		return nil, err
	}

	rep := &Report{Dataset: opt.Dataset, Config: cfg}
	seen := map[string]bool{}
	for _, si := range infos {
		if !seen[si.Config] {
			seen[si.Config] = true
			rep.Configs = append(rep.Configs, si.Config)
		}
		if si.Config == cfg {
			rep.Splits = append(rep.Splits, si.Split)
		}
	}

	split, ok := exporter.ChooseSplit(rep.Splits)
	if !ok {
		return rep, exporter.ErrNoSplits
	}
	rep.Split = split

	page, err := src.RowsPage(ctx, opt.Dataset, cfg, split, 0, n)
	if err != nil {
		return rep, err
	}
	rep.NumRows = page.NumRowsTotal
	rep.Partial = page.Partial
	rep.Features = page.Features

	recs := make([]record.Record, 0, len(page.Rows))
	for _, row := range page.Rows {
		recs = append(recs, row.Row)
		field, _ := record.SelectedField(row.Row)
		text, ok := record.SelectText(row.Row)
		rep.Samples = append(rep.Samples, Sample{Row: row.Index, Field: field, Text: text, OK: ok})
	}
	rep.Fields = fieldStats(recs)
	return rep, nil
}

// fieldStats computes per-field kind counts and distinct values, in order of
// first appearance.
func fieldStats(recs []record.Record) []FieldStats {
	var order []string
	byName := map[string]*FieldStats{}
	sets := map[string]map[string]struct{}{}

	for _, r := range recs {
		for _, f := range r.Fields() {
			st, ok := byName[f.Name]
			if !ok {
				st = &FieldStats{Name: f.Name, Kinds: map[record.Kind]int{}}
				byName[f.Name] = st
				sets[f.Name] = map[string]struct{}{}
				order = append(order, f.Name)
			}
			st.Kinds[f.Value.Kind()]++
			if f.Value.Kind() == record.KindNull {
				continue
			}
			st.Present++
			sets[f.Name][f.Value.String()] = struct{}{}
		}
	}

	out := make([]FieldStats, 0, len(order))
	for _, name := range order {
		st := byName[name]
		st.Distinct = len(sets[name])
		out = append(out, *st)
	}
	return out
}

// Print writes a human-readable report. Sample values longer than width runes
// are truncated; width <= 0 means 120.
func (r *Report) Print(w io.Writer, width int) error {
	if width <= 0 {
		width = 120
	}
	var b strings.Builder

	fmt.Fprintf(&b, "dataset:\t%s\n", r.Dataset)
	fmt.Fprintf(&b, "configs:\t%s (using %s)\n", strings.Join(r.Configs, ", "), r.Config)
	fmt.Fprintf(&b, "splits:\t%s (using %s)\n", strings.Join(r.Splits, ", "), r.Split)
	partial := ""
	if r.Partial {
		partial = " (partial)"
	}
	fmt.Fprintf(&b, "rows:\t%d%s\n", r.NumRows, partial)

	names := make([]string, 0, len(r.Features))
	for _, f := range r.Features {
		names = append(names, f.Name)
	}
	fmt.Fprintf(&b, "features:\t%s\n", strings.Join(names, ", "))

	fmt.Fprintf(&b, "\nfield stats:\tsampled_rows=%d\n", len(r.Samples))
	fmt.Fprintf(&b, "%-20s\t%-7s\t%-7s\tkinds\n", "field", "present", "unique")
	for _, f := range r.Fields {
		fmt.Fprintf(&b, "%-20s\t%-7d\t%-7d\t%s\n", f.Name, f.Present, f.Distinct, formatKinds(f.Kinds))
	}

	fmt.Fprintf(&b, "\nselected text:\t%d of %d\n", r.Selected(), len(r.Samples))
	for _, s := range r.Samples {
		if !s.OK {
			fmt.Fprintf(&b, "  [%d] (skipped: no string field)\n", s.Row)
			continue
		}
		fmt.Fprintf(&b, "  [%d] %s: %q\n", s.Row, s.Field, truncate(s.Text, width))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func formatKinds(kinds map[record.Kind]int) string {
	parts := make([]string, 0, len(kinds))
	for k, n := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", k, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	rs := []rune(s)
	return string(rs[:width]) + "…"
}
