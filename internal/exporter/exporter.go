// Package exporter turns remote datasets into plain-text corpora: one output
// file per dataset identifier, one selected text value per line.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hfexport/internal/config"
	"hfexport/internal/metrics"
	"hfexport/internal/record"
	"hfexport/internal/storage"
)

// Provider is the remote source of datasets.
type Provider interface {
	// Splits lists the dataset's split names in provider order.
	Splits(ctx context.Context, dataset string) ([]string, error)

	// Records calls fn for every record of split, in provider order.
	Records(ctx context.Context, dataset, split string, fn func(record.Record) error) error
}

// PreferredSplit is exported when present.
const PreferredSplit = "train"

// ErrNoSplits is returned for datasets that list no splits.
var ErrNoSplits = errors.New("dataset has no splits")

// Result is the outcome of exporting one dataset. Err is nil on success.
type Result struct {
	Dataset    string
	Split      string
	OutputPath string
	Count      int
	Skipped    int
	SHA256     string
	Err        error
}

// OK reports whether the export succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Summary aggregates the results of a run in configuration order.
type Summary struct {
	RunID   string
	Total   int
	Results []Result
}

// Succeeded counts successful exports.
func (s Summary) Succeeded() int {
	n := 0
	for _, r := range s.Results {
		if r.OK() {
			n++
		}
	}
	return n
}

// Options carries optional collaborators.
type Options struct {
	Logger *zap.Logger

	// Ledger, when set, receives one entry per dataset. Its failures are
	// logged and never change a Result.
	Ledger storage.Ledger

	// RunID tags ledger rows; a random UUID is used when empty.
	RunID string
}

// Exporter runs exports for one configuration.
type Exporter struct {
	provider  Provider
	datasets  []string
	outputDir string
	job       string
	log       *zap.Logger
	ledger    storage.Ledger
	runID     string

	now func() time.Time
}

// New builds an Exporter reading identifiers, output directory and job name
// from cfg.
func New(cfg *config.Config, p Provider, opts Options) *Exporter {
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	outDir := cfg.OutputDir
	if outDir == "" {
		outDir = "."
	}
	return &Exporter{
		provider:  p,
		datasets:  append([]string(nil), cfg.DatasetNames...),
		outputDir: outDir,
		job:       cfg.Job,
		log:       lg.With(zap.String("run_id", runID)),
		ledger:    opts.Ledger,
		runID:     runID,
		now:       time.Now,
	}
}

// RunID identifies this run in logs and the ledger.
func (e *Exporter) RunID() string { return e.runID }

// ExportAll exports every configured dataset in order. A failed dataset never
// stops the others; a cancelled context marks the current dataset failed and
// ends the run.
func (e *Exporter) ExportAll(ctx context.Context) Summary {
	start := e.now()
	sum := Summary{RunID: e.runID, Total: len(e.datasets)}

	for _, id := range e.datasets {
		res := e.ExportOne(ctx, id)
		sum.Results = append(sum.Results, res)
		if ctx.Err() != nil {
			e.log.Warn("run cancelled", zap.String("dataset", id), zap.Error(ctx.Err()))
			break
		}
	}

	var runErr error
	if n := sum.Succeeded(); n < len(e.datasets) {
		runErr = fmt.Errorf("%d of %d datasets failed", len(e.datasets)-n, len(e.datasets))
	}
	metrics.RecordStep(e.job, "export_all", runErr, e.now().Sub(start))
	return sum
}

// ExportOne exports a single dataset: pick the split, select one text value
// per record and write them to OutputFileName(id) under the output directory.
func (e *Exporter) ExportOne(ctx context.Context, id string) Result {
	start := e.now()
	res := Result{Dataset: id}
	e.log.Info("loading dataset", zap.String("dataset", id))

	res.Err = e.export(ctx, &res)

	metrics.RecordStep(e.job, "export", res.Err, e.now().Sub(start))
	if res.OK() {
		metrics.RecordRecords(e.job, metrics.RecordKindWritten, res.Count)
		metrics.RecordRecords(e.job, metrics.RecordKindSkipped, res.Skipped)
		e.log.Info("dataset exported",
			zap.String("dataset", id),
			zap.String("split", res.Split),
			zap.String("file", res.OutputPath),
			zap.Int("records", res.Count),
			zap.Int("skipped", res.Skipped),
		)
	} else {
		e.log.Error("dataset export failed", zap.String("dataset", id), zap.Error(res.Err))
	}

	e.recordLedger(ctx, res, start)
	return res
}

func (e *Exporter) export(ctx context.Context, res *Result) error {
	splits, err := e.provider.Splits(ctx, res.Dataset)
	if err != nil {
		return err
	}
	split, ok := ChooseSplit(splits)
	if !ok {
		return ErrNoSplits
	}
	res.Split = split

	path := filepath.Join(e.outputDir, OutputFileName(res.Dataset))
	w, err := newAtomicWriter(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer w.Abort()

	err = e.provider.Records(ctx, res.Dataset, split, func(r record.Record) error {
		text, ok := record.SelectText(r)
		if !ok {
			res.Skipped++
			return nil
		}
		if err := w.WriteLine(text); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		res.Count++
		return nil
	})
	if err != nil {
		return err
	}

	sum, err := w.Commit()
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	res.OutputPath = path
	res.SHA256 = sum
	return nil
}

func (e *Exporter) recordLedger(ctx context.Context, res Result, start time.Time) {
	if e.ledger == nil {
		return
	}
	entry := storage.Entry{
		RunID:      e.runID,
		Dataset:    res.Dataset,
		Split:      res.Split,
		Status:     storage.StatusOK,
		StartedAt:  start,
		FinishedAt: e.now(),
	}
	if res.OK() {
		entry.OutputFile = res.OutputPath
		entry.Records = res.Count
		entry.SHA256 = res.SHA256
	} else {
		entry.Status = storage.StatusFailed
		entry.Error = res.Err.Error()
	}

	// Record even when the run was cancelled.
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	if err := e.ledger.RecordExport(ctx, entry); err != nil {
		e.log.Warn("ledger write failed", zap.String("dataset", res.Dataset), zap.Error(err))
	}
}

// ChooseSplit returns PreferredSplit if listed, else the first split.
func ChooseSplit(splits []string) (string, bool) {
	for _, s := range splits {
		if s == PreferredSplit {
			return s, true
		}
	}
	if len(splits) == 0 {
		return "", false
	}
	return splits[0], true
}

// OutputFileName maps a dataset identifier to its output file name:
// "org/name" becomes "org_name.txt".
func OutputFileName(id string) string {
	return strings.ReplaceAll(id, "/", "_") + ".txt"
}
