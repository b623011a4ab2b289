// Command hfexport exports the configured Hugging Face datasets to plain-text
// files, one selected text value per line.
//
// Usage:
//
//	hfexport [-config cfg/config.yaml] [-out DIR] [-metrics-backend none|pushgateway|datadog] [-v]
//
// Per-dataset results and the run total are printed to stdout; structured
// logs go to stderr (or -log-file).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"hfexport/internal/config"
	"hfexport/internal/exporter"
	"hfexport/internal/hub"
	"hfexport/internal/logging"
	"hfexport/internal/storage"

	// Link every ledger backend; ledger.kind picks one at runtime.
	_ "hfexport/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

// appDeps are the side-effecting constructors runMain uses. Tests replace
// them.
type appDeps struct {
	loadConfig  func(path string) (*config.Config, error)
	newLogger   func(stderr io.Writer, logFile string, verbose bool) (*zap.Logger, error)
	initMetrics func(ctx context.Context, opts metricsOptions, log *zap.Logger) (func(), error)
	newProvider func(cfg *config.Config, log *zap.Logger) exporter.Provider
	openLedger  func(ctx context.Context, cfg storage.Config) (storage.Ledger, error)
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig:  config.Load,
		newLogger:   newLogger,
		initMetrics: initMetrics,
		newProvider: newHubProvider,
		openLedger:  storage.New,
	}
}

func newLogger(stderr io.Writer, logFile string, verbose bool) (*zap.Logger, error) {
	if logFile != "" {
		return logging.NewFromConfig(logFile, verbose)
	}
	return logging.New(stderr, verbose), nil
}

func newHubProvider(cfg *config.Config, log *zap.Logger) exporter.Provider {
	return hub.NewClient(hub.Options{
		Endpoint:    cfg.Hub.Endpoint,
		Token:       cfg.Hub.Token,
		Config:      cfg.Hub.Config,
		PageSize:    cfg.Hub.PageSize,
		Timeout:     cfg.Hub.Timeout,
		MaxAttempts: cfg.Hub.MaxAttempts,
		BaseBackoff: cfg.Hub.BaseBackoff,
		MaxBackoff:  cfg.Hub.MaxBackoff,
		JobName:     cfg.Job,
		Logger:      log,
	})
}

// runMain is main without the process: it returns the exit code.
//
//   - 0 the run completed, even if some datasets failed
//   - 1 config could not be loaded or initialization failed
//   - 2 usage errors
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	fs := flag.NewFlagSet("hfexport", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfgPath := fs.String("config", config.DefaultPath, "path to the YAML config")
	outDir := fs.String("out", "", "output directory (overrides output_dir)")
	backend := fs.String("metrics-backend", "", "metrics backend: none|pushgateway|datadog (env METRICS_BACKEND)")
	gwURL := fs.String("pushgateway-url", "", "Pushgateway base URL (env PUSHGATEWAY_URL)")
	ddTags := fs.String("dd-tags", "", "extra Datadog tags, comma separated (env METRICS_TAGS)")
	logFile := fs.String("log-file", "", "write logs to this file instead of stderr")
	verbose := fs.Bool("v", false, "debug logging")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		fmt.Fprintln(stderr, "usage: hfexport [-config path] [-out dir]")
		return 2
	}
	if strings.TrimSpace(*cfgPath) == "" {
		fmt.Fprintln(stderr, "usage: hfexport -config path/to/config.yaml")
		return 2
	}

	cfg, err := deps.loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}

	log, err := deps.newLogger(stderr, *logFile, *verbose)
	if err != nil {
		fmt.Fprintf(stderr, "init logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		fmt.Fprintf(stderr, "create output dir: %v\n", err)
		return 1
	}

	cleanup, err := deps.initMetrics(ctx, metricsOptions{
		Backend:        *backend,
		Job:            cfg.Job,
		PushgatewayURL: *gwURL,
		DDTagsCSV:      *ddTags,
	}, log)
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer cleanup()

	opts := exporter.Options{Logger: log}
	if cfg.Ledger.Kind != "" {
		l, err := openLedger(ctx, deps, cfg.Ledger, log)
		if err != nil {
			fmt.Fprintf(stderr, "open ledger: %v\n", err)
			return 1
		}
		if l != nil {
			defer l.Close()
			opts.Ledger = l
		}
	}

	log.Info("starting export",
		zap.Strings("datasets", cfg.DatasetNames),
		zap.String("output_dir", cfg.OutputDir),
		zap.String("endpoint", cfg.Hub.Endpoint),
	)

	e := exporter.New(cfg, deps.newProvider(cfg, log), opts)
	sum := e.ExportAll(ctx)

	if err := exporter.Report(stdout, sum); err != nil {
		fmt.Fprintf(stderr, "write report: %v\n", err)
		return 1
	}
	log.Info("export finished",
		zap.String("run_id", sum.RunID),
		zap.Int("succeeded", sum.Succeeded()),
		zap.Int("total", sum.Total),
	)
	return 0
}

// openLedger connects the ledger and ensures its schema. An unknown kind is a
// configuration error; other failures are logged and the run continues
// without a ledger.
func openLedger(ctx context.Context, deps appDeps, lc config.Ledger, log *zap.Logger) (storage.Ledger, error) {
	l, err := deps.openLedger(ctx, storage.Config{Kind: lc.Kind, DSN: lc.DSN})
	if errors.Is(err, storage.ErrUnknownKind) {
		return nil, err
	}
	if err != nil {
		log.Warn("ledger unavailable; continuing without it", zap.String("kind", lc.Kind), zap.Error(err))
		return nil, nil
	}
	if err := l.EnsureSchema(ctx); err != nil {
		log.Warn("ledger schema failed; continuing without it", zap.String("kind", lc.Kind), zap.Error(err))
		l.Close()
		return nil, nil
	}
	return l, nil
}
