// Command hfprobe inspects one dataset the way hfexport would read it: which
// config and split are chosen, the declared features, per-field kinds over a
// small sample, and the text value selected from each sampled record.
//
// Usage:
//
//	hfprobe -dataset org/name [-config cfg/config.yaml] [-subset en] [-n 5]
//
// Nothing is written to disk.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"hfexport/internal/config"
	"hfexport/internal/hub"
	"hfexport/internal/logging"
	"hfexport/internal/probe"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, newSource)
	stop()
	os.Exit(code)
}

func newSource(cfg *config.Config, log *zap.Logger) probe.Source {
	return hub.NewClient(hub.Options{
		Endpoint:    cfg.Hub.Endpoint,
		Token:       cfg.Hub.Token,
		Timeout:     cfg.Hub.Timeout,
		MaxAttempts: cfg.Hub.MaxAttempts,
		BaseBackoff: cfg.Hub.BaseBackoff,
		MaxBackoff:  cfg.Hub.MaxBackoff,
		JobName:     cfg.Job,
		Logger:      log,
	})
}

// run returns 0 on success, 1 on config or probe failure and 2 on usage
// errors.
func run(
	ctx context.Context,
	args []string,
	stdout, stderr io.Writer,
	newSource func(*config.Config, *zap.Logger) probe.Source,
) int {
	fset := flag.NewFlagSet("hfprobe", flag.ContinueOnError)
	fset.SetOutput(stderr)

	dataset := fset.String("dataset", "", "dataset identifier, e.g. org/name (required)")
	cfgPath := fset.String("config", "", "YAML config for hub settings (default "+config.DefaultPath+" when present)")
	subset := fset.String("subset", "", "dataset config to read (overrides hub.config)")
	n := fset.Int("n", 5, "records to sample (max 100)")
	width := fset.Int("width", 120, "truncate printed values to this many runes")
	timeout := fset.Duration("timeout", 60*time.Second, "overall probe timeout")
	verbose := fset.Bool("v", false, "debug logging")

	if err := fset.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*dataset) == "" {
		fmt.Fprintln(stderr, "missing -dataset")
		fmt.Fprintln(stderr, "usage: hfprobe -dataset org/name [-config path] [-n 5]")
		return 2
	}
	if *n <= 0 {
		fmt.Fprintf(stderr, "-n must be > 0 (got %d)\n", *n)
		return 2
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	want := cfg.Hub.Config
	if *subset != "" {
		want = *subset
	}

	log := logging.New(stderr, *verbose)
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	rep, err := probe.Run(ctx, newSource(cfg, log), probe.Options{
		Dataset: strings.TrimSpace(*dataset),
		Config:  want,
		Rows:    *n,
	})
	if err != nil {
		fmt.Fprintf(stderr, "probe %s: %v\n", *dataset, err)
		return 1
	}
	if err := rep.Print(stdout, *width); err != nil {
		fmt.Fprintf(stderr, "write report: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig reads path, or the default path when it exists, or falls back to
// built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadLenient(path)
	}
	if _, err := os.Stat(config.DefaultPath); err == nil {
		return config.LoadLenient(config.DefaultPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return config.LoadLenient("")
}
