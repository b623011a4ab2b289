package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"hfexport/internal/metrics"
	"hfexport/internal/metrics/datadog"
	"hfexport/internal/metrics/prompush"
)

// metricsBackend is a metrics.Backend the command must Close on exit.
type metricsBackend interface {
	metrics.Backend
	Close() error
}

// metricsOptions are the flag/env inputs for initMetrics.
type metricsOptions struct {
	Backend        string
	Job            string
	PushgatewayURL string
	DDTagsCSV      string
}

// Seams for tests.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	newPushBackend = func(job, url string) (metricsBackend, error) {
		return prompush.NewBackend(job, url)
	}
	setMetricsBackend = func(b metrics.Backend) { metrics.SetBackend(b) }
)

// initMetrics selects and installs the metrics backend. The returned cleanup
// is never nil; it closes (and so flushes) the backend and restores the nop
// backend.
func initMetrics(ctx context.Context, opts metricsOptions, log *zap.Logger) (func(), error) {
	name := strings.ToLower(strings.TrimSpace(opts.Backend))
	if name == "" {
		name = strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_BACKEND")))
	}

	var (
		b   metricsBackend
		err error
	)
	switch name {
	case "", "none", "nop", "noop":
		log.Debug("metrics disabled")
		return func() {}, nil

	case "pushgateway", "prom", "prometheus":
		url := opts.PushgatewayURL
		if url == "" {
			url = os.Getenv("PUSHGATEWAY_URL")
		}
		if url == "" {
			url = "http://localhost:9091"
		}
		b, err = newPushBackend(opts.Job, url)
		if err != nil {
			return func() {}, fmt.Errorf("pushgateway backend: %w", err)
		}
		log.Info("metrics enabled", zap.String("backend", "pushgateway"), zap.String("url", url))

	case "datadog", "dd":
		tagsCSV := opts.DDTagsCSV
		if tagsCSV == "" {
			tagsCSV = os.Getenv("METRICS_TAGS")
		}
		tags := append(datadog.ParseTagsCSV(tagsCSV), "tool:hfexport")
		b, err = newDatadogBackend(ctx, datadog.Options{
			JobName:    opts.Job,
			Tags:       tags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			return func() {}, fmt.Errorf("datadog backend: %w", err)
		}
		log.Info("metrics enabled", zap.String("backend", "datadog"), zap.Strings("tags", tags))

	default:
		return func() {}, fmt.Errorf("unknown metrics backend %q (want none|pushgateway|datadog)", name)
	}

	setMetricsBackend(b)
	return func() {
		if err := b.Close(); err != nil {
			log.Warn("metrics close error", zap.String("backend", name), zap.Error(err))
		}
		setMetricsBackend(nil)
	}, nil
}
