// Package metrics is the backend-neutral metrics surface used by the exporter
// and the hub client.
//
// Callers record through the package-level helpers (RecordStep, RecordRecords,
// RecordHTTP). A nop backend is installed by default, so commands that never
// call SetBackend pay nothing.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Labels are metric dimensions. Backends decide which keys they keep.
type Labels map[string]string

// Backend receives raw observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Metric names shared by all backends.
const (
	StepTotal           = "hfexport_step_total"
	StepDurationSeconds = "hfexport_step_duration_seconds"
	RecordsTotal        = "hfexport_records_total"

	HTTPRequestsTotal    = "hfexport_http_requests_total"
	HTTPErrorsTotal      = "hfexport_http_errors_total"
	HTTPRequestDuration  = "hfexport_http_request_duration_seconds"
	HTTPResponseDuration = "hfexport_http_response_duration_seconds"
	HTTPDownloadBytes    = "hfexport_http_download_bytes"
)

// Label values.
const (
	StatusOK    = "ok"
	StatusError = "error"

	RecordKindRead    = "read"
	RecordKindWritten = "written"
	RecordKindSkipped = "skipped"

	defaultStatusLabelValue = "unknown"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. nil restores the nop backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush flushes the current backend.
func Flush() error { return current().Flush() }

// RecordStep counts one execution of a named step (e.g. "fetch", "write",
// "export") and observes its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	labels := Labels{"job": job, "step": step, "status": status}
	b := current()
	b.IncCounter(StepTotal, 1, labels)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), labels)
}

// RecordRecords counts records by kind (read, written, skipped).
func RecordRecords(job, kind string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(n), Labels{"job": job, "kind": kind})
}

// RecordHTTP records one HTTP attempt against the hub.
//
// status is the HTTP status code, or 0 when no response was received.
// Negative durations and sizes mean "not measured" and are skipped.
func RecordHTTP(job string, status int, err error, reqDur, respDur time.Duration, size int64) {
	code := defaultStatusLabelValue
	if status > 0 {
		code = strconv.Itoa(status)
	}
	labels := Labels{"job": job, "status": code}

	b := current()
	b.IncCounter(HTTPRequestsTotal, 1, labels)
	if err != nil || status == 0 || status >= 400 {
		b.IncCounter(HTTPErrorsTotal, 1, labels)
	}
	if reqDur >= 0 {
		b.ObserveHistogram(HTTPRequestDuration, reqDur.Seconds(), labels)
	}
	if respDur >= 0 {
		b.ObserveHistogram(HTTPResponseDuration, respDur.Seconds(), labels)
	}
	if size >= 0 {
		b.ObserveHistogram(HTTPDownloadBytes, float64(size), labels)
	}
}
