// Package storage defines the export ledger: a persistent, append-only record
// of every dataset export attempt. Backends register themselves by kind from
// an init function; import internal/storage/all to link every backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrUnknownKind is returned by New for a kind no backend registered.
var ErrUnknownKind = errors.New("unsupported ledger kind")

// Config selects and connects a ledger backend.
type Config struct {
	Kind string
	DSN  string
}

// Export statuses stored in Entry.Status.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Entry is one ledger row. Failed exports carry Error and leave OutputFile,
// Records and SHA256 empty.
type Entry struct {
	RunID      string
	Dataset    string
	Split      string
	OutputFile string
	Records    int
	SHA256     string
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Ledger persists export results.
type Ledger interface {
	// EnsureSchema creates the ledger table if it does not exist. It is safe to
	// call on every run.
	EnsureSchema(ctx context.Context) error

	// RecordExport appends one entry.
	RecordExport(ctx context.Context, e Entry) error

	// Close releases connections. Call once.
	Close()
}

// Factory opens a Ledger for cfg.
type Factory func(ctx context.Context, cfg Config) (Ledger, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. It panics on an empty kind,
// a nil factory or a duplicate registration.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New opens the ledger backend registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Ledger, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing ledger kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("%w=%s (registered: %v)", ErrUnknownKind, cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
