// Package config loads the exporter configuration from YAML.
//
// The file path is always a parameter; nothing in this package reads a fixed
// location on its own. DefaultPath is only the CLI default.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for the config file when -config is not given.
const DefaultPath = "cfg/config.yaml"

const (
	DefaultEndpoint    = "https://datasets-server.huggingface.co"
	DefaultPageSize    = 100
	DefaultTimeout     = 60 * time.Second
	DefaultMaxAttempts = 5
	DefaultBaseBackoff = 1 * time.Second
	DefaultMaxBackoff  = 30 * time.Second
	DefaultJob         = "hf_export"
)

// Config is the full exporter configuration. It is read once and treated as
// immutable afterwards.
type Config struct {
	// DatasetNames is the ordered list of dataset identifiers to export.
	DatasetNames DatasetNames `yaml:"hf_dataset_names"`

	// OutputDir is where <id>.txt files are written. Defaults to ".".
	OutputDir string `yaml:"output_dir"`

	// Job is the logical job name used in metrics tags and the ledger.
	Job string `yaml:"job"`

	Hub    Hub    `yaml:"hub"`
	Ledger Ledger `yaml:"ledger"`
}

// Hub configures the remote dataset provider.
type Hub struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`

	// Config selects a dataset configuration (subset). Empty means "default"
	// when the dataset has one, otherwise the first listed.
	Config string `yaml:"config"`

	PageSize    int           `yaml:"page_size"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
}

// Ledger configures the optional export ledger. An empty Kind disables it.
type Ledger struct {
	Kind string `yaml:"kind"`
	DSN  string `yaml:"dsn"`
}

// DatasetNames accepts either a YAML string ("a/b, c/d") or a YAML sequence
// of strings. Both forms normalize to trimmed, non-empty identifiers in
// document order.
type DatasetNames []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *DatasetNames) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return fmt.Errorf("hf_dataset_names: %w", err)
		}
		*d = ParseNames(s)
		return nil

	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return fmt.Errorf("hf_dataset_names: %w", err)
		}
		out := make(DatasetNames, 0, len(items))
		for _, it := range items {
			out = append(out, ParseNames(it)...)
		}
		*d = out
		return nil

	default:
		return fmt.Errorf("hf_dataset_names: line %d: want string or list of strings", node.Line)
	}
}

// ParseNames splits a comma-separated identifier list, trimming whitespace and
// dropping empty entries.
func ParseNames(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads the YAML file at path, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// LoadLenient is Load for tools that do not export: hf_dataset_names may be
// missing, everything else is still validated. An empty path yields defaults
// plus environment overrides.
func LoadLenient(path string) (*Config, error) {
	var data []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
		data = b
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := validateSettings(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// ApplyDefaults fills zero-valued fields.
func ApplyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.OutputDir) == "" {
		cfg.OutputDir = "."
	}
	if strings.TrimSpace(cfg.Job) == "" {
		cfg.Job = DefaultJob
	}
	if strings.TrimSpace(cfg.Hub.Endpoint) == "" {
		cfg.Hub.Endpoint = DefaultEndpoint
	}
	if cfg.Hub.PageSize <= 0 {
		cfg.Hub.PageSize = DefaultPageSize
	}
	if cfg.Hub.Timeout <= 0 {
		cfg.Hub.Timeout = DefaultTimeout
	}
	if cfg.Hub.MaxAttempts <= 0 {
		cfg.Hub.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Hub.BaseBackoff <= 0 {
		cfg.Hub.BaseBackoff = DefaultBaseBackoff
	}
	if cfg.Hub.MaxBackoff <= 0 {
		cfg.Hub.MaxBackoff = DefaultMaxBackoff
	}
}

// applyEnvOverrides lets operators keep secrets and per-host settings out of
// the file. Environment values win over file values.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("HF_TOKEN")); v != "" {
		cfg.Hub.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("HF_ENDPOINT")); v != "" {
		cfg.Hub.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("HFEXPORT_OUTPUT_DIR")); v != "" {
		cfg.OutputDir = v
	}
	cfg.Ledger.DSN = os.ExpandEnv(cfg.Ledger.DSN)
}
