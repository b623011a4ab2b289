package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoDatasets is returned when hf_dataset_names is absent or yields no
// identifiers. The run is aborted before any fetch in that case.
var ErrNoDatasets = errors.New("hf_dataset_names: no dataset identifiers configured")

// Validate checks a defaulted Config. It returns the first problem found.
func Validate(cfg *Config) error {
	if len(cfg.DatasetNames) == 0 {
		return ErrNoDatasets
	}
	return validateSettings(cfg)
}

// validateSettings checks everything except the dataset list.
func validateSettings(cfg *Config) error {
	u, err := url.Parse(cfg.Hub.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("hub.endpoint %q: must be an absolute URL", cfg.Hub.Endpoint)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("hub.endpoint %q: scheme must be http or https", cfg.Hub.Endpoint)
	}
	// datasets-server caps /rows at 100 per page.
	if cfg.Hub.PageSize > 100 {
		return fmt.Errorf("hub.page_size=%d: must be <= 100", cfg.Hub.PageSize)
	}
	if cfg.Hub.MaxBackoff < cfg.Hub.BaseBackoff {
		return fmt.Errorf("hub.max_backoff (%s) must be >= hub.base_backoff (%s)", cfg.Hub.MaxBackoff, cfg.Hub.BaseBackoff)
	}

	// ledger.kind itself is checked by storage.New against the linked backends.
	kind := strings.TrimSpace(cfg.Ledger.Kind)
	if kind != "" {
		if strings.TrimSpace(cfg.Ledger.DSN) == "" {
			return fmt.Errorf("ledger.dsn is required when ledger.kind=%s", kind)
		}
	}
	return nil
}
