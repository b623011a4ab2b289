package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"hfexport/internal/metrics"
	"hfexport/internal/record"
)

// SplitInfo is one entry of the /splits response.
type SplitInfo struct {
	Dataset string `json:"dataset"`
	Config  string `json:"config"`
	Split   string `json:"split"`
}

type splitsResponse struct {
	Splits []SplitInfo `json:"splits"`
}

// Feature describes one column as reported by /rows.
type Feature struct {
	Index int             `json:"feature_idx"`
	Name  string          `json:"name"`
	Type  json.RawMessage `json:"type"`
}

// Row is one /rows entry. Row keeps the provider's field order.
type Row struct {
	Index          int           `json:"row_idx"`
	Row            record.Record `json:"row"`
	TruncatedCells []string      `json:"truncated_cells"`
}

// RowsPage is one page of /rows.
type RowsPage struct {
	Features     []Feature `json:"features"`
	Rows         []Row     `json:"rows"`
	NumRowsTotal int       `json:"num_rows_total"`
	Partial      bool      `json:"partial"`
}

// SplitInfos lists every (config, split) pair of a dataset in API order.
func (c *Client) SplitInfos(ctx context.Context, dataset string) ([]SplitInfo, error) {
	var resp splitsResponse
	if err := c.getJSON(ctx, "/splits", url.Values{"dataset": {dataset}}, &resp); err != nil {
		return nil, fmt.Errorf("list splits of %s: %w", dataset, err)
	}
	return resp.Splits, nil
}

// ChooseConfig picks the dataset configuration to read from infos.
//
// want, when non-empty, must be listed. Otherwise "default" wins if present,
// else the first config in API order. An empty infos yields "".
func ChooseConfig(infos []SplitInfo, want string) (string, error) {
	var configs []string
	seen := map[string]bool{}
	for _, si := range infos {
		if !seen[si.Config] {
			seen[si.Config] = true
			configs = append(configs, si.Config)
		}
	}

	if want != "" {
		if seen[want] {
			return want, nil
		}
		return "", fmt.Errorf("config %q not found (available: %s)", want, strings.Join(configs, ", "))
	}
	if seen["default"] {
		return "default", nil
	}
	if len(configs) == 0 {
		return "", nil
	}
	return configs[0], nil
}

// Splits returns the split names of dataset's chosen configuration in API
// order. It implements the exporter's provider contract.
func (c *Client) Splits(ctx context.Context, dataset string) ([]string, error) {
	infos, err := c.SplitInfos(ctx, dataset)
	if err != nil {
		return nil, err
	}
	cfg, err := ChooseConfig(infos, c.config)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", dataset, err)
	}
	c.resolved[dataset] = cfg

	var names []string
	for _, si := range infos {
		if si.Config == cfg {
			names = append(names, si.Split)
		}
	}
	return names, nil
}

// configFor returns the config Splits chose for dataset, resolving it now if
// Splits was never called.
func (c *Client) configFor(ctx context.Context, dataset string) (string, error) {
	if cfg, ok := c.resolved[dataset]; ok {
		return cfg, nil
	}
	if _, err := c.Splits(ctx, dataset); err != nil {
		return "", err
	}
	return c.resolved[dataset], nil
}

// RowsPage fetches one page of rows.
func (c *Client) RowsPage(ctx context.Context, dataset, config, split string, offset, length int) (*RowsPage, error) {
	q := url.Values{
		"dataset": {dataset},
		"config":  {config},
		"split":   {split},
		"offset":  {strconv.Itoa(offset)},
		"length":  {strconv.Itoa(length)},
	}
	var page RowsPage
	if err := c.getJSON(ctx, "/rows", q, &page); err != nil {
		return nil, fmt.Errorf("read rows %s/%s offset %d: %w", config, split, offset, err)
	}
	return &page, nil
}

// ErrPartialSplit reports a split the datasets-server has only partly
// indexed; its rows are a prefix of the split.
var ErrPartialSplit = errors.New("split is only partially indexed")

// ErrTruncatedCells reports a row whose cells the datasets-server cut short.
var ErrTruncatedCells = errors.New("row has truncated cells")

// Records streams every record of split to fn in provider order, one page at
// a time. It stops at the first error from the API or from fn. Partial splits
// and rows with truncated cells are errors: their values are not the
// dataset's.
func (c *Client) Records(ctx context.Context, dataset, split string, fn func(record.Record) error) error {
	cfg, err := c.configFor(ctx, dataset)
	if err != nil {
		return err
	}

	offset := 0
	for {
		page, err := c.RowsPage(ctx, dataset, cfg, split, offset, c.pageSize)
		if err != nil {
			return err
		}
		metrics.RecordRecords(c.jobName, metrics.RecordKindRead, len(page.Rows))
		if err := checkPage(page); err != nil {
			c.log.Warn("refusing incomplete rows",
				zap.String("dataset", dataset),
				zap.String("split", split),
				zap.Int("offset", offset),
				zap.Error(err),
			)
			return fmt.Errorf("read rows %s/%s: %w", cfg, split, err)
		}

		for _, r := range page.Rows {
			if err := fn(r.Row); err != nil {
				return err
			}
		}

		offset += len(page.Rows)
		if len(page.Rows) == 0 || offset >= page.NumRowsTotal {
			return nil
		}
	}
}

func checkPage(page *RowsPage) error {
	if page.Partial {
		return ErrPartialSplit
	}
	for _, r := range page.Rows {
		if len(r.TruncatedCells) > 0 {
			return fmt.Errorf("%w: row %d (%s)", ErrTruncatedCells, r.Index, strings.Join(r.TruncatedCells, ", "))
		}
	}
	return nil
}
