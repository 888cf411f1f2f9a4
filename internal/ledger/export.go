// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docswap/pkg/types"
)

const exportLimit = 100000

// ExportYAML writes matching entries to w as a YAML sequence.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, opts QueryOptions) error {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes matching entries to w as an indented JSON array.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, opts QueryOptions) error {
	entries, err := s.exportEntries(ctx, opts)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	return nil
}

func (s *Store) exportEntries(ctx context.Context, opts QueryOptions) ([]Entry, error) {
	if opts.MaxResults <= 0 {
		opts.MaxResults = exportLimit
	}
	entries, err := s.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Recorder returns a callback suitable for convert.Options.OnJob. Write
// failures are logged, never returned: history is best effort and must
// not fail a conversion.
func (s *Store) Recorder(ctx context.Context, logger *slog.Logger) func(batchID string, job *types.ConversionJob) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(batchID string, job *types.ConversionJob) {
		if err := s.Record(ctx, batchID, []*types.ConversionJob{job}); err != nil {
			logger.Warn("ledger write failed", "batch_id", batchID, "job_id", job.ID, "error", err)
		}
	}
}
