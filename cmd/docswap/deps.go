// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docswap/internal/convert"
	"github.com/pdiddy/docswap/internal/ledger"
	"github.com/pdiddy/docswap/internal/render"
	"github.com/pdiddy/docswap/internal/storage"
	"github.com/pdiddy/docswap/pkg/types"
)

// addConversionFlags registers the flags shared by convert and serve.
func addConversionFlags(cmd *cobra.Command) {
	cmd.Flags().String("policy", "", "batch policy: skip or all-or-nothing (default skip)")
	cmd.Flags().Int("concurrency", 0, "jobs converted in parallel per batch (default 4)")
	cmd.Flags().String("extractor", "", "PDF text extractor: native or docconv")
	cmd.Flags().String("renderer", "", "DOCX to PDF renderer: native, container, or gotenberg")
	cmd.Flags().Bool("wrap", false, "wrap long lines to the page width")
	cmd.Flags().String("ledger", "", "SQLite job ledger path (empty disables)")
}

// conversionConfig loads configuration and applies any conversion flags
// the user set explicitly.
func conversionConfig(cmd *cobra.Command) (types.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("policy") {
		p, _ := flags.GetString("policy")
		cfg.Conversion.BatchPolicy = types.BatchPolicy(p)
	}
	if flags.Changed("concurrency") {
		cfg.Conversion.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("extractor") {
		cfg.Conversion.Extractor, _ = flags.GetString("extractor")
	}
	if flags.Changed("renderer") {
		cfg.Conversion.Renderer, _ = flags.GetString("renderer")
	}
	if flags.Changed("wrap") {
		cfg.Layout.Wrap, _ = flags.GetBool("wrap")
	}
	if flags.Changed("ledger") {
		cfg.Ledger.Path, _ = flags.GetString("ledger")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newDispatcher wires the renderer backend named in cfg into a dispatcher.
func newDispatcher(ctx context.Context, cfg types.Config) (*convert.Dispatcher, error) {
	r, err := render.New(ctx, cfg.Conversion)
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}
	return convert.NewDispatcher(cfg, r)
}

// openLedger returns nil when no ledger path is configured.
func openLedger(cfg types.Config) (*ledger.Store, error) {
	if cfg.Ledger.Path == "" {
		return nil, nil
	}
	return ledger.NewStore(cfg.Ledger)
}

// newPublisher returns nil when no bucket is configured.
func newPublisher(ctx context.Context, cfg types.Config) (storage.Publisher, error) {
	if !cfg.Storage.S3.Enabled() {
		return nil, nil
	}
	p, err := storage.NewS3Publisher(ctx, cfg.Storage.S3)
	if err != nil {
		return nil, err
	}
	return p, nil
}
