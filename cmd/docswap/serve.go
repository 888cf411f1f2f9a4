// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docswap/internal/server"
	"github.com/pdiddy/docswap/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP upload service",
	Long: `Serve starts an HTTP server with an upload form at /. POST /convert
accepts multipart field files[] and returns the converted document, or
converted_files.zip when several files were converted. GET /api/jobs
lists the job ledger when one is configured.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	addConversionFlags(serveCmd)

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := conversionConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
	}

	d, err := newDispatcher(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := openLedger(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}
	pub, err := newPublisher(ctx, cfg)
	if err != nil {
		return err
	}

	renderer := types.RendererNative
	if d.Renderer != nil {
		renderer = d.Renderer.Name()
	}
	logger.Info("starting docswap", "version", version, "renderer", renderer,
		"extractor", cfg.Conversion.Extractor, "policy", cfg.Conversion.BatchPolicy,
		"ledger", cfg.Ledger.Path != "", "publish", pub != nil, "auth", cfg.Server.JWTSecret != "")

	srv, err := server.New(cfg, server.Deps{
		Dispatcher: d,
		Ledger:     store,
		Publisher:  pub,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
