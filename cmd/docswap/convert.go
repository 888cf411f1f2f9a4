// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/docswap/internal/bundle"
	"github.com/pdiddy/docswap/internal/convert"
	"github.com/pdiddy/docswap/internal/storage"
	"github.com/pdiddy/docswap/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Convert .docx files to PDF and .pdf files to .docx",
	Long: `Convert reads each named file, converts it to the other format, and
writes the result into the output directory. Files with other extensions
are skipped. With --zip the outputs are bundled the same way the upload
service returns them: one file as-is, several as converted_files.zip.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("out", "converted", "output directory")
	convertCmd.Flags().Bool("zip", false, "bundle outputs into a single deliverable")
	convertCmd.Flags().String("report", "", "write the batch result as YAML to this path")
	addConversionFlags(convertCmd)

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := conversionConfig(cmd)
	if err != nil {
		return err
	}
	outDir, _ := cmd.Flags().GetString("out")
	zipped, _ := cmd.Flags().GetBool("zip")
	reportPath, _ := cmd.Flags().GetString("report")

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

	inputs, err := readInputs(args)
	if err != nil {
		return err
	}

	opts := convert.Options{
		Policy:      cfg.Conversion.BatchPolicy,
		Concurrency: cfg.Conversion.Concurrency,
		BatchID:     uuid.NewString(),
	}
	if store != nil {
		opts.OnJob = store.Recorder(ctx, nil)
	}
	out := cmd.OutOrStdout()
	result := convert.RunBatch(ctx, d, inputs, opts, out)

	if reportPath != "" {
		if err := writeReport(reportPath, result); err != nil {
			return err
		}
	}
	if err := result.Err(); err != nil {
		return err
	}

	if err := deliver(ctx, out, outDir, zipped, result, pub); err != nil {
		return err
	}
	if result.HasFailures() {
		return fmt.Errorf("%d file(s) failed conversion", result.Failed)
	}
	return nil
}

// readInputs loads every named file. Unreadable files are a hard error
// because nothing has been converted yet.
func readInputs(paths []string) ([]convert.Input, error) {
	inputs := make([]convert.Input, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		inputs = append(inputs, convert.Input{Name: filepath.Base(p), Data: data})
	}
	return inputs, nil
}

// deliver writes the delivered artifacts to outDir and publishes each one
// when a publisher is configured. Publishing failures are reported and
// do not fail the batch.
func deliver(ctx context.Context, w io.Writer, outDir string, zipped bool, result convert.BatchResult, pub storage.Publisher) error {
	jobs := result.Delivered()
	var artifacts []types.Artifact
	if zipped {
		a, err := bundle.Bundle(jobs)
		if err != nil {
			return err
		}
		artifacts = append(artifacts, a)
	} else {
		names := bundle.NewNamer()
		for _, j := range jobs {
			a := j.Output
			a.Name = names.Unique(a.Name)
			artifacts = append(artifacts, a)
		}
	}

	for _, a := range artifacts {
		if len(a.Data) == 0 {
			continue
		}
		path, err := bundle.WriteFile(outDir, a)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote: %s\n", path)

		if pub == nil {
			continue
		}
		url, err := pub.Publish(ctx, result.ID, a)
		if err != nil {
			fmt.Fprintf(w, "publish failed: %s (%v)\n", a.Name, err)
			continue
		}
		fmt.Fprintf(w, "published: %s\n", url)
	}
	return nil
}

func writeReport(path string, result convert.BatchResult) error {
	data, err := yaml.Marshal(&result)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
