// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docswap/internal/ledger"
	"github.com/pdiddy/docswap/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List or export past conversion jobs",
	Long: `History reads the SQLite job ledger. Without --export it prints the
most recent jobs as a table (or JSON with --json). With --export yaml or
--export json it writes every matching job to stdout.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().String("status", "", "filter by status: done or failed")
	historyCmd.Flags().String("batch", "", "filter by batch ID")
	historyCmd.Flags().Int("limit", 0, "maximum rows to list (default from ledger.max_results)")
	historyCmd.Flags().Bool("json", false, "print JSON instead of a table")
	historyCmd.Flags().String("export", "", "export all matching rows: yaml or json")
	historyCmd.Flags().String("ledger", "", "SQLite job ledger path")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("ledger") {
		cfg.Ledger.Path, _ = cmd.Flags().GetString("ledger")
	}
	if cfg.Ledger.Path == "" {
		return errors.New("no ledger configured: set ledger.path or pass --ledger")
	}

	store, err := ledger.NewStore(cfg.Ledger)
	if err != nil {
		return err
	}
	defer store.Close()

	status, _ := cmd.Flags().GetString("status")
	batch, _ := cmd.Flags().GetString("batch")
	limit, _ := cmd.Flags().GetInt("limit")
	opts := ledger.QueryOptions{
		Status:     types.JobState(status),
		BatchID:    batch,
		MaxResults: limit,
	}

	ctx := context.Background()
	out := cmd.OutOrStdout()
	format, _ := cmd.Flags().GetString("export")
	switch format {
	case "":
	case "yaml":
		return store.ExportYAML(ctx, out, opts)
	case "json":
		return store.ExportJSON(ctx, out, opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	entries, err := store.List(ctx, opts)
	if err != nil {
		return err
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatHistory(out, entries, jsonOutput)
}

func formatHistory(w io.Writer, entries []ledger.Entry, jsonOutput bool) error {
	if jsonOutput {
		if entries == nil {
			entries = []ledger.Entry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No jobs recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-20s  %-8s  %-30s  %-30s  %-5s  %s\n",
		"Time", "Status", "Input", "Output", "Pages", "Reason")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for _, e := range entries {
		output := e.OutputName
		if e.Empty {
			output += " (empty)"
		}
		fmt.Fprintf(w, "%-20s  %-8s  %-30s  %-30s  %-5d  %s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Status,
			truncate(e.Filename, 30), truncate(output, 30), e.Pages, e.Reason)
	}

	fmt.Fprintf(w, "\n%d jobs\n", len(entries))
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
