// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/docswap/pkg/types"
)

// ErrBatchRejected is returned by BatchResult.Err when the all-or-nothing
// policy discards a batch because at least one job failed.
var ErrBatchRejected = errors.New("batch rejected")

// Input is one named buffer submitted to a batch.
type Input struct {
	Name string
	Data []byte
}

// Options controls RunBatch.
type Options struct {
	// Policy is skip (default) or all-or-nothing.
	Policy types.BatchPolicy

	// Concurrency bounds jobs running at once. Values below 1 mean 1.
	Concurrency int

	// BatchID labels the jobs. A random ID is used when empty.
	BatchID string

	// OnJob is called once per dispatched job, in input order, after all
	// jobs have finished.
	OnJob func(batchID string, job *types.ConversionJob)
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	ID     string            `json:"id" yaml:"id"`
	Policy types.BatchPolicy `json:"policy" yaml:"policy"`

	Converted int `json:"converted" yaml:"converted"`
	Skipped   int `json:"skipped" yaml:"skipped"`
	Failed    int `json:"failed" yaml:"failed"`
	Empty     int `json:"empty" yaml:"empty"`

	// Jobs are the dispatched jobs in input order.
	Jobs []*types.ConversionJob `json:"jobs" yaml:"jobs"`

	// SkippedNames lists inputs whose extension is not convertible.
	SkippedNames []string `json:"skipped_names,omitempty" yaml:"skipped_names,omitempty"`
}

// Total returns the total number of inputs processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any job failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Err returns ErrBatchRejected, wrapped with the failed inputs, when the
// all-or-nothing policy applies and a job failed. Under the skip policy
// it is always nil.
func (r BatchResult) Err() error {
	if r.Policy != types.PolicyAllOrNothing || !r.HasFailures() {
		return nil
	}
	var names []string
	for _, j := range r.Jobs {
		if j.State == types.JobFailed {
			names = append(names, j.Input.Name)
		}
	}
	return fmt.Errorf("%w: %d of %d failed (%s)", ErrBatchRejected, r.Failed, len(r.Jobs), strings.Join(names, ", "))
}

// Delivered returns the jobs whose artifacts should reach the caller:
// every successful job, or none when the batch was rejected.
func (r BatchResult) Delivered() []*types.ConversionJob {
	if r.Err() != nil {
		return nil
	}
	var out []*types.ConversionJob
	for _, j := range r.Jobs {
		if j.Succeeded() {
			out = append(out, j)
		}
	}
	return out
}

// RunBatch converts inputs through d, printing per-file status to w and
// returning a summary. Inputs with an unsupported extension are skipped
// without reaching the dispatcher. A failing job never stops its siblings.
func RunBatch(ctx context.Context, d *Dispatcher, inputs []Input, opts Options, w io.Writer) BatchResult {
	result := BatchResult{ID: opts.BatchID, Policy: opts.Policy}
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	if result.Policy == "" {
		result.Policy = types.PolicySkip
	}

	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}

	// status holds one line per input so output order matches input order.
	status := make([]string, len(inputs))
	slots := make([]*types.ConversionJob, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, in := range inputs {
		kind := types.KindFromFilename(in.Name)
		if !kind.Valid() {
			status[i] = fmt.Sprintf("skipped: %s (unsupported kind)\n", in.Name)
			result.Skipped++
			result.SkippedNames = append(result.SkippedNames, in.Name)
			continue
		}
		job := types.NewJob(uuid.NewString(), in.Name, kind, in.Data)
		slots[i] = job
		g.Go(func() error {
			d.Process(gctx, job)
			status[i] = statusLine(job)
			return nil
		})
	}
	_ = g.Wait()

	for i, job := range slots {
		fmt.Fprint(w, status[i])
		if job == nil {
			continue
		}
		result.Jobs = append(result.Jobs, job)
		switch job.State {
		case types.JobDone:
			result.Converted++
			if job.Empty {
				result.Empty++
			}
		default:
			result.Failed++
		}
		if opts.OnJob != nil {
			opts.OnJob(result.ID, job)
		}
	}

	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	if err := result.Err(); err != nil {
		fmt.Fprintf(w, "Batch rejected under %s policy: nothing delivered\n", result.Policy)
	}
	return result
}

func statusLine(job *types.ConversionJob) string {
	if job.State != types.JobDone {
		return fmt.Sprintf("failed:  %s (%v)\n", job.Input.Name, job.Err)
	}
	var note string
	switch {
	case job.Empty:
		note = " (empty)"
	case job.Pages > 0:
		note = fmt.Sprintf(" (%d pages)", job.Pages)
	}
	return fmt.Sprintf("converted: %s -> %s%s\n", job.Input.Name, job.Output.Name, note)
}
