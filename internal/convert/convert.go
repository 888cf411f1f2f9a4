// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert routes documents between the word and page families.
//
// A Dispatcher owns no per-job state: every call works on its own buffers
// and its own ConversionJob, so one Dispatcher may serve concurrent jobs.
// Word documents go through the word reader and the page writer; page
// documents through the page reader and the word writer. Anything else is
// rejected before any reader runs.
package convert

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pdiddy/docswap/internal/docx"
	"github.com/pdiddy/docswap/internal/pdf"
	"github.com/pdiddy/docswap/internal/render"
	"github.com/pdiddy/docswap/pkg/types"
)

// BlockReader extracts text blocks from a document. pages is the number of
// pages in the source when the format has pages, zero otherwise.
type BlockReader interface {
	Read(data []byte) (blocks []types.TextBlock, pages int, err error)
}

// BlockWriter encodes text blocks into a document. pages is the number of
// pages produced when the format has pages, zero otherwise.
type BlockWriter interface {
	Write(blocks []types.TextBlock) (data []byte, pages int, err error)
}

// Dispatcher converts one document at a time.
type Dispatcher struct {
	WordReader BlockReader
	WordWriter BlockWriter
	PageReader BlockReader
	PageWriter BlockWriter

	// Renderer, when set, replaces the page writer for word-to-page jobs
	// with an external engine. The word reader still validates the input
	// and decides emptiness first.
	Renderer render.Renderer
}

// NewDispatcher wires the built-in readers and writers for cfg. r may be
// nil to render pages in-process.
func NewDispatcher(cfg types.Config, r render.Renderer) (*Dispatcher, error) {
	if err := cfg.Layout.Validate(); err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	pages, err := pdf.NewReader(cfg.Conversion.Extractor)
	if err != nil {
		return nil, err
	}
	writer := pdf.NewWriter(cfg.Layout)
	if cfg.Layout.FontFile != "" {
		if writer.Font, err = pdf.LoadFont(cfg.Layout.FontFile); err != nil {
			return nil, fmt.Errorf("layout: %w", err)
		}
	}
	return &Dispatcher{
		WordReader: wordCodec{},
		WordWriter: wordCodec{},
		PageReader: pages,
		PageWriter: writer,
		Renderer:   r,
	}, nil
}

// wordCodec adapts the docx package to BlockReader and BlockWriter.
type wordCodec struct{}

func (wordCodec) Read(data []byte) ([]types.TextBlock, int, error) {
	blocks, err := docx.Read(data)
	return blocks, 0, err
}

func (wordCodec) Write(blocks []types.TextBlock) ([]byte, int, error) {
	data, err := docx.Write(blocks)
	return data, 0, err
}

// Convert runs a single anonymous job and returns its output artifact.
func (d *Dispatcher) Convert(ctx context.Context, data []byte, kind types.Kind) (types.Artifact, error) {
	job := types.NewJob(uuid.NewString(), "document"+kind.Extension(), kind, data)
	d.Process(ctx, job)
	if job.State != types.JobDone {
		return types.Artifact{}, job.Err
	}
	return job.Output, nil
}

// Process drives job through the state machine. On return the job is
// either done with an output artifact or failed with a typed error; no
// partial output survives a failure.
func (d *Dispatcher) Process(ctx context.Context, job *types.ConversionJob) {
	const op = "convert.dispatch"

	defer func() {
		if r := recover(); r != nil {
			job.Fail(fmt.Errorf("%s: panic: %v", op, r))
		}
	}()

	in := job.Input
	var (
		reader BlockReader
		writer BlockWriter
	)
	switch in.Kind {
	case types.KindWord:
		reader, writer = d.WordReader, d.PageWriter
	case types.KindPage:
		reader, writer = d.PageReader, d.WordWriter
	default:
		job.Fail(types.UnsupportedKindError(op, in.Kind))
		return
	}
	job.Advance(types.JobDetected)

	blocks, srcPages, err := reader.Read(in.Data)
	if err != nil {
		job.Fail(err)
		return
	}
	job.Empty = len(types.NonBlank(blocks)) == 0
	job.Advance(types.JobExtracted)

	var (
		out      []byte
		outPages int
	)
	if in.Kind == types.KindWord && d.Renderer != nil {
		out, err = d.Renderer.Render(ctx, in.Name, in.Data)
		if err == nil {
			if outPages, err = pdf.PageCount(out); err != nil {
				err = types.RenderError(op, fmt.Errorf("%s output: %w", d.Renderer.Name(), err))
			}
		}
	} else {
		out, outPages, err = writer.Write(blocks)
	}
	if err != nil {
		job.Fail(err)
		return
	}
	job.Advance(types.JobRendered)

	target := in.Kind.Target()
	job.Output = types.Artifact{
		Name: types.OutputName(in.Name, target),
		Kind: target,
		Data: out,
	}
	job.Pages = outPages
	if in.Kind == types.KindPage {
		job.Pages = srcPages
	}
	job.Advance(types.JobDone)
}
