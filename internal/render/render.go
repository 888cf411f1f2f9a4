// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render hands word documents to external office engines for
// higher-fidelity page rendering. Each call is bounded by a render timeout;
// expiry is reported as types.ErrRenderTimeout, any other failure or an
// output that is not a page document as types.ErrRender.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pdiddy/docswap/internal/container"
	"github.com/pdiddy/docswap/pkg/types"
)

// Renderer converts a word document into a page document.
type Renderer interface {
	// Name identifies the backend in logs and reports.
	Name() string

	// Render converts docx, named name, into PDF bytes.
	Render(ctx context.Context, name string, docx []byte) ([]byte, error)
}

// New builds the renderer selected by cfg. The native renderer is handled
// in-process by the conversion core, so New returns nil for it.
func New(ctx context.Context, cfg types.ConversionConfig) (Renderer, error) {
	switch cfg.Renderer {
	case "", types.RendererNative:
		return nil, nil
	case types.RendererContainer:
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			return nil, err
		}
		if err := rt.ImageExists(ctx, cfg.ContainerImage); err != nil {
			return nil, err
		}
		return &ContainerRenderer{Runtime: rt, Image: cfg.ContainerImage, Timeout: cfg.RenderTimeout}, nil
	case types.RendererGotenberg:
		if cfg.GotenbergURL == "" {
			return nil, errors.New("gotenberg renderer needs a URL")
		}
		return &GotenbergRenderer{
			URL:       cfg.GotenbergURL,
			Client:    &http.Client{Timeout: cfg.Timeout},
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.RenderTimeout,
		}, nil
	default:
		return nil, fmt.Errorf("unknown renderer %q", cfg.Renderer)
	}
}

// ContainerRenderer runs a one-shot container that reads DOCX on stdin
// and writes PDF on stdout.
type ContainerRenderer struct {
	Runtime container.Runtime
	Image   string
	Timeout time.Duration
}

// Name implements Renderer.
func (c *ContainerRenderer) Name() string { return types.RendererContainer }

// Render implements Renderer.
func (c *ContainerRenderer) Render(ctx context.Context, _ string, docx []byte) ([]byte, error) {
	const op = "render.container"

	ctx, cancel := withTimeout(ctx, c.Timeout)
	defer cancel()

	var out bytes.Buffer
	if err := c.Runtime.Run(ctx, c.Image, bytes.NewReader(docx), &out); err != nil {
		return nil, classify(ctx, op, err)
	}
	return checkOutput(op, out.Bytes())
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// classify maps a backend failure to the error taxonomy.
func classify(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &types.ConversionError{Op: op, Kind: types.ErrRenderTimeout, Err: err}
	}
	return types.RenderError(op, err)
}

func checkOutput(op string, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, types.RenderError(op, errors.New("backend returned no output"))
	}
	if types.Sniff(data) != types.KindPage {
		return nil, types.RenderError(op, errors.New("backend output is not a page document"))
	}
	return data, nil
}
