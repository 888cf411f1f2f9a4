// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/docswap/internal/httputil"
	"github.com/pdiddy/docswap/pkg/types"
)

const (
	gotenbergRoute = "/forms/libreoffice/convert"

	// maxRenderedBytes bounds how much of a backend response is read.
	maxRenderedBytes = 512 << 20
)

// GotenbergRenderer posts documents to a Gotenberg service's LibreOffice
// route. Busy responses (429, 503) are retried with backoff.
type GotenbergRenderer struct {
	URL       string
	Client    *http.Client
	UserAgent string
	Timeout   time.Duration

	// MaxRetries defaults to the httputil default when zero.
	MaxRetries int
}

// Name implements Renderer.
func (g *GotenbergRenderer) Name() string { return types.RendererGotenberg }

// Render implements Renderer.
func (g *GotenbergRenderer) Render(ctx context.Context, name string, docx []byte) ([]byte, error) {
	const op = "render.gotenberg"

	ctx, cancel := withTimeout(ctx, g.Timeout)
	defer cancel()

	body, contentType, err := multipartBody(name, docx)
	if err != nil {
		return nil, types.RenderError(op, err)
	}

	endpoint := strings.TrimSuffix(g.URL, "/") + gotenbergRoute
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, types.RenderError(op, err)
	}
	req.Header.Set("Content-Type", contentType)
	if g.UserAgent != "" {
		req.Header.Set("User-Agent", g.UserAgent)
	}

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, g.MaxRetries)
	if err != nil {
		return nil, classify(ctx, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, types.RenderError(op, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRenderedBytes))
	if err != nil {
		return nil, classify(ctx, op, err)
	}
	return checkOutput(op, data)
}

// multipartBody builds the form Gotenberg expects: one "files" part whose
// filename carries the .docx extension so LibreOffice picks the filter.
func multipartBody(name string, docx []byte) ([]byte, string, error) {
	filename := types.OutputName(name, types.KindWord)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", filename)
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := fw.Write(docx); err != nil {
		return nil, "", fmt.Errorf("writing form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
