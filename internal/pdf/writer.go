// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdf

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/pdiddy/docswap/internal/layout"
	"github.com/pdiddy/docswap/pkg/types"
)

// Writer renders text blocks onto fixed-size pages. A Writer holds no
// per-document state, so one value may serve concurrent jobs.
type Writer struct {
	Layout types.LayoutConfig

	// Compress deflates page content streams.
	Compress bool

	// Title is recorded in the document information dictionary when set.
	Title string

	// Font replaces the core font named by Layout.FontFamily when set.
	Font *Font
}

// utf8Family is the family name an embedded Font is registered under.
const utf8Family = "docswap-text"

// NewWriter returns a compressing writer for cfg.
func NewWriter(cfg types.LayoutConfig) *Writer {
	return &Writer{Layout: cfg, Compress: true}
}

// Write lays blocks out with the layout package and encodes the result.
// The output always has at least one page, so empty input produces a
// valid blank document.
func (w *Writer) Write(blocks []types.TextBlock) ([]byte, int, error) {
	const op = "pdf.write"

	cfg := w.Layout
	if err := cfg.Validate(); err != nil {
		return nil, 0, types.RenderError(op, err)
	}

	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: cfg.PageWidth, Ht: cfg.PageHeight},
	})
	doc.SetCompression(w.Compress)
	doc.SetAutoPageBreak(false, 0)
	doc.SetMargins(cfg.LeftMargin, cfg.TopMargin, cfg.RightMargin)
	doc.SetCreator("docswap", false)
	if w.Title != "" {
		doc.SetTitle(w.Title, true)
	}

	// draw converts a line into the font's encoding; missing reports the
	// first character the font cannot draw.
	var (
		draw    func(string) string
		missing func(string) (rune, bool)
	)
	if w.Font != nil {
		doc.AddUTF8FontFromBytes(utf8Family, "", w.Font.data)
		doc.SetFont(utf8Family, "", cfg.FontSize)
		draw = func(s string) string { return s }
		missing = w.Font.missing
	} else {
		doc.SetFont(cfg.FontFamily, "", cfg.FontSize)
		tr := doc.UnicodeTranslatorFromDescriptor("")
		draw = tr
		missing = func(s string) (rune, bool) { return cp1252Missing(tr, s) }
	}
	if err := doc.Error(); err != nil {
		return nil, 0, types.RenderError(op, err)
	}

	var opts []layout.Option
	if cfg.Wrap {
		opts = append(opts, layout.WithMeasurer(layout.MeasureFunc(func(s string) float64 {
			return doc.GetStringWidth(draw(s))
		})))
	}
	pages := layout.Layout(blocks, cfg, opts...)

	for i, page := range pages {
		for _, line := range page.Lines {
			if r, ok := missing(line.Text); ok {
				return nil, 0, types.RenderError(op,
					fmt.Errorf("page %d: %w %q in %q", i+1, ErrMissingGlyph, r, line.Text))
			}
		}
	}

	if len(pages) == 0 {
		doc.AddPage()
	}
	for _, page := range pages {
		doc.AddPage()
		for _, line := range page.Lines {
			if line.Text == "" {
				continue
			}
			// Layout measures from the bottom edge; fpdf from the top.
			doc.Text(line.X, cfg.PageHeight-line.Y, draw(line.Text))
		}
	}

	if err := doc.Error(); err != nil {
		return nil, 0, types.RenderError(op, err)
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, 0, types.RenderError(op, err)
	}
	if buf.Len() == 0 {
		return nil, 0, types.RenderError(op, errors.New("encoder produced no output"))
	}
	return buf.Bytes(), doc.PageCount(), nil
}

// Reader extracts text blocks from page documents through a backend.
type Reader struct {
	Extractor TextExtractor
}

// NewReader returns a Reader using the named extractor backend.
func NewReader(extractor string) (*Reader, error) {
	ex, err := NewExtractor(extractor)
	if err != nil {
		return nil, err
	}
	return &Reader{Extractor: ex}, nil
}

// Read returns one block per page with text and the total page count.
func (r *Reader) Read(data []byte) ([]types.TextBlock, int, error) {
	ex := r.Extractor
	if ex == nil {
		ex = NativeExtractor{}
	}
	pages, err := ex.ExtractPages(data)
	if err != nil {
		return nil, 0, err
	}
	if len(pages) == 0 {
		return nil, 0, types.FormatError("pdf.read", fmt.Errorf("%s: document has no pages", ex.Name()))
	}
	return Blocks(pages), len(pages), nil
}
