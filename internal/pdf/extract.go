// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdf reads text out of page-based documents and renders text
// blocks into new ones.
//
// Text extraction is delegated to a TextExtractor backend: the native
// backend parses the file in-process and reports one entry per page; the
// docconv backend shells out to pdftotext. Rendering places lines computed
// by the layout package onto pages with a core font or an embedded
// TrueType font.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"code.sajari.com/docconv"
	ledongthuc "github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/docswap/pkg/types"
)

// PageText is the raw text extracted from one page. Text is empty for
// pages without extractable text; that is not an error.
type PageText struct {
	Index int
	Text  string
}

// TextExtractor turns page-document bytes into per-page text.
type TextExtractor interface {
	// Name identifies the backend in logs and reports.
	Name() string

	// ExtractPages returns one entry per page in page order. It fails with
	// types.ErrFormat when the container cannot be read.
	ExtractPages(data []byte) ([]PageText, error)
}

// NewExtractor returns the backend registered under name.
func NewExtractor(name string) (TextExtractor, error) {
	switch name {
	case "", types.ExtractorNative:
		return NativeExtractor{}, nil
	case types.ExtractorDocconv:
		return DocconvExtractor{}, nil
	default:
		return nil, fmt.Errorf("unknown extractor %q", name)
	}
}

// NativeExtractor parses the document in-process.
type NativeExtractor struct{}

// Name implements TextExtractor.
func (NativeExtractor) Name() string { return types.ExtractorNative }

// ExtractPages implements TextExtractor. Rows of text become lines of the
// page text. Parser panics on malformed input are converted into format
// errors.
func (NativeExtractor) ExtractPages(data []byte) (pages []PageText, err error) {
	const op = "pdf.extract"

	if err := checkHeader(data); err != nil {
		return nil, types.FormatError(op, err)
	}

	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = types.FormatError(op, fmt.Errorf("malformed document: %v", r))
		}
	}()

	r, err := ledongthuc.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, types.FormatError(op, err)
	}

	n := r.NumPage()
	pages = make([]PageText, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, PageText{Index: i - 1})
			continue
		}
		pages = append(pages, PageText{Index: i - 1, Text: rowText(p.Content().Text)})
	}
	return pages, nil
}

// rowTolerance is how far apart two baselines may be, in points, and still
// belong to one row.
const rowTolerance = 1.0

// rowText rebuilds page text from positioned glyphs: glyphs sharing a
// baseline form a row, rows run top to bottom joined by newlines, and
// glyphs within a row run left to right. Glyphs at the same position keep
// content-stream order.
func rowText(glyphs []ledongthuc.Text) string {
	type row struct {
		y      float64
		glyphs []ledongthuc.Text
	}
	var rows []*row
	for _, g := range glyphs {
		if g.S == "" || g.S == "\n" || g.S == "\r" {
			continue
		}
		var cur *row
		for _, r := range rows {
			if math.Abs(r.y-g.Y) <= rowTolerance {
				cur = r
				break
			}
		}
		if cur == nil {
			cur = &row{y: g.Y}
			rows = append(rows, cur)
		}
		cur.glyphs = append(cur.glyphs, g)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		sort.SliceStable(r.glyphs, func(i, j int) bool { return r.glyphs[i].X < r.glyphs[j].X })
		var b strings.Builder
		for i, g := range r.glyphs {
			if i > 0 && gap(r.glyphs[i-1], g) {
				b.WriteByte(' ')
			}
			b.WriteString(g.S)
		}
		lines = append(lines, strings.TrimRight(b.String(), " "))
	}
	return strings.Join(lines, "\n")
}

// gap reports whether a word space separates prev and next without a space
// glyph. Fonts without width tables report zero widths and never gap.
func gap(prev, next ledongthuc.Text) bool {
	if prev.W <= 0 || prev.S == " " || next.S == " " {
		return false
	}
	return next.X-(prev.X+prev.W) > prev.FontSize/4
}

// PageCount returns the number of pages in a page document.
func PageCount(data []byte) (n int, err error) {
	const op = "pdf.pages"

	if err := checkHeader(data); err != nil {
		return 0, types.FormatError(op, err)
	}
	defer func() {
		if r := recover(); r != nil {
			n = 0
			err = types.FormatError(op, fmt.Errorf("malformed document: %v", r))
		}
	}()
	r, err := ledongthuc.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, types.FormatError(op, err)
	}
	return r.NumPage(), nil
}

// DocconvExtractor runs pdftotext through docconv. pdftotext separates
// pages with form feeds; when none are present the whole text is reported
// as a single page.
type DocconvExtractor struct {
	// Convert defaults to docconv.Convert.
	Convert func(data []byte) (string, error)
}

// Name implements TextExtractor.
func (DocconvExtractor) Name() string { return types.ExtractorDocconv }

// ExtractPages implements TextExtractor.
func (d DocconvExtractor) ExtractPages(data []byte) ([]PageText, error) {
	const op = "pdf.extract"

	if err := checkHeader(data); err != nil {
		return nil, types.FormatError(op, err)
	}

	convert := d.Convert
	if convert == nil {
		convert = docconvText
	}
	body, err := convert(data)
	if err != nil {
		return nil, types.FormatError(op, err)
	}

	parts := strings.Split(body, "\f")
	// pdftotext ends the last page with a form feed too.
	if len(parts) > 1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	pages := make([]PageText, len(parts))
	for i, p := range parts {
		pages[i] = PageText{Index: i, Text: p}
	}
	return pages, nil
}

func docconvText(data []byte) (string, error) {
	res, err := docconv.Convert(bytes.NewReader(data), types.KindPage.ContentType(), false)
	if err != nil {
		return "", fmt.Errorf("docconv: %w", err)
	}
	return res.Body, nil
}

var errNoHeader = errors.New("missing %PDF- header")

func checkHeader(data []byte) error {
	if types.Sniff(data) != types.KindPage {
		return errNoHeader
	}
	return nil
}

// Blocks turns extracted pages into text blocks: one block per page that
// has text, NFC-normalized, numbered in order. Pages without text
// contribute nothing.
func Blocks(pages []PageText) []types.TextBlock {
	var blocks []types.TextBlock
	for _, p := range pages {
		text := norm.NFC.String(p.Text)
		if strings.TrimSpace(text) == "" {
			continue
		}
		blocks = append(blocks, types.TextBlock{Ordinal: len(blocks), Text: text})
	}
	return blocks
}
