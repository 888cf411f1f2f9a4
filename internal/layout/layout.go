// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package layout places text lines on fixed-size pages.
//
// Lines are laid top to bottom starting at height - top margin and moving
// down one line height per line. A page holds floor((height - top - bottom)
// / line height) lines; the line that would overflow opens a new page. No
// line is dropped or split across pages, and blank blocks take no space.
package layout

import (
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/docswap/pkg/types"
)

// Measurer reports the rendered width of a string in points.
type Measurer interface {
	Width(s string) float64
}

// MeasureFunc adapts a function to Measurer.
type MeasureFunc func(s string) float64

// Width implements Measurer.
func (f MeasureFunc) Width(s string) float64 { return f(s) }

// averageWidth approximates proportional fonts at half the font size per rune.
type averageWidth float64

func (a averageWidth) Width(s string) float64 {
	return float64(utf8.RuneCountInString(s)) * float64(a)
}

// Option customizes a Layout call.
type Option func(*options)

type options struct {
	measurer Measurer
}

// WithMeasurer sets the width measurement used when wrapping is enabled.
func WithMeasurer(m Measurer) Option {
	return func(o *options) { o.measurer = m }
}

// Cursor is the transient placement state for one layout run.
type Cursor struct {
	cfg   types.LayoutConfig
	limit int

	// Page is the zero-based index of the open page.
	Page int
	// Row is the number of lines already placed on the open page.
	Row int
}

// NewCursor returns a cursor at the top of the first page.
func NewCursor(cfg types.LayoutConfig) *Cursor {
	limit := cfg.LinesPerPage()
	if limit < 1 {
		limit = 1
	}
	return &Cursor{cfg: cfg, limit: limit}
}

// Y returns the baseline of the next line on the open page. It is computed
// from the row index rather than by repeated subtraction so identical
// input always yields identical coordinates.
func (c *Cursor) Y() float64 {
	return c.cfg.PageHeight - c.cfg.TopMargin - float64(c.Row)*c.cfg.LineHeight
}

// Full reports whether the open page has no room for another line.
func (c *Cursor) Full() bool {
	return c.Row >= c.limit
}

// Advance records one placed line.
func (c *Cursor) Advance() { c.Row++ }

// Break moves to the top of a new page.
func (c *Cursor) Break() {
	c.Page++
	c.Row = 0
}

// Layout assigns every line of every non-blank block to a page, in order.
// The result is empty when there is nothing to place; callers that need a
// document with at least one page add an empty page themselves.
func Layout(blocks []types.TextBlock, cfg types.LayoutConfig, opts ...Option) []types.Page {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.Wrap && o.measurer == nil {
		o.measurer = averageWidth(cfg.FontSize * 0.5)
	}

	var (
		pages []types.Page
		cur   = NewCursor(cfg)
		open  *types.Page
	)

	for _, block := range blocks {
		for _, line := range blockLines(block, cfg, o.measurer) {
			if open == nil {
				pages = append(pages, types.Page{Index: cur.Page})
				open = &pages[len(pages)-1]
			} else if cur.Full() {
				cur.Break()
				pages = append(pages, types.Page{Index: cur.Page})
				open = &pages[len(pages)-1]
			}
			open.Lines = append(open.Lines, types.Line{
				Text:  line,
				X:     cfg.LeftMargin,
				Y:     cur.Y(),
				Block: block.Ordinal,
			})
			cur.Advance()
		}
	}
	return pages
}

// Paginate wraps Layout into a PagedDocument.
func Paginate(blocks []types.TextBlock, cfg types.LayoutConfig, opts ...Option) types.PagedDocument {
	return types.PagedDocument{
		Width:  cfg.PageWidth,
		Height: cfg.PageHeight,
		Pages:  Layout(blocks, cfg, opts...),
	}
}

// PageCount returns the number of pages totalLines occupy under cfg.
func PageCount(totalLines int, cfg types.LayoutConfig) int {
	per := cfg.LinesPerPage()
	if totalLines <= 0 || per <= 0 {
		return 0
	}
	return (totalLines + per - 1) / per
}

func blockLines(block types.TextBlock, cfg types.LayoutConfig, m Measurer) []string {
	lines := block.Lines()
	if !cfg.Wrap || m == nil {
		return lines
	}
	width := cfg.TextWidth()
	var out []string
	for _, l := range lines {
		out = append(out, wrap(l, width, m)...)
	}
	return out
}

// wrap breaks s at spaces so each piece fits width. A word that alone is
// wider than width is split by runes. An empty interior line stays a
// single empty line so paragraph spacing inside a block is preserved.
func wrap(s string, width float64, m Measurer) []string {
	if m.Width(s) <= width {
		return []string{s}
	}
	var (
		out []string
		cur string
	)
	for _, word := range strings.Fields(s) {
		candidate := word
		if cur != "" {
			candidate = cur + " " + word
		}
		if m.Width(candidate) <= width {
			cur = candidate
			continue
		}
		if cur != "" {
			out = append(out, cur)
			cur = ""
		}
		if m.Width(word) <= width {
			cur = word
			continue
		}
		pieces := splitRunes(word, width, m)
		out = append(out, pieces[:len(pieces)-1]...)
		cur = pieces[len(pieces)-1]
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func splitRunes(word string, width float64, m Measurer) []string {
	var (
		out []string
		cur []rune
	)
	for _, r := range word {
		next := append(cur, r)
		if len(cur) > 0 && m.Width(string(next)) > width {
			out = append(out, string(cur))
			cur = []rune{r}
			continue
		}
		cur = next
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}
