// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the docswap conversion
// pipeline: document kinds, text blocks, laid-out pages, conversion jobs,
// configuration, and the error taxonomy returned by the core.
package types

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Kind identifies the family of a document.
type Kind string

const (
	// KindUnknown marks anything the pipeline does not accept.
	KindUnknown Kind = ""
	// KindWord is a flow-based word-processing document (.docx).
	KindWord Kind = "word"
	// KindPage is a fixed-layout page-based document (.pdf).
	KindPage Kind = "page"
)

const (
	contentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	contentTypePDF  = "application/pdf"
)

// sniffWindow is how far into a buffer Sniff looks for the %PDF- marker.
// Some producers prepend junk before the header.
const sniffWindow = 1024

// KindFromFilename derives the kind from the file extension alone.
func KindFromFilename(name string) Kind {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	switch ext {
	case "docx":
		return KindWord
	case "pdf":
		return KindPage
	default:
		return KindUnknown
	}
}

// Sniff inspects content markers. A ZIP local-file header is reported as
// KindWord; it is only a candidate until the reader finds the main part.
func Sniff(data []byte) Kind {
	window := data
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}
	if bytes.Contains(window, []byte("%PDF-")) {
		return KindPage
	}
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return KindWord
	}
	return KindUnknown
}

// Valid reports whether k is a kind the pipeline can convert.
func (k Kind) Valid() bool {
	return k == KindWord || k == KindPage
}

// Target returns the kind a document of kind k converts into.
func (k Kind) Target() Kind {
	switch k {
	case KindWord:
		return KindPage
	case KindPage:
		return KindWord
	default:
		return KindUnknown
	}
}

// Extension returns the file extension, including the leading dot.
func (k Kind) Extension() string {
	switch k {
	case KindWord:
		return ".docx"
	case KindPage:
		return ".pdf"
	default:
		return ""
	}
}

// ContentType returns the MIME type used when serving or uploading.
func (k Kind) ContentType() string {
	switch k {
	case KindWord:
		return contentTypeDOCX
	case KindPage:
		return contentTypePDF
	default:
		return "application/octet-stream"
	}
}

func (k Kind) String() string {
	if k == KindUnknown {
		return "unknown"
	}
	return string(k)
}

// TextBlock is one unit of extracted content: a paragraph of a word
// document or the text of one page. Text may span several lines.
type TextBlock struct {
	// Ordinal is the zero-based position of the block in its source.
	Ordinal int `json:"ordinal" yaml:"ordinal"`

	// Text is the raw block text, untrimmed.
	Text string `json:"text" yaml:"text"`
}

// IsBlank reports whether the block has no content after trimming.
func (b TextBlock) IsBlank() bool {
	return strings.TrimSpace(b.Text) == ""
}

// Lines splits the trimmed block text on embedded line breaks.
// A blank block yields no lines.
func (b TextBlock) Lines() []string {
	text := strings.TrimSpace(b.Text)
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

// Blocks builds ordinal-numbered blocks from plain strings.
func Blocks(texts ...string) []TextBlock {
	blocks := make([]TextBlock, len(texts))
	for i, t := range texts {
		blocks[i] = TextBlock{Ordinal: i, Text: t}
	}
	return blocks
}

// NonBlank drops blank blocks, preserving order and ordinals.
func NonBlank(blocks []TextBlock) []TextBlock {
	out := make([]TextBlock, 0, len(blocks))
	for _, b := range blocks {
		if !b.IsBlank() {
			out = append(out, b)
		}
	}
	return out
}

// Line is a single rendered line at a fixed position on a page. Y is the
// baseline measured from the bottom edge, X from the left edge, in points.
type Line struct {
	Text  string  `json:"text" yaml:"text"`
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Block int     `json:"block" yaml:"block"`
}

// Page is an ordered sequence of placed lines.
type Page struct {
	Index int    `json:"index" yaml:"index"`
	Lines []Line `json:"lines" yaml:"lines"`
}

// Texts returns the text of each line on the page in order.
func (p Page) Texts() []string {
	out := make([]string, len(p.Lines))
	for i, l := range p.Lines {
		out[i] = l.Text
	}
	return out
}

// Document is either a FlowDocument or a PagedDocument.
type Document interface {
	Kind() Kind
}

// FlowDocument is the word-processing model: ordered paragraphs with no
// pagination.
type FlowDocument struct {
	Blocks []TextBlock
}

// Kind implements Document.
func (FlowDocument) Kind() Kind { return KindWord }

// PagedDocument is the page-layout model: ordered pages of placed lines.
type PagedDocument struct {
	Width  float64
	Height float64
	Pages  []Page
}

// Kind implements Document.
func (PagedDocument) Kind() Kind { return KindPage }

// LineCount returns the total number of lines across all pages.
func (d PagedDocument) LineCount() int {
	n := 0
	for _, p := range d.Pages {
		n += len(p.Lines)
	}
	return n
}
