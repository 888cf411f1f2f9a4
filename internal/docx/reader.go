// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package docx reads and writes word-processing documents (Office Open XML
// .docx). Only paragraph text is carried: fonts, styles, tables, images and
// other formatting are neither read nor reconstructed.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/pdiddy/docswap/pkg/types"
)

const (
	rootRelsPart    = "_rels/.rels"
	defaultMainPart = "word/document.xml"

	relOfficeDocument       = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relOfficeDocumentStrict = "http://purl.oclc.org/ooxml/officeDocument/relationships/officeDocument"

	// maxPartSize bounds the decompressed size of any part we read.
	maxPartSize = 256 << 20
)

var errPartTooLarge = errors.New("part exceeds size limit")

// Read parses a .docx buffer into one TextBlock per body paragraph, in
// document order. Blank paragraphs are kept; callers decide what to drop.
func Read(data []byte) ([]types.TextBlock, error) {
	const op = "docx.read"

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, types.FormatError(op, fmt.Errorf("opening ZIP archive: %w", err))
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	main := mainPart(files)
	f, ok := files[main]
	if !ok {
		return nil, types.FormatError(op, fmt.Errorf("missing main document part %s", main))
	}

	content, err := readPart(f)
	if err != nil {
		return nil, types.FormatError(op, err)
	}

	texts, err := paragraphs(content)
	if err != nil {
		return nil, types.FormatError(op, fmt.Errorf("parsing %s: %w", main, err))
	}
	return types.Blocks(texts...), nil
}

// relationships mirrors the parts of a .rels file we need.
type relationships struct {
	Rels []struct {
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// mainPart resolves the officeDocument target from the package
// relationships, falling back to word/document.xml.
func mainPart(files map[string]*zip.File) string {
	f, ok := files[rootRelsPart]
	if !ok {
		return defaultMainPart
	}
	data, err := readPart(f)
	if err != nil {
		return defaultMainPart
	}
	var rels relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return defaultMainPart
	}
	for _, r := range rels.Rels {
		if r.Type == relOfficeDocument || r.Type == relOfficeDocumentStrict {
			target := strings.TrimPrefix(path.Clean("/"+r.Target), "/")
			if _, ok := files[target]; ok {
				return target
			}
		}
	}
	return defaultMainPart
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxPartSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Name, err)
	}
	if len(data) > maxPartSize {
		return nil, fmt.Errorf("reading %s: %w", f.Name, errPartTooLarge)
	}
	return data, nil
}

// paragraphs streams the main document XML and returns the text of every
// paragraph that is a direct child of the body. Element names are matched
// on their local part so both transitional and strict namespaces work.
func paragraphs(content []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	var (
		out     []string
		stack   []string
		sawBody bool
		para    strings.Builder
		inPara  bool
		inText  bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			parent := ""
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			stack = append(stack, name)

			if name == "body" {
				sawBody = true
			}
			if name == "p" && parent == "body" {
				inPara = true
				para.Reset()
				continue
			}
			if !inPara || nestedParagraph(stack) {
				continue
			}
			switch name {
			case "t":
				inText = true
			case "tab", "ptab":
				if parent == "r" {
					para.WriteByte('\t')
				}
			case "br":
				if breakType(t) == "" || breakType(t) == "textWrapping" {
					para.WriteByte('\n')
				}
			case "cr":
				para.WriteByte('\n')
			case "noBreakHyphen":
				para.WriteByte('-')
			}

		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			name := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			switch {
			case name == "t":
				inText = false
			case name == "p" && inPara && len(stack) > 0 && stack[len(stack)-1] == "body":
				out = append(out, para.String())
				inPara = false
			}

		case xml.CharData:
			if inPara && inText && !nestedParagraph(stack) {
				para.Write(t)
			}
		}
	}

	if !sawBody {
		return nil, errors.New("document has no body")
	}
	return out, nil
}

// nestedParagraph reports whether the innermost element sits inside a
// paragraph other than the body-level one (text boxes, for instance).
func nestedParagraph(stack []string) bool {
	count := 0
	for _, name := range stack {
		if name == "p" {
			count++
		}
	}
	return count > 1
}

func breakType(t xml.StartElement) string {
	for _, a := range t.Attr {
		if a.Name.Local == "type" {
			return a.Value
		}
	}
	return ""
}
