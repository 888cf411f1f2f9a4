// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/docswap/pkg/types"
)

const (
	nsW = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

	contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>
<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>
</Types>`

	packageRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>
<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties" Target="docProps/app.xml"/>
</Relationships>`

	documentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`

	appXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties"><Application>docswap</Application></Properties>`

	coreXMLFormat = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"><dc:creator>docswap</dc:creator><dcterms:created xsi:type="dcterms:W3CDTF">%s</dcterms:created></cp:coreProperties>`
)

// Writer serializes text blocks into a .docx package.
type Writer struct {
	// Now stamps docProps/core.xml. Defaults to time.Now.
	Now func() time.Time
}

// Write emits one paragraph per non-blank block, in order. An empty or
// all-blank input yields a valid document with an empty body.
func Write(blocks []types.TextBlock) ([]byte, error) {
	return (&Writer{}).Write(blocks)
}

// Write implements the package-level Write with the writer's clock.
func (w *Writer) Write(blocks []types.TextBlock) ([]byte, error) {
	const op = "docx.write"

	now := time.Now
	if w.Now != nil {
		now = w.Now
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	parts := []struct {
		name string
		body []byte
	}{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(packageRelsXML)},
		{"word/document.xml", documentXML(types.NonBlank(blocks))},
		{"word/_rels/document.xml.rels", []byte(documentRelsXML)},
		{"docProps/core.xml", []byte(fmt.Sprintf(coreXMLFormat, now().UTC().Format(time.RFC3339)))},
		{"docProps/app.xml", []byte(appXML)},
	}
	for _, p := range parts {
		fw, err := zw.Create(p.name)
		if err != nil {
			return nil, types.RenderError(op, fmt.Errorf("creating %s: %w", p.name, err))
		}
		if _, err := fw.Write(p.body); err != nil {
			return nil, types.RenderError(op, fmt.Errorf("writing %s: %w", p.name, err))
		}
	}
	if err := zw.Close(); err != nil {
		return nil, types.RenderError(op, fmt.Errorf("closing archive: %w", err))
	}
	return buf.Bytes(), nil
}

func documentXML(blocks []types.TextBlock) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<w:document xmlns:w="` + nsW + `"><w:body>`)
	for _, block := range blocks {
		writeParagraph(&b, block.Text)
	}
	// US Letter, 1 inch margins, in twentieths of a point.
	b.WriteString(`<w:sectPr><w:pgSz w:w="12240" w:h="15840"/>` +
		`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="720" w:footer="720" w:gutter="0"/></w:sectPr>`)
	b.WriteString(`</w:body></w:document>`)
	return b.Bytes()
}

// writeParagraph emits a single run. Line breaks become w:br and tabs
// become w:tab, so Read returns the original text.
func writeParagraph(b *bytes.Buffer, text string) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	b.WriteString(`<w:p><w:r>`)
	var seg strings.Builder
	flush := func() {
		if seg.Len() == 0 {
			return
		}
		s := seg.String()
		if strings.TrimSpace(s) != s {
			b.WriteString(`<w:t xml:space="preserve">`)
		} else {
			b.WriteString(`<w:t>`)
		}
		xml.EscapeText(b, []byte(s))
		b.WriteString(`</w:t>`)
		seg.Reset()
	}
	for _, r := range text {
		switch {
		case r == '\n':
			flush()
			b.WriteString(`<w:br/>`)
		case r == '\t':
			flush()
			b.WriteString(`<w:tab/>`)
		case validXMLChar(r):
			seg.WriteRune(r)
		}
	}
	flush()
	b.WriteString(`</w:r></w:p>`)
}

// validXMLChar reports whether r may appear in an XML 1.0 document.
func validXMLChar(r rune) bool {
	switch {
	case r == 0x09 || r == 0x0A || r == 0x0D:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	default:
		return false
	}
}
