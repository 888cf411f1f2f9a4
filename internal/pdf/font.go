// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdf

import (
	"errors"
	"fmt"
	"os"
	"unicode"

	"golang.org/x/image/font/sfnt"
)

// ErrMissingGlyph means a line holds a character the selected font cannot
// draw. Writers fail instead of substituting a placeholder.
var ErrMissingGlyph = errors.New("no glyph for character")

// Font is a TrueType font embedded into rendered documents. It is safe for
// concurrent use.
type Font struct {
	data []byte
	face *sfnt.Font
}

// ParseFont validates data as a TrueType font.
func ParseFont(data []byte) (*Font, error) {
	face, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Font{data: data, face: face}, nil
}

// LoadFont reads and parses the TrueType font at path.
func LoadFont(path string) (*Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	f, err := ParseFont(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// missing returns the first character of s the font has no glyph for.
func (f *Font) missing(s string) (rune, bool) {
	var buf sfnt.Buffer
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		idx, err := f.face.GlyphIndex(&buf, r)
		if err != nil || idx == 0 {
			return r, true
		}
	}
	return 0, false
}

// cp1252Missing returns the first character of s that the core-font
// translator tr would replace with a placeholder.
func cp1252Missing(tr func(string) string, s string) (rune, bool) {
	for _, r := range s {
		if r >= 0x80 && tr(string(r)) == "." {
			return r, true
		}
	}
	return 0, false
}
