// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindFromFilename(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"report.docx", KindWord},
		{"REPORT.DOCX", KindWord},
		{"scan.pdf", KindPage},
		{"archive.tar.PDF", KindPage},
		{"notes.doc", KindUnknown},
		{"image.png", KindUnknown},
		{"pdf", KindUnknown},
		{"", KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindFromFilename(tt.name))
		})
	}
}

func TestSniff(t *testing.T) {
	junk := make([]byte, 2000)
	for i := range junk {
		junk[i] = 'x'
	}
	tests := []struct {
		name string
		data []byte
		want Kind
	}{
		{"pdf header", []byte("%PDF-1.7\n..."), KindPage},
		{"pdf after junk", append([]byte("garbage\n"), []byte("%PDF-1.4")...), KindPage},
		{"pdf beyond window", append(junk, []byte("%PDF-1.4")...), KindUnknown},
		{"zip header", []byte("PK\x03\x04rest"), KindWord},
		{"text", []byte("hello"), KindUnknown},
		{"empty", nil, KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sniff(tt.data))
		})
	}
}

func TestKind_Properties(t *testing.T) {
	assert.True(t, KindWord.Valid())
	assert.True(t, KindPage.Valid())
	assert.False(t, KindUnknown.Valid())

	assert.Equal(t, KindPage, KindWord.Target())
	assert.Equal(t, KindWord, KindPage.Target())
	assert.Equal(t, KindUnknown, KindUnknown.Target())

	assert.Equal(t, "application/pdf", KindPage.ContentType())
	assert.Equal(t, "application/octet-stream", KindUnknown.ContentType())
	assert.Equal(t, "unknown", KindUnknown.String())
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		in     string
		target Kind
		want   string
	}{
		{"report.docx", KindPage, "report.pdf"},
		{"scan.PDF", KindWord, "scan.docx"},
		{"my.file.name.docx", KindPage, "my.file.name.pdf"},
		{"noext", KindPage, "noext.pdf"},
		{".docx", KindPage, "document.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, OutputName(tt.in, tt.target))
		})
	}
}

func TestArtifact_ContentType(t *testing.T) {
	assert.Equal(t, "application/zip", Artifact{Name: "converted_files.zip"}.ContentType())
	assert.Equal(t, contentTypeDOCX, Artifact{Name: "a.docx", Kind: KindWord}.ContentType())
}

func TestTextBlock_Lines(t *testing.T) {
	assert.Nil(t, TextBlock{Text: "  \n\t "}.Lines())
	assert.Equal(t, []string{"a", "b", "c"}, TextBlock{Text: "a\r\nb\rc\n"}.Lines())
	assert.Equal(t, []TextBlock{{Ordinal: 1, Text: "x"}}, NonBlank(Blocks(" ", "x", "")))
}

func TestLayoutConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*LayoutConfig)
		wantErr bool
	}{
		{"default", func(*LayoutConfig) {}, false},
		{"zero width", func(c *LayoutConfig) { c.PageWidth = 0 }, true},
		{"zero line height", func(c *LayoutConfig) { c.LineHeight = 0 }, true},
		{"negative margin", func(c *LayoutConfig) { c.LeftMargin = -1 }, true},
		{"no text width", func(c *LayoutConfig) { c.LeftMargin, c.RightMargin = 300, 312 }, true},
		{"no text height", func(c *LayoutConfig) { c.TopMargin, c.BottomMargin = 390, 390 }, true},
		{"exactly one line", func(c *LayoutConfig) { c.TopMargin, c.BottomMargin = 388, 389 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultLayout()
			tt.mutate(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestLayoutConfig_LinesPerPage(t *testing.T) {
	cfg := DefaultLayout()
	assert.Equal(t, 47, cfg.LinesPerPage())

	cfg.TopMargin, cfg.BottomMargin = 36, 36
	// 720 / 15 divides exactly.
	assert.Equal(t, 48, cfg.LinesPerPage())

	cfg.LineHeight = 0
	assert.Zero(t, cfg.LinesPerPage())
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Conversion.Renderer = RendererGotenberg
	assert.Error(t, cfg.Validate(), "gotenberg needs a URL")
	cfg.Conversion.GotenbergURL = "http://localhost:3000"
	assert.NoError(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Conversion.Extractor = "ocr"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Conversion.BatchPolicy = "best-effort"
	assert.Error(t, cfg.Validate())
}

func TestErrors_Taxonomy(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name   string
		err    error
		is     []error
		isNot  []error
		reason string
	}{
		{
			name:   "format",
			err:    FormatError("pdf.read", cause),
			is:     []error{ErrFormat, cause},
			isNot:  []error{ErrRender},
			reason: "format_error",
		},
		{
			name:   "render",
			err:    RenderError("pdf.write", cause),
			is:     []error{ErrRender, cause},
			isNot:  []error{ErrRenderTimeout},
			reason: "render_error",
		},
		{
			name:   "timeout matches render",
			err:    &ConversionError{Op: "render", Kind: ErrRenderTimeout},
			is:     []error{ErrRenderTimeout, ErrRender},
			reason: "render_timeout",
		},
		{
			name:   "unsupported",
			err:    UnsupportedKindError("dispatch", KindUnknown),
			is:     []error{ErrUnsupportedKind},
			reason: "unsupported_kind",
		},
		{
			name:   "wrapped",
			err:    fmt.Errorf("job 3: %w", FormatError("docx.read", nil)),
			is:     []error{ErrFormat},
			reason: "format_error",
		},
		{
			name:   "other",
			err:    cause,
			reason: "internal_error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, target := range tt.is {
				assert.ErrorIs(t, tt.err, target)
			}
			for _, target := range tt.isNot {
				assert.NotErrorIs(t, tt.err, target)
			}
			assert.Equal(t, tt.reason, Reason(tt.err))
		})
	}
	assert.Empty(t, Reason(nil))
	assert.Equal(t, `dispatch: unsupported kind: kind "unknown"`, UnsupportedKindError("dispatch", KindUnknown).Error())
	assert.Equal(t, "render: render error: timed out", (&ConversionError{Op: "render", Kind: ErrRenderTimeout}).Error())
}

func TestConversionJob_Transitions(t *testing.T) {
	j := NewJob("j1", "a.docx", KindWord, []byte("PK"))
	assert.Equal(t, JobReceived, j.State)

	j.Advance(JobDetected)
	j.Advance(JobExtracted)
	j.Output = Artifact{Name: "a.pdf", Kind: KindPage, Data: []byte("partial")}
	j.Fail(RenderError("pdf.write", errors.New("font")))

	assert.Equal(t, JobFailed, j.State)
	assert.Equal(t, []JobState{JobReceived, JobDetected, JobExtracted, JobFailed}, j.History)
	assert.Empty(t, j.Output.Data, "partial output is discarded")
	assert.Equal(t, "render_error", j.Reason)
	assert.Equal(t, "pdf.write: render error: font", j.Message)
	assert.False(t, j.Succeeded())

	// Terminal states are sticky.
	j.Advance(JobDone)
	j.Fail(errors.New("again"))
	assert.Equal(t, JobFailed, j.State)
	assert.Len(t, j.History, 4)
	assert.Equal(t, "render_error", j.Reason)
}

func TestConversionJob_Succeeded(t *testing.T) {
	j := NewJob("j1", "a.pdf", KindPage, []byte("%PDF-"))
	for _, s := range []JobState{JobDetected, JobExtracted, JobRendered} {
		j.Advance(s)
	}
	j.Output = Artifact{Name: "a.docx", Kind: KindWord, Data: []byte("PK")}
	j.Advance(JobDone)
	assert.True(t, j.Succeeded())
	assert.True(t, j.State.Terminal())
}
