// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"math"
	"time"
)

// HTTPConfig holds shared HTTP settings for backends that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "docswap/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// LayoutConfig controls page geometry for page-document rendering.
// All lengths are in points (1/72 inch).
type LayoutConfig struct {
	PageWidth    float64 `json:"page_width" yaml:"page_width" mapstructure:"page_width"`
	PageHeight   float64 `json:"page_height" yaml:"page_height" mapstructure:"page_height"`
	TopMargin    float64 `json:"top_margin" yaml:"top_margin" mapstructure:"top_margin"`
	BottomMargin float64 `json:"bottom_margin" yaml:"bottom_margin" mapstructure:"bottom_margin"`
	LeftMargin   float64 `json:"left_margin" yaml:"left_margin" mapstructure:"left_margin"`
	RightMargin  float64 `json:"right_margin" yaml:"right_margin" mapstructure:"right_margin"`
	LineHeight   float64 `json:"line_height" yaml:"line_height" mapstructure:"line_height"`

	// FontFamily names a PDF core font (Helvetica, Times, Courier).
	// Core fonts draw cp1252 only.
	FontFamily string  `json:"font_family" yaml:"font_family" mapstructure:"font_family"`
	FontSize   float64 `json:"font_size" yaml:"font_size" mapstructure:"font_size"`

	// FontFile is a TrueType font embedded in place of the core font.
	// It lets text outside cp1252 be drawn.
	FontFile string `json:"font_file" yaml:"font_file" mapstructure:"font_file"`

	// Wrap breaks lines wider than the text area at word boundaries.
	// Off by default: only vertical pagination is performed.
	Wrap bool `json:"wrap" yaml:"wrap" mapstructure:"wrap"`
}

// DefaultLayout returns US Letter with 40pt margins and 15pt lines.
func DefaultLayout() LayoutConfig {
	return LayoutConfig{
		PageWidth:    612,
		PageHeight:   792,
		TopMargin:    40,
		BottomMargin: 40,
		LeftMargin:   40,
		RightMargin:  40,
		LineHeight:   15,
		FontFamily:   "Helvetica",
		FontSize:     12,
	}
}

// Validate rejects geometry that cannot hold a single line.
func (c LayoutConfig) Validate() error {
	if c.PageWidth <= 0 || c.PageHeight <= 0 {
		return fmt.Errorf("page size must be positive, got %gx%g", c.PageWidth, c.PageHeight)
	}
	if c.LineHeight <= 0 {
		return fmt.Errorf("line height must be positive, got %g", c.LineHeight)
	}
	if c.TopMargin < 0 || c.BottomMargin < 0 || c.LeftMargin < 0 || c.RightMargin < 0 {
		return fmt.Errorf("margins must not be negative")
	}
	if c.LeftMargin+c.RightMargin >= c.PageWidth {
		return fmt.Errorf("horizontal margins %g+%g leave no text width", c.LeftMargin, c.RightMargin)
	}
	if c.LinesPerPage() < 1 {
		return fmt.Errorf("vertical margins %g+%g leave no room for a %g line",
			c.TopMargin, c.BottomMargin, c.LineHeight)
	}
	return nil
}

// LinesPerPage returns floor((height - top - bottom) / line height).
func (c LayoutConfig) LinesPerPage() int {
	if c.LineHeight <= 0 {
		return 0
	}
	usable := c.PageHeight - c.TopMargin - c.BottomMargin
	if usable <= 0 {
		return 0
	}
	// The epsilon absorbs float error for geometries that divide exactly.
	return int(math.Floor(usable/c.LineHeight + 1e-9))
}

// TextWidth returns the horizontal room between the side margins.
func (c LayoutConfig) TextWidth() float64 {
	return c.PageWidth - c.LeftMargin - c.RightMargin
}

// Extractor backends for page-document text extraction.
const (
	ExtractorNative  = "native"
	ExtractorDocconv = "docconv"
)

// Renderer backends for word-to-page conversion.
const (
	RendererNative    = "native"
	RendererContainer = "container"
	RendererGotenberg = "gotenberg"
)

// BatchPolicy decides what a failed job means for its batch.
type BatchPolicy string

const (
	// PolicySkip reports failed jobs and delivers the rest.
	PolicySkip BatchPolicy = "skip"
	// PolicyAllOrNothing delivers nothing if any job failed.
	PolicyAllOrNothing BatchPolicy = "all-or-nothing"
)

// ConversionConfig holds settings for the conversion core and its backends.
type ConversionConfig struct {
	// Extractor selects page-text extraction: native or docconv.
	Extractor string `json:"extractor" yaml:"extractor" mapstructure:"extractor"`

	// Renderer selects word-to-page rendering: native, container, or gotenberg.
	Renderer string `json:"renderer" yaml:"renderer" mapstructure:"renderer"`

	// RenderTimeout bounds one external renderer call (default 2m).
	RenderTimeout time.Duration `json:"render_timeout" yaml:"render_timeout" mapstructure:"render_timeout"`

	// ContainerImage is the image used by the container renderer. It must
	// read a DOCX on stdin and write a PDF to stdout.
	ContainerImage string `json:"container_image" yaml:"container_image" mapstructure:"container_image"`

	// GotenbergURL is the base URL of a Gotenberg service.
	GotenbergURL string `json:"gotenberg_url" yaml:"gotenberg_url" mapstructure:"gotenberg_url"`

	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BatchPolicy is skip (default) or all-or-nothing.
	BatchPolicy BatchPolicy `json:"batch_policy" yaml:"batch_policy" mapstructure:"batch_policy"`

	// Concurrency bounds parallel jobs within one batch (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig holds settings for the HTTP upload boundary.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// MaxUploadBytes bounds the whole multipart request body.
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`

	AllowedOrigins []string      `json:"allowed_origins" yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout"`

	// JWTSecret enables bearer-token auth when non-empty.
	JWTSecret string `json:"jwt_secret,omitempty" yaml:"jwt_secret,omitempty" mapstructure:"jwt_secret"`

	// ScratchDir is the parent of per-batch temporary directories
	// (default: the OS temp dir).
	ScratchDir string `json:"scratch_dir" yaml:"scratch_dir" mapstructure:"scratch_dir"`
}

// LedgerConfig holds settings for the SQLite job history.
type LedgerConfig struct {
	// Path is the database file. Empty disables the ledger.
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// MaxResults is the default row limit for listings (default 50).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// S3Config holds settings for publishing artifacts to S3.
type S3Config struct {
	Region    string `json:"region" yaml:"region" mapstructure:"region"`
	Bucket    string `json:"bucket" yaml:"bucket" mapstructure:"bucket"`
	Prefix    string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`
	AccessKey string `json:"access_key,omitempty" yaml:"access_key,omitempty" mapstructure:"access_key"`
	SecretKey string `json:"secret_key,omitempty" yaml:"secret_key,omitempty" mapstructure:"secret_key"`
}

// Enabled reports whether publishing is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// StorageConfig groups artifact storage sinks.
type StorageConfig struct {
	S3 S3Config `json:"s3" yaml:"s3" mapstructure:"s3"`
}

// Config groups all settings.
type Config struct {
	Layout     LayoutConfig     `json:"layout" yaml:"layout" mapstructure:"layout"`
	Conversion ConversionConfig `json:"conversion" yaml:"conversion" mapstructure:"conversion"`
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
	Ledger     LedgerConfig     `json:"ledger" yaml:"ledger" mapstructure:"ledger"`
	Storage    StorageConfig    `json:"storage" yaml:"storage" mapstructure:"storage"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Layout: DefaultLayout(),
		Conversion: ConversionConfig{
			Extractor:      ExtractorNative,
			Renderer:       RendererNative,
			RenderTimeout:  2 * time.Minute,
			ContainerImage: "docswap-soffice:latest",
			HTTPConfig: HTTPConfig{
				Timeout:   2 * time.Minute,
				UserAgent: "docswap/0.1",
			},
			BatchPolicy: PolicySkip,
			Concurrency: 4,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			MaxUploadBytes: 64 << 20,
			AllowedOrigins: []string{"http://localhost:5173"},
			RequestTimeout: 5 * time.Minute,
		},
		Ledger: LedgerConfig{
			MaxResults: 50,
		},
		Storage: StorageConfig{
			S3: S3Config{Region: "us-east-2"},
		},
	}
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	switch c.Conversion.Extractor {
	case ExtractorNative, ExtractorDocconv:
	default:
		return fmt.Errorf("conversion: unknown extractor %q", c.Conversion.Extractor)
	}
	switch c.Conversion.Renderer {
	case RendererNative, RendererContainer:
	case RendererGotenberg:
		if c.Conversion.GotenbergURL == "" {
			return fmt.Errorf("conversion: gotenberg renderer needs gotenberg_url")
		}
	default:
		return fmt.Errorf("conversion: unknown renderer %q", c.Conversion.Renderer)
	}
	switch c.Conversion.BatchPolicy {
	case PolicySkip, PolicyAllOrNothing:
	default:
		return fmt.Errorf("conversion: unknown batch policy %q", c.Conversion.BatchPolicy)
	}
	return nil
}
