// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the conversion taxonomy. Match with errors.Is.
var (
	// ErrFormat means the source container is unreadable or corrupt.
	ErrFormat = errors.New("format error")

	// ErrUnsupportedKind means the input kind is not convertible.
	ErrUnsupportedKind = errors.New("unsupported kind")

	// ErrRender means the target encoder could not produce a valid artifact.
	ErrRender = errors.New("render error")

	// ErrRenderTimeout means an external renderer did not finish in time.
	// It also matches ErrRender.
	ErrRenderTimeout = fmt.Errorf("%w: timed out", ErrRender)
)

// ConversionError describes a failed conversion step.
type ConversionError struct {
	// Op names the step that failed (e.g. "docx.read", "pdf.write").
	Op string

	// Kind is one of the sentinel errors above.
	Kind error

	// Err is the underlying cause, if any.
	Err error
}

func (e *ConversionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the taxonomy sentinel and the cause to errors.Is/As.
func (e *ConversionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// FormatError wraps err as an ErrFormat failure of op.
func FormatError(op string, err error) error {
	return &ConversionError{Op: op, Kind: ErrFormat, Err: err}
}

// RenderError wraps err as an ErrRender failure of op.
func RenderError(op string, err error) error {
	return &ConversionError{Op: op, Kind: ErrRender, Err: err}
}

// UnsupportedKindError reports that kind k cannot enter the pipeline.
func UnsupportedKindError(op string, k Kind) error {
	return &ConversionError{Op: op, Kind: ErrUnsupportedKind, Err: fmt.Errorf("kind %q", k.String())}
}

// Reason returns a short classification of err for reports and the ledger.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRenderTimeout):
		return "render_timeout"
	case errors.Is(err, ErrRender):
		return "render_error"
	case errors.Is(err, ErrFormat):
		return "format_error"
	case errors.Is(err, ErrUnsupportedKind):
		return "unsupported_kind"
	default:
		return "internal_error"
	}
}
