// Package converter defines the pluggable conversion strategy contract used
// by the background workers. A strategy turns a raw source (file bytes, a
// downloaded URL body, or inline data) into document content, reporting
// progress along the way. The ingestion subsystem is strategy-agnostic;
// strategy selection is an opaque option carried on the job.
package converter

import (
	"context"
	"errors"
	"fmt"

	"github.com/fennwick/docshelf/internal/domain"
)

// DefaultMethod is the strategy used when a submission names none.
const DefaultMethod = "basic"

// ProgressFunc receives conversion progress as a percentage in [0,100].
// Implementations may call it at whatever granularity suits them; callers
// clamp and enforce monotonicity.
type ProgressFunc func(percent int)

// Source describes the input of one conversion.
type Source struct {
	Type     domain.SourceType
	Path     string // local path of spooled file bytes, for file/data sources
	URL      string // original URL, for url sources
	Data     []byte // resolved raw bytes, populated by the worker
	Filename string // original filename, when known
}

// Options carries the caller-supplied conversion options through to the
// strategy.
type Options struct {
	// Method selects the strategy (e.g. "basic"); opaque to the pipeline.
	Method string

	// TitleHint is the submission title, when the caller provided one.
	TitleHint string
}

// Result is the extracted content produced by a successful conversion.
type Result struct {
	Title string
	Text  string
}

// Converter is the conversion strategy contract. Convert either produces
// extracted content or fails with an error; implementations should honor
// context cancellation between units of work.
type Converter interface {
	Convert(ctx context.Context, src Source, opts Options, progress ProgressFunc) (*Result, error)
}

// ConversionError wraps a failure inside a conversion strategy. It is
// recorded as the job's error message and is retryable.
type ConversionError struct {
	Method  string
	Message string
	Err     error
}

// Error implements the error interface for ConversionError.
func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conversion via %s failed: %s: %v", e.Method, e.Message, e.Err)
	}
	return fmt.Sprintf("conversion via %s failed: %s", e.Method, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ConversionError) Unwrap() error {
	return e.Err
}

// NewConversionError creates a ConversionError for the given strategy.
func NewConversionError(method, message string, err error) *ConversionError {
	return &ConversionError{Method: method, Message: message, Err: err}
}

// ErrUnknownMethod is returned by a Registry lookup for an unregistered
// strategy name.
var ErrUnknownMethod = errors.New("unknown conversion method")

// Registry maps strategy names to converters. The zero value is unusable;
// create one with NewRegistry.
type Registry struct {
	converters map[string]Converter
}

// NewRegistry creates a registry pre-populated with the built-in basic
// text strategy as the default.
func NewRegistry() *Registry {
	return &Registry{
		converters: map[string]Converter{
			DefaultMethod: NewPlainText(),
		},
	}
}

// Register adds or replaces a strategy under the given name.
func (r *Registry) Register(method string, c Converter) {
	r.converters[method] = c
}

// Resolve returns the converter for the given method, defaulting to the
// basic strategy when method is empty. Returns ErrUnknownMethod for names
// that were never registered.
func (r *Registry) Resolve(method string) (Converter, error) {
	if method == "" {
		method = DefaultMethod
	}
	c, ok := r.converters[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	return c, nil
}

// Known reports whether the given method resolves to a registered strategy.
func (r *Registry) Known(method string) bool {
	_, err := r.Resolve(method)
	return err == nil
}
