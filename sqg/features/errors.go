package features

import (
	"errors"
	"fmt"
)

// Error kinds for record preparation. Typed errors below unwrap to these so
// callers can classify with errors.Is without losing the per-record detail.
var (
	ErrMalformedInput       = errors.New("malformed input record")
	ErrOverLength           = errors.New("segment exceeds configured maximum")
	ErrConfiguration        = errors.New("invalid feature configuration")
	ErrUnsupportedMultiSpan = errors.New("context requires more than one doc span")
)

// MalformedInputError reports a record that is structurally unusable, such as
// a missing question field or a blank answer.
type MalformedInputError struct {
	Index  int
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("record %d: %s: %s", e.Index, ErrMalformedInput, e.Reason)
}

func (e *MalformedInputError) Unwrap() error { return ErrMalformedInput }

// OverLengthError reports a question or answer whose subword expansion exceeds
// its configured budget. The record is rejected outright; the error carries
// both the observed length and the limit so the operator can fix the data or
// the budget.
type OverLengthError struct {
	Index   int
	Segment string
	Length  int
	Limit   int
}

func (e *OverLengthError) Error() string {
	return fmt.Sprintf("record %d: %s: %s has %d subword tokens, limit %d",
		e.Index, ErrOverLength, e.Segment, e.Length, e.Limit)
}

func (e *OverLengthError) Unwrap() error { return ErrOverLength }

// ConfigurationError reports option values no record could ever satisfy.
// Unlike the per-record errors it is always fatal.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// UnsupportedMultiSpanError reports a context long enough to need the sliding
// window, which the single-span contract rejects rather than silently
// truncating.
type UnsupportedMultiSpanError struct {
	Index     int
	SpanCount int
	DocLen    int
	MaxTokens int
}

func (e *UnsupportedMultiSpanError) Error() string {
	return fmt.Sprintf("record %d: %s: %d subword tokens need %d spans of %d",
		e.Index, ErrUnsupportedMultiSpan, e.DocLen, e.SpanCount, e.MaxTokens)
}

func (e *UnsupportedMultiSpanError) Unwrap() error { return ErrUnsupportedMultiSpan }

// IsRecordError reports whether err is a per-record failure that skip mode may
// drop while the run continues. Configuration errors are never skippable.
func IsRecordError(err error) bool {
	return errors.Is(err, ErrMalformedInput) ||
		errors.Is(err, ErrOverLength) ||
		errors.Is(err, ErrUnsupportedMultiSpan)
}
