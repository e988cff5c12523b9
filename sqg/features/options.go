package features

import (
	"fmt"
	"runtime"
)

// Options is the configuration surface of the feature pipeline. The four
// length budgets mirror the training defaults; Workers, Strict, and
// LogFeatures tune the conversion run itself.
type Options struct {
	MaxSeqLength    int
	DocStride       int
	MaxQueryLength  int
	MaxAnswerLength int

	// Workers bounds the conversion pool. Zero means one worker per CPU.
	Workers int

	// Strict aborts the run on the first per-record error instead of
	// skipping the record.
	Strict bool

	// LogFeatures logs full feature dumps for the first N records.
	LogFeatures int

	// Progress renders a progress bar on stderr while converting.
	Progress bool
}

// DefaultOptions returns the standard training configuration.
func DefaultOptions() Options {
	return Options{
		MaxSeqLength:    384,
		DocStride:       128,
		MaxQueryLength:  64,
		MaxAnswerLength: 30,
		Workers:         runtime.NumCPU(),
		LogFeatures:     20,
	}
}

// Validate rejects option sets no record could satisfy. The final check is the
// worst case of the per-record budget: a maximal question and answer must
// still leave room for at least one context subword, which also guarantees the
// expansion cursor can never pass MaxSeqLength.
func (o Options) Validate() error {
	if o.MaxSeqLength <= 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("maxSeqLength must be positive, got %d", o.MaxSeqLength)}
	}
	if o.DocStride <= 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("docStride must be positive, got %d", o.DocStride)}
	}
	if o.MaxQueryLength <= 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("maxQueryLength must be positive, got %d", o.MaxQueryLength)}
	}
	if o.MaxAnswerLength <= 0 {
		return &ConfigurationError{Reason: fmt.Sprintf("maxAnswerLength must be positive, got %d", o.MaxAnswerLength)}
	}
	if budget := o.MaxSeqLength - o.MaxAnswerLength - o.MaxQueryLength - 4; budget <= 0 {
		return &ConfigurationError{Reason: fmt.Sprintf(
			"maxSeqLength %d leaves %d tokens for context after maximal answer %d, question %d, and 4 markers",
			o.MaxSeqLength, budget, o.MaxAnswerLength, o.MaxQueryLength)}
	}
	return nil
}

// workerCount resolves the effective pool size.
func (o Options) workerCount() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}
