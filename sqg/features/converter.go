package features

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/assert-lib"
	progressbar "github.com/schollz/progressbar/v2"
	"github.com/sourcegraph/conc/pool"

	"github.com/ZanzyTHEbar/squadgen/sqg/tokenizer"
)

// ConversionResult is the outcome of one conversion run. Features are ordered
// by input record; Skipped holds the per-record errors dropped in skip mode.
type ConversionResult struct {
	Features []Feature
	Skipped  []error
	Stats    LengthStats
}

// Converter drives records through windowing and expansion on a bounded
// worker pool. Records are independent; workers share only the tokenizer.
type Converter struct {
	tok      tokenizer.Tokenizer
	expander *Expander
	opts     Options
}

// NewConverter validates opts and builds a converter. The assert handler
// guards the expander's internal length invariants.
func NewConverter(tok tokenizer.Tokenizer, assertHandler *assert.AssertHandler, opts Options) (*Converter, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Converter{
		tok:      tok,
		expander: NewExpander(tok, assertHandler),
		opts:     opts,
	}, nil
}

// Convert expands every entry into its feature sequence. Per-record errors
// are skipped and reported in the result unless Strict is set; configuration
// and tokenizer faults abort the run in either mode.
func (c *Converter) Convert(ctx context.Context, entries []Entry) (*ConversionResult, error) {
	start := time.Now()

	perRecord := make([][]Feature, len(entries))

	var (
		mu         sync.Mutex
		skipped    []error
		queryLens  []float64
		answerLens []float64
		docLens    []float64
	)

	var bar *progressbar.ProgressBar
	if c.opts.Progress {
		bar = progressbar.NewOptions(len(entries),
			progressbar.OptionSetDescription("data"),
			progressbar.OptionSetWriter(os.Stderr))
	}

	// Any error returned from a task cancels the pool context, so queued
	// records short-circuit; Wait reports the error that started it.
	workers := pool.New().
		WithMaxGoroutines(c.opts.workerCount()).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()

	for i, entry := range entries {
		workers.Go(func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			feats, win, err := c.convertOne(ctx, i, entry)

			mu.Lock()
			defer mu.Unlock()
			if bar != nil {
				bar.Add(1)
			}
			if err != nil {
				if c.opts.Strict || !IsRecordError(err) {
					return err
				}
				skipped = append(skipped, err)
				slog.Warn("Skipping record", "record", i, "error", err)
				return nil
			}
			perRecord[i] = feats
			queryLens = append(queryLens, float64(len(win.QueryTokens)))
			answerLens = append(answerLens, float64(len(win.AnswerTokens)))
			docLens = append(docLens, float64(len(win.DocSubwords)))
			return nil
		})
	}

	if err := workers.Wait(); err != nil {
		return nil, fmt.Errorf("conversion failed: %w", err)
	}
	if bar != nil {
		bar.Finish()
	}

	result := &ConversionResult{Skipped: skipped}
	for _, feats := range perRecord {
		result.Features = append(result.Features, feats...)
	}
	result.Stats = computeLengthStats(queryLens, answerLens, docLens, len(result.Features))

	slog.Info("Conversion completed",
		"records", len(entries),
		"features", len(result.Features),
		"skipped", len(skipped),
		"duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

// convertOne runs the full per-record pipeline: validate, window, expand.
func (c *Converter) convertOne(ctx context.Context, index int, entry Entry) ([]Feature, *SpanWindow, error) {
	rec, err := entry.Record(index)
	if err != nil {
		return nil, nil, err
	}
	win, err := Window(rec, c.tok, c.opts)
	if err != nil {
		return nil, nil, err
	}
	feats, err := c.expander.Expand(ctx, win, c.opts)
	if err != nil {
		return nil, nil, err
	}
	return feats, win, nil
}
