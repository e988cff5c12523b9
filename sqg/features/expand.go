package features

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ZanzyTHEbar/assert-lib"

	"github.com/ZanzyTHEbar/squadgen/sqg/tokenizer"
)

// Feature is one fully-formed training example: four parallel integer
// sequences of length MaxSeqLength plus the debug token strings. OutputIDs is
// -1 everywhere except the single generation slot carrying the target id.
type Feature struct {
	Tokens     []string `json:"tokens"`
	InputIDs   []int    `json:"input_ids"`
	InputMask  []int    `json:"input_mask"`
	SegmentIDs []int    `json:"segment_ids"`
	OutputIDs  []int    `json:"output_ids"`
}

// Segment id domain. Context and answer follow the usual BERT pair scheme;
// the generation slot gets its own id.
const (
	SegmentContext = 0
	SegmentAnswer  = 1
	SegmentSlot    = 2
)

const ignoreLabel = -1

// Expander turns a windowed record into its autoregressive feature sequence.
// Safe for concurrent use: all state is per-call.
type Expander struct {
	tok           tokenizer.Tokenizer
	assertHandler *assert.AssertHandler
}

func NewExpander(tok tokenizer.Tokenizer, assertHandler *assert.AssertHandler) *Expander {
	return &Expander{tok: tok, assertHandler: assertHandler}
}

// runState is the mutable sequence shared across expansion steps. Each
// emitted Feature clones it; only step-end reveals the real target token.
type runState struct {
	ids  []int
	mask []int
	seg  []int
	pos  int
}

// Expand assembles the base sequence for the record's single span and emits
// one Feature per target subword. A question of k subwords plus its trailing
// separator yields exactly k+1 features; the final feature's target is the
// separator and ends the record.
func (e *Expander) Expand(ctx context.Context, win *SpanWindow, opts Options) ([]Feature, error) {
	if len(win.Spans) != 1 {
		return nil, &UnsupportedMultiSpanError{
			Index:     win.Record.Index,
			SpanCount: len(win.Spans),
			DocLen:    len(win.DocSubwords),
			MaxTokens: win.MaxTokensForDoc,
		}
	}
	span := win.Spans[0]

	tokens := make([]string, 0, span.Length+len(win.AnswerTokens)+3)
	segmentIDs := make([]int, 0, opts.MaxSeqLength)

	tokens = append(tokens, tokenizer.ClsToken)
	segmentIDs = append(segmentIDs, SegmentContext)
	for i := 0; i < span.Length; i++ {
		tokens = append(tokens, win.DocSubwords[span.Start+i])
		segmentIDs = append(segmentIDs, SegmentContext)
	}
	tokens = append(tokens, tokenizer.SepToken)
	segmentIDs = append(segmentIDs, SegmentContext)

	for _, tok := range win.AnswerTokens {
		tokens = append(tokens, tok)
		segmentIDs = append(segmentIDs, SegmentAnswer)
	}
	tokens = append(tokens, tokenizer.SepToken)
	segmentIDs = append(segmentIDs, SegmentAnswer)

	outputTokens := make([]string, 0, len(win.QueryTokens)+1)
	outputTokens = append(outputTokens, win.QueryTokens...)
	outputTokens = append(outputTokens, tokenizer.SepToken)

	inputIDs, err := e.tok.TokensToIDs(tokens)
	if err != nil {
		return nil, fmt.Errorf("record %d: convert input tokens: %w", win.Record.Index, err)
	}
	inputMask := make([]int, len(inputIDs))
	for i := range inputMask {
		inputMask[i] = 1
	}

	labelPos := len(inputIDs)

	outputIDs, err := e.tok.TokensToIDs(outputTokens)
	if err != nil {
		return nil, fmt.Errorf("record %d: convert output tokens: %w", win.Record.Index, err)
	}

	// The cursor walks one slot per target; its last position must still be
	// inside the padded sequence. Validated here, before any feature exists.
	if labelPos+len(outputIDs) > opts.MaxSeqLength {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"record %d: expansion needs %d positions past labelPos %d, maxSeqLength %d",
			win.Record.Index, len(outputIDs), labelPos, opts.MaxSeqLength)}
	}

	run := runState{
		ids:  padTo(inputIDs, opts.MaxSeqLength),
		mask: padTo(inputMask, opts.MaxSeqLength),
		seg:  padTo(segmentIDs, opts.MaxSeqLength),
		pos:  labelPos,
	}
	e.assertHandler.Assert(ctx, len(run.ids) == opts.MaxSeqLength, "padded input ids length mismatch")
	e.assertHandler.Assert(ctx, len(run.mask) == opts.MaxSeqLength, "padded input mask length mismatch")
	e.assertHandler.Assert(ctx, len(run.seg) == opts.MaxSeqLength, "padded segment ids length mismatch")

	debugDump := win.Record.Index < opts.LogFeatures

	features := make([]Feature, 0, len(outputIDs))
	for _, targetID := range outputIDs {
		e.assertHandler.Assert(ctx, run.pos < opts.MaxSeqLength, "generation slot past end of sequence")

		stepIDs := cloneInts(run.ids)
		stepMask := cloneInts(run.mask)
		stepSeg := cloneInts(run.seg)

		labelIDs := make([]int, opts.MaxSeqLength)
		for i := range labelIDs {
			labelIDs[i] = ignoreLabel
		}
		labelIDs[run.pos] = targetID

		stepIDs[run.pos] = tokenizer.MaskID
		stepMask[run.pos] = 1
		stepSeg[run.pos] = SegmentSlot

		if debugDump {
			slog.Debug("Feature dump",
				"record", win.Record.Index,
				"tokens", strings.Join(tokens, " "),
				"input_ids", stepIDs,
				"input_mask", stepMask,
				"segment_ids", stepSeg,
				"label_ids", labelIDs,
				"question_token_ids", outputIDs)
		}

		features = append(features, Feature{
			Tokens:     tokens,
			InputIDs:   stepIDs,
			InputMask:  stepMask,
			SegmentIDs: stepSeg,
			OutputIDs:  labelIDs,
		})

		if targetID == tokenizer.SepID {
			break
		}

		run.ids[run.pos] = targetID
		run.mask[run.pos] = 1
		run.seg[run.pos] = SegmentSlot
		run.pos++
	}

	return features, nil
}

func padTo(s []int, n int) []int {
	out := make([]int, n)
	copy(out, s)
	return out
}

func cloneInts(s []int) []int {
	out := make([]int, len(s))
	copy(out, s)
	return out
}
