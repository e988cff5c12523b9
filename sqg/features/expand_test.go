package features

import (
	"context"
	"testing"

	assertlib "github.com/ZanzyTHEbar/assert-lib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/squadgen/sqg/tokenizer"
)

func expandRecord(t *testing.T, tok tokenizer.Tokenizer, entry Entry, opts Options) ([]Feature, *SpanWindow) {
	t.Helper()
	rec, err := entry.Record(0)
	require.NoError(t, err)
	win, err := Window(rec, tok, opts)
	require.NoError(t, err)
	feats, err := NewExpander(tok, assertlib.NewAssertHandler()).Expand(context.Background(), win, opts)
	require.NoError(t, err)
	return feats, win
}

func TestExpandParisScenario(t *testing.T) {
	tok := newFakeTokenizer("Paris", "is", "in", "France", "Where", "Paris?")
	opts := Options{MaxSeqLength: 32, DocStride: 16, MaxQueryLength: 8, MaxAnswerLength: 4}

	feats, _ := expandRecord(t, tok,
		entryOf("Paris is in France", "Where is Paris?", "France"), opts)

	// Three question tokens plus the trailing separator.
	require.Len(t, feats, 4)

	baseTokens := []string{"[CLS]", "Paris", "is", "in", "France", "[SEP]", "France", "[SEP]"}
	baseIDs := []int{101, 1000, 1001, 1002, 1003, 102, 1003, 102}
	baseSegments := []int{0, 0, 0, 0, 0, 0, 1, 1}
	outIDs := []int{1004, 1001, 1005, 102} // Where is Paris? [SEP]
	labelPos := len(baseIDs)

	for i, feat := range feats {
		require.Len(t, feat.InputIDs, opts.MaxSeqLength, "feature %d", i)
		require.Len(t, feat.InputMask, opts.MaxSeqLength, "feature %d", i)
		require.Len(t, feat.SegmentIDs, opts.MaxSeqLength, "feature %d", i)
		require.Len(t, feat.OutputIDs, opts.MaxSeqLength, "feature %d", i)

		assert.Equal(t, baseTokens, feat.Tokens, "feature %d", i)
		assert.Equal(t, baseIDs, feat.InputIDs[:labelPos], "feature %d base ids", i)
		assert.Equal(t, baseSegments, feat.SegmentIDs[:labelPos], "feature %d base segments", i)

		slot := labelPos + i
		assert.Equal(t, tokenizer.MaskID, feat.InputIDs[slot], "feature %d slot id", i)
		assert.Equal(t, 1, feat.InputMask[slot], "feature %d slot mask", i)
		assert.Equal(t, SegmentSlot, feat.SegmentIDs[slot], "feature %d slot segment", i)

		// Exactly one real label, at the slot.
		for pos, label := range feat.OutputIDs {
			if pos == slot {
				assert.Equal(t, outIDs[i], label, "feature %d label", i)
				continue
			}
			assert.Equal(t, -1, label, "feature %d position %d", i, pos)
		}

		// The revealed prefix holds the real tokens generated so far.
		for j := 0; j < i; j++ {
			assert.Equal(t, outIDs[j], feat.InputIDs[labelPos+j], "feature %d prefix %d", i, j)
			assert.Equal(t, 1, feat.InputMask[labelPos+j], "feature %d prefix %d", i, j)
			assert.Equal(t, SegmentSlot, feat.SegmentIDs[labelPos+j], "feature %d prefix %d", i, j)
		}

		// Everything past the cursor is padding.
		for pos := slot + 1; pos < opts.MaxSeqLength; pos++ {
			assert.Equal(t, 0, feat.InputIDs[pos], "feature %d padding %d", i, pos)
			assert.Equal(t, 0, feat.InputMask[pos], "feature %d padding %d", i, pos)
			assert.Equal(t, 0, feat.SegmentIDs[pos], "feature %d padding %d", i, pos)
		}
	}

	// Terminal step labels the separator.
	last := feats[len(feats)-1]
	assert.Equal(t, tokenizer.SepID, last.OutputIDs[labelPos+len(feats)-1])
}

func TestExpandStopsAtSeparator(t *testing.T) {
	tok := newFakeTokenizer("x", "y", "ctx", "ans")
	opts := Options{MaxSeqLength: 24, DocStride: 8, MaxQueryLength: 8, MaxAnswerLength: 4}

	// A separator inside the question ends the record early; y is never
	// labeled.
	feats, _ := expandRecord(t, tok, entryOf("ctx", "x [SEP] y", "ans"), opts)
	require.Len(t, feats, 2)

	labelPos := 5 // [CLS] ctx [SEP] ans [SEP]
	assert.Equal(t, 1000, feats[0].OutputIDs[labelPos])
	assert.Equal(t, tokenizer.SepID, feats[1].OutputIDs[labelPos+1])
}

func TestExpandSingleTokenQuestion(t *testing.T) {
	tok := newFakeTokenizer("why", "ctx", "ans")
	opts := Options{MaxSeqLength: 16, DocStride: 8, MaxQueryLength: 4, MaxAnswerLength: 4}

	feats, win := expandRecord(t, tok, entryOf("ctx", "why", "ans"), opts)
	require.Len(t, feats, 2)
	assert.Equal(t, []string{"why"}, win.QueryTokens)
}

func TestExpandRejectsMultiSpanWindow(t *testing.T) {
	tok := newFakeTokenizer("a", "b")
	opts := Options{MaxSeqLength: 16, DocStride: 4, MaxQueryLength: 4, MaxAnswerLength: 4}

	win := &SpanWindow{
		Record:      RawRecord{Index: 3},
		DocSubwords: []string{"a", "b"},
		Spans:       []DocSpan{{0, 1}, {1, 1}},
	}
	_, err := NewExpander(tok, assertlib.NewAssertHandler()).Expand(context.Background(), win, opts)
	assert.ErrorIs(t, err, ErrUnsupportedMultiSpan)

	win.Spans = nil
	_, err = NewExpander(tok, assertlib.NewAssertHandler()).Expand(context.Background(), win, opts)
	assert.ErrorIs(t, err, ErrUnsupportedMultiSpan)
}

func TestExpandCursorOverflowIsConfigurationError(t *testing.T) {
	tok := newFakeTokenizer("d1", "d2", "d3", "d4", "q1", "q2", "q3", "q4", "q5", "ans")

	// Hand-built window whose query pushes the cursor past the sequence end:
	// labelPos 8, six output ids, ten positions.
	win := &SpanWindow{
		Record:       RawRecord{Index: 0},
		QueryTokens:  []string{"q1", "q2", "q3", "q4", "q5"},
		AnswerTokens: []string{"ans"},
		DocSubwords:  []string{"d1", "d2", "d3", "d4"},
		Spans:        []DocSpan{{0, 4}},
	}
	opts := Options{MaxSeqLength: 10, DocStride: 4, MaxQueryLength: 8, MaxAnswerLength: 4}

	_, err := NewExpander(tok, assertlib.NewAssertHandler()).Expand(context.Background(), win, opts)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.False(t, IsRecordError(err))
}
