package features

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDocSpans(t *testing.T) {
	cases := []struct {
		name               string
		total, max, stride int
		want               []DocSpan
	}{
		{"FitsInOne", 5, 10, 3, []DocSpan{{0, 5}}},
		{"ExactFit", 10, 10, 3, []DocSpan{{0, 10}}},
		{"SlidesByStride", 10, 4, 2, []DocSpan{{0, 4}, {2, 4}, {4, 4}, {6, 4}}},
		{"StrideCappedByLength", 10, 4, 6, []DocSpan{{0, 4}, {4, 4}, {8, 2}}},
		{"EmptyDoc", 0, 4, 2, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, buildDocSpans(tc.total, tc.max, tc.stride))
		})
	}
}

func TestIsMaxContext(t *testing.T) {
	spans := []DocSpan{{Start: 0, Length: 4}, {Start: 2, Length: 4}}

	// Position 3 sits at the edge of span 0 but has balanced context in span 1.
	assert.False(t, IsMaxContext(spans, 0, 3))
	assert.True(t, IsMaxContext(spans, 1, 3))

	// Position 2 is better balanced in span 0.
	assert.True(t, IsMaxContext(spans, 0, 2))
	assert.False(t, IsMaxContext(spans, 1, 2))

	// Positions covered by a single span belong to it.
	assert.True(t, IsMaxContext(spans, 0, 0))
	assert.False(t, IsMaxContext(spans, 1, 0))
	assert.True(t, IsMaxContext(spans, 1, 5))

	// Uncovered positions have no owner.
	assert.False(t, IsMaxContext(spans, 0, 9))
	assert.False(t, IsMaxContext(spans, 1, 9))
}

func TestIsMaxContextTieKeepsFirstSpan(t *testing.T) {
	spans := []DocSpan{{Start: 0, Length: 4}, {Start: 0, Length: 4}}
	for pos := 0; pos < 4; pos++ {
		assert.True(t, IsMaxContext(spans, 0, pos), "position %d", pos)
		assert.False(t, IsMaxContext(spans, 1, pos), "position %d", pos)
	}
}

// Every position covered by at least one span must have exactly one owner.
func TestSpanOwnershipExactlyOne(t *testing.T) {
	const total = 10
	spans := buildDocSpans(total, 4, 2)
	require.Greater(t, len(spans), 1)

	ownership := spanOwnership(spans)
	require.Len(t, ownership, len(spans))

	var owned uint64
	for _, bm := range ownership {
		owned += bm.GetCardinality()
	}
	assert.Equal(t, uint64(total), owned)

	for pos := 0; pos < total; pos++ {
		owners := 0
		for _, bm := range ownership {
			if bm.Contains(uint32(pos)) {
				owners++
			}
		}
		assert.Equal(t, 1, owners, "position %d", pos)
	}
}

func TestWindow(t *testing.T) {
	opts := Options{MaxSeqLength: 20, DocStride: 8, MaxQueryLength: 4, MaxAnswerLength: 4}

	t.Run("SingleSpan", func(t *testing.T) {
		tok := newFakeTokenizer("the", "play", "##ing", "fox", "who", "plays?").
			withSubwords("playing", "play", "##ing")
		rec, err := entryOf("the playing fox", "who plays?", "fox").Record(0)
		require.NoError(t, err)

		win, err := Window(rec, tok, opts)
		require.NoError(t, err)

		assert.Equal(t, []string{"who", "plays?"}, win.QueryTokens)
		assert.Equal(t, []string{"fox"}, win.AnswerTokens)
		assert.Equal(t, []string{"the", "play", "##ing", "fox"}, win.DocSubwords)
		assert.Equal(t, []int{0, 1, 1, 2}, win.Alignment.OrigTokenIndexOf)
		assert.Equal(t, []int{0, 1, 3}, win.Alignment.FirstSubwordIndexOf)

		// 20 - 1 answer - 2 query - 4 markers
		assert.Equal(t, 13, win.MaxTokensForDoc)
		require.Equal(t, []DocSpan{{Start: 0, Length: 4}}, win.Spans)

		require.Len(t, win.Ownership, 1)
		assert.Equal(t, uint64(4), win.Ownership[0].GetCardinality())
		for pos := 0; pos < 4; pos++ {
			assert.True(t, win.Ownership[0].Contains(uint32(pos)))
		}
	})

	t.Run("QuestionOverLength", func(t *testing.T) {
		tok := newFakeTokenizer("a", "b", "c", "d", "e", "ctx", "ans")
		rec, err := entryOf("ctx", "a b c d e", "ans").Record(4)
		require.NoError(t, err)

		_, err = Window(rec, tok, opts)
		assert.ErrorIs(t, err, ErrOverLength)

		var overLength *OverLengthError
		require.ErrorAs(t, err, &overLength)
		assert.Equal(t, 4, overLength.Index)
		assert.Equal(t, "question", overLength.Segment)
		assert.Equal(t, 5, overLength.Length)
		assert.Equal(t, 4, overLength.Limit)
	})

	t.Run("AnswerOverLength", func(t *testing.T) {
		tok := newFakeTokenizer("a", "b", "c", "d", "e", "ctx", "q")
		rec, err := entryOf("ctx", "q", "a b c d e").Record(0)
		require.NoError(t, err)

		_, err = Window(rec, tok, opts)
		var overLength *OverLengthError
		require.ErrorAs(t, err, &overLength)
		assert.Equal(t, "answer", overLength.Segment)
	})

	t.Run("MultiSpanRejected", func(t *testing.T) {
		tok := newFakeTokenizer("w1", "w2", "w3", "w4", "w5", "w6", "w7", "w8", "q", "a")
		rec, err := entryOf("w1 w2 w3 w4 w5 w6 w7 w8", "q", "a").Record(2)
		require.NoError(t, err)

		tight := Options{MaxSeqLength: 10, DocStride: 2, MaxQueryLength: 4, MaxAnswerLength: 4}
		_, err = Window(rec, tok, tight)
		assert.ErrorIs(t, err, ErrUnsupportedMultiSpan)
		assert.True(t, IsRecordError(err))

		var multiSpan *UnsupportedMultiSpanError
		require.ErrorAs(t, err, &multiSpan)
		assert.Equal(t, 2, multiSpan.Index)
		assert.Equal(t, 3, multiSpan.SpanCount)
		assert.Equal(t, 8, multiSpan.DocLen)
		assert.Equal(t, 4, multiSpan.MaxTokens)
	})

	t.Run("NoContextBudget", func(t *testing.T) {
		tok := newFakeTokenizer("q1", "q2", "q3", "a1", "a2", "a3", "ctx")
		rec, err := entryOf("ctx", "q1 q2 q3", "a1 a2 a3").Record(0)
		require.NoError(t, err)

		tight := Options{MaxSeqLength: 10, DocStride: 2, MaxQueryLength: 4, MaxAnswerLength: 4}
		_, err = Window(rec, tok, tight)
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.False(t, IsRecordError(err))
	})

	t.Run("EmptySubwords", func(t *testing.T) {
		tok := newFakeTokenizer("q", "a").withSubwords("ghost")
		rec, err := entryOf("ghost", "q", "a").Record(0)
		require.NoError(t, err)

		_, err = Window(rec, tok, opts)
		assert.ErrorIs(t, err, ErrMalformedInput)
	})

	t.Run("TokenizerFault", func(t *testing.T) {
		rec, err := entryOf("ctx", "q", "a").Record(0)
		require.NoError(t, err)

		fault := errors.New("vocab unavailable")
		_, err = Window(rec, errTokenizer{err: fault}, opts)
		assert.ErrorIs(t, err, fault)
		assert.False(t, IsRecordError(err))
	})
}
