package features

import (
	"fmt"

	roaring "github.com/RoaringBitmap/roaring"

	"github.com/ZanzyTHEbar/squadgen/sqg/tokenizer"
)

// DocSpan is one window over the document's subword sequence.
type DocSpan struct {
	Start  int
	Length int
}

// End returns the index of the last subword covered by the span.
func (s DocSpan) End() int { return s.Start + s.Length - 1 }

// Contains reports whether the absolute subword position lies inside the span.
func (s DocSpan) Contains(position int) bool {
	return position >= s.Start && position <= s.End()
}

// SubwordAlignment maps between whitespace tokens and their subwords.
// OrigTokenIndexOf[i] is the doc token that produced subword i;
// FirstSubwordIndexOf[j] is the first subword produced by doc token j.
// The expander never reads it; it is kept for downstream alignment use.
type SubwordAlignment struct {
	OrigTokenIndexOf    []int
	FirstSubwordIndexOf []int
}

// SpanWindow is the windowed view of one record: its subword expansion, the
// generated doc spans, and per-span ownership of every covered position.
type SpanWindow struct {
	Record       RawRecord
	QueryTokens  []string
	AnswerTokens []string
	DocSubwords  []string
	Alignment    SubwordAlignment

	MaxTokensForDoc int
	Spans           []DocSpan

	// Ownership[i] holds the absolute subword positions whose max-context
	// winner is span i.
	Ownership []*roaring.Bitmap
}

// Window tokenizes the record's segments, expands the document into subwords,
// and slides the span window. More than one span is a policy violation, not a
// request for multi-window output.
func Window(rec RawRecord, tok tokenizer.Tokenizer, opts Options) (*SpanWindow, error) {
	queryTokens, err := tok.Tokenize(rec.QuestionText)
	if err != nil {
		return nil, fmt.Errorf("record %d: tokenize question: %w", rec.Index, err)
	}
	if n := len(queryTokens); n > opts.MaxQueryLength {
		return nil, &OverLengthError{Index: rec.Index, Segment: "question", Length: n, Limit: opts.MaxQueryLength}
	}

	answerTokens, err := tok.Tokenize(rec.AnswerText)
	if err != nil {
		return nil, fmt.Errorf("record %d: tokenize answer: %w", rec.Index, err)
	}
	if n := len(answerTokens); n > opts.MaxAnswerLength {
		return nil, &OverLengthError{Index: rec.Index, Segment: "answer", Length: n, Limit: opts.MaxAnswerLength}
	}

	var (
		docSubwords []string
		alignment   = SubwordAlignment{
			FirstSubwordIndexOf: make([]int, 0, len(rec.DocTokens)),
		}
	)
	for i, token := range rec.DocTokens {
		alignment.FirstSubwordIndexOf = append(alignment.FirstSubwordIndexOf, len(docSubwords))
		subs, err := tok.Tokenize(token)
		if err != nil {
			return nil, fmt.Errorf("record %d: tokenize doc token %d: %w", rec.Index, i, err)
		}
		for _, sub := range subs {
			alignment.OrigTokenIndexOf = append(alignment.OrigTokenIndexOf, i)
			docSubwords = append(docSubwords, sub)
		}
	}
	if len(docSubwords) == 0 {
		return nil, &MalformedInputError{Index: rec.Index, Reason: "context produced no subword tokens"}
	}

	// 4 reserved positions: [CLS] and the three [SEP] markers.
	maxTokensForDoc := opts.MaxSeqLength - len(answerTokens) - len(queryTokens) - 4
	if maxTokensForDoc <= 0 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf(
			"record %d: no context budget: maxSeqLength %d, answer %d, question %d",
			rec.Index, opts.MaxSeqLength, len(answerTokens), len(queryTokens))}
	}

	spans := buildDocSpans(len(docSubwords), maxTokensForDoc, opts.DocStride)
	if len(spans) > 1 {
		return nil, &UnsupportedMultiSpanError{
			Index:     rec.Index,
			SpanCount: len(spans),
			DocLen:    len(docSubwords),
			MaxTokens: maxTokensForDoc,
		}
	}

	return &SpanWindow{
		Record:          rec,
		QueryTokens:     queryTokens,
		AnswerTokens:    answerTokens,
		DocSubwords:     docSubwords,
		Alignment:       alignment,
		MaxTokensForDoc: maxTokensForDoc,
		Spans:           spans,
		Ownership:       spanOwnership(spans),
	}, nil
}

// buildDocSpans slides a window of up to maxTokensForDoc subwords across the
// document, advancing by min(length, docStride) until the end is covered.
func buildDocSpans(totalSubwords, maxTokensForDoc, docStride int) []DocSpan {
	var spans []DocSpan
	startOffset := 0
	for startOffset < totalSubwords {
		length := totalSubwords - startOffset
		if length > maxTokensForDoc {
			length = maxTokensForDoc
		}
		spans = append(spans, DocSpan{Start: startOffset, Length: length})
		if startOffset+length == totalSubwords {
			break
		}
		startOffset += min(length, docStride)
	}
	return spans
}

// IsMaxContext reports whether spans[currentSpanIndex] is the max-context
// owner of the subword at position. The winner is the span giving the
// position the most balanced left and right context, with a small bonus for
// longer spans; on equal scores the earliest span keeps ownership.
func IsMaxContext(spans []DocSpan, currentSpanIndex, position int) bool {
	bestIndex := -1
	var bestScore float64
	for i, span := range spans {
		if !span.Contains(position) {
			continue
		}
		leftContext := position - span.Start
		rightContext := span.End() - position
		score := float64(min(leftContext, rightContext)) + 0.01*float64(span.Length)
		if bestIndex == -1 || score > bestScore {
			bestScore = score
			bestIndex = i
		}
	}
	return currentSpanIndex == bestIndex
}

// spanOwnership materializes IsMaxContext into one bitmap per span over the
// absolute subword positions each span owns.
func spanOwnership(spans []DocSpan) []*roaring.Bitmap {
	ownership := make([]*roaring.Bitmap, len(spans))
	for i := range spans {
		ownership[i] = roaring.New()
	}
	for i, span := range spans {
		for pos := span.Start; pos <= span.End(); pos++ {
			if IsMaxContext(spans, i, pos) {
				ownership[i].Add(uint32(pos))
			}
		}
	}
	return ownership
}
