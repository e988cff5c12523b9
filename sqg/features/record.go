package features

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Entry is one raw training example as it appears on disk. Pointer fields
// distinguish an absent key from an empty string so validation can tell the
// difference.
type Entry struct {
	Context  *string `json:"context"`
	Question *string `json:"question"`
	Answers  *string `json:"answers"`
}

// RawRecord is a validated training triple with the context pre-split into
// whitespace-delimited tokens. Immutable once built.
type RawRecord struct {
	Index        int
	QuestionText string
	DocTokens    []string
	AnswerText   string
}

// DecodeEntries parses a top-level JSON array of training entries. A decode
// failure here is a file-level fault, not a per-record one.
func DecodeEntries(r io.Reader) ([]Entry, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode input entries: %w", err)
	}
	return entries, nil
}

// Record validates the entry and builds its RawRecord. index identifies the
// entry in error reports.
func (e Entry) Record(index int) (RawRecord, error) {
	switch {
	case e.Context == nil:
		return RawRecord{}, &MalformedInputError{Index: index, Reason: "missing context field"}
	case e.Question == nil:
		return RawRecord{}, &MalformedInputError{Index: index, Reason: "missing question field"}
	case e.Answers == nil:
		return RawRecord{}, &MalformedInputError{Index: index, Reason: "missing answers field"}
	}
	if strings.TrimSpace(*e.Question) == "" {
		return RawRecord{}, &MalformedInputError{Index: index, Reason: "empty question"}
	}
	if strings.TrimSpace(*e.Answers) == "" {
		return RawRecord{}, &MalformedInputError{Index: index, Reason: "empty answers"}
	}

	docTokens := SplitWhitespace(*e.Context)
	if len(docTokens) == 0 {
		return RawRecord{}, &MalformedInputError{Index: index, Reason: "context has no tokens"}
	}

	return RawRecord{
		Index:        index,
		QuestionText: *e.Question,
		DocTokens:    docTokens,
		AnswerText:   *e.Answers,
	}, nil
}

// ReadRecords converts entries wholesale, failing on the first invalid entry.
// Callers that prefer skip-and-continue validate entry by entry instead; the
// Converter does exactly that.
func ReadRecords(entries []Entry) ([]RawRecord, error) {
	records := make([]RawRecord, 0, len(entries))
	for i, e := range entries {
		rec, err := e.Record(i)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// isWhitespace matches the delimiter set used for context segmentation: space,
// tab, CR, LF, and the narrow no-break space. Narrower than unicode.IsSpace on
// purpose; nothing else splits tokens.
func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n' || r == ' '
}

// SplitWhitespace merges consecutive non-whitespace characters into tokens.
// Pure and deterministic: rejoining with single spaces and splitting again
// yields the same tokens.
func SplitWhitespace(text string) []string {
	var tokens []string
	var run []rune
	for _, r := range text {
		if isWhitespace(r) {
			if len(run) > 0 {
				tokens = append(tokens, string(run))
				run = run[:0]
			}
			continue
		}
		run = append(run, r)
	}
	if len(run) > 0 {
		tokens = append(tokens, string(run))
	}
	return tokens
}
