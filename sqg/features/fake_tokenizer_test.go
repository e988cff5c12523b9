package features

import (
	"github.com/ZanzyTHEbar/squadgen/sqg/tokenizer"
)

// fakeTokenizer is a deterministic collaborator for pipeline tests: words
// split on whitespace, optional per-word subword expansions, fixed ids
// assigned from 1000 in declaration order. Specials use the reserved ids.
type fakeTokenizer struct {
	ids      map[string]int
	subwords map[string][]string
}

func newFakeTokenizer(words ...string) *fakeTokenizer {
	f := &fakeTokenizer{
		ids: map[string]int{
			tokenizer.PadToken:  tokenizer.PadID,
			tokenizer.UnkToken:  tokenizer.UnkID,
			tokenizer.ClsToken:  tokenizer.ClsID,
			tokenizer.SepToken:  tokenizer.SepID,
			tokenizer.MaskToken: tokenizer.MaskID,
		},
		subwords: make(map[string][]string),
	}
	for i, w := range words {
		f.ids[w] = 1000 + i
	}
	return f
}

// withSubwords makes Tokenize expand word into the given pieces. The pieces
// still need ids of their own via newFakeTokenizer's word list.
func (f *fakeTokenizer) withSubwords(word string, pieces ...string) *fakeTokenizer {
	f.subwords[word] = pieces
	return f
}

func (f *fakeTokenizer) Tokenize(text string) ([]string, error) {
	var out []string
	for _, w := range SplitWhitespace(text) {
		if pieces, ok := f.subwords[w]; ok {
			out = append(out, pieces...)
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func (f *fakeTokenizer) TokensToIDs(tokens []string) ([]int, error) {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		id, ok := f.ids[tok]
		if !ok {
			id = tokenizer.UnkID
		}
		ids[i] = id
	}
	return ids, nil
}

// errTokenizer fails every call, for exercising fatal collaborator faults.
type errTokenizer struct {
	err error
}

func (e errTokenizer) Tokenize(string) ([]string, error)   { return nil, e.err }
func (e errTokenizer) TokensToIDs([]string) ([]int, error) { return nil, e.err }

// strptr builds the pointer fields of test entries.
func strptr(s string) *string { return &s }

// entryOf is shorthand for a fully-populated entry.
func entryOf(context, question, answers string) Entry {
	return Entry{Context: strptr(context), Question: strptr(question), Answers: strptr(answers)}
}
