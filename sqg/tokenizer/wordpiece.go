package tokenizer

import (
	"bufio"
	"log/slog"
	"os"
	"strings"
	"unicode"

	radix "github.com/armon/go-radix"
)

const (
	continuationPrefix = "##"
	maxWordChars       = 200
)

// WordPiece is a self-contained greedy longest-match WordPiece tokenizer over
// a plain vocab.txt (one token per line, line number = id). Lowercasing and
// punctuation splitting follow the uncased BERT basic tokenizer; accent
// stripping is left to the sugarme-backed implementation.
//
// Longest-match lookup runs over two radix trees: one for word-start pieces
// and one for "##" continuation pieces keyed without the prefix.
type WordPiece struct {
	vocab map[string]int
	heads *radix.Tree
	conts *radix.Tree
	unkID int
	lower bool
}

// LoadWordPieceFromVocab reads a vocab file and builds the tokenizer.
func LoadWordPieceFromVocab(path string) (*WordPiece, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tokens []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tok := strings.TrimSpace(scanner.Text())
		if tok == "" {
			continue
		}
		tokens = append(tokens, tok)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewWordPiece(tokens), nil
}

// NewWordPiece builds the tokenizer from an ordered token list (index = id).
func NewWordPiece(tokens []string) *WordPiece {
	wp := &WordPiece{
		vocab: make(map[string]int, len(tokens)),
		heads: radix.New(),
		conts: radix.New(),
		unkID: UnkID,
		lower: true,
	}
	for id, tok := range tokens {
		wp.vocab[tok] = id
		if rest, ok := strings.CutPrefix(tok, continuationPrefix); ok {
			wp.conts.Insert(rest, id)
		} else {
			wp.heads.Insert(tok, id)
		}
	}
	if id, ok := wp.vocab[UnkToken]; ok {
		wp.unkID = id
	}
	warnReservedIDs(wp.vocab)
	return wp
}

// warnReservedIDs flags vocabularies whose reserved tokens sit at ids other
// than the fixed ones the expander hardcodes.
func warnReservedIDs(vocab map[string]int) {
	fixed := map[string]int{
		UnkToken:  UnkID,
		ClsToken:  ClsID,
		SepToken:  SepID,
		MaskToken: MaskID,
	}
	for tok, want := range fixed {
		if id, ok := vocab[tok]; ok && id != want {
			slog.Warn("Vocab reserved token id differs from fixed id",
				"token", tok,
				"vocab_id", id,
				"fixed_id", want)
		}
	}
}

// Tokenize splits text into subword tokens. Special tokens are never emitted;
// sequence framing is the caller's job.
func (w *WordPiece) Tokenize(text string) ([]string, error) {
	var out []string
	for _, word := range w.basicSplit(text) {
		out = append(out, w.splitWord(word)...)
	}
	return out, nil
}

// TokensToIDs maps subword tokens to vocabulary ids, falling back to the
// unknown id for anything out of vocabulary.
func (w *WordPiece) TokensToIDs(tokens []string) ([]int, error) {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		id, ok := w.vocab[tok]
		if !ok {
			id = w.unkID
		}
		ids[i] = id
	}
	return ids, nil
}

// basicSplit lowercases, splits on whitespace, and breaks punctuation runes
// into standalone words.
func (w *WordPiece) basicSplit(text string) []string {
	if w.lower {
		text = strings.ToLower(text)
	}
	var words []string
	var run []rune
	flush := func() {
		if len(run) > 0 {
			words = append(words, string(run))
			run = run[:0]
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			run = append(run, r)
		}
	}
	flush()
	return words
}

// splitWord applies greedy longest-match WordPiece to a single word. A word
// with any unmatchable remainder collapses to a single unknown token.
func (w *WordPiece) splitWord(word string) []string {
	if len([]rune(word)) > maxWordChars {
		return []string{UnkToken}
	}
	var pieces []string
	rest := word
	for len(rest) > 0 {
		tree := w.heads
		if len(pieces) > 0 {
			tree = w.conts
		}
		match, _, ok := tree.LongestPrefix(rest)
		if !ok || match == "" {
			return []string{UnkToken}
		}
		if len(pieces) > 0 {
			pieces = append(pieces, continuationPrefix+match)
		} else {
			pieces = append(pieces, match)
		}
		rest = rest[len(match):]
	}
	return pieces
}
