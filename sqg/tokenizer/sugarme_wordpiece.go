package tokenizer

import (
	"fmt"
	"os"
	"path/filepath"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
)

// SugarWordPiece wraps sugarme/tokenizer WordPiece (BERT-style)
type SugarWordPiece struct {
	t     *tk.Tokenizer
	model tk.Model
}

// NewSugarWordPiece loads vocab.txt and builds a BERT WordPiece tokenizer.
// No truncation, padding, or special-token post-processing is attached: the
// feature expander owns sequence framing and budgets.
func NewSugarWordPiece(vocabPath string) (*SugarWordPiece, error) {
	// Prefer initializing WordPiece from a vocab file to avoid nil-map panics
	var wp wordpiece.WordPiece
	if fi, err := os.Stat(vocabPath); err == nil && !fi.IsDir() {
		if nw, err := wordpiece.NewWordPieceFromFile(vocabPath, UnkToken); err == nil {
			wp = nw
		} else {
			builder := wordpiece.NewWordPieceBuilder().Files(vocabPath)
			wp = builder.Build()
		}
	} else {
		vocabFile := filepath.Join(vocabPath, "vocab.txt")
		if fi2, err := os.Stat(vocabFile); err == nil && !fi2.IsDir() {
			if nw, err := wordpiece.NewWordPieceFromFile(vocabFile, UnkToken); err == nil {
				wp = nw
			} else {
				builder := wordpiece.NewWordPieceBuilder().Files(vocabFile)
				wp = builder.Build()
			}
		} else {
			return nil, fmt.Errorf("%w: no vocab file at %s", ErrUnsupported, vocabPath)
		}
	}

	t := tk.NewTokenizer(wp)

	// Basic normalizer and pre-tokenizer similar to BERT
	t.WithNormalizer(normalizer.NewBertNormalizer(true, true, true, true))
	t.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())

	reserved := make(map[string]int, 4)
	for _, tok := range []string{UnkToken, ClsToken, SepToken, MaskToken} {
		if id, ok := wp.TokenToId(tok); ok {
			reserved[tok] = id
		}
	}
	warnReservedIDs(reserved)

	return &SugarWordPiece{t: t, model: wp}, nil
}

// Tokenize returns the bare subword tokens for text, without special tokens.
func (s *SugarWordPiece) Tokenize(text string) ([]string, error) {
	enc, err := s.t.Encode(tk.NewSingleEncodeInput(tk.NewInputSequence(text)), false)
	if err != nil {
		return nil, err
	}
	return enc.GetTokens(), nil
}

// TokensToIDs maps subword tokens to vocabulary ids with [UNK] fallback.
func (s *SugarWordPiece) TokensToIDs(tokens []string) ([]int, error) {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		id, ok := s.model.TokenToId(tok)
		if !ok {
			if id, ok = s.model.TokenToId(UnkToken); !ok {
				return nil, fmt.Errorf("vocab defines neither %q nor %s", tok, UnkToken)
			}
		}
		ids[i] = id
	}
	return ids, nil
}
