package tokenizer

import (
	"fmt"
	"strings"
)

// Tokenizer converts raw text to subword tokens and subword tokens to
// vocabulary ids. Implementations must be safe for concurrent readers.
type Tokenizer interface {
	Tokenize(text string) ([]string, error)
	TokensToIDs(tokens []string) ([]int, error)
}

// Reserved vocabulary entries shared by all implementations.
const (
	PadToken  = "[PAD]"
	UnkToken  = "[UNK]"
	ClsToken  = "[CLS]"
	SepToken  = "[SEP]"
	MaskToken = "[MASK]"
)

// Reserved ids per the conventional BERT vocabulary layout. The feature
// expander consumes SepID and MaskID as fixed constants; loaders warn when a
// vocabulary places the reserved tokens elsewhere.
const (
	PadID  = 0
	UnkID  = 100
	ClsID  = 101
	SepID  = 102
	MaskID = 103
)

// ErrUnsupported indicates the tokenizer could not be initialized
var ErrUnsupported = fmt.Errorf("unsupported tokenizer configuration")

// New selects a tokenizer implementation by name. "wordpiece" (also the
// empty default and "dev") is the self-contained implementation; "bert" and
// "sugarme" wrap the sugarme tokenizer. Anything else is ErrUnsupported.
func New(kind, vocabPath string) (Tokenizer, error) {
	name := strings.ToLower(strings.TrimSpace(kind))
	switch name {
	case "wordpiece", "", "dev":
		return LoadWordPieceFromVocab(vocabPath)
	case "bert", "sugarme":
		return NewSugarWordPiece(vocabPath)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrUnsupported, kind)
	}
}
