package tokenizer

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// DefaultMaxLength is the sequence length the classifier was exported with.
	DefaultMaxLength = 512

	minLength = 2 // room for [CLS] and [SEP]

	hashModulus    = 30000
	hashMultiplier = 31
)

// Encoding is the model input for a single text. All three slices have the
// same length.
type Encoding struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
}

// Len returns the sequence length.
func (e Encoding) Len() int {
	return len(e.InputIDs)
}

// RealTokens returns the number of non-padding positions, markers included.
func (e Encoding) RealTokens() int {
	n := 0
	for _, m := range e.AttentionMask {
		if m == 1 {
			n++
		}
	}
	return n
}

// Tokenizer splits text on whitespace and a fixed punctuation set and maps
// each piece to a single ID. It is not a subword tokenizer.
type Tokenizer struct {
	vocab *Vocabulary
}

// New creates a Tokenizer over v. A nil v uses DefaultVocabulary.
func New(v *Vocabulary) *Tokenizer {
	if v == nil {
		v = DefaultVocabulary()
	}
	return &Tokenizer{vocab: v}
}

// Vocabulary returns the vocabulary the tokenizer reads from.
func (t *Tokenizer) Vocabulary() *Vocabulary {
	return t.vocab
}

// Encode converts text into [CLS] tokens... [SEP] [PAD]... of exactly
// maxLength positions. Tokens that do not fit before the [SEP] are dropped.
func (t *Tokenizer) Encode(text string, maxLength int) Encoding {
	if maxLength < minLength {
		maxLength = minLength
	}

	ids := make([]int64, 0, maxLength)
	ids = append(ids, t.vocab.clsID)
	for _, tok := range split(lower(text)) {
		if len(ids) >= maxLength-1 {
			break
		}
		ids = append(ids, t.tokenID(tok))
	}
	ids = append(ids, t.vocab.sepID)

	mask := make([]int64, maxLength)
	typeIDs := make([]int64, maxLength) // single segment: all zeros
	for i := range ids {
		mask[i] = 1
	}
	for len(ids) < maxLength {
		ids = append(ids, t.vocab.padID)
	}

	return Encoding{InputIDs: ids, AttentionMask: mask, TokenTypeIDs: typeIDs}
}

// Tokens returns the pieces Encode would look up, before truncation.
func (t *Tokenizer) Tokens(text string) []string {
	return split(lower(text))
}

func (t *Tokenizer) tokenID(tok string) int64 {
	if id, ok := t.vocab.lookup(tok); ok {
		return id
	}
	return HashID(tok)
}

// HashID maps an out-of-vocabulary token to a stable ID in [200, 30000).
// The arithmetic must not change: the classifier was calibrated against it.
func HashID(tok string) int64 {
	var h int64
	for _, r := range tok {
		h = (h*hashMultiplier + int64(r)) % hashModulus
	}
	return max(MinHashID, h)
}

// lower builds a fresh Caser per call; Casers carry state and must not be
// shared between goroutines.
func lower(text string) string {
	return cases.Lower(language.Und).String(text)
}

func split(text string) []string {
	return strings.FieldsFunc(text, isDelimiter)
}

func isDelimiter(r rune) bool {
	switch r {
	case ' ', '.', ',', '!', '?', ';', ':', '\n', '\r', '\t':
		return true
	}
	return false
}
