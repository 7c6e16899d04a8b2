package tokenizer

import (
	"bufio"
	"fmt"
	"os"
)

// Reserved token IDs. Everything below MinHashID is kept clear of the
// hash fallback.
const (
	PadID int64 = 0
	UnkID int64 = 100
	ClsID int64 = 101
	SepID int64 = 102

	MinHashID int64 = 200
)

// Vocabulary maps tokens to IDs. It is immutable after construction and safe
// for concurrent reads.
type Vocabulary struct {
	tokenToID map[string]int64

	padID int64
	unkID int64
	clsID int64
	sepID int64
}

// DefaultVocabulary returns the minimal vocabulary holding only the four
// reserved tokens. Every other token resolves through the hash fallback.
func DefaultVocabulary() *Vocabulary {
	return &Vocabulary{
		tokenToID: map[string]int64{
			"[PAD]": PadID,
			"[UNK]": UnkID,
			"[CLS]": ClsID,
			"[SEP]": SepID,
		},
		padID: PadID,
		unkID: UnkID,
		clsID: ClsID,
		sepID: SepID,
	}
}

// LoadVocabulary reads a vocab.txt file where each line is a token and the
// line number (0-indexed) is the token ID.
func LoadVocabulary(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	defer f.Close()

	tokenToID := make(map[string]int64, 32000)
	var n int64

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tok := scanner.Text()
		if _, dup := tokenToID[tok]; !dup {
			tokenToID[tok] = n
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("vocab: read error: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("vocab: file is empty: %s", path)
	}

	v := &Vocabulary{tokenToID: tokenToID}

	specials := []struct {
		name string
		dest *int64
	}{
		{"[PAD]", &v.padID},
		{"[UNK]", &v.unkID},
		{"[CLS]", &v.clsID},
		{"[SEP]", &v.sepID},
	}
	for _, s := range specials {
		id, ok := tokenToID[s.name]
		if !ok {
			return nil, fmt.Errorf("vocab: missing special token %s", s.name)
		}
		*s.dest = id
	}

	return v, nil
}

// lookup returns the ID for token and whether it was found.
func (v *Vocabulary) lookup(token string) (int64, bool) {
	id, ok := v.tokenToID[token]
	return id, ok
}

// Size returns the number of distinct tokens.
func (v *Vocabulary) Size() int {
	return len(v.tokenToID)
}

func (v *Vocabulary) PadID() int64 { return v.padID }
func (v *Vocabulary) UnkID() int64 { return v.unkID }
func (v *Vocabulary) ClsID() int64 { return v.clsID }
func (v *Vocabulary) SepID() int64 { return v.sepID }
