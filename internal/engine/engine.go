package engine

import (
	"fmt"

	"github.com/crimson-sun/politeguard/internal/engine/classifier"
	"github.com/crimson-sun/politeguard/internal/engine/tokenizer"
	"github.com/crimson-sun/politeguard/internal/model"
)

// Inferer runs the classifier on one encoded sequence and returns its logits.
type Inferer interface {
	Infer(inputIDs, attentionMask, tokenTypeIDs []int64) ([]float32, error)
}

// Session is an Inferer that owns native resources.
type Session interface {
	Inferer
	Close() error
}

// Engine orchestrates the encode → infer → classify pipeline.
type Engine struct {
	tokenizer *tokenizer.Tokenizer
	inferer   Inferer
	maxLength int
}

// New creates an Engine with the provided components. A maxLength <= 0 uses
// tokenizer.DefaultMaxLength.
func New(tok *tokenizer.Tokenizer, inf Inferer, maxLength int) *Engine {
	if maxLength <= 0 {
		maxLength = tokenizer.DefaultMaxLength
	}
	return &Engine{
		tokenizer: tok,
		inferer:   inf,
		maxLength: maxLength,
	}
}

// Process classifies a single text.
func (e *Engine) Process(text string) (model.Prediction, error) {
	enc := e.tokenizer.Encode(text, e.maxLength)

	logits, err := e.inferer.Infer(enc.InputIDs, enc.AttentionMask, enc.TokenTypeIDs)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("engine: %w", err)
	}

	return classifier.Classify(logits), nil
}

// MaxLength returns the fixed sequence length fed to the model.
func (e *Engine) MaxLength() int {
	return e.maxLength
}
