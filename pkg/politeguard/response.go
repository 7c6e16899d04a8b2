package politeguard

import (
	"time"

	"github.com/crimson-sun/politeguard/internal/engine/classifier"
	"github.com/crimson-sun/politeguard/internal/model"
	"github.com/crimson-sun/politeguard/internal/readiness"
)

// Level is a politeness category.
type Level = model.Level

const (
	Polite         = model.Polite
	SomewhatPolite = model.SomewhatPolite
	Neutral        = model.Neutral
	Impolite       = model.Impolite
)

// ParseLevel converts a level name such as "SomewhatPolite" to a Level.
func ParseLevel(s string) (Level, error) {
	return model.ParseLevel(s)
}

// State is the process-wide readiness of the shared resources.
type State = readiness.State

const (
	NotReady     = readiness.NotReady
	Initializing = readiness.Initializing
	Ready        = readiness.Ready
)

// Response is the result of analyzing one text.
// This is the stable public type; internal representations may evolve
// independently without breaking consumers.
type Response struct {
	Level         Level         `json:"level"`
	Description   string        `json:"description"`
	InferenceTime time.Duration `json:"-"` // encode + infer + interpret; 0 for blank input
}

// InferenceTimeMs returns InferenceTime in whole milliseconds.
func (r Response) InferenceTimeMs() int64 {
	return r.InferenceTime.Milliseconds()
}

// Description returns the fixed description reported for level.
func Description(level Level) string {
	return classifier.Describe(level)
}
