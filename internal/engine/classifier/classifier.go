package classifier

import (
	"math"

	"github.com/crimson-sun/politeguard/internal/model"
)

// Calibration thresholds tuned against the polite-guard model. Do not adjust
// without new evaluation data.
const (
	binaryConfidence = 0.8  // two-class model: strong vs. hedged verdict
	politeConfidence = 0.5  // four-class model: minimum confidence for Polite
	impoliteRival    = 0.25 // four-class model: p[Impolite] that downgrades Polite
	somewhatRival    = 0.15 // four-class model: p[SomewhatPolite] that downgrades Polite
)

// Four-class output layout of the polite-guard model.
const (
	classNeutral = iota
	classSomewhatPolite
	classPolite
	classImpolite
)

// NoTextDescription is returned for blank input.
const NoTextDescription = "No text to analyze"

var descriptions = map[model.Level]string{
	model.Polite:         "Text is considerate and shows respect and good manners, often including courteous phrases and a friendly tone.",
	model.SomewhatPolite: "Text is generally respectful but lacks warmth or formality, communicating with a decent level of courtesy.",
	model.Neutral:        "Text is straightforward and factual, without emotional undertones or specific attempts at politeness.",
	model.Impolite:       "Text is disrespectful or rude, often blunt or dismissive, showing a lack of consideration for the recipient's feelings.",
}

const unknownDescription = "Unable to determine politeness level"

// Describe returns the fixed one-sentence description of a level.
func Describe(level model.Level) string {
	if d, ok := descriptions[level]; ok {
		return d
	}
	return unknownDescription
}

// Classify converts raw logits into a politeness prediction. Output with an
// unsupported class count yields Neutral rather than an error.
func Classify(logits []float32) model.Prediction {
	return ClassifyProbabilities(Softmax(logits))
}

// ClassifyProbabilities maps an already-normalized probability vector to a
// prediction.
func ClassifyProbabilities(probs []float32) model.Prediction {
	if len(probs) == 0 {
		return model.Prediction{Level: model.Neutral}
	}
	idx := ArgMax(probs)
	return model.Prediction{
		Level:         mapLevel(idx, probs),
		Confidence:    probs[idx],
		Probabilities: probs,
	}
}

func mapLevel(idx int, probs []float32) model.Level {
	confidence := probs[idx]

	switch len(probs) {
	case 2:
		if idx == 0 {
			if confidence > binaryConfidence {
				return model.Polite
			}
			return model.SomewhatPolite
		}
		if confidence > binaryConfidence {
			return model.Impolite
		}
		return model.Neutral

	case 4:
		switch idx {
		case classNeutral:
			return model.Neutral
		case classSomewhatPolite:
			return model.SomewhatPolite
		case classPolite:
			if confidence < politeConfidence ||
				probs[classImpolite] > impoliteRival ||
				probs[classSomewhatPolite] > somewhatRival {
				return model.SomewhatPolite
			}
			return model.Polite
		case classImpolite:
			return model.Impolite
		}
	}
	return model.Neutral
}

// Softmax returns exp(x - max) normalized to sum to 1. Subtracting the max
// keeps large logits from overflowing.
func Softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	exp := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		exp[i] = math.Exp(float64(v - maxVal))
		sum += exp[i]
	}

	out := make([]float32, len(logits))
	for i, e := range exp {
		out[i] = float32(e / sum)
	}
	return out
}

// ArgMax returns the index of the largest value. Ties go to the lowest index.
func ArgMax(values []float32) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}
