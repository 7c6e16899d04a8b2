package model

// Prediction is the interpreted output of one model invocation.
type Prediction struct {
	Level         Level
	Confidence    float32   // probability of the winning class
	Probabilities []float32 // softmax over the raw logits
}
