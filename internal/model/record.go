package model

// Record is one analyzed text as written by the CLI outputs.
type Record struct {
	Index       int    `json:"index" cbor:"index"`
	Text        string `json:"text,omitempty" cbor:"text,omitempty"`
	Level       Level  `json:"level" cbor:"level"`
	Description string `json:"description" cbor:"description"`
	InferenceMs int64  `json:"inference_ms" cbor:"inference_ms"`
}
