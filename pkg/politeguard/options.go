package politeguard

type options struct {
	intraOpThreads    int
	interOpThreads    int
	maxSequenceLength int
}

// Option configures an Analyzer.
type Option func(*options)

// WithThreads sets ONNX Runtime intra-op and inter-op thread counts for the
// analyzer's session. Zero keeps the configured default.
func WithThreads(intra, inter int) Option {
	return func(o *options) {
		o.intraOpThreads = intra
		o.interOpThreads = inter
	}
}

// WithMaxSequenceLength overrides the encoded sequence length. It must match
// what the model accepts. Zero keeps the configured default (512).
func WithMaxSequenceLength(n int) Option {
	return func(o *options) {
		o.maxSequenceLength = n
	}
}

// resolve fills unset options from the shared configuration.
func (o options) resolve(s *shared) options {
	if o.intraOpThreads <= 0 {
		o.intraOpThreads = s.intraOpThreads
	}
	if o.interOpThreads <= 0 {
		o.interOpThreads = s.interOpThreads
	}
	if o.maxSequenceLength <= 0 {
		o.maxSequenceLength = s.maxSequenceLength
	}
	return o
}
