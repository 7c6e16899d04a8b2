package inference

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// DefaultLibraryName is looked up beside the model when no explicit runtime
// library path is configured.
const DefaultLibraryName = "libonnxruntime.so"

// ortEnvMu serializes process-wide ONNX Runtime initialization.
var ortEnvMu sync.Mutex

// initORT initializes the ONNX Runtime environment from libPath. Once it has
// succeeded later calls are no-ops; a failure is not remembered, so the next
// call tries again with whatever path it is given.
func initORT(libPath string) error {
	ortEnvMu.Lock()
	defer ortEnvMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("load %s: %w", libPath, err)
	}
	return nil
}

// ErrClosed is returned by Infer after Close.
var ErrClosed = errors.New("inference: session closed")

var requiredInputs = []string{"input_ids", "attention_mask", "token_type_ids"}

// Runtime is the process-wide handle shared by every session: an initialized
// ONNX Runtime environment plus the validated model layout.
type Runtime struct {
	modelPath  string
	inputNames []string
	outputName string
	numClasses int64 // <= 0 when the model leaves the class dimension dynamic
}

// NewRuntime initializes ONNX Runtime from libPath and inspects the model at
// modelPath. An empty libPath means DefaultLibraryName in the model directory.
func NewRuntime(modelPath, libPath string) (*Runtime, error) {
	if libPath == "" {
		libPath = filepath.Join(filepath.Dir(modelPath), DefaultLibraryName)
	}
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}

	inputNames, err := validateInputs(inputs)
	if err != nil {
		return nil, err
	}
	outputName, numClasses, err := validateOutputs(outputs)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		modelPath:  modelPath,
		inputNames: inputNames,
		outputName: outputName,
		numClasses: numClasses,
	}, nil
}

// ModelPath returns the model file the runtime was built from.
func (r *Runtime) ModelPath() string {
	return r.modelPath
}

// NumClasses returns the model's class count, or 0 if it is only known at
// inference time.
func (r *Runtime) NumClasses() int {
	if r.numClasses <= 0 {
		return 0
	}
	return int(r.numClasses)
}

// SessionOptions tunes ONNX Runtime threading for one session.
type SessionOptions struct {
	IntraOpThreads int
	InterOpThreads int
}

// NewSession opens an inference session owned exclusively by the caller, who
// must Close it.
func (r *Runtime) NewSession(so SessionOptions) (*Session, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	if so.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(so.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("onnx: set intra-op threads: %w", err)
		}
	}
	if so.InterOpThreads > 0 {
		if err := opts.SetInterOpNumThreads(so.InterOpThreads); err != nil {
			return nil, fmt.Errorf("onnx: set inter-op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(
		r.modelPath,
		r.inputNames,
		[]string{r.outputName},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	return &Session{session: session, numClasses: r.numClasses}, nil
}

// validateInputs checks that the model has the expected BERT-style inputs
// and returns them in the correct order.
func validateInputs(inputs []ort.InputOutputInfo) ([]string, error) {
	nameSet := make(map[string]bool, len(inputs))
	for _, inp := range inputs {
		nameSet[inp.Name] = true
	}
	for _, name := range requiredInputs {
		if !nameSet[name] {
			return nil, fmt.Errorf("onnx: model missing required input %q", name)
		}
	}
	return requiredInputs, nil
}

// validateOutputs expects the first output to be logits shaped
// [batch, classes] and returns its name and class count.
func validateOutputs(outputs []ort.InputOutputInfo) (string, int64, error) {
	if len(outputs) == 0 {
		return "", 0, fmt.Errorf("onnx: model has no outputs")
	}
	dims := outputs[0].Dimensions
	if len(dims) != 2 {
		return "", 0, fmt.Errorf("onnx: expected 2D logits output, got %v", dims)
	}
	return outputs[0].Name, dims[1], nil
}

// Session runs single-row classification. Infer is safe for concurrent use:
// every call allocates its own tensors.
type Session struct {
	session    *ort.DynamicAdvancedSession
	numClasses int64

	closeOnce sync.Once
	closeErr  error
	mu        sync.RWMutex
	closed    bool
}

// Infer runs the model on one encoded sequence and returns the logits.
func (s *Session) Infer(inputIDs, attentionMask, tokenTypeIDs []int64) ([]float32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	shape := ort.NewShape(1, int64(len(inputIDs)))

	tIDs, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create input_ids tensor: %w", err)
	}
	defer tIDs.Destroy()

	tMask, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create attention_mask tensor: %w", err)
	}
	defer tMask.Destroy()

	tTypes, err := ort.NewTensor(shape, tokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create token_type_ids tensor: %w", err)
	}
	defer tTypes.Destroy()

	// A nil output lets onnxruntime allocate it when the class count is dynamic.
	outputs := []ort.Value{nil}
	if s.numClasses > 0 {
		tOut, err := ort.NewEmptyTensor[float32](ort.NewShape(1, s.numClasses))
		if err != nil {
			return nil, fmt.Errorf("onnx: failed to create output tensor: %w", err)
		}
		outputs[0] = tOut
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	err = s.session.Run([]ort.Value{tIDs, tMask, tTypes}, outputs)
	if err != nil {
		return nil, fmt.Errorf("onnx: inference failed: %w", err)
	}

	tOut, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("onnx: unexpected output type %T", outputs[0])
	}

	// Copy data out before tensor is destroyed.
	src := tOut.GetData()
	logits := make([]float32, len(src))
	copy(logits, src)
	return logits, nil
}

// Close releases the session. Calls after the first are no-ops; Close waits
// for in-flight Infer calls to finish.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
		s.closeErr = s.session.Destroy()
	})
	return s.closeErr
}
