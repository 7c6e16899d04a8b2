package politeguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/crimson-sun/politeguard/internal/config"
	"github.com/crimson-sun/politeguard/internal/engine"
	"github.com/crimson-sun/politeguard/internal/engine/inference"
	"github.com/crimson-sun/politeguard/internal/engine/tokenizer"
	"github.com/crimson-sun/politeguard/internal/readiness"
)

// ModelFileName is the model artifact looked up under models/.
const ModelFileName = "polite-guard-model.onnx"

// ErrModelNotFound is returned when no model file exists at any searched path.
var ErrModelNotFound = errors.New("politeguard: model file not found")

// shared holds the process-wide resources every Analyzer builds on.
type shared struct {
	tokenizer *tokenizer.Tokenizer
	modelPath string

	maxSequenceLength int
	intraOpThreads    int
	interOpThreads    int

	openSession func(inference.SessionOptions) (engine.Session, error)
}

var coordinator = readiness.New("politeguard", initShared)

// EnsureReady initializes the shared resources if they are not ready yet.
// Concurrent callers share one attempt; after a failure the next call retries.
func EnsureReady(ctx context.Context) error {
	if _, err := coordinator.EnsureReady(ctx); err != nil {
		return fmt.Errorf("politeguard: %w", err)
	}
	return nil
}

// ReadyState reports whether the shared resources are initialized. It never
// blocks.
func ReadyState() State {
	return coordinator.State()
}

func initShared(_ context.Context) (*shared, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	vocab := tokenizer.DefaultVocabulary()
	if cfg.Model.VocabPath != "" {
		if vocab, err = tokenizer.LoadVocabulary(cfg.Model.VocabPath); err != nil {
			return nil, err
		}
	}

	modelPath, err := resolveModelPath(cfg.Model.Path)
	if err != nil {
		return nil, err
	}

	rt, err := inference.NewRuntime(modelPath, cfg.Model.RuntimeLib)
	if err != nil {
		return nil, err
	}
	slog.Debug("model loaded", "path", modelPath, "classes", rt.NumClasses(), "vocab_size", vocab.Size())

	return &shared{
		tokenizer:         tokenizer.New(vocab),
		modelPath:         modelPath,
		maxSequenceLength: cfg.Model.MaxSequenceLength,
		intraOpThreads:    cfg.Model.IntraOpThreads,
		interOpThreads:    cfg.Model.InterOpThreads,
		openSession: func(so inference.SessionOptions) (engine.Session, error) {
			s, err := rt.NewSession(so)
			if err != nil {
				return nil, err
			}
			return s, nil
		},
	}, nil
}

// resolveModelPath returns explicit if it names a file. Without an explicit
// path it tries models/ beside the executable, then models/ in the working
// directory.
func resolveModelPath(explicit string) (string, error) {
	var candidates []string
	if explicit != "" {
		candidates = []string{explicit}
	} else {
		if exe, err := os.Executable(); err == nil {
			candidates = append(candidates, filepath.Join(filepath.Dir(exe), "models", ModelFileName))
		}
		candidates = append(candidates, filepath.Join("models", ModelFileName))
	}

	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: searched %s", ErrModelNotFound, strings.Join(candidates, ", "))
}
