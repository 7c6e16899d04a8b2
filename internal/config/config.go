package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all politeguard configuration.
type Config struct {
	Model  ModelConfig  `yaml:"model"`
	Log    LogConfig    `yaml:"log"`
	Output OutputConfig `yaml:"output"`
}

// ModelConfig holds model and runtime settings.
type ModelConfig struct {
	Path              string `yaml:"path"`        // empty: search default locations
	RuntimeLib        string `yaml:"runtime_lib"` // empty: libonnxruntime.so beside the model
	VocabPath         string `yaml:"vocab_path"`  // empty: reserved tokens only
	MaxSequenceLength int    `yaml:"max_sequence_length"`
	IntraOpThreads    int    `yaml:"intra_op_threads"`
	InterOpThreads    int    `yaml:"inter_op_threads"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

// OutputConfig holds CLI output settings.
type OutputConfig struct {
	Pretty     bool   `yaml:"pretty"`
	Redact     bool   `yaml:"redact"` // omit analyzed text from records
	Workers    int    `yaml:"workers"`
	File       string `yaml:"file"`        // empty: stdout
	Format     string `yaml:"format"`      // file encoding: "ndjson" or "cbor"
	WebhookURL string `yaml:"webhook_url"` // empty: disabled
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Model: ModelConfig{
			MaxSequenceLength: 512,
			IntraOpThreads:    4,
			InterOpThreads:    1,
		},
		Log: LogConfig{
			Level: "info",
		},
		Output: OutputConfig{
			Workers: 4,
			Format:  "ndjson",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// POLITEGUARD_CONFIG (if set), then environment variables.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("POLITEGUARD_CONFIG"); path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads a YAML config file on top of the defaults. Keys missing from
// the file keep their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	if c.Model.MaxSequenceLength < 2 {
		return fmt.Errorf("config: max_sequence_length must be at least 2, got %d", c.Model.MaxSequenceLength)
	}
	if c.Model.IntraOpThreads < 0 || c.Model.InterOpThreads < 0 {
		return fmt.Errorf("config: thread counts must not be negative")
	}
	if c.Output.Workers < 1 {
		return fmt.Errorf("config: workers must be at least 1, got %d", c.Output.Workers)
	}
	switch c.Output.Format {
	case "", "ndjson", "cbor":
	default:
		return fmt.Errorf("config: output format must be ndjson or cbor, got %q", c.Output.Format)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Model.Path = getenv("POLITEGUARD_MODEL_PATH", cfg.Model.Path)
	cfg.Model.RuntimeLib = getenv("POLITEGUARD_ORT_LIB", cfg.Model.RuntimeLib)
	cfg.Model.VocabPath = getenv("POLITEGUARD_VOCAB_PATH", cfg.Model.VocabPath)
	cfg.Model.MaxSequenceLength = getenvInt("POLITEGUARD_MAX_SEQ_LEN", cfg.Model.MaxSequenceLength)
	cfg.Model.IntraOpThreads = getenvInt("POLITEGUARD_INTRA_OP_THREADS", cfg.Model.IntraOpThreads)
	cfg.Model.InterOpThreads = getenvInt("POLITEGUARD_INTER_OP_THREADS", cfg.Model.InterOpThreads)
	cfg.Log.Level = getenv("POLITEGUARD_LOG_LEVEL", cfg.Log.Level)
	cfg.Output.Pretty = getenvBool("POLITEGUARD_OUTPUT_PRETTY", cfg.Output.Pretty)
	cfg.Output.Redact = getenvBool("POLITEGUARD_OUTPUT_REDACT", cfg.Output.Redact)
	cfg.Output.Workers = getenvInt("POLITEGUARD_WORKERS", cfg.Output.Workers)
	cfg.Output.File = getenv("POLITEGUARD_OUTPUT_FILE", cfg.Output.File)
	cfg.Output.Format = getenv("POLITEGUARD_OUTPUT_FORMAT", cfg.Output.Format)
	cfg.Output.WebhookURL = getenv("POLITEGUARD_WEBHOOK_URL", cfg.Output.WebhookURL)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
