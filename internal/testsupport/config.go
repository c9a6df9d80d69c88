package testsupport

import (
	"path/filepath"
	"testing"

	"foundry/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.API.Bind = "127.0.0.1:0"
	cfg.Ingestor.SeedTargets = nil

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithSeedTargets sets the seed target list on the test config.
func WithSeedTargets(urls ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Ingestor.SeedTargets = urls
	}
}

// WithAnnealingThreshold overrides the admission-control threshold.
func WithAnnealingThreshold(threshold float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Processor.AnnealingThreshold = threshold
	}
}

// WithOllamaHost points the config at a test LLM server.
func WithOllamaHost(host string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Ollama.Host = host
	}
}
