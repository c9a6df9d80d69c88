package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration for durable state and logs.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Ollama contains connection settings for the local LLM runtime used for
// structuring, embedding, and answer synthesis.
type Ollama struct {
	Host            string `toml:"host"`
	GenerationModel string `toml:"generation_model"`
	EmbeddingModel  string `toml:"embedding_model"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// Ingestor contains configuration for the fetch stage.
type Ingestor struct {
	PollIntervalSeconds int      `toml:"poll_interval_seconds"`
	FetchTimeoutSeconds int      `toml:"fetch_timeout_seconds"`
	UserAgent           string   `toml:"user_agent"`
	SeedTargets         []string `toml:"seed_targets"`
}

// Processor contains configuration for the processing stage, including the
// knowledge annealing threshold used for admission control.
type Processor struct {
	PollIntervalSeconds int     `toml:"poll_interval_seconds"`
	AnnealingThreshold  float64 `toml:"annealing_threshold"`
}

// API contains configuration for the query service.
type API struct {
	Bind            string `toml:"bind"`
	DefaultSources  int    `toml:"default_sources"`
	RequestTimeout  int    `toml:"request_timeout"`
	ShutdownSeconds int    `toml:"shutdown_seconds"`
}

// Supervisor contains configuration for the stage process supervisor.
type Supervisor struct {
	MonitorIntervalSeconds int `toml:"monitor_interval_seconds"`
	StopGraceSeconds       int `toml:"stop_grace_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Foundry.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories (queue and knowledge databases live
//     under the data directory)
//   - Ollama: LLM host and model names for structuring, embedding, answers
//   - Ingestor: fetch-stage polling and seed targets
//   - Processor: processing-stage polling and the annealing threshold
//   - API: query service bind address
//   - Supervisor: monitor tick and shutdown grace period
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Ollama     Ollama     `toml:"ollama"`
	Ingestor   Ingestor   `toml:"ingestor"`
	Processor  Processor  `toml:"processor"`
	API        API        `toml:"api"`
	Supervisor Supervisor `toml:"supervisor"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/foundry/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("foundry.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories required for pipeline operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDatabasePath returns the location of the work-queue SQLite database.
func (c *Config) QueueDatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "foundry.db")
}

// KnowledgeDatabasePath returns the location of the knowledge-record SQLite database.
func (c *Config) KnowledgeDatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "knowledge.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
