package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeOllama()
	c.normalizeIngestor()
	c.normalizeAPI()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeOllama() {
	if c.Ollama.Host == "" {
		if value, ok := os.LookupEnv("OLLAMA_HOST"); ok {
			c.Ollama.Host = value
		}
	}
	c.Ollama.Host = strings.TrimRight(strings.TrimSpace(c.Ollama.Host), "/")
	if c.Ollama.Host == "" {
		c.Ollama.Host = defaultOllamaHost
	}
	c.Ollama.GenerationModel = strings.TrimSpace(c.Ollama.GenerationModel)
	if c.Ollama.GenerationModel == "" {
		c.Ollama.GenerationModel = defaultGenerationModel
	}
	c.Ollama.EmbeddingModel = strings.TrimSpace(c.Ollama.EmbeddingModel)
	if c.Ollama.EmbeddingModel == "" {
		c.Ollama.EmbeddingModel = defaultEmbeddingModel
	}
	if c.Ollama.TimeoutSeconds <= 0 {
		c.Ollama.TimeoutSeconds = defaultOllamaTimeoutSeconds
	}
}

func (c *Config) normalizeIngestor() {
	c.Ingestor.UserAgent = strings.TrimSpace(c.Ingestor.UserAgent)
	if c.Ingestor.UserAgent == "" {
		c.Ingestor.UserAgent = defaultUserAgent
	}
	seeds := make([]string, 0, len(c.Ingestor.SeedTargets))
	for _, seed := range c.Ingestor.SeedTargets {
		if trimmed := strings.TrimSpace(seed); trimmed != "" {
			seeds = append(seeds, trimmed)
		}
	}
	c.Ingestor.SeedTargets = seeds
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	if c.API.DefaultSources <= 0 {
		c.API.DefaultSources = defaultAPIDefaultSources
	}
	if c.API.RequestTimeout <= 0 {
		c.API.RequestTimeout = defaultAPIRequestTimeout
	}
	if c.API.ShutdownSeconds <= 0 {
		c.API.ShutdownSeconds = defaultAPIShutdownSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
