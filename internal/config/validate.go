package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateOllama(); err != nil {
		return err
	}
	if err := c.validateIntervals(); err != nil {
		return err
	}
	if err := c.validateProcessor(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateOllama() error {
	parsed, err := url.Parse(c.Ollama.Host)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("ollama.host must be a full URL (got %q)", c.Ollama.Host)
	}
	if c.Ollama.GenerationModel == "" {
		return errors.New("ollama.generation_model must be set")
	}
	if c.Ollama.EmbeddingModel == "" {
		return errors.New("ollama.embedding_model must be set")
	}
	return nil
}

func (c *Config) validateIntervals() error {
	return ensurePositiveMap(map[string]int{
		"ingestor.poll_interval_seconds":      c.Ingestor.PollIntervalSeconds,
		"ingestor.fetch_timeout_seconds":      c.Ingestor.FetchTimeoutSeconds,
		"processor.poll_interval_seconds":     c.Processor.PollIntervalSeconds,
		"ollama.timeout_seconds":              c.Ollama.TimeoutSeconds,
		"supervisor.monitor_interval_seconds": c.Supervisor.MonitorIntervalSeconds,
		"supervisor.stop_grace_seconds":       c.Supervisor.StopGraceSeconds,
	})
}

func (c *Config) validateProcessor() error {
	if c.Processor.AnnealingThreshold < -1 || c.Processor.AnnealingThreshold > 1 {
		return errors.New("processor.annealing_threshold must be a cosine similarity between -1 and 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive (got %d)", key, value)
		}
	}
	return nil
}
