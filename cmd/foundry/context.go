package main

import (
	"strings"
	"sync"

	"foundry/internal/config"
	"foundry/internal/knowledge"
	"foundry/internal/queue"
	"foundry/internal/services"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "", "", "load configuration", err)
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "", "", "prepare data directories", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configFilePath() string {
	if c.configFlag != nil {
		return strings.TrimSpace(*c.configFlag)
	}
	return ""
}

// openQueue opens the queue store; callers own the returned store.
func (c *commandContext) openQueue() (*queue.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return queue.Open(cfg)
}

// openKnowledge opens the knowledge store; callers own the returned store.
func (c *commandContext) openKnowledge() (*knowledge.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return knowledge.Open(cfg)
}
