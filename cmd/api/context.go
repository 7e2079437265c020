package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/anime-shed/idcard-inspector-go/internal/config"
	"github.com/anime-shed/idcard-inspector-go/internal/container"
	"github.com/anime-shed/idcard-inspector-go/internal/logger"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	container *container.Container
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if c.configFlag != nil {
			if path := strings.TrimSpace(*c.configFlag); path != "" {
				os.Setenv("CONFIG_FILE", path)
			}
		}
		cfg, err := config.LoadFromEnv()
		if err != nil {
			c.configErr = fmt.Errorf("failed to load config: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureContainer builds the dependency graph once per invocation.
func (c *commandContext) ensureContainer(cmd *cobra.Command) (*container.Container, error) {
	if c.container != nil {
		return c.container, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	ctr, err := container.NewContainer(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize container: %w", err)
	}
	c.container = ctr
	return ctr, nil
}

func (c *commandContext) close() error {
	if c.container == nil {
		return nil
	}
	err := c.container.Close()
	c.container = nil
	if err != nil {
		logger.WithError(err).Warn("Shutdown incomplete")
	}
	return err
}
