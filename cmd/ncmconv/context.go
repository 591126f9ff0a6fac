package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"ncm-converter/internal/config"
	"ncm-converter/internal/logging"
)

type commandContext struct {
	configFlag    *string
	logLevelFlag  *string
	logFormatFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	logOnce  sync.Once
	logger   *slog.Logger
	logClose func() error
	logErr   error
}

func newCommandContext(configFlag, logLevelFlag, logFormatFlag *string) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		logLevelFlag:  logLevelFlag,
		logFormatFlag: logFormatFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if err := config.LoadDotEnv(".env"); err != nil {
			c.configErr = err
			return
		}
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if level := flagValue(c.logLevelFlag); level != "" {
			if !logging.ValidLevel(level) {
				c.configErr = fmt.Errorf("--log-level: unsupported value %q", level)
				return
			}
			cfg.Logging.Level = level
		}
		if format := flagValue(c.logFormatFlag); format != "" {
			cfg.Logging.Format = format
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.logOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logErr = err
			return
		}
		logger, closeFn, err := logging.New(logging.Options{
			Level:    cfg.Logging.Level,
			Format:   cfg.Logging.Format,
			FilePath: cfg.Logging.File,
		})
		if err != nil {
			c.logErr = err
			return
		}
		c.logger = logger.With("component", "cli")
		c.logClose = closeFn
	})
	return c.logger, c.logErr
}

func (c *commandContext) close() error {
	if c.logClose == nil {
		return nil
	}
	return c.logClose()
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*flag))
}
