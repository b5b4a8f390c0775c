package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"opencap/internal/archive"
	"opencap/internal/auth"
	"opencap/internal/config"
	"opencap/internal/ledger"
	"opencap/internal/logging"
	"opencap/internal/opencapapi"
	"opencap/internal/workspace"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	logFiles   io.Closer
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// ensureLogger builds the run logger from the loaded configuration.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.logFiles, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// closeLogger releases the log file opened by ensureLogger.
func (c *commandContext) closeLogger() {
	if c.logFiles != nil {
		_ = c.logFiles.Close()
	}
}

func (c *commandContext) tokens() (auth.TokenProvider, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return auth.NewProvider(cfg), nil
}

func (c *commandContext) apiClient(logger *slog.Logger) (*opencapapi.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	tokens, err := c.tokens()
	if err != nil {
		return nil, err
	}
	return opencapapi.NewFromConfig(cfg, tokens, logger)
}

func (c *commandContext) withLedger(fn func(*ledger.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := ledger.Open(cfg)
	if err != nil {
		return fmt.Errorf("open run ledger: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// archiver returns nil when archiving is disabled.
func (c *commandContext) archiver(ctx context.Context, logger *slog.Logger) (*archive.Archiver, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	uploader, err := archive.NewS3Uploader(ctx, cfg.Archive)
	if err != nil {
		return nil, err
	}
	return archive.New(uploader, cfg.Archive.Prefix, logger, archive.WithExclude(workspace.LockFileName)), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
