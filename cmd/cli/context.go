package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/MediaDNA/internal/config"
	"github.com/himanishpuri/MediaDNA/pkg/logger"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/storage"
)

type globalFlags struct {
	config     string
	dbKind     string
	dbLocation string
	logLevel   string
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
	log        *logger.Logger
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig loads the configuration once, applies the global flags and
// configures the process logger.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.OverrideStore(c.flags.dbKind, c.flags.dbLocation); err != nil {
			c.configErr = err
			return
		}
		if lvl := strings.TrimSpace(c.flags.logLevel); lvl != "" {
			cfg.Logging.Level = strings.ToLower(lvl)
			if err := cfg.Validate(); err != nil {
				c.configErr = err
				return
			}
		}
		c.config = cfg
		c.log = logger.Configure(cfg.LoggerConfig())
	})
	return c.config, c.configErr
}

func (c *commandContext) serviceLogger() *logger.Logger {
	if c.log == nil {
		return logger.GetLogger()
	}
	return c.log
}

// withService opens the configured store, runs fn and closes it again.
// Mutating commands hold the writer lock for the whole run.
func (c *commandContext) withService(ctx context.Context, write bool, extra []mediadna.Option, fn func(mediadna.Service) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	if write {
		lock, err := storage.AcquireLock(cfg.Store.LockPath)
		if err != nil {
			if errors.Is(err, storage.ErrLocked) {
				return fmt.Errorf("another mediadna process is writing to this index (%s)", cfg.Store.LockPath)
			}
			return err
		}
		defer lock.Release()
	}

	opts := append(cfg.ServiceOptions(c.serviceLogger()), extra...)
	svc, err := mediadna.NewService(opts...)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(svc)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
