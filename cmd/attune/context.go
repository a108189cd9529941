package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"attune/internal/cache"
	"attune/internal/config"
	"attune/internal/logging"
	"attune/internal/policy"
	"attune/internal/xattr"
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
		cfg, err := config.Load(path)
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

// env bundles the stores every data command needs.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *cache.Store
	cache    *cache.Cache
	policies *policy.Store
	attrs    *xattr.Store
}

func (c *commandContext) openEnv() (*env, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	store, err := cache.Open(cfg.CachePath())
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	policies, err := policy.LoadWithLegacyImport(cfg.PolicyPath(), cfg.LegacyPolicyPath())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load sources: %w", err)
	}
	return &env{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		cache:    cache.New(store, logger),
		policies: policies,
		attrs:    xattr.NewStore(),
	}, nil
}

func (e *env) Close() {
	_ = e.store.Close()
}

// withLock runs fn while holding the single-writer instance lock.
// Commands that modify files or the cache take it; read-only commands
// do not.
func (c *commandContext) withLock(fn func(*env) error) error {
	e, err := c.openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	lock := flock.New(e.cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another attune instance is already running")
	}
	defer func() { _ = lock.Unlock() }()

	return fn(e)
}

func (c *commandContext) withEnv(fn func(*env) error) error {
	e, err := c.openEnv()
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(e)
}
