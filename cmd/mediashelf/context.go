package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"mediashelf/internal/config"
	"mediashelf/internal/logging"
	"mediashelf/internal/media"
	"mediashelf/internal/metrics"
	"mediashelf/internal/registry"
	"mediashelf/internal/sharing"
	"mediashelf/internal/tokenauth"
)

type commandContext struct {
	configFlag  *string
	libraryFlag *string
	logLevel    *string

	configOnce sync.Once
	config     *config.AppConfig
	configErr  error
}

func newCommandContext(configFlag, libraryFlag, logLevel *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		libraryFlag: libraryFlag,
		logLevel:    logLevel,
	}
}

func (c *commandContext) ensureConfig() (*config.AppConfig, error) {
	c.configOnce.Do(func() {
		// .env is optional
		_ = godotenv.Load()

		loader := config.NewConfigLoader()
		loader.SetConfigFile(strings.TrimSpace(*c.configFlag))
		if lib := strings.TrimSpace(*c.libraryFlag); lib != "" {
			loader.Set("library.path", lib)
		}
		if level := strings.TrimSpace(*c.logLevel); level != "" {
			loader.Set("logging.level", level)
		}

		cfg, err := loader.Load()
		if err != nil {
			c.configErr = err
			return
		}
		logging.InitGlobalLogger(logging.LogLevel(cfg.Logging.Level), cfg.Logging.Format)
		c.config = cfg
	})
	return c.config, c.configErr
}

// dataDir resolves sharing.data_dir, defaulting to the user config directory
func (c *commandContext) dataDir(cfg *config.AppConfig) (string, error) {
	dir := cfg.Sharing.DataDir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("resolve data directory: %w", err)
		}
		dir = filepath.Join(base, "mediashelf")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	cfg.Sharing.DataDir = dir
	return dir, nil
}

func newProvider(cfg *config.AppConfig) media.Provider {
	return media.Chain(
		media.NewFFmpegProvider(media.FFmpegConfig{
			FFmpegPath:     cfg.Import.FFmpegPath,
			FFprobePath:    cfg.Import.FFprobePath,
			ThumbnailWidth: cfg.Import.ThumbnailWidth,
		}),
		media.NewNativeAudioProvider(),
	)
}

func newRegistry(cfg *config.AppConfig) (*registry.Registry, error) {
	return registry.New(registry.Options{
		DocumentFormat: cfg.Library.DocumentFormat,
		AuditLogMax:    cfg.Library.AuditLogMax,
		HostNickname:   cfg.Library.HostNickname,
		Provider:       newProvider(cfg),
		MoveTimeout:    cfg.Import.MoveTimeout,
		Metrics:        metrics.Default(),
	})
}

// withLibrary opens the configured library for the duration of fn
func (c *commandContext) withLibrary(ctx context.Context, fn func(reg *registry.Registry, lib *registry.Library) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if cfg.Library.Path == "" {
		return errors.New("no library configured; pass --library or set library.path")
	}

	reg, err := newRegistry(cfg)
	if err != nil {
		return err
	}
	defer reg.Close()

	lib, err := reg.Open(ctx, cfg.Library.Path)
	if err != nil {
		return err
	}
	return fn(reg, lib)
}

// withUsers opens the shared-user database for the duration of fn
func (c *commandContext) withUsers(fn func(users *sharing.UserService, db *gorm.DB) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	dir, err := c.dataDir(cfg)
	if err != nil {
		return err
	}

	hwid := tokenauth.HardwareID()
	secret, err := tokenauth.HostSecret(dir, hwid)
	if err != nil {
		return err
	}
	db, err := sharing.OpenDB(dir)
	if err != nil {
		return err
	}
	defer sharing.Close(db)

	return fn(sharing.NewUserService(db, tokenauth.NewIssuer(hwid, secret)), db)
}
