package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/leapstack-labs/assetlineage/internal/cli/config"
	"github.com/leapstack-labs/assetlineage/internal/cli/output"
	intconfig "github.com/leapstack-labs/assetlineage/internal/config"
	"github.com/leapstack-labs/assetlineage/internal/lineage"
	"github.com/leapstack-labs/assetlineage/internal/source"
	"github.com/leapstack-labs/assetlineage/pkg/core"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded configuration.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Source builds the configured snapshot source.
func (c *CommandContext) Source() (source.Source, error) {
	if err := c.Cfg.ValidateSource(); err != nil {
		return nil, err
	}
	return newSource(c.Cfg.Source, c.Logger)
}

// ProjectSource builds the snapshot source of the project in dir, as
// configured by that project's own assetlineage.yaml.
func (c *CommandContext) ProjectSource(dir string) (source.Source, error) {
	cfg, err := intconfig.LoadFromDir(dir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("no %s found in %s", intconfig.ConfigFileName, dir)
	}
	if err := cfg.Source.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	return newSource(cfg.Source, c.Logger)
}

// newSource builds a source from validated settings. A file takes
// precedence over a command.
func newSource(sc intconfig.SourceConfig, logger *slog.Logger) (source.Source, error) {
	if sc.File != "" {
		return source.NewFileSource(sc.File), nil
	}

	src, err := source.ParseCommand(sc.Command, sc.Timeout)
	if err != nil {
		return nil, err
	}
	src.Dir = sc.Dir
	src.Logger = logger
	return src, nil
}

// LoadSnapshot loads one raw snapshot from the configured source.
func (c *CommandContext) LoadSnapshot(ctx context.Context) (*core.RawPipeline, error) {
	src, err := c.Source()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	c.Logger.Debug("snapshot loaded",
		"source", src.Key(),
		"duration", time.Since(start))
	return raw, nil
}

// LoadLineage loads one snapshot from the configured source and builds it.
func (c *CommandContext) LoadLineage(ctx context.Context) (*lineage.Lineage, error) {
	raw, err := c.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	l := lineage.Build(raw)
	c.Logger.Debug("lineage built", "assets", len(l.Assets), "unresolved", len(l.Unresolved()))
	return l, nil
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back to environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	cwd, _ := os.Getwd()
	cfg := &config.Config{
		Source: config.SourceConfig{
			File:    os.Getenv(config.EnvPrefix + "SOURCE_FILE"),
			Command: os.Getenv(config.EnvPrefix + "SOURCE_COMMAND"),
			Dir:     cwd,
			Timeout: intconfig.DefaultSourceTimeout,
		},
		Cache: config.CacheConfig{
			Size: intconfig.DefaultCacheSize,
		},
		Server: config.ServerConfig{
			Host:  intconfig.DefaultServerHost,
			Port:  intconfig.DefaultServerPort,
			Watch: true,
		},
		Verbose:      os.Getenv(config.EnvPrefix+"VERBOSE") == "true",
		OutputFormat: getEnvOrDefault(config.EnvPrefix+"OUTPUT", config.DefaultOutput),
		ProjectRoot:  cwd,
	}
	return cfg
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
