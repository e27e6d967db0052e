// Package cli implements the bom command-line interface.
package cli

import (
	"context"
	stderrors "errors"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mbuck21/BOM-Manager/pkg/backend"
	"github.com/mbuck21/BOM-Manager/pkg/buildinfo"
	"github.com/mbuck21/BOM-Manager/pkg/config"
)

// =============================================================================
// Constants
// =============================================================================

const appName = "bom"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// ErrReported is returned when a command failed and its errors were
// already printed. Callers should exit non-zero without printing again.
var ErrReported = stderrors.New("command failed")

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	jsonOut    bool
	verbose    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// SetVerbose pins the logger to debug level regardless of the config file.
func (c *CLI) SetVerbose(v bool) {
	c.verbose = v
	if v {
		c.SetLogLevel(LogDebug)
	}
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "bom manages multi-level bills of materials",
		Long:          `bom keeps a catalog of parts and a quantity-weighted parent/child graph of them, computes attribute and weight rollups, and records content-addressed snapshots that can be diffed.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(log.WithContext(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $"+config.EnvVar+" or ./"+config.FileName+")")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "print the raw result envelope as JSON")

	root.AddCommand(c.partCommand())
	root.AddCommand(c.relCommand())
	root.AddCommand(c.childrenCommand())
	root.AddCommand(c.parentsCommand())
	root.AddCommand(c.subgraphCommand())
	root.AddCommand(c.rollupCommand())
	root.AddCommand(c.snapshotCommand())
	root.AddCommand(c.diffCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.importCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Backend Factory
// =============================================================================

// loadConfig resolves the config file and applies its log level unless
// --verbose was given.
func (c *CLI) loadConfig() (config.Config, error) {
	cfg, err := config.Resolve(c.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if !c.verbose {
		if lvl, err := log.ParseLevel(strings.ToLower(cfg.Log.Level)); err == nil {
			c.SetLogLevel(lvl)
		}
	}
	if cfg.Source != "" {
		c.Logger.Debug("loaded config", "path", cfg.Source)
	}
	return cfg, nil
}

// withBackend opens the configured backend, runs fn and closes it.
func (c *CLI) withBackend(ctx context.Context, fn func(*backend.Backend) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	b, err := config.Open(ctx, cfg, c.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			c.Logger.Warn("close backend", "err", cerr)
		}
	}()
	return fn(b)
}
