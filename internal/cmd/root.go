package cmd

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"dirscrub/internal/config"
	"dirscrub/internal/logging"
	"dirscrub/internal/metrics"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// globalFlags holds the persistent flags shared by every subcommand
type globalFlags struct {
	configPath  string
	logDir      string
	dbPath      string
	metricsPort int
	verbose     bool
}

// NewRootCommand creates and returns the root cobra command for dirscrub
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "dirscrub",
		Short: "Delete every entry with a given name under a directory",
		Long: `dirscrub removes every file or directory whose name equals a target
(node_modules, target, .cache, ...) either among the direct children of a
root or anywhere beneath it.

Nested matches are removed innermost first, deletions run with bounded
concurrency, and permission failures are repaired and retried once.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Path to YAML config file")
	pf.StringVar(&g.logDir, "log-dir", "", "Also write logs to dirscrub.log in this directory")
	pf.StringVar(&g.dbPath, "db", "", "Path to the scrub history database")
	pf.IntVar(&g.metricsPort, "metrics-port", 0, "Serve Prometheus metrics on this port while running")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	cmd.AddCommand(newScrubCommand(g))
	cmd.AddCommand(newFindCommand(g))
	cmd.AddCommand(newHistoryCommand(g))

	return cmd
}

// usageError marks err as a usage problem so it maps to the invalid-config exit code
func usageError(err error) error {
	return fmt.Errorf("%w: %w", config.ErrInvalid, err)
}

// exactArgs is cobra.ExactArgs with usage errors marked
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

// loadConfig reads --config (or the defaults) and applies flag overrides
func (g *globalFlags) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		loaded, err := config.Load(g.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if g.logDir != "" {
		dir, err := filepath.Abs(g.logDir)
		if err != nil {
			return nil, usageError(err)
		}
		cfg.Logging.Dir = dir
	}
	if g.dbPath != "" {
		cfg.DatabasePath = g.dbPath
	}
	if g.metricsPort != 0 {
		cfg.Prometheus.Port = g.metricsPort
	}
	if g.verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// runtimeEnv is what a command needs once config is settled
type runtimeEnv struct {
	cfg    *config.Config
	std    *log.Logger
	logger *logging.Leveled
	close  func()
}

// setup validates cfg, opens the log and starts the metrics endpoint when configured
func setup(cfg *config.Config) (*runtimeEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	std, closeLog := logging.New(cfg.Logging)
	env := &runtimeEnv{
		cfg:    cfg,
		std:    std,
		logger: logging.NewLeveled(std, cfg.Logging.Level),
	}

	metrics.Init()
	if cfg.Prometheus.Port > 0 {
		metrics.StartServer(cfg.PrometheusAddress(), std)
	}

	env.close = func() {
		if cfg.Prometheus.Port > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metrics.Shutdown(ctx, std)
		}
		if err := closeLog(); err != nil {
			std.Printf("failed to close log file: %v", err)
		}
	}
	return env, nil
}
