package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dirscrub/internal/database"
	"dirscrub/internal/scrub"
)

type scrubFlags struct {
	target      string
	recursive   bool
	permits     int
	noRemediate bool
	measure     bool
}

// newScrubCommand creates the 'dirscrub scrub' command
func newScrubCommand(g *globalFlags) *cobra.Command {
	f := &scrubFlags{}

	cmd := &cobra.Command{
		Use:   "scrub <root>",
		Short: "Delete every entry named --target under root",
		Long: `Delete every file or directory named --target.

Without --recursive only the direct children of root are checked.
With --recursive the whole tree is searched and nested matches are
removed before the matches that contain them.`,
		Example: `  dirscrub scrub ~/code --target node_modules --recursive
  dirscrub scrub . --target .cache`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrub(cmd, g, f, args[0])
		},
	}

	cmd.Flags().StringVarP(&f.target, "target", "t", "", "Exact name of the entries to delete (required)")
	cmd.Flags().BoolVarP(&f.recursive, "recursive", "r", false, "Search the whole tree instead of direct children")
	cmd.Flags().IntVar(&f.permits, "permits", 0, "Max deletions in flight (overrides config)")
	cmd.Flags().BoolVar(&f.noRemediate, "no-remediate", false, "Fail on permission errors instead of repairing them")
	cmd.Flags().BoolVar(&f.measure, "measure", false, "Measure and report freed bytes")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func runScrub(cmd *cobra.Command, g *globalFlags, f *scrubFlags, root string) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if f.permits < 0 {
		return usageError(fmt.Errorf("--permits must be positive, got %d", f.permits))
	}
	if f.permits > 0 {
		if f.recursive {
			cfg.Concurrency.Permits = f.permits
		} else {
			cfg.Concurrency.ShallowPermits = f.permits
		}
	}
	if f.noRemediate {
		cfg.Remediation.Disabled = true
	}

	env, err := setup(cfg)
	if err != nil {
		return err
	}
	defer env.close()

	var db *database.ScrubDB
	if cfg.DatabasePath != "" {
		db, err = database.NewScrubDB(cfg.DatabasePath)
		if err != nil {
			// History is optional; the scrub still runs
			env.logger.Error("Failed to open history database", "path", cfg.DatabasePath, "error", err)
		} else {
			defer func() {
				if err := db.Close(); err != nil {
					env.logger.Error("Failed to close history database", "error", err)
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := newPrinter(cmd.OutOrStdout())
	report, err := scrub.Run(ctx, scrub.Options{
		Root:      root,
		Target:    f.target,
		Recursive: f.recursive,
		Config:    cfg,
		Logger:    env.logger,
		Progress:  out.Line,
		DB:        db,
		Measure:   f.measure,
	})
	if report != nil && report.BytesFreed > 0 {
		out.Line(fmt.Sprintf("freed %s", formatBytes(report.BytesFreed)))
	}
	if report != nil && report.Failed > 0 {
		return fmt.Errorf("%d of %d entries could not be deleted: %w", report.Failed, report.Matches, err)
	}
	return err
}
