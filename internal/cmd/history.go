package cmd

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dirscrub/internal/database"
)

type historyFlags struct {
	recent      int
	stats       bool
	days        int
	failures    int
	runID       string
	pathPattern string
	prune       int
	jsonOutput  bool
}

// errNoDatabase is returned when history is requested without a database
var errNoDatabase = errors.New("no history database configured (use --db or database_path)")

// newHistoryCommand creates the 'dirscrub history' command
func newHistoryCommand(g *globalFlags) *cobra.Command {
	f := &historyFlags{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the scrub history database",
		Example: `  dirscrub history --db ~/.dirscrub.db --recent 10   # 10 most recent runs
  dirscrub history --stats --days 7                  # totals for the last week
  dirscrub history --failures 20                     # 20 most recent failed entries
  dirscrub history --run <id>                        # every entry of one run
  dirscrub history --path '%/node_modules'           # entries by path pattern
  dirscrub history --prune 90                        # drop runs older than 90 days`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, g, f)
		},
	}

	cmd.Flags().IntVar(&f.recent, "recent", 0, "Show N most recent runs")
	cmd.Flags().BoolVar(&f.stats, "stats", false, "Show scrub statistics")
	cmd.Flags().IntVar(&f.days, "days", 30, "Number of days for statistics")
	cmd.Flags().IntVar(&f.failures, "failures", 0, "Show N most recent failed entries")
	cmd.Flags().StringVar(&f.runID, "run", "", "Show every entry of one run")
	cmd.Flags().StringVar(&f.pathPattern, "path", "", "Filter entries by path pattern (SQL LIKE syntax)")
	cmd.Flags().IntVar(&f.prune, "prune", 0, "Delete runs older than N days")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func runHistory(cmd *cobra.Command, g *globalFlags, f *historyFlags) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DatabasePath == "" {
		return usageError(errNoDatabase)
	}

	db, err := database.NewScrubDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open history database %s: %w", cfg.DatabasePath, err)
	}
	defer db.Close()

	output := cmd.OutOrStdout()

	switch {
	case f.prune > 0:
		n, err := db.DeleteOldRuns(f.prune)
		if err != nil {
			return fmt.Errorf("prune history: %w", err)
		}
		if err := db.Vacuum(); err != nil {
			return fmt.Errorf("vacuum history: %w", err)
		}
		fmt.Fprintf(output, "Deleted %d runs older than %d days\n", n, f.prune)
		return nil
	case f.stats:
		return showStats(output, db, f.days, f.jsonOutput)
	case f.runID != "":
		return showRun(output, db, f.runID, f.jsonOutput)
	case f.failures > 0:
		records, err := db.GetFailures(f.failures)
		if err != nil {
			return fmt.Errorf("get failures: %w", err)
		}
		return printEntries(output, records, f.jsonOutput)
	case f.pathPattern != "":
		records, err := db.GetEntriesByPath(f.pathPattern)
		if err != nil {
			return fmt.Errorf("query by path: %w", err)
		}
		return printEntries(output, records, f.jsonOutput)
	default:
		limit := f.recent
		if limit <= 0 {
			limit = 10
		}
		runs, err := db.GetRecentRuns(limit)
		if err != nil {
			return fmt.Errorf("get recent runs: %w", err)
		}
		return printRuns(output, runs, f.jsonOutput)
	}
}

func showStats(w io.Writer, db *database.ScrubDB, days int, jsonOutput bool) error {
	stats, err := db.GetStats(days)
	if err != nil {
		return fmt.Errorf("get statistics: %w", err)
	}

	if jsonOutput {
		return writeJSON(w, stats)
	}

	fmt.Fprintf(w, "Scrub Statistics (Last %d days)\n", days)
	fmt.Fprintf(w, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Fprintf(w, "Runs:             %d (%d failed)\n", stats.TotalRuns, stats.FailedRuns)
	fmt.Fprintf(w, "Removed:          %d\n", stats.TotalRemoved)
	fmt.Fprintf(w, "Already Gone:     %d\n", stats.TotalAlreadyGone)
	fmt.Fprintf(w, "Failed:           %d\n", stats.TotalFailed)
	fmt.Fprintf(w, "Remediated:       %d\n", stats.TotalRemediated)
	fmt.Fprintf(w, "Space Freed:      %s\n", formatBytes(stats.TotalBytesFreed))

	if len(stats.FailuresByKind) > 0 {
		kinds := make([]string, 0, len(stats.FailuresByKind))
		for kind := range stats.FailuresByKind {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)

		fmt.Fprintln(w, "\nFailures By Kind:")
		for _, kind := range kinds {
			fmt.Fprintf(w, "  %-18s %d\n", kind, stats.FailuresByKind[kind])
		}
	}
	return nil
}

func showRun(w io.Writer, db *database.ScrubDB, id string, jsonOutput bool) error {
	run, err := db.GetRun(id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}
	entries, err := db.GetRunEntries(id)
	if err != nil {
		return fmt.Errorf("get run entries: %w", err)
	}

	if jsonOutput {
		return writeJSON(w, struct {
			Run     *database.RunRecord    `json:"run"`
			Entries []database.EntryRecord `json:"entries"`
		}{run, entries})
	}

	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintf(w, "Root:      %s\n", run.Root)
	fmt.Fprintf(w, "Target:    %s (recursive=%v)\n", run.Target, run.Recursive)
	fmt.Fprintf(w, "Started:   %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Status:    %s\n", run.Status)
	fmt.Fprintf(w, "Peak:      %d in flight\n", run.PeakInFlight)
	if run.FirstError != "" {
		fmt.Fprintf(w, "Error:     %s\n", run.FirstError)
	}
	fmt.Fprintln(w)
	return printEntries(w, entries, false)
}

func printRuns(w io.Writer, runs []database.RunRecord, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(w, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No records found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tStarted\tStatus\tTarget\tRemoved\tFailed\tFreed\tRoot")
	_, _ = fmt.Fprintln(tw, "--\t-------\t------\t------\t-------\t------\t-----\t----")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, r.Target,
			r.Removed, r.Failed, formatBytes(r.BytesFreed), r.Root)
	}
	return tw.Flush()
}

func printEntries(w io.Writer, records []database.EntryRecord, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(w, records)
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "Timestamp\tOutcome\tType\tDepth\tSize\tPath\tError")
	_, _ = fmt.Fprintln(tw, "---------\t-------\t----\t-----\t----\t----\t-----")
	for _, r := range records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.Timestamp.Format("2006-01-02 15:04:05"), r.Outcome, r.ObjectType, r.Depth,
			formatBytes(r.Size), r.Path, r.ErrorKind)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
