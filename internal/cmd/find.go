package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"dirscrub/internal/disk"
	"dirscrub/internal/scan"
	"dirscrub/internal/scrub"
)

type findFlags struct {
	target     string
	recursive  bool
	jsonOutput bool
	size       bool
}

// findEntry is one match in find output
type findEntry struct {
	Path  string `json:"path"`
	Type  string `json:"type"`
	Depth int    `json:"depth"`
	Size  *int64 `json:"size,omitempty"`
}

// newFindCommand creates the 'dirscrub find' command
func newFindCommand(g *globalFlags) *cobra.Command {
	f := &findFlags{}

	cmd := &cobra.Command{
		Use:   "find <root>",
		Short: "List what scrub would delete without deleting anything",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd, g, f, args[0])
		},
	}

	cmd.Flags().StringVarP(&f.target, "target", "t", "", "Exact name of the entries to find (required)")
	cmd.Flags().BoolVarP(&f.recursive, "recursive", "r", false, "Search the whole tree instead of direct children")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Output in JSON format")
	cmd.Flags().BoolVar(&f.size, "size", false, "Measure the size of every match")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func runFind(cmd *cobra.Command, g *globalFlags, f *findFlags, root string) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	env, err := setup(cfg)
	if err != nil {
		return err
	}
	defer env.close()

	matches, err := scrub.Discover(cmd.Context(), scrub.Options{
		Root:      root,
		Target:    f.target,
		Recursive: f.recursive,
		Config:    cfg,
		Logger:    env.logger,
	})
	if err != nil {
		return err
	}

	entries, err := findEntries(matches, f.size)
	if err != nil {
		return err
	}

	output := cmd.OutOrStdout()
	if f.jsonOutput {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(output, string(data))
		return nil
	}

	if len(entries) == 0 {
		fmt.Fprintln(output, "No matches found")
		return nil
	}

	w := tabwriter.NewWriter(output, 0, 0, 2, ' ', 0)
	if f.size {
		_, _ = fmt.Fprintln(w, "Type\tDepth\tSize\tPath")
	} else {
		_, _ = fmt.Fprintln(w, "Type\tDepth\tPath")
	}
	var total int64
	for _, e := range entries {
		if e.Size != nil {
			total += *e.Size
			_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", e.Type, e.Depth, formatBytes(*e.Size), e.Path)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", e.Type, e.Depth, e.Path)
	}
	_ = w.Flush()

	fmt.Fprintf(output, "\n%d matches", len(entries))
	if f.size {
		fmt.Fprintf(output, ", %s", formatBytes(total))
	}
	fmt.Fprintln(output)
	return nil
}

func findEntries(matches []scan.Match, measure bool) ([]findEntry, error) {
	var sizes map[string]*disk.PathStats
	if measure {
		paths := make([]string, len(matches))
		for i, m := range matches {
			paths[i] = m.Path
		}
		var err error
		sizes, err = disk.MeasureAll(paths)
		if err != nil {
			return nil, fmt.Errorf("measure matches: %w", err)
		}
	}

	entries := make([]findEntry, 0, len(matches))
	for _, m := range matches {
		e := findEntry{Path: m.Path, Type: "file", Depth: m.Depth}
		if m.IsDir {
			e.Type = "directory"
		}
		if stats, ok := sizes[m.Path]; ok && stats != nil {
			size := stats.UsedBytes
			e.Size = &size
		}
		entries = append(entries, e)
	}
	return entries, nil
}
