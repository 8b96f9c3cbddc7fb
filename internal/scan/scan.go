package scan

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"dirscrub/internal/faults"
	"dirscrub/internal/logging"
	"dirscrub/internal/workpool"
)

// Logger interface for structured logging
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// Match is one entry whose base name equals the target
type Match struct {
	Path  string
	IsDir bool // from the entry's own type; a symlink is never a dir
	Depth int  // path components below the root, children are 1
}

// Options select what Discover looks for
type Options struct {
	Root      string
	Target    string
	Recursive bool
	SkipDirs  []string // directory names never descended into
}

// Scanner finds matches on the blocking worker pool
type Scanner struct {
	logger Logger
	pool   *workpool.Pool
}

// NewScanner creates a new Scanner. A nil logger discards output.
func NewScanner(logger Logger, pool *workpool.Pool) *Scanner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scanner{logger: logger, pool: pool}
}

// CheckRoot verifies root exists, and in recursive mode that it is a directory
func CheckRoot(root string, recursive bool) error {
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return faults.New(faults.ErrNotFound, root, err)
		}
		return faults.New(faults.ErrTraversal, root, err)
	}
	if recursive && !info.IsDir() {
		return faults.New(faults.ErrNotDirectory, root, nil)
	}
	return nil
}

// Discover returns every entry under opts.Root named opts.Target. The root
// itself is never a match. Walk order is lexical.
func (s *Scanner) Discover(ctx context.Context, opts Options) ([]Match, error) {
	if err := CheckRoot(opts.Root, opts.Recursive); err != nil {
		return nil, err
	}

	var matches []Match
	err := s.pool.Execute(ctx, func() error {
		var err error
		if opts.Recursive {
			matches, err = s.walk(ctx, opts)
		} else {
			matches = s.list(opts)
		}
		return err
	})
	if err != nil {
		return nil, faults.New(faults.ErrTraversal, opts.Root, err)
	}

	s.logger.Info("Discovery complete",
		"root", opts.Root,
		"target", opts.Target,
		"recursive", opts.Recursive,
		"matches", len(matches),
	)
	return matches, nil
}

// list checks only the direct children of the root
func (s *Scanner) list(opts Options) []Match {
	entries, err := os.ReadDir(opts.Root)
	if err != nil {
		s.logger.Warn("Cannot read root", "path", opts.Root, "error", err)
		return nil
	}

	var matches []Match
	for _, e := range entries {
		if e.Name() != opts.Target {
			continue
		}
		matches = append(matches, Match{
			Path:  filepath.Join(opts.Root, e.Name()),
			IsDir: e.IsDir(),
			Depth: 1,
		})
	}
	return matches
}

func (s *Scanner) walk(ctx context.Context, opts Options) ([]Match, error) {
	skip := make(map[string]bool, len(opts.SkipDirs))
	for _, name := range opts.SkipDirs {
		skip[name] = true
	}

	// WalkDir lstats its root; a trailing separator makes it descend
	// through a symlinked root like ReadDir does in shallow mode.
	start := opts.Root
	if info, err := os.Lstat(start); err == nil && info.Mode()&fs.ModeSymlink != 0 {
		start += string(filepath.Separator)
	}

	var matches []Match
	err := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d == nil {
				return err
			}
			// Log and continue on unreadable subtrees
			s.logger.Warn("Skipping unreadable directory", "path", path, "error", err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		// Skip the root directory itself
		if path == start {
			return nil
		}

		if d.Name() == opts.Target {
			rel, relErr := filepath.Rel(opts.Root, path)
			if relErr != nil {
				return relErr
			}
			matches = append(matches, Match{
				Path:  path,
				IsDir: d.IsDir(),
				Depth: strings.Count(rel, string(filepath.Separator)) + 1,
			})
			s.logger.Debug("Match found", "path", path, "dir", d.IsDir())
		}

		if d.IsDir() && skip[d.Name()] {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}
