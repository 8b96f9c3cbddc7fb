package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// printer writes progress lines, colored by outcome when w is a terminal.
// Safe for concurrent use.
type printer struct {
	mu     sync.Mutex
	w      io.Writer
	green  *color.Color
	yellow *color.Color
	red    *color.Color
	cyan   *color.Color
	bold   *color.Color
}

func newPrinter(w io.Writer) *printer {
	p := &printer{
		w:      w,
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		red:    color.New(color.FgRed),
		cyan:   color.New(color.FgCyan),
		bold:   color.New(color.Bold),
	}
	if !isTerminal(w) {
		for _, c := range []*color.Color{p.green, p.yellow, p.red, p.cyan, p.bold} {
			c.DisableColor()
		}
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Line prints one progress line
func (p *printer) Line(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := p.colorFor(line)
	if c == nil {
		fmt.Fprintln(p.w, line)
		return
	}
	c.Fprintln(p.w, line)
}

func (p *printer) colorFor(line string) *color.Color {
	switch {
	case strings.HasPrefix(line, "removed "):
		return p.green
	case strings.HasPrefix(line, "already gone "):
		return p.yellow
	case strings.HasPrefix(line, "failed "):
		return p.red
	case strings.HasPrefix(line, "layer "):
		return p.cyan
	case strings.HasPrefix(line, "done: "):
		return p.bold
	}
	return nil
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
