package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dirscrub/internal/config"
)

const logFile = "dirscrub.log"

// New creates a logger writing to stderr and, when cfg.Dir is set, to a
// rotated log file as well. The returned func closes the file.
func New(cfg config.LoggingCfg) (*log.Logger, func() error) {
	return newLogger(os.Stderr, cfg)
}

func newLogger(console io.Writer, cfg config.LoggingCfg) (*log.Logger, func() error) {
	noop := func() error { return nil }
	if cfg.Dir == "" {
		return log.New(console, "", log.LstdFlags|log.Lmicroseconds), noop
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		log.Printf("failed to ensure log directory %s: %v", cfg.Dir, err)
	}

	filePath := filepath.Join(cfg.Dir, logFile)

	rotateDays := 30 // default
	if cfg.RotationDays > 0 {
		rotateDays = cfg.RotationDays
	}

	// Rotate logs if needed
	rotateLogsIfNeeded(filePath, rotateDays)

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("failed to open log file %s: %v", filePath, err)
		return log.New(console, "", log.LstdFlags|log.Lmicroseconds), noop
	}

	mw := io.MultiWriter(console, f)
	return log.New(mw, "", log.LstdFlags|log.Lmicroseconds), f.Close
}

// rotateLogsIfNeeded rotates log files older than the specified days
func rotateLogsIfNeeded(logPath string, rotationDays int) {
	info, err := os.Stat(logPath)
	if err != nil {
		// Log file doesn't exist yet, nothing to rotate
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)
	if info.ModTime().Before(cutoffTime) {
		// Rotate: rename current log with timestamp
		timestamp := info.ModTime().Format("20060102-150405")
		rotatedPath := logPath + "." + timestamp

		if err := os.Rename(logPath, rotatedPath); err != nil {
			log.Printf("failed to rotate log file: %v", err)
			return
		}

		cleanupOldLogs(logPath, rotationDays)
	}
}

// cleanupOldLogs removes rotated log files older than rotation days
func cleanupOldLogs(logPath string, rotationDays int) {
	logDir := filepath.Dir(logPath)
	prefix := filepath.Base(logPath) + "."

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	cutoffTime := time.Now().AddDate(0, 0, -rotationDays)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoffTime) {
			fullPath := filepath.Join(logDir, entry.Name())
			if err := os.Remove(fullPath); err != nil {
				log.Printf("failed to remove old log file %s: %v", fullPath, err)
			}
		}
	}
}

// Leveled adds level tags and key-value args on top of a *log.Logger.
// Output format: [LEVEL] msg k1 v1 k2 v2
type Leveled struct {
	*log.Logger
	debug bool
}

// NewLeveled wraps logger. Debug lines are only written when level is
// "debug". A nil logger falls back to log.Default().
func NewLeveled(logger *log.Logger, level string) *Leveled {
	if logger == nil {
		logger = log.Default()
	}
	return &Leveled{Logger: logger, debug: strings.EqualFold(level, "debug")}
}

// Discard returns a Leveled that drops everything.
func Discard() *Leveled {
	return &Leveled{Logger: log.New(io.Discard, "", 0)}
}

func (l *Leveled) Debug(msg string, args ...interface{}) {
	if l.debug {
		l.logWithLevel("DEBUG", msg, args...)
	}
}

func (l *Leveled) Info(msg string, args ...interface{}) {
	l.logWithLevel("INFO", msg, args...)
}

func (l *Leveled) Warn(msg string, args ...interface{}) {
	l.logWithLevel("WARN", msg, args...)
}

func (l *Leveled) Error(msg string, args ...interface{}) {
	l.logWithLevel("ERROR", msg, args...)
}

func (l *Leveled) logWithLevel(level, msg string, args ...interface{}) {
	parts := make([]interface{}, 0, len(args)+2)
	parts = append(parts, fmt.Sprintf("[%s]", level), msg)
	parts = append(parts, args...)
	l.Logger.Println(parts...)
}
