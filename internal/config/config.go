package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

type ConcurrencyCfg struct {
	Permits        int `yaml:"permits" json:"permits"`                 // Max in-flight deletions in recursive mode (e.g., 64)
	ShallowPermits int `yaml:"shallow_permits" json:"shallow_permits"` // Max in-flight deletions in shallow mode (e.g., 32)
}

type WorkerPoolConfig struct {
	Workers   int `yaml:"workers" json:"workers"`       // Blocking workers (0 = one per CPU)
	QueueSize int `yaml:"queue_size" json:"queue_size"` // Pending job slots (0 = 4 per worker)
}

type RemediationCfg struct {
	Disabled      bool `yaml:"disabled" json:"disabled"`             // Skip permission repair, fail straight away
	SkipOwnership bool `yaml:"skip_ownership" json:"skip_ownership"` // Windows only: don't run takeown
}

type PrometheusCfg struct {
	Port int `yaml:"port" json:"port"`
}

type LoggingCfg struct {
	Dir          string `yaml:"dir" json:"dir"`                     // Directory for dirscrub.log (empty = stderr only)
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"` // Days to keep logs before rotation
	Level        string `yaml:"level" json:"level"`                 // debug, info, warn or error
}

type Config struct {
	Concurrency      ConcurrencyCfg   `yaml:"concurrency" json:"concurrency"`
	WorkerPool       WorkerPoolConfig `yaml:"worker_pool" json:"worker_pool"`
	Remediation      RemediationCfg   `yaml:"remediation" json:"remediation"`
	ReportFreedBytes bool             `yaml:"report_freed_bytes" json:"report_freed_bytes"` // Measure matches before removal
	Logging          LoggingCfg       `yaml:"logging" json:"logging"`
	Prometheus       PrometheusCfg    `yaml:"prometheus" json:"prometheus"`
	DatabasePath     string           `yaml:"database_path" json:"database_path"`     // SQLite scrub history (empty = disabled)
	LockDir          string           `yaml:"lock_dir" json:"lock_dir"`               // Per-root lock files
	ProtectedPaths   []string         `yaml:"protected_paths" json:"protected_paths"` // Extra roots that may never be scrubbed
	SkipDirs         []string         `yaml:"skip_dirs" json:"skip_dirs"`             // Directory names never descended into
}

// ErrInvalid wraps every load or validation failure
var ErrInvalid = errors.New("invalid config")

var (
	errNegativePermits = errors.New("concurrency permits cannot be negative")
	errNegativeWorkers = errors.New("worker_pool sizes cannot be negative")
	errInvalidPath     = errors.New("path must be absolute")
	errInvalidLevel    = errors.New("logging level must be debug, info, warn or error")
	errInvalidPort     = errors.New("prometheus port out of range")
	errInvalidSkipDir  = errors.New("skip_dirs entries must be plain names")
)

// Default returns a config with every default applied
func Default() *Config {
	cfg := &Config{}
	// Zero values never fail validation.
	_ = cfg.validateAndDefault()
	return cfg
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open config: %w", ErrInvalid, err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty file means all defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// Validate re-checks a config after flag overrides were applied
func (c *Config) Validate() error {
	if err := c.validateAndDefault(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func (c *Config) validateAndDefault() error {
	if c.Concurrency.Permits < 0 || c.Concurrency.ShallowPermits < 0 {
		return errNegativePermits
	}
	if c.Concurrency.Permits == 0 {
		c.Concurrency.Permits = 64
	}
	if c.Concurrency.ShallowPermits == 0 {
		c.Concurrency.ShallowPermits = 32
	}

	if c.WorkerPool.Workers < 0 || c.WorkerPool.QueueSize < 0 {
		return errNegativeWorkers
	}
	if c.WorkerPool.Workers == 0 {
		c.WorkerPool.Workers = runtime.NumCPU()
	}
	if c.WorkerPool.QueueSize == 0 {
		c.WorkerPool.QueueSize = 4 * c.WorkerPool.Workers
	}

	// Set defaults for logging
	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30 // Default: keep logs for 30 days
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch c.Logging.Level {
	case "":
		c.Logging.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", errInvalidLevel, c.Logging.Level)
	}
	if c.Logging.Dir != "" {
		dir, err := cleanAbsolute(c.Logging.Dir)
		if err != nil {
			return fmt.Errorf("logging.dir: %w", err)
		}
		c.Logging.Dir = dir
	}

	if c.Prometheus.Port < 0 || c.Prometheus.Port > 65535 {
		return fmt.Errorf("%w: %d", errInvalidPort, c.Prometheus.Port)
	}

	if c.DatabasePath != "" {
		c.DatabasePath = filepath.Clean(c.DatabasePath)
	}

	if c.LockDir == "" {
		c.LockDir = filepath.Join(os.TempDir(), "dirscrub")
	}
	c.LockDir = filepath.Clean(c.LockDir)

	cleaned := make([]string, 0, len(c.ProtectedPaths))
	for _, p := range c.ProtectedPaths {
		cp, err := cleanAbsolute(p)
		if err != nil {
			return fmt.Errorf("protected_paths: %w", err)
		}
		cleaned = append(cleaned, cp)
	}
	c.ProtectedPaths = cleaned

	for _, name := range c.SkipDirs {
		if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("%w: %q", errInvalidSkipDir, name)
		}
	}

	return nil
}

func cleanAbsolute(p string) (string, error) {
	if p == "" {
		return "", errInvalidPath
	}
	cp := filepath.Clean(p)
	if !filepath.IsAbs(cp) {
		return "", fmt.Errorf("%w: %s", errInvalidPath, p)
	}
	return cp, nil
}

// PermitsFor returns the limiter size for the given mode
func (c *Config) PermitsFor(recursive bool) int {
	if recursive {
		return c.Concurrency.Permits
	}
	return c.Concurrency.ShallowPermits
}

func (c *Config) PrometheusAddress() string {
	return fmt.Sprintf(":%d", c.Prometheus.Port)
}
