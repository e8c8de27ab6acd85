package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"agesweep/internal/safety"
)

type JobRule struct {
	Name            string   `yaml:"name" json:"name"`
	Path            string   `yaml:"path" json:"path"`
	OlderThan       string   `yaml:"older_than" json:"older_than"` // Go duration or "<N>d", relative to run time
	Cutoff          string   `yaml:"cutoff" json:"cutoff"`         // Absolute instant; zone-less values use time.Local
	Extensions      []string `yaml:"extensions" json:"extensions"` // Without dots, case-insensitive; empty = all
	Recursive       bool     `yaml:"recursive" json:"recursive"`
	RemoveEmptyDirs *bool    `yaml:"remove_empty_dirs" json:"remove_empty_dirs"` // Recursive only, default true
	KeepRoot        *bool    `yaml:"keep_root" json:"keep_root"`                 // Never rmdir the job path itself, default true
}

type PrometheusCfg struct {
	Port int `yaml:"port" json:"port"`
}

type LoggingCfg struct {
	Level        string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format       string `yaml:"format" json:"format"` // json or text
	Dir          string `yaml:"dir" json:"dir"`       // Empty disables the log file
	RotationDays int    `yaml:"rotation_days" json:"rotation_days"`
}

type ResourceLimits struct {
	MaxDeletesPerSecond float64 `yaml:"max_deletes_per_second" json:"max_deletes_per_second"` // 0 = unlimited
}

type Config struct {
	Jobs            []JobRule      `yaml:"jobs" json:"jobs"`
	IntervalMinutes int            `yaml:"interval_minutes" json:"interval_minutes"`
	Prometheus      PrometheusCfg  `yaml:"prometheus" json:"prometheus"`
	Logging         LoggingCfg     `yaml:"logging" json:"logging"`
	ResourceLimits  ResourceLimits `yaml:"resource_limits" json:"resource_limits"`
	ProtectedPaths  []string       `yaml:"protected_paths" json:"protected_paths"`
	NFSTimeout      int            `yaml:"nfs_timeout_seconds" json:"nfs_timeout_seconds"`
	DatabasePath    string         `yaml:"database_path" json:"database_path"` // SQLite deletion history
}

var (
	errNoJobs       = errors.New("configuration must specify at least one job")
	errNoName       = errors.New("job name is required")
	errDuplicateJob = errors.New("duplicate job name")
	errInvalidPath  = errors.New("path must be absolute")
	errNoCutoff     = errors.New("job must set older_than or cutoff")
	errBothCutoffs  = errors.New("job must not set both older_than and cutoff")
	errNegativeAge  = errors.New("older_than must be positive")
	errNegativeRate = errors.New("max_deletes_per_second cannot be negative")
)

// cutoffLayouts are tried in order for JobRule.Cutoff.
var cutoffLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodes, validates and defaults a configuration.
func Parse(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromJob builds a single-job configuration, for running without a file.
func FromJob(job JobRule) (*Config, error) {
	cfg := &Config{Jobs: []JobRule{job}}
	if err := cfg.validateAndDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) validateAndDefault() error {
	if len(c.Jobs) == 0 {
		return errNoJobs
	}

	if c.IntervalMinutes <= 0 {
		c.IntervalMinutes = 60
	}

	if c.Prometheus.Port == 0 {
		c.Prometheus.Port = 9091
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.RotationDays <= 0 {
		c.Logging.RotationDays = 30
	}

	if c.ResourceLimits.MaxDeletesPerSecond < 0 {
		return errNegativeRate
	}

	if c.NFSTimeout <= 0 {
		c.NFSTimeout = 5
	}

	for i, p := range c.ProtectedPaths {
		cp, err := cleanAbsolute(p)
		if err != nil {
			return fmt.Errorf("protected_paths: %w", err)
		}
		c.ProtectedPaths[i] = cp
	}

	seen := make(map[string]bool, len(c.Jobs))
	now := time.Now()
	for i := range c.Jobs {
		job := &c.Jobs[i]
		if strings.TrimSpace(job.Name) == "" {
			return fmt.Errorf("jobs[%d]: %w", i, errNoName)
		}
		if seen[job.Name] {
			return fmt.Errorf("job %s: %w", job.Name, errDuplicateJob)
		}
		seen[job.Name] = true

		cp, err := cleanAbsolute(job.Path)
		if err != nil {
			return fmt.Errorf("job %s: %w", job.Name, err)
		}
		job.Path = cp
		if err := safety.ValidateRoot(cp, c.ProtectedPaths); err != nil {
			return fmt.Errorf("job %s: %w", job.Name, err)
		}

		// Resolve once so a bad value fails at load time, not mid-run.
		if _, err := job.ResolveCutoff(now); err != nil {
			return fmt.Errorf("job %s: %w", job.Name, err)
		}

		if job.RemoveEmptyDirs == nil {
			v := job.Recursive
			job.RemoveEmptyDirs = &v
		}
		if job.KeepRoot == nil {
			v := true
			job.KeepRoot = &v
		}
	}

	return nil
}

// ResolveCutoff returns the cutoff instant for a run starting at now.
func (j JobRule) ResolveCutoff(now time.Time) (time.Time, error) {
	switch {
	case j.OlderThan != "" && j.Cutoff != "":
		return time.Time{}, errBothCutoffs
	case j.OlderThan != "":
		age, err := ParseAge(j.OlderThan)
		if err != nil {
			return time.Time{}, err
		}
		return now.Add(-age), nil
	case j.Cutoff != "":
		return ParseCutoff(j.Cutoff)
	default:
		return time.Time{}, errNoCutoff
	}
}

// ShouldRemoveEmptyDirs reports the defaulted remove_empty_dirs value.
func (j JobRule) ShouldRemoveEmptyDirs() bool {
	return j.Recursive && (j.RemoveEmptyDirs == nil || *j.RemoveEmptyDirs)
}

func (j JobRule) ShouldKeepRoot() bool {
	return j.KeepRoot == nil || *j.KeepRoot
}

// ParseAge accepts a Go duration ("36h", "90m") or a whole number of days ("7d").
func ParseAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	var age time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid age %q: %w", s, err)
		}
		age = time.Duration(n) * 24 * time.Hour
	} else {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid age %q: %w", s, err)
		}
		age = d
	}
	if age <= 0 {
		return 0, fmt.Errorf("%w: %q", errNegativeAge, s)
	}
	return age, nil
}

// ParseCutoff parses an absolute cutoff. Values without a zone are read in
// time.Local, which is the zone the host reports file times in.
func ParseCutoff(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range cutoffLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid cutoff %q", s)
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

func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

func (c *Config) PrometheusAddress() string {
	return fmt.Sprintf(":%d", c.Prometheus.Port)
}

// Roots returns every job path, used as the allowed roots of the safety guard.
func (c *Config) Roots() []string {
	roots := make([]string, 0, len(c.Jobs))
	for _, j := range c.Jobs {
		roots = append(roots, j.Path)
	}
	return roots
}
