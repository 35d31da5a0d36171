// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads run settings from vcgen.yaml, the environment and
// .env files. Command-line flags are applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/bartekus/vcgen/internal/analyzer"
	"github.com/bartekus/vcgen/internal/classify"
	"github.com/bartekus/vcgen/internal/discovery"
	"github.com/bartekus/vcgen/internal/objectstore"
	"github.com/bartekus/vcgen/internal/pathfilter"
	"github.com/bartekus/vcgen/internal/runstate"
	"github.com/bartekus/vcgen/internal/scheduler"
)

var ErrInvalid = errors.New("invalid configuration")

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "vcgen.yaml"

const (
	EnvGitHubToken = "GITHUB_TOKEN"
	EnvS3AccessKey = "VCGEN_S3_ACCESS_KEY"
	EnvS3SecretKey = "VCGEN_S3_SECRET_KEY"
)

type Config struct {
	Language      string          `yaml:"language"`
	Workers       int             `yaml:"workers"`
	Policy        string          `yaml:"policy"`
	Division      string          `yaml:"division"`
	Seed          uint64          `yaml:"seed"`
	MaxRepoSizeKB int64           `yaml:"max_repo_size_kb"`
	WorkDir       string          `yaml:"work_dir"`
	Extensions    []string        `yaml:"extensions"`
	ExcludeDirs   []string        `yaml:"exclude_dirs"`
	Analyzers     map[string]bool `yaml:"analyzers"`
	Discovery     Discovery       `yaml:"discovery"`
	Timeouts      Timeouts        `yaml:"timeouts"`
	CacheSize     int             `yaml:"cache_size"`
	StateDir      string          `yaml:"state_dir"`
	Log           Log             `yaml:"log"`

	Upload objectstore.Config `yaml:"upload"`

	// GitHubToken is resolved from the environment, never from the file.
	GitHubToken string `yaml:"-"`
}

type Discovery struct {
	Source  string `yaml:"source"`
	Pages   int    `yaml:"pages"`
	PerPage int    `yaml:"per_page"`
}

type Timeouts struct {
	Clone     time.Duration `yaml:"clone"`
	Scan      time.Duration `yaml:"scan"`
	Discovery time.Duration `yaml:"discovery"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		Language:    "C",
		Workers:     4,
		Policy:      string(classify.PolicyMedium),
		Division:    string(scheduler.Successive),
		Extensions:  pathfilter.DefaultExtensions(),
		ExcludeDirs: pathfilter.DefaultExcludeDirs(),
		Analyzers: map[string]bool{
			analyzer.FlawfinderName: true,
			analyzer.CppcheckName:   true,
			analyzer.InferName:      true,
		},
		Discovery: Discovery{Source: discovery.SourceSearch, Pages: 10, PerPage: 100},
		Timeouts: Timeouts{
			Clone:     10 * time.Minute,
			Scan:      2 * time.Minute,
			Discovery: time.Minute,
		},
		CacheSize: 4096,
		StateDir:  runstate.DefaultDir,
		Upload:    objectstore.Config{UseSSL: true},
		Log:       Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. An empty path falls back to DefaultFile,
// which may be absent; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path) //nolint:gosec // path chosen by the operator
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("%w: reading %s: %w", ErrInvalid, path, err)
	}
	if err := cfg.decode(data); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrInvalid, path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// a file listing analyzers replaces the default set
	c.Analyzers = nil
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if c.Analyzers == nil {
		c.Analyzers = Default().Analyzers
	}
	return nil
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("%w: loading %s: %w", ErrInvalid, p, err)
		}
	}
	return nil
}

// ApplyEnv fills credentials from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvGitHubToken); ok {
		c.GitHubToken = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvS3AccessKey); ok {
		c.Upload.AccessKey = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvS3SecretKey); ok {
		c.Upload.SecretKey = strings.TrimSpace(v)
	}
}

// Validate checks enumerations and ranges.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Language) == "" {
		errs = append(errs, errors.New("language is required"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if _, err := classify.ParsePolicy(c.Policy); err != nil {
		errs = append(errs, err)
	}
	if _, err := scheduler.ParseStrategy(c.Division); err != nil {
		errs = append(errs, err)
	}
	if c.MaxRepoSizeKB < 0 {
		errs = append(errs, fmt.Errorf("max_repo_size_kb must not be negative, got %d", c.MaxRepoSizeKB))
	}
	if c.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("cache_size must not be negative, got %d", c.CacheSize))
	}
	for name := range c.Analyzers {
		if _, err := analyzer.CanonicalName(name); err != nil {
			errs = append(errs, err)
		}
	}
	switch strings.ToLower(c.Discovery.Source) {
	case discovery.SourceSearch, discovery.SourceTrending:
	default:
		errs = append(errs, fmt.Errorf("unknown discovery source %q", c.Discovery.Source))
	}
	if c.Discovery.Pages < 0 || c.Discovery.PerPage < 0 {
		errs = append(errs, errors.New("discovery pages and per_page must not be negative"))
	}
	if c.Timeouts.Clone < 0 || c.Timeouts.Scan < 0 || c.Timeouts.Discovery < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// EnabledAnalyzers lists enabled analyzers in registry order.
func (c Config) EnabledAnalyzers() []string {
	var out []string
	for _, name := range analyzer.Registry {
		for k, v := range c.Analyzers {
			if v && strings.EqualFold(k, name) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

// SetAnalyzer enables or disables one analyzer, keeping key spelling canonical.
func (c *Config) SetAnalyzer(name string, enabled bool) error {
	canonical, err := analyzer.CanonicalName(name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	next := make(map[string]bool, len(c.Analyzers)+1)
	for k, v := range c.Analyzers {
		if !strings.EqualFold(k, canonical) {
			next[k] = v
		}
	}
	next[canonical] = enabled
	c.Analyzers = next
	return nil
}

func (c Config) FilterOptions() pathfilter.Options {
	return pathfilter.Options{ExcludeDirs: c.ExcludeDirs, IncludeExtensions: c.Extensions}
}
