// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package config loads srcseal configuration from <dataDir>/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aplane-algo/srcseal/internal/digest"
	"github.com/aplane-algo/srcseal/internal/gate"
	"github.com/aplane-algo/srcseal/internal/manifest"
	"github.com/aplane-algo/srcseal/internal/seal"
	"github.com/aplane-algo/srcseal/internal/validator"
)

// FileName is the configuration file inside the data directory.
const FileName = "config.yaml"

// DataDirEnv names the environment variable consulted when -d is not given.
const DataDirEnv = "SRCSEAL_DATA"

var (
	// ErrNoAppRoot indicates app_root is not configured
	ErrNoAppRoot = errors.New("app_root is required")

	// ErrInvalidDuration indicates a duration field could not be parsed
	ErrInvalidDuration = errors.New("invalid duration")
)

// DefaultExclude lists paths never digested: VCS metadata, dependency
// trees, and runtime storage. Signature artifacts are always excluded in
// addition to this list.
var DefaultExclude = []string{
	"/.git/",
	"/vendor/",
	"/node_modules/",
	"/storage/",
	"/var/cache/",
	"/var/log/",
}

// Config represents the srcseal configuration file
type Config struct {
	AppRoot    string `yaml:"app_root" description:"Application source root (required)"`
	DeployRoot string `yaml:"deploy_root" description:"Directory holding integrity.sig and integrity.pub" default:"<app_root>"`
	KeysDir    string `yaml:"keys_dir" description:"Offline signing keys directory" default:"keys"`
	StateDir   string `yaml:"state_dir" description:"Validation cache and gate sentinel directory" default:"state"`
	SourceHash string `yaml:"source_hash" description:"Reference digest for the cached validator" default:"source.hash"`

	Exclude       []string `yaml:"exclude" description:"Excluded substrings or glob patterns"`
	PHPExtensions []string `yaml:"php_extensions" description:"Extensions watched by the cached validator" default:"[.php]"`

	CacheTTL   string `yaml:"cache_ttl" description:"Maximum age of a cached validation result" default:"5m"`
	GateWindow string `yaml:"gate_window" description:"Minimum time between critical file checks" default:"60s"`
	HashBudget string `yaml:"hash_budget" description:"Time limit for one full digest (0=unbounded)" default:"30s"`
	Enforce    *bool  `yaml:"enforce" description:"Reject requests when source validation fails" default:"true"`

	CriticalFiles    []string `yaml:"critical_files" description:"High-value files re-checked by the request-time gate"`
	CriticalManifest string   `yaml:"critical_manifest" description:"sha256sum manifest for critical files" default:"critical.sha256"`
	CacheKeyFile     string   `yaml:"cache_key_file" description:"HMAC key authenticating cache records (empty=disabled)" default:"cache.key"`

	Listen   string `yaml:"listen" description:"sealgated listen address" default:"127.0.0.1:8089"`
	Upstream string `yaml:"upstream" description:"URL of the protected application"`
	LogLevel string `yaml:"log_level" description:"debug, info, warn or error" default:"info"`
	Watch    bool   `yaml:"watch" description:"Invalidate the validation cache on file events" default:"false"`

	cacheTTL   time.Duration
	gateWindow time.Duration
	hashBudget time.Duration
}

// ResolvePath resolves a path relative to baseDir if not absolute.
// Returns path unchanged if empty or already absolute.
func ResolvePath(path, baseDir string) string {
	if path == "" || baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// Default returns the default configuration. Relative paths are resolved
// against the data directory by Load.
func Default() Config {
	return Config{
		KeysDir:          "keys",
		StateDir:         "state",
		SourceHash:       "source.hash",
		Exclude:          slices.Clone(DefaultExclude),
		PHPExtensions:    slices.Clone(validator.DefaultExtensions),
		CacheTTL:         "5m",
		GateWindow:       "60s",
		HashBudget:       "30s",
		CriticalFiles:    slices.Clone(gate.DefaultCriticalFiles),
		CriticalManifest: manifest.DefaultFile,
		CacheKeyFile:     "cache.key",
		Listen:           "127.0.0.1:8089",
		LogLevel:         "info",
	}
}

// GetDataDir returns the data directory from the -d flag value or
// SRCSEAL_DATA. Returns empty string if neither is set.
func GetDataDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(DataDirEnv)
}

// RequireDataDir resolves the data directory or exits.
func RequireDataDir(flagValue string) string {
	dir := GetDataDir(flagValue)
	if dir == "" {
		fmt.Fprintln(os.Stderr, "Error: Data directory not specified")
		fmt.Fprintf(os.Stderr, "Use -d <path> or set %s environment variable\n", DataDirEnv)
		os.Exit(1)
	}
	return dir
}

// Load reads <dataDir>/config.yaml. A missing file yields the defaults; a
// malformed one is an error, never a silent fallback.
func Load(dataDir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(dataDir, FileName)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		// Unmarshal over the defaults so absent keys keep them.
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.fillDefaults()
	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}

	if cfg.DeployRoot == "" {
		cfg.DeployRoot = cfg.AppRoot
	}
	for _, p := range []*string{&cfg.AppRoot, &cfg.DeployRoot, &cfg.KeysDir, &cfg.StateDir,
		&cfg.SourceHash, &cfg.CriticalManifest, &cfg.CacheKeyFile} {
		*p = ResolvePath(*p, dataDir)
	}
	return &cfg, nil
}

// fillDefaults restores defaults for fields set to empty values.
// cache_key_file is exempt: empty disables record authentication.
func (c *Config) fillDefaults() {
	defaults := Default()
	for _, f := range []struct {
		dst *string
		def string
	}{
		{&c.KeysDir, defaults.KeysDir},
		{&c.StateDir, defaults.StateDir},
		{&c.SourceHash, defaults.SourceHash},
		{&c.CriticalManifest, defaults.CriticalManifest},
		{&c.Listen, defaults.Listen},
		{&c.LogLevel, defaults.LogLevel},
	} {
		if *f.dst == "" {
			*f.dst = f.def
		}
	}
	if len(c.PHPExtensions) == 0 {
		c.PHPExtensions = defaults.PHPExtensions
	}
	if len(c.CriticalFiles) == 0 {
		c.CriticalFiles = defaults.CriticalFiles
	}
}

func (c *Config) parseDurations() error {
	var err error
	if c.cacheTTL, err = parseDuration("cache_ttl", c.CacheTTL); err != nil {
		return err
	}
	if c.gateWindow, err = parseDuration("gate_window", c.GateWindow); err != nil {
		return err
	}
	c.hashBudget, err = parseDuration("hash_budget", c.HashBudget)
	return err
}

// parseDuration accepts "0" and Go duration strings; negatives are rejected.
func parseDuration(field, s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidDuration, field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s: negative duration %q", ErrInvalidDuration, field, s)
	}
	return d, nil
}

// Validate checks fields required by every command. An exclude entry that
// matches a scan root itself is rejected (digest.ErrRootExcluded): it would
// leave nothing to hash.
func (c *Config) Validate() error {
	if c.AppRoot == "" {
		return ErrNoAppRoot
	}
	m, err := c.Matcher()
	if err != nil {
		return err
	}
	for _, root := range c.Roots() {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", root, err)
		}
		if entry, excluded := m.ExcludesRoot(abs); excluded {
			return fmt.Errorf("%w: app_root %s matches exclude entry %q", digest.ErrRootExcluded, abs, entry)
		}
	}
	return nil
}

// TTL returns the validation cache TTL (0 = validator default).
func (c *Config) TTL() time.Duration { return c.cacheTTL }

// Window returns the gate window (0 = gate default).
func (c *Config) Window() time.Duration { return c.gateWindow }

// Budget returns the hashing budget (0 = unbounded).
func (c *Config) Budget() time.Duration { return c.hashBudget }

// EnforceEnabled defaults to true when enforce is not set.
func (c *Config) EnforceEnabled() bool {
	return c.Enforce == nil || *c.Enforce
}

// Roots returns the signed trees.
func (c *Config) Roots() []string {
	return []string{c.AppRoot}
}

// Matcher compiles the exclusion list plus the signature artifacts.
func (c *Config) Matcher() (*digest.Matcher, error) {
	patterns := make([]string, 0, len(c.Exclude)+len(seal.ArtifactExcludes))
	patterns = append(patterns, c.Exclude...)
	patterns = append(patterns, seal.ArtifactExcludes...)
	return digest.NewMatcher(patterns)
}

// SignEngine returns the digest engine used for signing and signature
// verification.
func (c *Config) SignEngine() (*digest.Engine, error) {
	m, err := c.Matcher()
	if err != nil {
		return nil, err
	}
	return &digest.Engine{Exclude: m, Budget: c.hashBudget}, nil
}

// PrivateKeyPath returns the path of private.pem.
func (c *Config) PrivateKeyPath() string {
	return filepath.Join(c.KeysDir, seal.PrivateKeyFile)
}

// PublicKeyPath returns the path of public.pem.
func (c *Config) PublicKeyPath() string {
	return filepath.Join(c.KeysDir, seal.PublicKeyFile)
}
