// Package config provides configuration types and defaults for autoload.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zjrosen/autoload/internal/log"
	"github.com/zjrosen/autoload/internal/manifest"
	"github.com/zjrosen/autoload/internal/tracing"
)

// Config holds all configuration options for autoload.
type Config struct {
	Runtime       string               `mapstructure:"runtime"`
	ManifestDirs  []string             `mapstructure:"manifest_dirs"`
	Manifests     []string             `mapstructure:"manifests"`
	Registrations []RegistrationConfig `mapstructure:"registrations"`
	Cache         CacheConfig          `mapstructure:"cache"`
	Watch         WatchConfig          `mapstructure:"watch"`
	Tracing       tracing.Config       `mapstructure:"tracing"`
	Log           LogConfig            `mapstructure:"log"`
}

// RegistrationConfig is a registration declared inline in the config file.
type RegistrationConfig struct {
	Namespace string `mapstructure:"namespace"`
	Version   string `mapstructure:"version"`
	Dir       string `mapstructure:"dir"`
}

// Entry converts the registration to a manifest entry.
func (r RegistrationConfig) Entry() manifest.Entry {
	return manifest.Entry{Namespace: r.Namespace, Version: r.Version, Dir: r.Dir}
}

// CacheConfig controls the file-existence probe cache. Only positive probes
// are cached.
type CacheConfig struct {
	Disabled        bool          `mapstructure:"disabled"`
	ProbeTTL        time.Duration `mapstructure:"probe_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// WatchConfig controls the manifest watcher.
type WatchConfig struct {
	// Debounce is how long to wait for more changes before reloading.
	Debounce time.Duration `mapstructure:"debounce"`
}

// LogConfig controls the debug log.
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn or error
	File  string `mapstructure:"file"`
}

// Runtime names accepted by the runtime key.
const (
	RuntimeLua      = "lua"
	RuntimeStarlark = "starlark"
)

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	tc := tracing.DefaultConfig()
	tc.FilePath = DefaultTracesFilePath()

	return Config{
		Runtime:      RuntimeLua,
		ManifestDirs: []string{manifest.UserManifestDir()},
		Cache: CacheConfig{
			ProbeTTL:        30 * time.Second,
			CleanupInterval: 5 * time.Minute,
		},
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
		},
		Tracing: tc,
		Log: LogConfig{
			Level: "debug",
			File:  "debug.log",
		},
	}
}

// DefaultTracesFilePath returns ~/.config/autoload/traces/traces.jsonl, or
// empty string if the home dir is unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "autoload", "traces", "traces.jsonl")
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	if err := ValidateRuntime(c.Runtime); err != nil {
		return err
	}
	if err := ValidateRegistrations(c.Registrations); err != nil {
		return err
	}
	if err := ValidateCache(c.Cache); err != nil {
		return err
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce)
	}
	if err := ValidateTracing(c.Tracing); err != nil {
		return err
	}
	return ValidateLog(c.Log)
}

// ValidateRuntime checks the runtime name. Empty selects Lua.
func ValidateRuntime(runtime string) error {
	switch runtime {
	case "", RuntimeLua, RuntimeStarlark:
		return nil
	default:
		return fmt.Errorf("runtime must be %q or %q, got %q", RuntimeLua, RuntimeStarlark, runtime)
	}
}

// ValidateRegistrations checks inline registrations for missing fields.
func ValidateRegistrations(regs []RegistrationConfig) error {
	for i, r := range regs {
		if err := r.Entry().Validate(); err != nil {
			return fmt.Errorf("registrations %d (%s): %w", i, r.Namespace, err)
		}
	}
	return nil
}

// ValidateCache checks cache durations.
func ValidateCache(cache CacheConfig) error {
	if cache.ProbeTTL < 0 {
		return fmt.Errorf("cache.probe_ttl must not be negative, got %s", cache.ProbeTTL)
	}
	if cache.CleanupInterval < 0 {
		return fmt.Errorf("cache.cleanup_interval must not be negative, got %s", cache.CleanupInterval)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tc tracing.Config) error {
	if tc.SampleRate < 0.0 || tc.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tc.SampleRate)
	}

	switch tc.Exporter {
	case "", tracing.ExporterNone, tracing.ExporterFile, tracing.ExporterStdout, tracing.ExporterOTLP:
	default:
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tc.Exporter)
	}

	if tc.Enabled {
		if tc.Exporter == tracing.ExporterFile && tc.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tc.Exporter == tracing.ExporterOTLP && tc.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// ValidateLog checks the log level.
func ValidateLog(lc LogConfig) error {
	switch lc.Level {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("log.level must be \"debug\", \"info\", \"warn\", or \"error\", got %q", lc.Level)
	}
}

// Entries returns the inline registrations as manifest entries.
func (c Config) Entries() []manifest.Entry {
	entries := make([]manifest.Entry, 0, len(c.Registrations))
	for _, r := range c.Registrations {
		entries = append(entries, r.Entry())
	}
	return entries
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# autoload configuration

# Script runtime used to execute resolved files: "lua" (default) or "starlark"
runtime: lua

# Directories scanned for *.yaml manifests (default: ~/.autoload/manifests)
# manifest_dirs:
#   - ~/.autoload/manifests

# Individual manifest files
# manifests:
#   - ./vendor/acme/autoload.yaml

# Inline registrations, applied after manifests
# registrations:
#   - namespace: 'Acme\Geo'
#     version: 1.2.0
#     dir: ./lib/geo

# File-existence probe cache. Only hits are cached; misses are re-checked.
cache:
  probe_ttl: 30s
  cleanup_interval: 5m
  # disabled: false

# Manifest watcher (autoload watch)
watch:
  debounce: 100ms

# Debug log (enabled with --debug or AUTOLOAD_DEBUG=1)
log:
  level: debug
  file: debug.log

# Tracing
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/autoload/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
