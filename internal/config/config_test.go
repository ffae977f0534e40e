package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/autoload/internal/tracing"
)

func TestDefaults_Valid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	require.Equal(t, RuntimeLua, cfg.Runtime)
	require.Equal(t, 30*time.Second, cfg.Cache.ProbeTTL)
	require.Equal(t, 100*time.Millisecond, cfg.Watch.Debounce)
	require.False(t, cfg.Tracing.Enabled)
	require.Equal(t, DefaultTracesFilePath(), cfg.Tracing.FilePath)
}

func TestValidateRuntime(t *testing.T) {
	require.NoError(t, ValidateRuntime(""))
	require.NoError(t, ValidateRuntime("lua"))
	require.NoError(t, ValidateRuntime("starlark"))

	err := ValidateRuntime("python")
	require.Error(t, err)
	require.Contains(t, err.Error(), `"python"`)
}

func TestValidateRegistrations(t *testing.T) {
	require.NoError(t, ValidateRegistrations(nil))
	require.NoError(t, ValidateRegistrations([]RegistrationConfig{
		{Namespace: `Acme\Geo`, Version: "1.0.0", Dir: "lib"},
	}))

	err := ValidateRegistrations([]RegistrationConfig{
		{Namespace: "Good", Version: "1.0.0", Dir: "lib"},
		{Namespace: "Bad", Dir: "lib"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "registrations 1 (Bad)")
	require.Contains(t, err.Error(), "version is required")
}

func TestValidateCache_Negative(t *testing.T) {
	err := ValidateCache(CacheConfig{ProbeTTL: -time.Second})
	require.Error(t, err)
	require.Contains(t, err.Error(), "cache.probe_ttl")

	err = ValidateCache(CacheConfig{CleanupInterval: -time.Second})
	require.Error(t, err)
	require.Contains(t, err.Error(), "cache.cleanup_interval")
}

func TestValidate_NegativeDebounce(t *testing.T) {
	cfg := Defaults()
	cfg.Watch.Debounce = -time.Millisecond
	require.Error(t, cfg.Validate())
}

func TestValidateTracing(t *testing.T) {
	tests := []struct {
		name    string
		cfg     tracing.Config
		wantErr string
	}{
		{name: "empty", cfg: tracing.Config{}},
		{name: "disabled file without path", cfg: tracing.Config{Exporter: "file"}},
		{name: "sample rate too high", cfg: tracing.Config{SampleRate: 1.5}, wantErr: "sample_rate"},
		{name: "sample rate negative", cfg: tracing.Config{SampleRate: -0.1}, wantErr: "sample_rate"},
		{name: "unknown exporter", cfg: tracing.Config{Exporter: "zipkin"}, wantErr: "tracing.exporter"},
		{name: "enabled file without path", cfg: tracing.Config{Enabled: true, Exporter: "file"}, wantErr: "file_path"},
		{name: "enabled otlp without endpoint", cfg: tracing.Config{Enabled: true, Exporter: "otlp"}, wantErr: "otlp_endpoint"},
		{name: "enabled stdout", cfg: tracing.Config{Enabled: true, Exporter: "stdout", SampleRate: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTracing(tt.cfg)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateLog(t *testing.T) {
	require.NoError(t, ValidateLog(LogConfig{}))
	require.NoError(t, ValidateLog(LogConfig{Level: "warn"}))
	require.Error(t, ValidateLog(LogConfig{Level: "verbose"}))
}

func TestEntries(t *testing.T) {
	cfg := Config{Registrations: []RegistrationConfig{
		{Namespace: "A", Version: "1.0.0", Dir: "a"},
		{Namespace: "B", Version: "2.0.0", Dir: "b"},
	}}

	entries := cfg.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, "B", entries[1].Namespace)
	require.Equal(t, "2.0.0", entries[1].Version)
	require.Empty(t, entries[0].Source)
}

func TestDefaultConfigTemplate_IsValidYAML(t *testing.T) {
	var out map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(DefaultConfigTemplate()), &out))
	require.Equal(t, "lua", out["runtime"])
	require.Contains(t, out, "cache")
	require.Contains(t, out, "watch")
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".autoload", "config.yaml")

	require.NoError(t, WriteDefaultConfig(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfigTemplate(), string(content))
}

func TestDefaultTracesFilePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.Equal(t, filepath.Join(home, ".config", "autoload", "traces", "traces.jsonl"), DefaultTracesFilePath())
}
