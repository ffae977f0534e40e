package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appautoload "github.com/zjrosen/autoload/internal/application/autoload"
	"github.com/zjrosen/autoload/internal/config"
	"github.com/zjrosen/autoload/internal/host"
	"github.com/zjrosen/autoload/internal/loader"
	"github.com/zjrosen/autoload/internal/log"
	"github.com/zjrosen/autoload/internal/manifest"
	"github.com/zjrosen/autoload/internal/tracing"
)

const defaultConfigPath = ".autoload/config.yaml"

var (
	version       = "dev"
	cfgFile       string
	cfg           config.Config
	debugFlag     bool
	runtimeFlag   string
	manifestFlags []string
	registerFlags []string
	logCleanup    func()
)

var rootCmd = &cobra.Command{
	Use:   "autoload",
	Short: "Versioned namespace autoloader for embedded scripts",
	Long: `autoload maps namespace prefixes to directories and loads script files on
demand. When several bundles register the same namespace, the highest
version wins and everything else is ignored.

Registrations come from YAML manifests, the config file and --register
flags. Scripts run in an embedded Lua or Starlark runtime and pull in
symbols with import("Acme\\Geo\\Point") or load("Acme\\Geo\\Point", ...).`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) { teardown() },
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .autoload/config.yaml or ~/.config/autoload/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"enable debug logging (also AUTOLOAD_DEBUG=1)")
	rootCmd.PersistentFlags().StringVarP(&runtimeFlag, "runtime", "r", "",
		"script runtime: lua or starlark (overrides config)")
	rootCmd.PersistentFlags().StringArrayVarP(&manifestFlags, "manifest", "m", nil,
		"manifest file to apply (repeatable)")
	rootCmd.PersistentFlags().StringArrayVar(&registerFlags, "register", nil,
		`inline registration NAMESPACE@VERSION=DIR, e.g. 'Acme\Geo@1.2.0=lib/geo' (repeatable)`)
}

func initConfig() {
	_ = viper.BindPFlag("runtime", rootCmd.PersistentFlags().Lookup("runtime"))

	defaults := config.Defaults()
	viper.SetDefault("runtime", defaults.Runtime)
	viper.SetDefault("manifest_dirs", defaults.ManifestDirs)
	viper.SetDefault("cache.probe_ttl", defaults.Cache.ProbeTTL)
	viper.SetDefault("cache.cleanup_interval", defaults.Cache.CleanupInterval)
	viper.SetDefault("watch.debounce", defaults.Watch.Debounce)
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	viper.SetEnvPrefix("AUTOLOAD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .autoload/config.yaml (current directory)
		// 2. ~/.config/autoload/config.yaml (user config)
		if _, err := os.Stat(defaultConfigPath); err == nil {
			viper.SetConfigFile(defaultConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "autoload"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .autoload/config.yaml
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if writeErr := config.WriteDefaultConfig(defaultConfigPath); writeErr == nil {
				viper.SetConfigFile(defaultConfigPath)
				_ = viper.ReadInConfig()
			}
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// setup starts logging and validates the configuration.
func setup(cmd *cobra.Command, _ []string) error {
	if debugFlag || os.Getenv("AUTOLOAD_DEBUG") != "" {
		if err := initLogging(); err != nil {
			return err
		}
	}
	log.Debug(log.CatConfig, "config loaded", "file", viper.ConfigFileUsed(), "runtime", cfg.Runtime)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func initLogging() error {
	level := log.ParseLevel(cfg.Log.Level)
	if cfg.Log.File == "" {
		log.InitWriter(os.Stderr, level)
		return nil
	}
	cleanup, err := log.Init(cfg.Log.File)
	if err != nil {
		return fmt.Errorf("init debug log: %w", err)
	}
	log.SetMinLevel(level)
	logCleanup = cleanup
	return nil
}

func teardown() {
	if logCleanup != nil {
		logCleanup()
		logCleanup = nil
	}
	log.Reset()
}

// sources collects every registration source: config manifest dirs and
// files, --manifest flags, config registrations and --register flags.
func sources() (appautoload.Sources, error) {
	src := appautoload.Sources{
		Dirs:  cfg.ManifestDirs,
		Files: append(append([]string(nil), cfg.Manifests...), manifestFlags...),
	}
	src.Entries = append(src.Entries, cfg.Entries()...)
	for _, value := range registerFlags {
		e, err := manifest.ParseFlag(value)
		if err != nil {
			return src, err
		}
		src.Entries = append(src.Entries, e)
	}
	return src, nil
}

// openService builds the service from config and applies all registration
// sources. The returned cleanup closes the service and flushes traces.
func openService(ctx context.Context, out io.Writer) (*appautoload.Service, func(), error) {
	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return nil, nil, fmt.Errorf("init tracing: %w", err)
	}

	svc, err := appautoload.NewService(appautoload.Options{
		Runtime: host.Kind(cfg.Runtime),
		Output:  out,
		Loader: loader.Config{
			ProbeTTL:        cfg.Cache.ProbeTTL,
			CleanupInterval: cfg.Cache.CleanupInterval,
			DisableCache:    cfg.Cache.Disabled,
		},
		Tracer: provider.Tracer(),
	})
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, nil, err
	}

	cleanup := func() {
		_ = svc.Close()
		if err := provider.Shutdown(context.Background()); err != nil {
			log.ErrorErr(log.CatTrace, "shutdown tracing", err)
		}
	}

	src, err := sources()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	sum, err := svc.Apply(ctx, src)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("apply registrations: %w", err)
	}
	log.Debug(log.CatRegistry, "registrations applied", "registered", sum.Registered, "skipped", sum.Skipped)

	return svc, cleanup, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
