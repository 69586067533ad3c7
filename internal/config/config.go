// Package config loads runtime configuration from the config file,
// environment, and defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/daybreakapp/daybreak/internal/version"
)

// Config holds all runtime settings.
type Config struct {
	// Generator service.
	GeneratorURL     string        `mapstructure:"generator_url" env:"GENERATOR_URL"`
	GeneratorTimeout time.Duration `mapstructure:"generator_timeout" env:"GENERATOR_TIMEOUT"`

	// Audio format requested from the generator and used for playback.
	SampleRate int `mapstructure:"sample_rate" env:"SAMPLE_RATE"`
	Channels   int `mapstructure:"channels" env:"CHANNELS"`

	// Resource cache.
	CacheVersion string   `mapstructure:"cache_version" env:"CACHE_VERSION"`
	AllowHosts   []string `mapstructure:"allow_hosts" env:"ALLOW_HOSTS"`
	Manifest     []string `mapstructure:"manifest" env:"MANIFEST"`

	// Server.
	BindAddr string `mapstructure:"bind_addr" env:"BIND_ADDR"`

	// AssetOrigin is the upstream origin the /assets passthrough proxies.
	// Empty disables the proxy.
	AssetOrigin string `mapstructure:"asset_origin" env:"ASSET_ORIGIN"`

	// Storage locations. Empty means the platform defaults.
	DataDir  string `mapstructure:"data_dir" env:"DATA_DIR"`
	CacheDir string `mapstructure:"cache_dir" env:"CACHE_DIR"`

	Debug bool `mapstructure:"debug" env:"DEBUG"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		GeneratorURL:     "http://localhost:8480",
		GeneratorTimeout: 30 * time.Second,
		SampleRate:       24000,
		Channels:         1,
		CacheVersion:     version.DefaultGeneration(),
		AllowHosts: []string{
			"fonts.googleapis.com",
			"fonts.gstatic.com",
			"cdn.tailwindcss.com",
		},
		BindAddr: ":8390",
	}
}

// Load reads configuration: defaults, then the config file (if present),
// then DAYBREAK_-prefixed environment variables.
func Load(configFile string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		scope := gap.NewScope(gap.User, "daybreak")
		dirs, err := scope.ConfigDirs()
		if err == nil {
			for _, dir := range dirs {
				v.AddConfigPath(dir)
			}
		}
		v.SetConfigName("daybreak")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case configFile != "":
			return cfg, fmt.Errorf("failed to read config %q: %w", configFile, err)
		case !errors.As(err, &notFound):
			// A broken config at the default search path should not fail
			// the whole invocation, but the user needs to hear about it.
			log.Warn("could not parse configuration file", "error", err)
		}
		// No config file is fine; defaults and env apply.
	} else {
		if err := v.Unmarshal(&cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
		log.Debug("config file loaded", "path", v.ConfigFileUsed())
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "DAYBREAK_"}); err != nil {
		return cfg, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.applyPathDefaults(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks invariants the rest of the system depends on.
func (c *Config) Validate() error {
	if c.GeneratorURL == "" {
		return errors.New("generator_url must be set")
	}
	if c.GeneratorTimeout <= 0 {
		return errors.New("generator_timeout must be positive")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid sample_rate %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("invalid channels %d", c.Channels)
	}
	if c.CacheVersion == "" {
		return errors.New("cache_version must be set")
	}
	return nil
}

// StorePath returns the key-value store directory.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "store")
}

// ResourceCachePath returns the resource cache directory.
func (c *Config) ResourceCachePath() string {
	return filepath.Join(c.CacheDir, "resources")
}

func (c *Config) applyPathDefaults() error {
	scope := gap.NewScope(gap.User, "daybreak")

	if c.DataDir == "" {
		dir, err := scope.DataPath("")
		if err != nil {
			return fmt.Errorf("failed to resolve data directory: %w", err)
		}
		c.DataDir = dir
	}
	if c.CacheDir == "" {
		dir, err := scope.CacheDir()
		if err != nil {
			return fmt.Errorf("failed to resolve cache directory: %w", err)
		}
		c.CacheDir = dir
	}
	return nil
}
