// Package config handles workspace configuration for maestro-orchestra.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/maestro-orchestra/pkg/logger"
)

// EnvPrefix is the prefix of environment overrides, e.g.
// MAESTRO_ORCHESTRA_EXECUTION_LOOKUPTIMEOUTMS.
const EnvPrefix = "MAESTRO_ORCHESTRA"

// Config represents the workspace configuration (config.yaml).
type Config struct {
	// Flow selection
	Flows       []string `mapstructure:"flows"`       // Glob patterns for flows
	IncludeTags []string `mapstructure:"includeTags"` // Tags to include
	ExcludeTags []string `mapstructure:"excludeTags"` // Tags to exclude

	// Env holds variables passed to every flow. Names keep their case.
	Env map[string]string `mapstructure:"-"`

	// Device settings
	Platform string `mapstructure:"platform"` // Target platform
	Device   string `mapstructure:"device"`   // Target device
	Shards   int    `mapstructure:"shards"`   // Parallel device workers

	Execution ExecutionConfig `mapstructure:"execution"`
	Logging   LoggingConfig   `mapstructure:"logging"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// ExecutionConfig tunes the command engine.
type ExecutionConfig struct {
	LookupTimeoutMs         int    `mapstructure:"lookupTimeoutMs"`
	OptionalLookupTimeoutMs int    `mapstructure:"optionalLookupTimeoutMs"`
	ScreenshotsDir          string `mapstructure:"screenshotsDir"`
}

// LookupTimeout returns the element lookup timeout.
func (c ExecutionConfig) LookupTimeout() time.Duration {
	return time.Duration(c.LookupTimeoutMs) * time.Millisecond
}

// OptionalLookupTimeout returns the lookup timeout for optional selectors.
func (c ExecutionConfig) OptionalLookupTimeout() time.Duration {
	return time.Duration(c.OptionalLookupTimeoutMs) * time.Millisecond
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Debug  bool   `mapstructure:"debug"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Logger converts to the logger's configuration.
func (c LoggingConfig) Logger() logger.Config {
	return logger.Config{Debug: c.Debug, Format: c.Format, File: c.File}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("flows", []string{})
	v.SetDefault("includeTags", []string{})
	v.SetDefault("excludeTags", []string{})
	v.SetDefault("platform", "")
	v.SetDefault("device", "")
	v.SetDefault("shards", 1)

	v.SetDefault("execution.lookupTimeoutMs", 17000)
	v.SetDefault("execution.optionalLookupTimeoutMs", 7000)
	v.SetDefault("execution.screenshotsDir", GetScreenshotsDir())

	v.SetDefault("logging.debug", false)
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load loads configuration from a file. Environment overrides apply on top.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.File = path

	// viper folds map keys to lower case; env names are case-sensitive.
	var raw struct {
		Env map[string]string `yaml:"env"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error parsing env in %s: %w", path, err)
	}
	if raw.Env != nil {
		cfg.Env = raw.Env
	}
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() (*Config, error) {
	return decode(newViper())
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if cfg.Env == nil {
		cfg.Env = map[string]string{}
	}
	if cfg.Shards < 1 {
		cfg.Shards = 1
	}
	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{"config.yaml", "config.yml"} {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return Default()
}
