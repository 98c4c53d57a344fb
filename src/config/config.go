// Package config holds the runtime configuration for derep.
//
// Settings are layered with koanf: built-in defaults, then an optional YAML file,
// then DEREP_* environment variables, then any flags set on the command line.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ErrConfiguration is returned for settings that make a run impossible; it is reported before any work starts
var ErrConfiguration = errors.New("configuration error")

// EnvPrefix is the prefix for environment variable overrides (e.g. DEREP_THRESHOLD=0.1)
const EnvPrefix = "DEREP_"

// threshold policies
const (
	PolicyContainment = "containment"
	PolicyJaccard     = "jaccard"
)

// index construction strategies
const (
	StrategyFull  = "full"
	StrategyBlock = "block"
)

// Config is the full set of runtime parameters
type Config struct {
	Processors     int       `koanf:"processors" validate:"gte=1"`
	Memory         string    `koanf:"memory"`
	BlockSize      int       `koanf:"block_size" validate:"gte=0"`
	Passes         int       `koanf:"passes" validate:"gte=0"`
	Threshold      float64   `koanf:"threshold" validate:"gte=0,lte=1"`
	Policy         string    `koanf:"policy" validate:"oneof=containment jaccard"`
	Strategy       string    `koanf:"strategy" validate:"oneof=full block"`
	Ksize          int       `koanf:"ksize" validate:"gte=0"`
	InputPolicy    string    `koanf:"input_policy" validate:"oneof=skip abort"`
	OutDir         string    `koanf:"out_dir" validate:"required"`
	CompressShards bool      `koanf:"compress_shards"`
	Progress       bool      `koanf:"progress"`
	Log            LogConfig `koanf:"log"`
}

// LogConfig sets up the logger
type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
	File  string `koanf:"file"`
	JSON  bool   `koanf:"json"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Processors:  1,
		Threshold:   0.01,
		Policy:      PolicyContainment,
		Strategy:    StrategyFull,
		InputPolicy: "skip",
		OutDir:      "./derep-out",
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from the defaults, an optional YAML file, the environment and
// the supplied overrides (koanf paths, e.g. "log.level"), then validates it
func Load(path string, overrides map[string]interface{}) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: can't access config file %v", ErrConfiguration, path)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	for key, val := range overrides {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envTransform maps DEREP_BLOCK_SIZE to block_size and DEREP_LOG_LEVEL to log.level
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if strings.HasPrefix(key, "log_") {
		return "log." + strings.TrimPrefix(key, "log_")
	}
	return key
}

// Validate checks the field constraints and the settings that depend on each other
func (cfg *Config) Validate() error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	set := 0
	if cfg.Memory != "" {
		if _, err := cfg.MemoryBytes(); err != nil {
			return err
		}
		set++
	}
	if cfg.BlockSize != 0 {
		set++
	}
	if cfg.Passes != 0 {
		set++
	}
	if set > 1 {
		return fmt.Errorf("%w: set only one of memory, block size or passes", ErrConfiguration)
	}
	return nil
}

// MemoryBytes parses the memory budget (e.g. "16GB", "512MiB"); 0 if unset
func (cfg *Config) MemoryBytes() (uint64, error) {
	if cfg.Memory == "" {
		return 0, nil
	}
	b, err := humanize.ParseBytes(cfg.Memory)
	if err != nil {
		return 0, fmt.Errorf("%w: can't parse memory budget %q: %v", ErrConfiguration, cfg.Memory, err)
	}
	if b == 0 {
		return 0, fmt.Errorf("%w: memory budget must be positive", ErrConfiguration)
	}
	return b, nil
}
