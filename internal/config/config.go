package config

import (
	"fmt"
	"os"
	"time"

	"hatespeech-annotation/internal/llm"
	"hatespeech-annotation/internal/scoring"
	"hatespeech-annotation/internal/split"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Log LogConfig `yaml:"log"`

	Providers               []llm.ProviderConfig `yaml:"providers"`
	MaxFailuresBeforeSwitch int                  `yaml:"max_failures_before_switch"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Inference struct {
		Workers     int           `yaml:"workers"`
		Timeout     time.Duration `yaml:"timeout"`
		CacheSize   int           `yaml:"cache_size"`
		DeriveLabel bool          `yaml:"derive_label"`
	} `yaml:"inference"`

	Evaluation struct {
		OverallMode string `yaml:"overall_mode"` // auto, label or score
	} `yaml:"evaluation"`

	Split struct {
		Holdout float64 `yaml:"holdout"`
		Test    float64 `yaml:"test"`
		Seed    uint64  `yaml:"seed"`
	} `yaml:"split"`
}

// LogConfig selects the zap logger flavour
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

// LoadConfig loads configuration from YAML file
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	// bools default to true before decoding, so an absent key keeps it
	config.Inference.DeriveLabel = true

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.setDefaults()

	for i := range config.Providers {
		config.Providers[i].APIKey = os.ExpandEnv(config.Providers[i].APIKey)
		config.Providers[i].BaseURL = os.ExpandEnv(config.Providers[i].BaseURL)
	}
	config.Database.Path = os.ExpandEnv(config.Database.Path)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Default returns the configuration used when no file is given
func Default() *Config {
	config := &Config{}
	config.Inference.DeriveLabel = true
	config.setDefaults()
	return config
}

func (c *Config) setDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8002"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.MaxFailuresBeforeSwitch == 0 {
		c.MaxFailuresBeforeSwitch = 3
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/annotations.db"
	}
	if c.Inference.Workers == 0 {
		c.Inference.Workers = 4
	}
	if c.Inference.Timeout == 0 {
		c.Inference.Timeout = 60 * time.Second
	}
	if c.Inference.CacheSize == 0 {
		c.Inference.CacheSize = 1024
	}
	if c.Evaluation.OverallMode == "" {
		c.Evaluation.OverallMode = string(scoring.ModeAuto)
	}
	if c.Split.Holdout == 0 {
		c.Split.Holdout = split.DefaultFractions.Holdout
	}
	if c.Split.Test == 0 {
		c.Split.Test = split.DefaultFractions.Test
	}
	if c.Split.Seed == 0 {
		c.Split.Seed = 42
	}
}

// Validate rejects values no component can run with
func (c *Config) Validate() error {
	if _, err := scoring.ParseOverallMode(c.Evaluation.OverallMode); err != nil {
		return fmt.Errorf("evaluation.overall_mode: %w", err)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("log.format: want console or json, got %q", c.Log.Format)
	}
	if c.Inference.Workers < 0 || c.Inference.CacheSize < 0 {
		return fmt.Errorf("inference: workers and cache_size must not be negative")
	}
	for i, p := range c.Providers {
		switch p.Type {
		case llm.ProviderGemini, llm.ProviderGroq, llm.ProviderOpenRouter:
		default:
			return fmt.Errorf("providers[%d]: unknown type %q", i, p.Type)
		}
	}
	return nil
}

// SplitFractions returns the configured split shares
func (c *Config) SplitFractions() split.Fractions {
	return split.Fractions{Holdout: c.Split.Holdout, Test: c.Split.Test}
}

// NewLogger builds a zap logger for the configured level and format
func (l LogConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}

	var zcfg zap.Config
	if l.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	// stdout carries command output
	zcfg.OutputPaths = []string{"stderr"}

	return zcfg.Build()
}
