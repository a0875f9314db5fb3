package main

import (
	"hatespeech-annotation/internal/config"

	"go.uber.org/zap"
)

var globalFlags struct {
	configPath string
	logLevel   string
}

// loadConfig reads --config, or the defaults when it is not set.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if globalFlags.configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(globalFlags.configPath); err != nil {
			return nil, err
		}
	}
	if globalFlags.logLevel != "" {
		cfg.Log.Level = globalFlags.logLevel
	}
	return cfg, nil
}

// setup loads the config and builds the logger for a subcommand.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
