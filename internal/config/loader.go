package config

import (
	"flag"
	"fmt"
)

// Load loads configuration with precedence: defaults → environment variables → command line flags
// It performs runtime transformations and validation before returning the configuration.
func Load() (*Config, error) {
	if !flag.Parsed() {
		flag.Parse()
	}

	cfg := defaultConfig()

	loadMQTTFromEnv(&cfg.MQTT)
	loadRecorderFromEnv(&cfg.Recorder)
	loadMetricsFromEnv(&cfg.Metrics)
	loadLogFromEnv(&cfg.Log)

	applyMQTTFlags(&cfg.MQTT)
	applyRecorderFlags(&cfg.Recorder)
	applyMetricsFlags(&cfg.Metrics)
	applyLogFlags(&cfg.Log)

	if err := applyRuntimeValidation(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
