package config

import (
	"fmt"

	"github.com/ibs-source/mqtt-subscriber/internal/log"
)

// Validate checks configuration constraints
func Validate(cfg *Config) error {
	if err := validateMQTT(&cfg.MQTT); err != nil {
		return err
	}
	if err := validateRecorder(&cfg.Recorder); err != nil {
		return err
	}
	return validateLog(&cfg.Log)
}

// validateMQTT validates MQTT configuration
func validateMQTT(cfg *MQTTConfig) error {
	if cfg.Host == "" {
		return fmt.Errorf("mqtt host cannot be empty")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("mqtt port must be between 1 and 65535")
	}
	if cfg.ClientID == "" {
		return fmt.Errorf("mqtt client ID cannot be empty")
	}
	if cfg.Topic == "" {
		return fmt.Errorf("mqtt topic cannot be empty")
	}
	if cfg.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2")
	}
	if (cfg.ClientCert == "") != (cfg.ClientKey == "") {
		return fmt.Errorf("mqtt client cert and key must be set together")
	}
	return nil
}

// validateRecorder validates the recorder configuration, only when enabled
func validateRecorder(cfg *RecorderConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Address == "" {
		return fmt.Errorf("redis address cannot be empty")
	}
	if cfg.Stream == "" {
		return fmt.Errorf("redis stream cannot be empty")
	}
	if cfg.MaxLen < 0 {
		return fmt.Errorf("redis max len cannot be negative")
	}
	return nil
}

func validateLog(cfg *LogConfig) error {
	if !log.ValidLevel(cfg.Level) {
		return fmt.Errorf("unknown log level %q", cfg.Level)
	}
	return nil
}
