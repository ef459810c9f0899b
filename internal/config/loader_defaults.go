package config

import "time"

// defaultMQTTConfig returns the default MQTT configuration
func defaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Host:              "mqtt.eclipseprojects.io",
		Port:              1883,
		ClientID:          "my_client",
		Topic:             "my_topic",
		QoS:               0,
		PublishMessage:    "",
		ConnectTimeout:    10 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  10 * time.Second,
		KeepAlive:         60 * time.Second,
		DisconnectTimeout: 250,
		TLSEnabled:        false,
		CACert:            "",
		ClientCert:        "",
		ClientKey:         "",
		InsecureSkip:      false,
		UseCertCNPrefix:   false,
	}
}

// defaultRecorderConfig returns the default recorder configuration
func defaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		Enabled:      false,
		Address:      "localhost:6379",
		Stream:       "mqtt-messages",
		MaxLen:       10000,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 2 * time.Second,
		PingTimeout:  5 * time.Second,
	}
}

// defaultMetricsConfig returns the default metrics configuration
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Address:         "",
		ShutdownTimeout: 5 * time.Second,
	}
}

// defaultConfig returns a complete configuration with all default values
func defaultConfig() *Config {
	return &Config{
		MQTT:     defaultMQTTConfig(),
		Recorder: defaultRecorderConfig(),
		Metrics:  defaultMetricsConfig(),
		Log:      LogConfig{Level: "info"},
	}
}
