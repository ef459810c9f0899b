package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ibs-source/mqtt-subscriber/internal/testutil"
)

func TestMQTTConfig_BrokerURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  MQTTConfig
		want string
	}{
		{name: "plain tcp", cfg: MQTTConfig{Host: "mqtt.eclipseprojects.io", Port: 1883}, want: "tcp://mqtt.eclipseprojects.io:1883"},
		{name: "tls", cfg: MQTTConfig{Host: "broker", Port: 8883, TLSEnabled: true}, want: "ssl://broker:8883"},
		{name: "ipv6", cfg: MQTTConfig{Host: "::1", Port: 1883}, want: "tcp://[::1]:1883"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.BrokerURL(); got != tt.want {
				t.Errorf("BrokerURL() = %s; want %s", got, tt.want)
			}
		})
	}
}

func TestApplyTopicPrefix(t *testing.T) {
	certs := testutil.WriteCertificates(t, t.TempDir(), "device-42")

	t.Run("Disabled", func(t *testing.T) {
		cfg := &Config{MQTT: MQTTConfig{Topic: "my_topic", ClientCert: certs.Cert}}
		if err := applyTopicPrefix(cfg); err != nil {
			t.Fatalf("applyTopicPrefix() error = %v; want nil", err)
		}
		if cfg.MQTT.Topic != "my_topic" {
			t.Errorf("Topic = %s; want my_topic", cfg.MQTT.Topic)
		}
	})

	t.Run("NoCert", func(t *testing.T) {
		cfg := &Config{MQTT: MQTTConfig{Topic: "my_topic", UseCertCNPrefix: true}}
		if err := applyTopicPrefix(cfg); err != nil {
			t.Fatalf("applyTopicPrefix() error = %v; want nil", err)
		}
		if cfg.MQTT.Topic != "my_topic" {
			t.Errorf("Topic = %s; want my_topic", cfg.MQTT.Topic)
		}
	})

	t.Run("WithCert", func(t *testing.T) {
		cfg := &Config{MQTT: MQTTConfig{Topic: "my_topic", UseCertCNPrefix: true, ClientCert: certs.Cert}}
		if err := applyRuntimeValidation(cfg); err != nil {
			t.Fatalf("applyRuntimeValidation() error = %v; want nil", err)
		}
		if cfg.MQTT.Topic != "device-42/my_topic" {
			t.Errorf("Topic = %s; want device-42/my_topic", cfg.MQTT.Topic)
		}
	})

	t.Run("MissingCert", func(t *testing.T) {
		cfg := &Config{MQTT: MQTTConfig{Topic: "my_topic", UseCertCNPrefix: true, ClientCert: "/nonexistent/cert.pem"}}
		if err := applyRuntimeValidation(cfg); err == nil {
			t.Error("applyRuntimeValidation() error = nil; want error for missing cert")
		}
	})
}

func TestExtractCNFromCertFile_InvalidCert(t *testing.T) {
	certPath := filepath.Join(t.TempDir(), "invalid-cert.pem")
	if err := os.WriteFile(certPath, []byte("invalid cert content"), 0o600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if _, err := extractCNFromCertFile(certPath); err == nil {
		t.Error("extractCNFromCertFile() error = nil; want error for invalid cert")
	}
}
