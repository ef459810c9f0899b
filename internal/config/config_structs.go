// Package config provides configuration loading and validation from environment variables and command line flags.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config holds the complete configuration
type Config struct {
	MQTT     MQTTConfig
	Recorder RecorderConfig
	Metrics  MetricsConfig
	Log      LogConfig
}

// MQTTConfig holds the broker connection and subscription settings
type MQTTConfig struct {
	Host              string
	Port              int
	ClientID          string
	Topic             string
	QoS               byte
	PublishMessage    string // Published once on Topic after subscribing; empty disables it
	ConnectTimeout    time.Duration
	WriteTimeout      time.Duration
	SubscribeTimeout  time.Duration
	KeepAlive         time.Duration
	DisconnectTimeout uint // Milliseconds for graceful disconnect
	// TLS Configuration
	TLSEnabled      bool
	CACert          string
	ClientCert      string
	ClientKey       string
	InsecureSkip    bool
	UseCertCNPrefix bool // If true, prefix the topic with the cert CN for ACL constraints
}

// BrokerURL returns the paho broker URL, ssl:// when TLS is enabled
func (c *MQTTConfig) BrokerURL() string {
	scheme := "tcp"
	if c.TLSEnabled {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)))
}

// RecorderConfig holds the optional Redis stream recorder settings
type RecorderConfig struct {
	Enabled      bool
	Address      string
	Stream       string
	MaxLen       int64 // Approximate stream cap; 0 disables trimming
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	PingTimeout  time.Duration
}

// MetricsConfig holds the Prometheus HTTP endpoint settings
type MetricsConfig struct {
	Address         string // Empty disables the HTTP endpoint
	ShutdownTimeout time.Duration
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}
