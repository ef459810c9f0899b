package config

import (
	"flag"
	"time"
)

// Command line flags (have precedence over environment variables)
var (
	// MQTT flags
	flagMQTTHost              *string
	flagMQTTPort              *int
	flagMQTTClientID          *string
	flagMQTTTopic             *string
	flagMQTTQoS               *int
	flagMQTTPublishMessage    *string
	flagMQTTConnectTimeout    *time.Duration
	flagMQTTWriteTimeout      *time.Duration
	flagMQTTSubscribeTimeout  *time.Duration
	flagMQTTKeepAlive         *time.Duration
	flagMQTTDisconnectTimeout *int
	flagMQTTTLSEnabled        *bool
	flagMQTTCACert            *string
	flagMQTTClientCert        *string
	flagMQTTClientKey         *string
	flagMQTTTLSInsecureSkip   *bool
	flagMQTTUseCertCNPrefix   *bool

	// Recorder flags
	flagRedisEnabled      *bool
	flagRedisAddress      *string
	flagRedisStream       *string
	flagRedisMaxLen       *int64
	flagRedisDialTimeout  *time.Duration
	flagRedisWriteTimeout *time.Duration
	flagRedisPingTimeout  *time.Duration

	// Metrics flags
	flagMetricsAddress         *string
	flagMetricsShutdownTimeout *time.Duration

	flagLogLevel *string
)

func init() {
	registerFlags()
}

// registerFlags defines every flag on flag.CommandLine
func registerFlags() {
	flagMQTTHost = flag.String("mqtt-host", "", "MQTT broker host")
	flagMQTTPort = flag.Int("mqtt-port", 0, "MQTT broker port")
	flagMQTTClientID = flag.String("mqtt-client-id", "", "MQTT client ID")
	flagMQTTTopic = flag.String("mqtt-topic", "", "MQTT topic to subscribe to")
	flagMQTTQoS = flag.Int("mqtt-qos", -1, "MQTT QoS (0, 1, or 2)")
	flagMQTTPublishMessage = flag.String("mqtt-publish-message", "", "Message published once on the topic after subscribing")
	flagMQTTConnectTimeout = flag.Duration("mqtt-connect-timeout", 0, "MQTT connect timeout")
	flagMQTTWriteTimeout = flag.Duration("mqtt-write-timeout", 0, "MQTT write timeout")
	flagMQTTSubscribeTimeout = flag.Duration("mqtt-subscribe-timeout", 0, "MQTT subscribe timeout")
	flagMQTTKeepAlive = flag.Duration("mqtt-keep-alive", 0, "MQTT keep alive interval")
	flagMQTTDisconnectTimeout = flag.Int("mqtt-disconnect-timeout", 0, "MQTT disconnect timeout (ms)")
	flagMQTTTLSEnabled = flag.Bool("mqtt-tls-enabled", false, "Enable MQTT TLS")
	flagMQTTCACert = flag.String("mqtt-ca-cert", "", "MQTT CA certificate path")
	flagMQTTClientCert = flag.String("mqtt-client-cert", "", "MQTT client certificate path")
	flagMQTTClientKey = flag.String("mqtt-client-key", "", "MQTT client key path")
	flagMQTTTLSInsecureSkip = flag.Bool("mqtt-tls-insecure-skip", false, "Skip MQTT TLS verification")
	flagMQTTUseCertCNPrefix = flag.Bool("mqtt-use-cert-cn-prefix", false, "Prefix the topic with client cert CN")

	flagRedisEnabled = flag.Bool("redis-enabled", false, "Record received messages into a Redis stream")
	flagRedisAddress = flag.String("redis-address", "", "Redis address")
	flagRedisStream = flag.String("redis-stream", "", "Redis stream name")
	flagRedisMaxLen = flag.Int64("redis-max-len", 0, "Approximate Redis stream length cap")
	flagRedisDialTimeout = flag.Duration("redis-dial-timeout", 0, "Redis dial timeout")
	flagRedisWriteTimeout = flag.Duration("redis-write-timeout", 0, "Redis write timeout")
	flagRedisPingTimeout = flag.Duration("redis-ping-timeout", 0, "Redis ping timeout")

	flagMetricsAddress = flag.String("metrics-address", "", "Listen address for /metrics and /healthz (empty disables)")
	flagMetricsShutdownTimeout = flag.Duration("metrics-shutdown-timeout", 0, "Metrics server shutdown timeout")

	flagLogLevel = flag.String("log-level", "", "Log level (trace, debug, info, warn, error)")
}

// applyMQTTFlags applies command line flags to MQTT configuration
func applyMQTTFlags(cfg *MQTTConfig) {
	applyMQTTFlagStrings(cfg)
	applyMQTTFlagInts(cfg)
	applyMQTTFlagTimeouts(cfg)
	applyMQTTFlagTLS(cfg)
	applyMQTTFlagBools(cfg)
}

func applyMQTTFlagStrings(cfg *MQTTConfig) {
	if *flagMQTTHost != "" {
		cfg.Host = *flagMQTTHost
	}
	if *flagMQTTClientID != "" {
		cfg.ClientID = *flagMQTTClientID
	}
	if *flagMQTTTopic != "" {
		cfg.Topic = *flagMQTTTopic
	}
	if *flagMQTTPublishMessage != "" {
		cfg.PublishMessage = *flagMQTTPublishMessage
	}
}

func applyMQTTFlagInts(cfg *MQTTConfig) {
	if *flagMQTTPort != 0 {
		cfg.Port = *flagMQTTPort
	}
	if *flagMQTTQoS >= 0 && *flagMQTTQoS <= 2 {
		cfg.QoS = byte(*flagMQTTQoS) // #nosec G115 - validated range 0-2
	}
	if *flagMQTTDisconnectTimeout > 0 {
		cfg.DisconnectTimeout = uint(*flagMQTTDisconnectTimeout) // #nosec G115 - validated non-negative
	}
}

func applyMQTTFlagTimeouts(cfg *MQTTConfig) {
	if *flagMQTTConnectTimeout != 0 {
		cfg.ConnectTimeout = *flagMQTTConnectTimeout
	}
	if *flagMQTTWriteTimeout != 0 {
		cfg.WriteTimeout = *flagMQTTWriteTimeout
	}
	if *flagMQTTSubscribeTimeout != 0 {
		cfg.SubscribeTimeout = *flagMQTTSubscribeTimeout
	}
	if *flagMQTTKeepAlive != 0 {
		cfg.KeepAlive = *flagMQTTKeepAlive
	}
}

func applyMQTTFlagTLS(cfg *MQTTConfig) {
	if *flagMQTTCACert != "" {
		cfg.CACert = *flagMQTTCACert
	}
	if *flagMQTTClientCert != "" {
		cfg.ClientCert = *flagMQTTClientCert
	}
	if *flagMQTTClientKey != "" {
		cfg.ClientKey = *flagMQTTClientKey
	}
}

func applyMQTTFlagBools(cfg *MQTTConfig) {
	// Bool flags only override when explicitly set
	if isFlagSet("mqtt-tls-enabled") {
		cfg.TLSEnabled = *flagMQTTTLSEnabled
	}
	if isFlagSet("mqtt-tls-insecure-skip") {
		cfg.InsecureSkip = *flagMQTTTLSInsecureSkip
	}
	if isFlagSet("mqtt-use-cert-cn-prefix") {
		cfg.UseCertCNPrefix = *flagMQTTUseCertCNPrefix
	}
}

// applyRecorderFlags applies command line flags to the recorder configuration
func applyRecorderFlags(cfg *RecorderConfig) {
	if isFlagSet("redis-enabled") {
		cfg.Enabled = *flagRedisEnabled
	}
	if *flagRedisAddress != "" {
		cfg.Address = *flagRedisAddress
	}
	if *flagRedisStream != "" {
		cfg.Stream = *flagRedisStream
	}
	if *flagRedisMaxLen != 0 {
		cfg.MaxLen = *flagRedisMaxLen
	}
	if *flagRedisDialTimeout != 0 {
		cfg.DialTimeout = *flagRedisDialTimeout
	}
	if *flagRedisWriteTimeout != 0 {
		cfg.WriteTimeout = *flagRedisWriteTimeout
	}
	if *flagRedisPingTimeout != 0 {
		cfg.PingTimeout = *flagRedisPingTimeout
	}
}

// applyMetricsFlags applies command line flags to the metrics configuration
func applyMetricsFlags(cfg *MetricsConfig) {
	if *flagMetricsAddress != "" {
		cfg.Address = *flagMetricsAddress
	}
	if *flagMetricsShutdownTimeout != 0 {
		cfg.ShutdownTimeout = *flagMetricsShutdownTimeout
	}
}

func applyLogFlags(cfg *LogConfig) {
	if *flagLogLevel != "" {
		cfg.Level = *flagLogLevel
	}
}

// isFlagSet checks if a flag was explicitly set on the command line
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
