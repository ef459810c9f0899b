package mqtt

import (
	"context"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	mmqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibs-source/mqtt-subscriber/internal/config"
	"github.com/ibs-source/mqtt-subscriber/internal/log"
	"github.com/ibs-source/mqtt-subscriber/internal/metrics"
)

func TestIntegration_ReceivesPublishedMessage(t *testing.T) {
	addr := reserveTCPAddr(t)
	server := startTestBroker(t, addr, true)
	defer func() { _ = server.Close() }()

	cfg := brokerConfig(t, addr)
	cfg.PublishMessage = "hello"
	m, hook := newBrokerManager(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool {
		return countMessages(hook, "Received message: hello") == 1
	}, 5*time.Second, 20*time.Millisecond, "published message was not logged")
	assert.Equal(t, StateConnected, m.State())

	require.NoError(t, server.Publish("my_topic", []byte("from broker"), false, 0))
	require.Eventually(t, func() bool {
		return countMessages(hook, "Received message: from broker") == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	assert.Equal(t, StateDisconnected, m.State())
	assert.Equal(t, 1, countMessages(hook, "Disconnected from MQTT broker"))
}

func TestIntegration_RejectedConnection(t *testing.T) {
	addr := reserveTCPAddr(t)
	server := startTestBroker(t, addr, false)
	defer func() { _ = server.Close() }()

	m, hook := newBrokerManager(t, brokerConfig(t, addr))

	err := m.Run(context.Background())

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.NotZero(t, connErr.Code)
	assert.Equal(t, 1, countMessages(hook, err.Error()))
	assert.Equal(t, 1, countMessages(hook, "Disconnected from MQTT broker"))
	assert.Zero(t, countMessages(hook, "Connected to MQTT broker"))
}

func TestIntegration_BrokerUnreachable(t *testing.T) {
	addr := reserveTCPAddr(t)
	m, hook := newBrokerManager(t, brokerConfig(t, addr))

	err := m.Run(context.Background())

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.NotZero(t, connErr.Code)
	assert.Equal(t, 1, countMessages(hook, "Disconnected from MQTT broker"))
}

func newBrokerManager(t *testing.T, cfg *config.MQTTConfig) (*Manager, *test.Hook) {
	t.Helper()

	logger := log.NewWithOutput(io.Discard)
	hook := test.NewLocal(logger.GetLogrus())

	m, err := NewManager(cfg, nil, metrics.New(States...), logger)
	require.NoError(t, err)
	return m, hook
}

func brokerConfig(t *testing.T, addr string) *config.MQTTConfig {
	t.Helper()

	host, portText, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portText)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Host = host
	cfg.Port = port
	cfg.ConnectTimeout = 3 * time.Second
	cfg.SubscribeTimeout = 3 * time.Second
	cfg.WriteTimeout = 3 * time.Second
	return cfg
}

func startTestBroker(t *testing.T, addr string, allow bool) *mmqtt.Server {
	t.Helper()

	server := mmqtt.New(&mmqtt.Options{InlineClient: true})
	if allow {
		require.NoError(t, server.AddHook(new(auth.AllowHook), nil))
	}
	require.NoError(t, server.AddListener(listeners.NewTCP(listeners.Config{
		ID:      "t1",
		Address: addr,
	})))

	go func() {
		_ = server.Serve()
	}()

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 3*time.Second, 50*time.Millisecond, "broker did not start listening in time")

	return server
}

func reserveTCPAddr(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}
