// Package mqtt manages the broker connection: connect, subscribe, log received messages and disconnect.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/looplab/fsm"

	"github.com/ibs-source/mqtt-subscriber/internal/config"
	"github.com/ibs-source/mqtt-subscriber/internal/log"
	"github.com/ibs-source/mqtt-subscriber/internal/message"
	"github.com/ibs-source/mqtt-subscriber/internal/metrics"
)

// subscribeFailure is the SUBACK code for a refused subscription
const subscribeFailure = 0x80

// Sink receives every message that decoded successfully
type Sink interface {
	Record(ctx context.Context, msg message.Received) (string, error)
}

// pahoClient is the subset of mqtt.Client the Manager drives
type pahoClient interface {
	Connect() mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Manager owns one broker connection and its single subscription
type Manager struct {
	client            pahoClient
	broker            string
	clientID          string
	topic             string
	qos               byte
	publishMessage    string
	connectTimeout    time.Duration
	writeTimeout      time.Duration
	subscribeTimeout  time.Duration
	disconnectTimeout uint

	state          *fsm.FSM
	failures       chan error
	closed         atomic.Bool
	disconnectOnce sync.Once

	sink    Sink
	metrics *metrics.Metrics
	log     *log.Logger
}

// NewManager builds the paho client for cfg without connecting.
// sink and m may be nil.
func NewManager(cfg *config.MQTTConfig, sink Sink, m *metrics.Metrics, logger *log.Logger) (*Manager, error) {
	mgr := newManager(cfg, nil, sink, m, logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL())
	opts.SetClientID(cfg.ClientID)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetWriteTimeout(cfg.WriteTimeout)
	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		_ = mgr.handleConnect(packets.Accepted)
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if err == nil {
			err = errors.New("connection closed by broker")
		}
		mgr.transition(eventDisconnect)
		mgr.fail(fmt.Errorf("mqtt connection lost: %w", err))
	})

	if cfg.TLSEnabled {
		tlsConfig, err := newTLSConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	mgr.client = mqtt.NewClient(opts)
	return mgr, nil
}

func newManager(cfg *config.MQTTConfig, client pahoClient, sink Sink, m *metrics.Metrics, logger *log.Logger) *Manager {
	mgr := &Manager{
		client:            client,
		broker:            cfg.BrokerURL(),
		clientID:          cfg.ClientID,
		topic:             cfg.Topic,
		qos:               cfg.QoS,
		publishMessage:    cfg.PublishMessage,
		connectTimeout:    cfg.ConnectTimeout,
		writeTimeout:      cfg.WriteTimeout,
		subscribeTimeout:  cfg.SubscribeTimeout,
		disconnectTimeout: cfg.DisconnectTimeout,
		failures:          make(chan error, 1),
		sink:              sink,
		metrics:           m,
		log:               logger,
	}
	mgr.state = newStateMachine(func(state string) {
		m.SetState(state)
		logger.Debug("MQTT connection state: %s", state)
	})
	m.SetState(StateDisconnected)
	return mgr
}

// Connect opens the transport and performs the MQTT handshake. The
// subscription is made by the on-connect handler once the broker accepts.
func (m *Manager) Connect(ctx context.Context) error {
	if m.closed.Load() {
		return errors.New("mqtt manager already disconnected")
	}
	if err := m.state.Event(context.Background(), eventConnect); err != nil {
		return fmt.Errorf("cannot connect while %s: %w", m.state.Current(), err)
	}
	m.log.Info("Connecting to MQTT broker %s as %s", m.broker, m.clientID)

	token := m.client.Connect()
	if err := waitToken(ctx, token, m.connectTimeout); err != nil {
		if ctx.Err() != nil {
			m.transition(eventFail)
			return fmt.Errorf("mqtt connect aborted: %w", err)
		}
		return m.connectFailed(&ConnectionError{Code: packets.ErrNetworkError, Err: err})
	}

	if err := token.Error(); err != nil {
		if rc := returnCode(token); rc != packets.Accepted && rc != packets.ErrNetworkError {
			return m.handleConnect(rc)
		}
		return m.connectFailed(&ConnectionError{Code: packets.ErrNetworkError, Err: err})
	}

	return nil
}

// handleConnect reacts to the broker's CONNACK return code. On acceptance it
// subscribes to the topic exactly once; otherwise it reports a ConnectionError.
func (m *Manager) handleConnect(rc byte) error {
	if rc != packets.Accepted {
		return m.connectFailed(&ConnectionError{Code: rc})
	}
	if m.closed.Load() {
		return nil
	}

	m.log.Info("Connected to MQTT broker")

	token := m.client.Subscribe(m.topic, m.qos, func(_ mqtt.Client, msg mqtt.Message) {
		m.handleMessage(msg)
	})
	if err := m.waitSubscribe(token); err != nil {
		err = fmt.Errorf("failed to subscribe to %s: %w", m.topic, err)
		m.fail(err)
		return err
	}

	m.log.Info("Subscribed to topic %s (qos %d)", m.topic, m.qos)
	m.transition(eventSubscribed)

	if m.publishMessage != "" {
		if err := m.Publish(context.Background(), []byte(m.publishMessage)); err != nil {
			m.log.Warn("Failed to publish startup message: %v", err)
		}
	}

	return nil
}

func (m *Manager) waitSubscribe(token mqtt.Token) error {
	if err := waitToken(context.Background(), token, m.subscribeTimeout); err != nil {
		return err
	}
	if err := token.Error(); err != nil {
		return err
	}
	if st, ok := token.(*mqtt.SubscribeToken); ok {
		if code, found := st.Result()[m.topic]; found && code == subscribeFailure {
			return errors.New("subscription refused by broker")
		}
	}
	return nil
}

// handleMessage logs the decoded payload and forwards it to the sink.
// Payloads that are not valid UTF-8 are skipped.
func (m *Manager) handleMessage(msg mqtt.Message) {
	received := message.Received{
		Topic:      msg.Topic(),
		Payload:    msg.Payload(),
		QoS:        msg.Qos(),
		Retained:   msg.Retained(),
		MessageID:  msg.MessageID(),
		ReceivedAt: time.Now(),
	}

	text, err := received.Text()
	if err != nil {
		m.metrics.IncDecodeFailure()
		m.log.WarnWithFields(log.Fields{"topic": received.Topic, "bytes": len(received.Payload)},
			"Skipping message: %v", err)
		return
	}

	m.metrics.IncReceived()
	m.log.InfoWithFields(log.Fields{"topic": received.Topic}, "Received message: %s", text)

	if m.sink == nil {
		return
	}
	if _, err := m.sink.Record(context.Background(), received); err != nil {
		m.metrics.IncRecorder(metrics.OutcomeFailed)
		m.log.Warn("Failed to record message from %s: %v", received.Topic, err)
		return
	}
	m.metrics.IncRecorder(metrics.OutcomeStored)
}

// Run connects and blocks until ctx is cancelled or the connection fails.
// Disconnect runs on every return path.
func (m *Manager) Run(ctx context.Context) error {
	defer m.Disconnect()

	if err := m.Connect(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-m.failures:
		return err
	}
}

// Disconnect closes the connection, waiting up to the configured quiesce
// time for in-flight work. Only the first call has an effect.
func (m *Manager) Disconnect() {
	m.disconnectOnce.Do(func() {
		m.closed.Store(true)
		m.client.Disconnect(m.disconnectTimeout)
		m.transition(eventDisconnect)
		m.log.Info("Disconnected from MQTT broker")
	})
}

// Publish sends payload to the subscribed topic
func (m *Manager) Publish(ctx context.Context, payload []byte) error {
	token := m.client.Publish(m.topic, m.qos, false, payload)

	if err := waitToken(ctx, token, m.writeTimeout); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish failed: %w", err)
	}
	return nil
}

// State returns the current connection state name
func (m *Manager) State() string {
	return m.state.Current()
}

// Healthy reports whether the Manager is connected and subscribed
func (m *Manager) Healthy() bool {
	return m.State() == StateConnected
}

func (m *Manager) connectFailed(err *ConnectionError) error {
	m.metrics.IncConnectFailure(err.Code)
	m.transition(eventFail)
	m.fail(err)
	return err
}

// fail logs err and hands it to Run. Only the first pending failure is kept.
func (m *Manager) fail(err error) {
	m.log.Error("%v", err)
	select {
	case m.failures <- err:
	default:
	}
}

func (m *Manager) transition(event string) {
	if err := m.state.Event(context.Background(), event); err != nil && !isIgnorableTransition(err) {
		m.log.Warn("MQTT state transition %s failed: %v", event, err)
	}
}

// waitToken waits for token completion, ctx cancellation or timeout
func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	}
}

func returnCode(token mqtt.Token) byte {
	if ct, ok := token.(interface{ ReturnCode() byte }); ok {
		return ct.ReturnCode()
	}
	return packets.Accepted
}
