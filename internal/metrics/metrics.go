// Package metrics exposes Prometheus instrumentation for the subscriber.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "mqtt_subscriber"

// Recorder outcomes
const (
	OutcomeStored = "stored"
	OutcomeFailed = "failed"
)

// Metrics holds the collectors registered on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	connectionState  *prometheus.GaugeVec
	messagesReceived prometheus.Counter
	decodeFailures   prometheus.Counter
	connectFailures  *prometheus.CounterVec
	recorderResults  *prometheus.CounterVec

	mu     sync.Mutex
	states []string
}

// New creates and registers all collectors. states are the known connection
// state names; each gets its own series so dashboards see zeros, not gaps.
func New(states ...string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current MQTT connection state (1 for the active state, 0 otherwise).",
		}, []string{"state"}),
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of messages received and logged.",
		}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "Total number of messages skipped because the payload is not valid UTF-8.",
		}),
		connectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_failures_total",
			Help:      "Total number of failed connection attempts by return code.",
		}, []string{"code"}),
		recorderResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recorder_results_total",
			Help:      "Total number of recorder writes by outcome (stored/failed).",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.connectionState,
		m.messagesReceived,
		m.decodeFailures,
		m.connectFailures,
		m.recorderResults,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	for _, s := range states {
		m.connectionState.WithLabelValues(s).Set(0)
	}
	m.states = append(m.states, states...)

	return m
}

// Registry returns the registry holding all collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetState marks state as the active connection state.
func (m *Metrics) SetState(state string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	known := false
	for _, s := range m.states {
		if s == state {
			known = true
			continue
		}
		m.connectionState.WithLabelValues(s).Set(0)
	}
	if !known {
		m.states = append(m.states, state)
	}
	m.connectionState.WithLabelValues(state).Set(1)
}

func (m *Metrics) IncReceived() {
	if m == nil {
		return
	}
	m.messagesReceived.Inc()
}

func (m *Metrics) IncDecodeFailure() {
	if m == nil {
		return
	}
	m.decodeFailures.Inc()
}

// IncConnectFailure counts a failed connection attempt under its return code.
func (m *Metrics) IncConnectFailure(code byte) {
	if m == nil {
		return
	}
	m.connectFailures.WithLabelValues(strconv.Itoa(int(code))).Inc()
}

// IncRecorder counts a recorder write; outcome is OutcomeStored or OutcomeFailed.
func (m *Metrics) IncRecorder(outcome string) {
	if m == nil {
		return
	}
	m.recorderResults.WithLabelValues(outcome).Inc()
}
