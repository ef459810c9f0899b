package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibs-source/mqtt-subscriber/internal/log"
)

func TestSetState(t *testing.T) {
	m := New("disconnected", "connecting", "connected")

	m.SetState("connecting")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionState.WithLabelValues("connecting")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.connectionState.WithLabelValues("disconnected")))

	m.SetState("connected")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.connectionState.WithLabelValues("connecting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionState.WithLabelValues("connected")))

	m.SetState("draining")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.connectionState.WithLabelValues("connected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionState.WithLabelValues("draining")))
}

func TestCounters(t *testing.T) {
	m := New()

	m.IncReceived()
	m.IncReceived()
	m.IncDecodeFailure()
	m.IncConnectFailure(5)
	m.IncRecorder(OutcomeStored)
	m.IncRecorder(OutcomeFailed)
	m.IncRecorder(OutcomeFailed)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messagesReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decodeFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectFailures.WithLabelValues("5")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recorderResults.WithLabelValues(OutcomeStored)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.recorderResults.WithLabelValues(OutcomeFailed)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetState("connected")
		m.IncReceived()
		m.IncDecodeFailure()
		m.IncConnectFailure(1)
		m.IncRecorder(OutcomeStored)
	})
}

func TestServerHandler(t *testing.T) {
	m := New("connected")
	m.IncReceived()
	healthy := false
	s := NewServer(":0", m.Registry(), func() bool { return healthy }, time.Second, log.NewWithOutput(io.Discard))

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "mqtt_subscriber_messages_received_total 1")
	})

	t.Run("unhealthy", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("healthy", func(t *testing.T) {
		healthy = true
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestServerRun(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	m := New()
	s := NewServer(addr, m.Registry(), func() bool { return true }, time.Second, log.NewWithOutput(io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK && strings.TrimSpace(string(body)) == "ok"
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}

func TestServerRun_ListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	s := NewServer(ln.Addr().String(), New().Registry(), nil, time.Second, log.NewWithOutput(io.Discard))
	err = s.Run(context.Background())
	assert.Error(t, err)
}
