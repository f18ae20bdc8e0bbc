package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.Inc(OutboxPublished)
	m.Inc(OutboxPublished)
	m.Inc(OutboxTerminal)
	m.ObserveBatch(40 * time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues(OutboxPublished)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues(OutboxTerminal)))
	require.Equal(t, 1, testutil.CollectAndCount(m.batch))

	var nilMetrics *OutboxMetrics
	nilMetrics.Inc(OutboxRetry)
	nilMetrics.ObserveBatch(time.Second)
	require.Nil(t, NewOutboxMetrics(nil))
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewOutboxMetrics(reg).Inc(OutboxRetry)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `sokohub_outbox_events_total{result="retry"} 1`))
}
