package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/zaloga/internal/alert"
)

var _ alert.Recorder = (*Metrics)(nil)

func TestRecorder(t *testing.T) {
	m := New()
	m.NotificationRaised("low_stock")
	m.NotificationRaised("low_stock")
	m.NotificationSuppressed("past_due")
	m.PastDueMarked(3)
	m.SweepCompleted(time.Second, nil)
	m.SweepCompleted(time.Second, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.raised.WithLabelValues("low_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.suppressed.WithLabelValues("past_due")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.pastDue))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweeps.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweeps.WithLabelValues("error")))
	assert.Positive(t, testutil.ToFloat64(m.lastSweep))
}

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "GET /api/items", 200, 5*time.Millisecond)
	m.ObserveRequest("GET", "", 404, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "GET /api/items", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.NotificationRaised("out_of_stock")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `zaloga_notifications_raised_total{type="out_of_stock"} 1`))
}
