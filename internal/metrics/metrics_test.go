package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterDefaultIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		RegisterDefault()
		RegisterDefault()
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	RegisterDefault()
	WebhookRequests.WithLabelValues("app/uninstalled", "ok").Inc()
	ObserveHTTP(http.MethodGet, "/api/shares", http.StatusOK, 12*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "shopdelta_webhook_requests_total"))
	assert.True(t, strings.Contains(body, `route="/api/shares"`))
}

func TestObserveHTTPCounts(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues(http.MethodPost, "/s/{code}/unlock", "429"))
	ObserveHTTP(http.MethodPost, "/s/{code}/unlock", http.StatusTooManyRequests, time.Millisecond)
	after := testutil.ToFloat64(HTTPRequests.WithLabelValues(http.MethodPost, "/s/{code}/unlock", "429"))
	assert.Equal(t, before+1, after)
}
