package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpErrors.WithLabelValues("/test", http.MethodGet))
	ObserveHTTPRequest("/test", http.MethodGet, http.StatusBadGateway, 20*time.Millisecond)
	ObserveHTTPRequest("/test", http.MethodGet, http.StatusOK, time.Millisecond)

	require.Equal(t, before+1, testutil.ToFloat64(httpErrors.WithLabelValues("/test", http.MethodGet)))
	require.GreaterOrEqual(t, testutil.ToFloat64(httpRequests.WithLabelValues("/test", http.MethodGet, "200")), 1.0)
}

func TestAttestationCounters(t *testing.T) {
	before := testutil.ToFloat64(attestations.WithLabelValues("xrp_tx", OutcomeRejected))
	ObserveAttestation("xrp_tx", OutcomeRejected)
	require.Equal(t, before+1, testutil.ToFloat64(attestations.WithLabelValues("xrp_tx", OutcomeRejected)))

	done := TrackJob()
	require.Equal(t, 1.0, testutil.ToFloat64(jobsInFlight))
	done()
	require.Equal(t, 0.0, testutil.ToFloat64(jobsInFlight))
}

func TestHandlerExposesMetrics(t *testing.T) {
	ObserveProving("collateral", OutcomeProved, 50*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "attest_proving_duration_seconds_bucket"))
}
