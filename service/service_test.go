package service

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-skipgate/metrics"
	"github.com/ethereum-optimism/infra/op-skipgate/types"
)

func TestHealthzServer_Handle(t *testing.T) {
	h := &HealthzServer{}
	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestMetricsServer_Handler(t *testing.T) {
	metrics.RecordVerdict(types.Skip("Ignored by x"))

	srv := httptest.NewServer((&MetricsServer{}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `skipgate_verdicts_total{verdict="skip"}`)
}

func TestNew_DefaultAddresses(t *testing.T) {
	s := New("", "")
	assert.Equal(t, "0.0.0.0:8080", s.healthzAddr)
	assert.Equal(t, "0.0.0.0:7300", s.metricsAddr)

	s = New("127.0.0.1:1", "127.0.0.1:2")
	assert.Equal(t, "127.0.0.1:1", s.healthzAddr)
	assert.Equal(t, "127.0.0.1:2", s.metricsAddr)

	// shutting down servers that never started is a no-op
	s.Shutdown()
}
