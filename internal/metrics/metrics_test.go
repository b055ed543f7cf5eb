package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Endpoint(t *testing.T) {
	m := New()
	m.ExtensionsLoaded.Set(3)
	m.HookExecutionsTotal.WithLabelValues("discord-ready").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "extensions_loaded 3")
	assert.Contains(t, body, `hook_executions_total{hook="discord-ready"} 1`)
}

func TestMetrics_SetExtensionState(t *testing.T) {
	m := New()

	m.SetExtensionState("tracker", "initialized")
	m.SetExtensionState("tracker", "running")

	// only the latest state label survives
	assert.Equal(t, 1, testutil.CollectAndCount(m.ExtensionState))
	assert.Equal(t, 1.0,
		testutil.ToFloat64(m.ExtensionState.WithLabelValues("tracker", "running")))
}

func TestMetrics_ClearExtension(t *testing.T) {
	m := New()
	m.SetExtensionState("tracker", "running")
	m.SetExtensionState("other", "stopped")

	m.ClearExtension("tracker")
	assert.Equal(t, 1, testutil.CollectAndCount(m.ExtensionState))
}
