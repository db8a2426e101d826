package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := NewObserver(reg)
	require.NoError(t, err)

	o.ObserveActivity("DirectToolUse", true, 20*time.Millisecond)
	o.ObserveActivity("DirectToolUse", true, 30*time.Millisecond)
	o.ObserveActivity("DelegationAgent", false, time.Second)
	o.ObservePlan("Completed", 2*time.Second)
	o.ObservePlan("Failed", time.Second)
	o.ObservePlan("Completed", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(o.activities.WithLabelValues("DirectToolUse", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.activities.WithLabelValues("DelegationAgent", "failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(o.plans.WithLabelValues("Completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.plans.WithLabelValues("Failed")))
	assert.Equal(t, 2, testutil.CollectAndCount(o.duration))
}

func TestObserver_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewObserver(reg)
	require.NoError(t, err)

	_, err = NewObserver(reg)
	assert.Error(t, err)
}

func TestObserver_Handler(t *testing.T) {
	o, err := NewObserver(nil)
	require.NoError(t, err)
	o.ObservePlan("Completed", time.Second)

	srv := httptest.NewServer(o.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `planmesh_plans_total{state="Completed"} 1`)
}
