package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"codeberg.org/mutker/rampctl/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTick(t *testing.T) {
	m := metrics.New()

	m.ObserveTick(3000, 10, 8.5, 0.02)
	m.ObserveTick(3000, 20, 18, 0.04)
	m.SetEnabled(true)

	reg := m.Registry()
	n, err := testutil.GatherAndCount(reg, "rampctl_ticks_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetGauge() != nil:
				values[mf.GetName()] = metric.GetGauge().GetValue()
			case metric.GetCounter() != nil:
				values[mf.GetName()] = metric.GetCounter().GetValue()
			}
		}
	}

	assert.Equal(t, 2.0, values["rampctl_ticks_total"])
	assert.Equal(t, 20.0, values["rampctl_commanded_rpm"])
	assert.Equal(t, 18.0, values["rampctl_measured_rpm"])
	assert.Equal(t, 0.04, values["rampctl_elapsed_seconds"])
	assert.Equal(t, 1.0, values["rampctl_enabled"])
}

func TestFaultCounter(t *testing.T) {
	m := metrics.New()
	m.Fault(metrics.FaultCommand)
	m.Fault(metrics.FaultCommand)
	m.Fault(metrics.FaultTelemetry)

	n, err := testutil.GatherAndCount(m.Registry(), "rampctl_faults_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series per fault kind")
}

func TestHandler(t *testing.T) {
	m := metrics.New()
	m.ObserveTick(1, 2, 3, 4)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rampctl_measured_rpm 3")
}

func TestNoop(t *testing.T) {
	obs := metrics.Noop()
	obs.ObserveTick(1, 2, 3, 4)
	obs.Fault(metrics.FaultRead)
	obs.SetEnabled(true)
}
