package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { RegisterCollectors(reg) })

	AuthAttempts.WithLabelValues("login", "ok").Inc()
	GateRejections.WithLabelValues("no_credential").Inc()

	n, err := testutil.GatherAndCount(reg, "cropadvisor_auth_attempts_total", "cropadvisor_auth_gate_rejections_total")
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 2)

	// a second registration on the same registry is a programming error
	require.Panics(t, func() { RegisterCollectors(reg) })
}
