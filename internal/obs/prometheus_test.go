package obs

import (
	"testing"
	"time"

	"trader/internal/order"
	"trader/internal/reconcile"
	"trader/internal/strategy"
	"trader/pkg/exception"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	m := NewMetrics()
	m.ObserveDecision(strategy.Decision{})
	m.ObserveDecision(strategy.Decision{Rejected: exception.ErrTickMissingPrice})
	m.ObserveReconcile(reconcile.Result{Create: []order.Order{{}, {}}})
	m.ObserveCycle(time.Millisecond, nil)
	m.ObserveCall("instrument", 20*time.Millisecond, exception.ErrOverloaded)

	c := NewCollector(m)
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(c))

	testCases := []struct {
		desc  string
		name  string
		count int
	}{
		{"accepted", "trader_ticks_accepted_total", 1},
		{"rejected by reason", "trader_ticks_rejected_total", 1},
		{"actions", "trader_order_actions_total", 3},
		{"gateway latency", "trader_gateway_call_avg_seconds", 1},
		{"gateway errors", "trader_gateway_errors_total", 1},
		{"no risk denials", "trader_risk_denied_total", 0},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.count, testutil.CollectAndCount(c, tc.name))
		})
	}

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
