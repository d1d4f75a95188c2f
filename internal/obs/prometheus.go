package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "trader"

// Collector exposes a Metrics snapshot to a Prometheus registry.
type Collector struct {
	metrics *Metrics

	ticks       *prometheus.Desc
	rejected    *prometheus.Desc
	cycles      *prometheus.Desc
	cycleErrors *prometheus.Desc
	actions     *prometheus.Desc
	riskDenied  *prometheus.Desc
	callAvg     *prometheus.Desc
	callErrors  *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(m *Metrics) *Collector {
	return &Collector{
		metrics:     m,
		ticks:       prometheus.NewDesc(namespace+"_ticks_accepted_total", "Accepted quote ticks.", nil, nil),
		rejected:    prometheus.NewDesc(namespace+"_ticks_rejected_total", "Rejected quote ticks.", []string{"reason"}, nil),
		cycles:      prometheus.NewDesc(namespace+"_cycles_total", "Live loop cycles.", nil, nil),
		cycleErrors: prometheus.NewDesc(namespace+"_cycle_errors_total", "Live loop cycles ending in an error.", nil, nil),
		actions:     prometheus.NewDesc(namespace+"_order_actions_total", "Reconciled order actions.", []string{"action"}, nil),
		riskDenied:  prometheus.NewDesc(namespace+"_risk_denied_total", "Orders denied by the risk engine.", []string{"reason"}, nil),
		callAvg:     prometheus.NewDesc(namespace+"_gateway_call_avg_seconds", "Average gateway call latency.", []string{"op"}, nil),
		callErrors:  prometheus.NewDesc(namespace+"_gateway_errors_total", "Failed gateway calls.", []string{"op"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ticks
	ch <- c.rejected
	ch <- c.cycles
	ch <- c.cycleErrors
	ch <- c.actions
	ch <- c.riskDenied
	ch <- c.callAvg
	ch <- c.callErrors
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.metrics.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.ticks, prometheus.CounterValue, float64(s.TicksAccepted))
	for reason, v := range s.TicksRejected {
		ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(v), reason)
	}
	ch <- prometheus.MustNewConstMetric(c.cycles, prometheus.CounterValue, float64(s.Cycles))
	ch <- prometheus.MustNewConstMetric(c.cycleErrors, prometheus.CounterValue, float64(s.CycleErrors))

	ch <- prometheus.MustNewConstMetric(c.actions, prometheus.CounterValue, float64(s.Amends), "amend")
	ch <- prometheus.MustNewConstMetric(c.actions, prometheus.CounterValue, float64(s.Creates), "create")
	ch <- prometheus.MustNewConstMetric(c.actions, prometheus.CounterValue, float64(s.Cancels), "cancel")

	for reason, v := range s.RiskReasonCounts {
		ch <- prometheus.MustNewConstMetric(c.riskDenied, prometheus.CounterValue, float64(v), reason)
	}
	for op, l := range s.GatewayLatency {
		ch <- prometheus.MustNewConstMetric(c.callAvg, prometheus.GaugeValue, l.Avg.Seconds(), op)
	}
	for op, v := range s.GatewayErrors {
		ch <- prometheus.MustNewConstMetric(c.callErrors, prometheus.CounterValue, float64(v), op)
	}
}
