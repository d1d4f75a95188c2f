package obs

import (
	"sync"
	"sync/atomic"
	"time"

	"trader/internal/reconcile"
	"trader/internal/risk"
	"trader/internal/strategy"
	"trader/pkg/exception"

	"github.com/yanun0323/errors"
)

// Tick rejection reasons.
const (
	RejectMissingPrice = "missing_price"
	RejectMissingField = "missing_field"
	RejectSpread       = "spread"
	RejectStep         = "step"
	RejectOther        = "other"
)

var rejectReasons = [...]string{RejectMissingPrice, RejectMissingField, RejectSpread, RejectStep, RejectOther}

const maxRiskReason = int(risk.ReasonPositionLimit)

// Metrics collects lightweight counters and latency stats.
type Metrics struct {
	ticksAccepted    uint64
	ticksRejected    [len(rejectReasons)]uint64
	newDays          uint64
	intents          uint64
	desiredOrders    uint64
	riskReasonCounts [maxRiskReason + 1]uint64
	amends           uint64
	creates          uint64
	cancels          uint64
	cycles           uint64
	cycleErrors      uint64

	cycleLatency LatencyStats

	mu         sync.Mutex
	calls      map[string]*LatencyStats
	callErrors map[string]*uint64
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64        `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Avg   time.Duration `json:"avg"`
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	TicksAccepted    uint64                     `json:"ticksAccepted"`
	TicksRejected    map[string]uint64          `json:"ticksRejected"`
	NewDays          uint64                     `json:"newDays"`
	Intents          uint64                     `json:"intents"`
	DesiredOrders    uint64                     `json:"desiredOrders"`
	RiskReasonCounts map[string]uint64          `json:"riskDenied"`
	Amends           uint64                     `json:"amends"`
	Creates          uint64                     `json:"creates"`
	Cancels          uint64                     `json:"cancels"`
	Cycles           uint64                     `json:"cycles"`
	CycleErrors      uint64                     `json:"cycleErrors"`
	CycleLatency     LatencySnapshot            `json:"cycleLatency"`
	GatewayLatency   map[string]LatencySnapshot `json:"gatewayLatency"`
	GatewayErrors    map[string]uint64          `json:"gatewayErrors"`
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{
		calls:      map[string]*LatencyStats{},
		callErrors: map[string]*uint64{},
	}
}

// RejectReason maps a tick rejection error to its counter label.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, exception.ErrTickMissingPrice):
		return RejectMissingPrice
	case errors.Is(err, exception.ErrTickMissingField):
		return RejectMissingField
	case errors.Is(err, exception.ErrTickSpreadTooWide):
		return RejectSpread
	case errors.Is(err, exception.ErrTickStepTooLarge):
		return RejectStep
	default:
		return RejectOther
	}
}

// ObserveDecision counts one engine decision.
func (m *Metrics) ObserveDecision(d strategy.Decision) {
	if m == nil {
		return
	}
	if d.Rejected != nil {
		reason := RejectReason(d.Rejected)
		for i, r := range rejectReasons {
			if r == reason {
				atomic.AddUint64(&m.ticksRejected[i], 1)
			}
		}
		return
	}
	atomic.AddUint64(&m.ticksAccepted, 1)
	if d.NewDay {
		atomic.AddUint64(&m.newDays, 1)
	}
	atomic.AddUint64(&m.intents, uint64(len(d.Intents)))
	atomic.AddUint64(&m.desiredOrders, uint64(len(d.Orders)))
}

// IncRiskReason increments the risk reason counter.
func (m *Metrics) IncRiskReason(reason risk.Reason) {
	if m == nil {
		return
	}
	idx := int(reason)
	if idx >= 0 && idx < len(m.riskReasonCounts) {
		atomic.AddUint64(&m.riskReasonCounts[idx], 1)
	}
}

// ObserveReconcile counts the actions of one reconciliation.
func (m *Metrics) ObserveReconcile(r reconcile.Result) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.amends, uint64(len(r.Amend)))
	atomic.AddUint64(&m.creates, uint64(len(r.Create)))
	atomic.AddUint64(&m.cancels, uint64(len(r.Cancel)))
}

// ObserveCycle measures one live loop cycle.
func (m *Metrics) ObserveCycle(d time.Duration, err error) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.cycles, 1)
	if err != nil {
		atomic.AddUint64(&m.cycleErrors, 1)
	}
	m.cycleLatency.Observe(d)
}

// ObserveCall measures one gateway call.
func (m *Metrics) ObserveCall(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	stats, ok := m.calls[op]
	if !ok {
		stats = &LatencyStats{}
		m.calls[op] = stats
		m.callErrors[op] = new(uint64)
	}
	failed := m.callErrors[op]
	m.mu.Unlock()

	stats.Observe(d)
	if err != nil {
		atomic.AddUint64(failed, 1)
	}
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	rejected := make(map[string]uint64)
	for i, r := range rejectReasons {
		if v := atomic.LoadUint64(&m.ticksRejected[i]); v > 0 {
			rejected[r] = v
		}
	}
	riskCounts := make(map[string]uint64)
	for i := range m.riskReasonCounts {
		if v := atomic.LoadUint64(&m.riskReasonCounts[i]); v > 0 {
			riskCounts[risk.Reason(i).String()] = v
		}
	}

	m.mu.Lock()
	latency := make(map[string]LatencySnapshot, len(m.calls))
	callErrors := make(map[string]uint64, len(m.callErrors))
	for op, stats := range m.calls {
		latency[op] = stats.Snapshot()
		if v := atomic.LoadUint64(m.callErrors[op]); v > 0 {
			callErrors[op] = v
		}
	}
	m.mu.Unlock()

	return Snapshot{
		TicksAccepted:    atomic.LoadUint64(&m.ticksAccepted),
		TicksRejected:    rejected,
		NewDays:          atomic.LoadUint64(&m.newDays),
		Intents:          atomic.LoadUint64(&m.intents),
		DesiredOrders:    atomic.LoadUint64(&m.desiredOrders),
		RiskReasonCounts: riskCounts,
		Amends:           atomic.LoadUint64(&m.amends),
		Creates:          atomic.LoadUint64(&m.creates),
		Cancels:          atomic.LoadUint64(&m.cancels),
		Cycles:           atomic.LoadUint64(&m.cycles),
		CycleErrors:      atomic.LoadUint64(&m.cycleErrors),
		CycleLatency:     m.cycleLatency.Snapshot(),
		GatewayLatency:   latency,
		GatewayErrors:    callErrors,
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		lo := atomic.LoadUint64(&l.min)
		if lo != 0 && nanos >= lo {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, lo, nanos) {
			break
		}
	}

	for {
		hi := atomic.LoadUint64(&l.max)
		if nanos <= hi {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, hi, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&l.min)),
		Max:   time.Duration(atomic.LoadUint64(&l.max)),
		Avg:   time.Duration(atomic.LoadUint64(&l.sum) / count),
	}
}
