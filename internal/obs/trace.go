package obs

import (
	"strconv"
	"sync/atomic"
	"time"
)

// CycleIDs hands out increasing identifiers for live loop cycles so log lines
// of one cycle can be grouped.
type CycleIDs struct {
	prefix string
	next   uint64
}

// NewCycleIDs returns a generator whose ids start after seed. A zero seed
// uses the current time.
func NewCycleIDs(prefix string, seed uint64) *CycleIDs {
	if seed == 0 {
		seed = uint64(time.Now().UTC().Unix())
	}
	return &CycleIDs{prefix: prefix, next: seed}
}

// Next returns the next cycle id.
func (g *CycleIDs) Next() string {
	if g == nil {
		return ""
	}
	return g.prefix + strconv.FormatUint(atomic.AddUint64(&g.next, 1), 10)
}
