package live

import (
	"sync"

	"trader/internal/market"
)

// QuoteCache keeps the freshest streamed quote. A nil cache is empty.
type QuoteCache struct {
	mu        sync.RWMutex
	last      market.Tick
	ok        bool
	prevClose float64
}

func NewQuoteCache() *QuoteCache {
	return &QuoteCache{}
}

// Set stores t if it is not older than the cached quote.
func (c *QuoteCache) Set(t market.Tick) {
	if c == nil || !t.HasQuote() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ok && t.Time.Before(c.last.Time) {
		return
	}
	c.last, c.ok = t, true
}

func (c *QuoteCache) Latest() (market.Tick, bool) {
	if c == nil {
		return market.Tick{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last, c.ok
}

// SetPrevClose stores the exchange's previous close for streamed quotes.
func (c *QuoteCache) SetPrevClose(v float64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.prevClose = v
	c.mu.Unlock()
}

// PrevClose returns the stored previous close, -1 when unknown.
func (c *QuoteCache) PrevClose() float64 {
	if c == nil {
		return -1
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.prevClose <= 0 {
		return -1
	}
	return c.prevClose
}
