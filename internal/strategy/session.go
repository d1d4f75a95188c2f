package strategy

import "trader/internal/market"

// session tracks trading days over accepted ticks.
type session struct {
	date    string
	days    int
	high    float64
	low     float64
	lastMid float64

	prevHigh  float64
	prevLow   float64
	prevClose float64
}

func (s *session) started() bool { return s.date != "" }

// advance moves the session to t's day. It reports whether a new day began
// after the first one.
func (s *session) advance(t market.Tick) bool {
	mid := t.Mid()
	if !s.started() {
		s.date = t.Date()
		s.high, s.low = mid, mid
		s.prevClose = t.PrevClose
		if s.prevClose <= 0 {
			s.prevClose = mid
		}
		return false
	}

	date := t.Date()
	if date == s.date {
		return false
	}

	s.prevHigh, s.prevLow = s.high, s.low
	s.prevClose = t.PrevClose
	if s.prevClose <= 0 {
		s.prevClose = s.lastMid
	}
	s.date = date
	s.days++
	s.high, s.low = s.prevClose, s.prevClose
	return true
}

// observe updates today's range with an accepted mid.
func (s *session) observe(mid float64) {
	if mid > s.high {
		s.high = mid
	}
	if mid < s.low {
		s.low = mid
	}
	s.lastMid = mid
}
