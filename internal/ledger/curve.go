package ledger

// Point is one day of the equity curve.
type Point struct {
	Date            string  `json:"date"`
	ClosePrice      float64 `json:"closePrice"`
	TotalBenefitPct float64 `json:"totalBenefitPct"`
	Position        int64   `json:"position"`
	MovingAverage   float64 `json:"movingAverage"`
	BaselinePct     float64 `json:"baselinePct"`
}

// Curve is an append-only equity curve.
type Curve struct {
	points []Point
}

// NewCurve allocates a curve with room for capacity points.
func NewCurve(capacity int) *Curve {
	if capacity < 0 {
		capacity = 0
	}
	return &Curve{points: make([]Point, 0, capacity)}
}

func (c *Curve) Append(p Point) {
	c.points = append(c.points, p)
}

func (c *Curve) Len() int {
	if c == nil {
		return 0
	}
	return len(c.points)
}

// Points returns a copy of the curve.
func (c *Curve) Points() []Point {
	if c == nil {
		return nil
	}
	out := make([]Point, len(c.points))
	copy(out, c.points)
	return out
}

func (c *Curve) Last() (Point, bool) {
	if c.Len() == 0 {
		return Point{}, false
	}
	return c.points[len(c.points)-1], true
}

// Benefits returns the total benefit series.
func (c *Curve) Benefits() []float64 {
	if c == nil {
		return nil
	}
	out := make([]float64, len(c.points))
	for i, p := range c.points {
		out[i] = p.TotalBenefitPct
	}
	return out
}
