package ring

// Float is a fixed-capacity ring of float64 samples. Pushing into a full ring
// evicts the oldest sample.
type Float struct {
	buf  []float64
	head int
	size int
}

// NewFloat allocates a ring with the given capacity (minimum 1).
func NewFloat(capacity int) *Float {
	if capacity <= 0 {
		capacity = 1
	}
	return &Float{buf: make([]float64, capacity)}
}

// Push appends v and returns the evicted sample, if any.
func (r *Float) Push(v float64) (evicted float64, ok bool) {
	if r.size == len(r.buf) {
		evicted = r.buf[r.head]
		ok = true
		r.buf[r.head] = v
		r.head = (r.head + 1) % len(r.buf)
		return evicted, ok
	}
	r.buf[(r.head+r.size)%len(r.buf)] = v
	r.size++
	return 0, false
}

// Fill pushes v until the ring is full.
func (r *Float) Fill(v float64) {
	for !r.Full() {
		r.Push(v)
	}
}

func (r *Float) Len() int { return r.size }

func (r *Float) Cap() int { return len(r.buf) }

func (r *Float) Full() bool { return r.size == len(r.buf) }

// At returns the i-th sample counted from the oldest.
func (r *Float) At(i int) float64 {
	if i < 0 || i >= r.size {
		return 0
	}
	return r.buf[(r.head+i)%len(r.buf)]
}

// Last returns the newest sample.
func (r *Float) Last() (float64, bool) {
	if r.size == 0 {
		return 0, false
	}
	return r.At(r.size - 1), true
}

// Values copies the samples oldest first.
func (r *Float) Values() []float64 {
	out := make([]float64, r.size)
	for i := range out {
		out[i] = r.At(i)
	}
	return out
}

func (r *Float) Sum() float64 {
	var sum float64
	for i := 0; i < r.size; i++ {
		sum += r.At(i)
	}
	return sum
}

// Mean returns 0 for an empty ring.
func (r *Float) Mean() float64 {
	if r.size == 0 {
		return 0
	}
	return r.Sum() / float64(r.size)
}

func (r *Float) Max() float64 {
	if r.size == 0 {
		return 0
	}
	max := r.At(0)
	for i := 1; i < r.size; i++ {
		if v := r.At(i); v > max {
			max = v
		}
	}
	return max
}

func (r *Float) Min() float64 {
	if r.size == 0 {
		return 0
	}
	min := r.At(0)
	for i := 1; i < r.size; i++ {
		if v := r.At(i); v < min {
			min = v
		}
	}
	return min
}
