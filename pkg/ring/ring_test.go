package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloatPushEvictsOldest(t *testing.T) {
	r := NewFloat(3)
	for _, v := range []float64{1, 2, 3} {
		_, evicted := r.Push(v)
		require.False(t, evicted)
	}
	require.True(t, r.Full())

	old, evicted := r.Push(4)
	require.True(t, evicted)
	assert.Equal(t, 1.0, old)
	assert.Equal(t, []float64{2, 3, 4}, r.Values())

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, 4.0, last)
}

func TestFloatAggregates(t *testing.T) {
	testCases := []struct {
		desc   string
		input  []float64
		cap    int
		mean   float64
		max    float64
		min    float64
		length int
	}{
		{"empty", nil, 3, 0, 0, 0, 0},
		{"partial", []float64{5, 1}, 4, 3, 5, 1, 2},
		{"wrapped", []float64{9, 1, 2, 3}, 3, 2, 3, 1, 3},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			r := NewFloat(tc.cap)
			for _, v := range tc.input {
				r.Push(v)
			}
			assert.Equal(t, tc.length, r.Len())
			assert.InDelta(t, tc.mean, r.Mean(), 1e-9)
			assert.Equal(t, tc.max, r.Max())
			assert.Equal(t, tc.min, r.Min())
		})
	}
}

func TestFloatFill(t *testing.T) {
	r := NewFloat(4)
	r.Push(2)
	r.Fill(7)
	assert.Equal(t, []float64{2, 7, 7, 7}, r.Values())
	assert.Equal(t, 0.0, r.At(9))
}
