package tudat

import (
	"fmt"
	"sort"
	"time"
)

// TimeSeries stores vectors tagged with strictly increasing epochs and
// interpolates between them linearly. Requests outside the stored span
// extrapolate from the boundary segment.
type TimeSeries struct {
	epochs []time.Time
	values [][]float64
	size   int
}

// NewTimeSeries returns an empty series for vectors of the given size.
func NewTimeSeries(size int) *TimeSeries {
	if size <= 0 {
		panic("time series vector size must be positive")
	}
	return &TimeSeries{size: size}
}

// Add appends an epoch and its vector. Epochs must arrive in strictly
// increasing order.
func (ts *TimeSeries) Add(dt time.Time, v []float64) error {
	if len(v) != ts.size {
		return fmt.Errorf("vector size %d does not match series size %d", len(v), ts.size)
	}
	if n := len(ts.epochs); n > 0 && !dt.After(ts.epochs[n-1]) {
		return fmt.Errorf("epoch %s not after latest epoch %s", dt, ts.epochs[n-1])
	}
	stored := make([]float64, ts.size)
	copy(stored, v)
	ts.epochs = append(ts.epochs, dt)
	ts.values = append(ts.values, stored)
	return nil
}

// Len returns the number of stored epochs.
func (ts *TimeSeries) Len() int {
	return len(ts.epochs)
}

// Span returns the first and last stored epochs.
func (ts *TimeSeries) Span() (time.Time, time.Time) {
	if len(ts.epochs) == 0 {
		return time.Time{}, time.Time{}
	}
	return ts.epochs[0], ts.epochs[len(ts.epochs)-1]
}

// Interpolate returns the vector at the requested epoch. With fewer than two
// stored epochs interpolation is not defined.
func (ts *TimeSeries) Interpolate(dt time.Time) ([]float64, error) {
	n := len(ts.epochs)
	if n < 2 {
		return nil, fmt.Errorf("need at least two epochs, have %d", n)
	}
	// Nearest lower neighbor, clamped so a boundary request extrapolates
	// from the first or last segment.
	lo := sort.Search(n, func(i int) bool { return ts.epochs[i].After(dt) }) - 1
	if lo < 0 {
		lo = 0
	} else if lo > n-2 {
		lo = n - 2
	}
	t0, t1 := ts.epochs[lo], ts.epochs[lo+1]
	ξ := dt.Sub(t0).Seconds() / t1.Sub(t0).Seconds()
	out := make([]float64, ts.size)
	for i := 0; i < ts.size; i++ {
		out[i] = ts.values[lo][i] + ξ*(ts.values[lo+1][i]-ts.values[lo][i])
	}
	return out, nil
}
