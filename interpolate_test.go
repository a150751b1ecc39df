package tudat

import (
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestTimeSeriesValidation(t *testing.T) {
	assertPanic(t, func() {
		NewTimeSeries(0)
	})
	epoch := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := NewTimeSeries(2)
	if err := ts.Add(epoch, []float64{1}); err == nil {
		t.Fatal("expected a size mismatch error")
	}
	if err := ts.Add(epoch, []float64{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := ts.Add(epoch, []float64{3, 4}); err == nil {
		t.Fatal("expected an error for a non increasing epoch")
	}
	if err := ts.Add(epoch.Add(-time.Second), []float64{3, 4}); err == nil {
		t.Fatal("expected an error for an earlier epoch")
	}
	if _, err := ts.Interpolate(epoch); err == nil {
		t.Fatal("expected an error with a single sample")
	}
}

func TestTimeSeriesInterpolate(t *testing.T) {
	epoch := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := NewTimeSeries(2)
	// Linear samples: interpolation must reproduce them exactly.
	for _, s := range []float64{0, 10, 20, 30} {
		dt := epoch.Add(time.Duration(s) * time.Second)
		if err := ts.Add(dt, []float64{2 + 0.5*s, 10 - s}); err != nil {
			t.Fatal(err)
		}
	}
	if ts.Len() != 4 {
		t.Fatalf("got %d samples, want 4", ts.Len())
	}
	first, last := ts.Span()
	if !first.Equal(epoch) || !last.Equal(epoch.Add(30*time.Second)) {
		t.Fatal("unexpected span")
	}
	// Mid segment, exact sample, then extrapolation off both ends.
	cases := []struct {
		s    float64
		want []float64
	}{
		{15, []float64{9.5, -5}},
		{10, []float64{7, 0}},
		{-5, []float64{-0.5, 15}},
		{35, []float64{19.5, -25}},
	}
	for _, c := range cases {
		got, err := ts.Interpolate(epoch.Add(time.Duration(c.s * float64(time.Second))))
		if err != nil {
			t.Fatal(err)
		}
		for i := range c.want {
			if !scalar.EqualWithinAbs(got[i], c.want[i], 1e-12) {
				t.Fatalf("value %d at %gs = %g, want %g", i, c.s, got[i], c.want[i])
			}
		}
	}
}
