package integrator

import (
	"math"
	"testing"
)

// decay1D integrates dy/dt = -y from y(0) = 1.
type decay1D struct {
	state []float64
	maxIt uint64
	lastT float64
}

func newDecay1D(maxIt uint64) *decay1D {
	return &decay1D{state: []float64{1.0}, maxIt: maxIt}
}

func (d *decay1D) GetState() []float64 { return d.state }

func (d *decay1D) SetState(i uint64, s []float64) { d.state = s }

func (d *decay1D) SetTimedState(i uint64, t float64, s []float64) {
	d.state = s
	d.lastT = t
}

func (d *decay1D) Stop(i uint64) bool { return i >= d.maxIt }

func (d *decay1D) Func(t float64, s []float64) []float64 {
	return []float64{-s[0]}
}

// oscillator2D integrates y'' = -y as [y, y'] from [1, 0].
type oscillator2D struct {
	state []float64
	maxIt uint64
}

func (o *oscillator2D) GetState() []float64            { return o.state }
func (o *oscillator2D) SetState(i uint64, s []float64) { o.state = s }
func (o *oscillator2D) Stop(i uint64) bool             { return i >= o.maxIt }
func (o *oscillator2D) Func(t float64, s []float64) []float64 {
	return []float64{s[1], -s[0]}
}

func TestRK4Decay(t *testing.T) {
	d := newDecay1D(200)
	iterNum, xi, err := NewRK4(0, 0.01, d).Solve()
	if err != nil {
		t.Fatalf("err: %+v", err)
	}
	if iterNum != 200 {
		t.Fatalf("expected 200 iterations, got %d", iterNum)
	}
	if math.Abs(xi-2.0) > 1e-12 {
		t.Fatalf("expected x = 2.0, got %f", xi)
	}
	if diff := math.Abs(d.state[0] - math.Exp(-2)); diff > 1e-9 {
		t.Fatalf("y(2) off by %e", diff)
	}
}

func TestRK4Oscillator(t *testing.T) {
	o := &oscillator2D{state: []float64{1, 0}, maxIt: 1000}
	if _, _, err := NewRK4(0, 2*math.Pi/1000, o).Solve(); err != nil {
		t.Fatalf("err: %+v", err)
	}
	if diff := math.Abs(o.state[0] - 1); diff > 1e-6 {
		t.Fatalf("y(2Pi) off by %e", diff)
	}
	if diff := math.Abs(o.state[1]); diff > 1e-6 {
		t.Fatalf("y'(2Pi) off by %e", diff)
	}
}

func TestRKF45Decay(t *testing.T) {
	d := newDecay1D(math.MaxUint64)
	iterNum, xi, err := NewRKF45(0, 2.0, 0.1, 1e-8, d).Solve()
	if err != nil {
		t.Fatalf("err: %+v", err)
	}
	if math.Abs(xi-2.0) > 1e-12 {
		t.Fatalf("expected to land on x = 2.0, got %f", xi)
	}
	if math.Abs(d.lastT-2.0) > 1e-12 {
		t.Fatalf("expected last accepted epoch 2.0, got %f", d.lastT)
	}
	if diff := math.Abs(d.state[0] - math.Exp(-2)); diff > 1e-5 {
		t.Fatalf("y(2) off by %e", diff)
	}
	t.Logf("accepted %d adaptive steps", iterNum)
}

// linear1D integrates dy/dt = 2, whose k's are identical across stages: the
// 4th/5th order weight differences cancel exactly and the error estimate must
// be zero, not the per-stage magnitude sum.
type linear1D struct {
	state []float64
}

func (l *linear1D) GetState() []float64                            { return l.state }
func (l *linear1D) SetState(i uint64, s []float64)                 { l.state = s }
func (l *linear1D) SetTimedState(i uint64, t float64, s []float64) { l.state = s }
func (l *linear1D) Stop(i uint64) bool                             { return false }
func (l *linear1D) Func(t float64, s []float64) []float64          { return []float64{2} }

func TestRKF45ErrorCancellation(t *testing.T) {
	l := &linear1D{state: []float64{0}}
	iterNum, xi, err := NewRKF45(0, 10.0, 0.1, 1e-14, l).Solve()
	if err != nil {
		t.Fatalf("err: %+v", err)
	}
	if math.Abs(xi-10.0) > 1e-12 {
		t.Fatalf("expected to land on x = 10.0, got %f", xi)
	}
	if math.Abs(l.state[0]-20.0) > 1e-9 {
		t.Fatalf("y(10) = %f, want 20", l.state[0])
	}
	// A zero estimate lets the step double instead of stalling at 0.1.
	if iterNum >= 100 {
		t.Fatalf("took %d steps, the step size never grew", iterNum)
	}
}

func TestRKF45TightensStep(t *testing.T) {
	// A deliberately coarse initial step must be refined, not rejected.
	d := newDecay1D(math.MaxUint64)
	r := NewRKF45(0, 1.0, 1.0, 1e-10, d)
	if _, _, err := r.Solve(); err != nil {
		t.Fatalf("err: %+v", err)
	}
	if diff := math.Abs(d.state[0] - math.Exp(-1)); diff > 1e-6 {
		t.Fatalf("y(1) off by %e", diff)
	}
}
