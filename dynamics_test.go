package tudat

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

func TestStateTypes(t *testing.T) {
	if Translational.Size() != 6 || Translational.Order() != 2 {
		t.Fatal("translational state must be size 6, order 2")
	}
	if Rotational.Size() != 7 || Rotational.Order() != 1 {
		t.Fatal("rotational state must be size 7, order 1")
	}
	if Translational.String() != "translational" || Rotational.String() != "rotational" {
		t.Fatal("unexpected state type names")
	}
	assertPanic(t, func() {
		StateType(42).Size()
	})
}

func TestStateLayout(t *testing.T) {
	layout, err := NewStateLayout([]StateSpec{
		{Translational, []string{"a", "b"}},
		{Rotational, []string{"b"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if layout.Dim() != 19 {
		t.Fatalf("dim = %d, want 19", layout.Dim())
	}
	cases := []struct {
		stype StateType
		body  string
		start int
	}{
		{Translational, "a", 0},
		{Translational, "b", 6},
		{Rotational, "b", 12},
	}
	for _, c := range cases {
		got, err := layout.StartOf(c.stype, c.body)
		if err != nil {
			t.Fatal(err)
		}
		if got != c.start {
			t.Fatalf("start of %s %s = %d, want %d", c.stype, c.body, got, c.start)
		}
	}
	if layout.Contains(Rotational, "a") {
		t.Fatal("layout should not carry a rotational state for a")
	}
	if _, err := layout.StartOf(Rotational, "a"); err == nil {
		t.Fatal("expected an error for a missing block")
	}
}

func TestStateLayoutErrors(t *testing.T) {
	if _, err := NewStateLayout(nil); err == nil {
		t.Fatal("expected an error for an empty layout")
	}
	if _, err := NewStateLayout([]StateSpec{{Translational, nil}}); err == nil {
		t.Fatal("expected an error for a spec without bodies")
	}
	if _, err := NewStateLayout([]StateSpec{
		{Translational, []string{"a"}},
		{Translational, []string{"b"}},
	}); err == nil {
		t.Fatal("expected an error for a duplicate type block")
	}
	if _, err := NewStateLayout([]StateSpec{{Translational, []string{"a", "a"}}}); err == nil {
		t.Fatal("expected an error for a duplicate body")
	}
}

func TestDynamicsTwoBodyDerivative(t *testing.T) {
	epoch := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	env := NewEnvironment(Earth, epoch)
	sc := NewPointBody("sat", 500)
	o := NewOrbitFromOE(7000, 0.02, 30, 80, 40, 25, Earth)
	sc.R, sc.V = o.RV()
	if err := env.AddBody(sc); err != nil {
		t.Fatal(err)
	}
	layout, err := NewStateLayout([]StateSpec{{Translational, []string{"sat"}}})
	if err != nil {
		t.Fatal(err)
	}
	dyn, err := NewDynamics(env, layout, map[string]*BodyModels{
		"sat": {Forces: []ForceModel{NewPointMassGravity(sc, Earth)}},
	})
	if err != nil {
		t.Fatal(err)
	}
	x := dyn.stateVector()
	xDot := dyn.Derivative(epoch, x)
	r3 := math.Pow(norm(x[:3]), 3)
	for i := 0; i < 3; i++ {
		if xDot[i] != x[3+i] {
			t.Fatalf("position derivative %d = %g, want the velocity %g", i, xDot[i], x[3+i])
		}
		want := -Earth.μ * x[i] / r3
		if !scalar.EqualWithinRel(xDot[3+i], want, 1e-12) {
			t.Fatalf("acceleration %d = %g, want %g", i, xDot[3+i], want)
		}
	}
}

func TestDynamicsTorqueFreeRigid(t *testing.T) {
	epoch := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	env := NewEnvironment(Earth, epoch)
	inertia := mat.NewSymDense(3, []float64{
		0.03, 0, 0,
		0, 0.05, 0,
		0, 0, 0.07,
	})
	sc := NewRigidBody("sat", 850, inertia)
	sc.Q = QuatUnit([]float64{0.8, 0.2, -0.3, 0.1})
	sc.W = []float64{2e-3, -1e-3, 3e-3}
	if err := env.AddBody(sc); err != nil {
		t.Fatal(err)
	}
	layout, err := NewStateLayout([]StateSpec{{Rotational, []string{"sat"}}})
	if err != nil {
		t.Fatal(err)
	}
	dyn, err := NewDynamics(env, layout, map[string]*BodyModels{"sat": {}})
	if err != nil {
		t.Fatal(err)
	}
	x := dyn.stateVector()
	xDot := dyn.Derivative(epoch, x)
	// The kinematic rate keeps the quaternion on the unit sphere.
	qDotQ := x[0]*xDot[0] + x[1]*xDot[1] + x[2]*xDot[2] + x[3]*xDot[3]
	if math.Abs(qDotQ) > 1e-15 {
		t.Fatalf("q·q̇ = %g, want 0", qDotQ)
	}
	// Torque free Euler equations: I ω̇ + ω × (I ω) = 0.
	ωDot := mat.NewVecDense(3, xDot[4:7])
	var IωDot mat.VecDense
	IωDot.MulVec(inertia, ωDot)
	var Iω mat.VecDense
	Iω.MulVec(inertia, mat.NewVecDense(3, sc.W))
	gyro := cross(sc.W, []float64{Iω.AtVec(0), Iω.AtVec(1), Iω.AtVec(2)})
	for i := 0; i < 3; i++ {
		if !scalar.EqualWithinAbs(IωDot.AtVec(i)+gyro[i], 0, 1e-18) {
			t.Fatalf("Euler residual %d = %g", i, IωDot.AtVec(i)+gyro[i])
		}
	}
}

func TestDynamicsStateRoundTrip(t *testing.T) {
	epoch := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	env := NewEnvironment(Earth, epoch)
	inertia := mat.NewSymDense(3, []float64{
		0.03, 0, 0,
		0, 0.05, 0,
		0, 0, 0.07,
	})
	sc := NewRigidBody("sat", 850, inertia)
	if err := env.AddBody(sc); err != nil {
		t.Fatal(err)
	}
	layout, err := NewStateLayout([]StateSpec{
		{Translational, []string{"sat"}},
		{Rotational, []string{"sat"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	dyn, err := NewDynamics(env, layout, map[string]*BodyModels{"sat": {}})
	if err != nil {
		t.Fatal(err)
	}
	x := []float64{7000, -12, 35, 0.1, 7.5, -0.2, 0.9, 0.1, -0.2, 0.15, 1e-3, -2e-3, 3e-3}
	dyn.applyState(x)
	got := dyn.stateVector()
	for i := range x {
		if got[i] != x[i] {
			t.Fatalf("state entry %d = %g, want %g", i, got[i], x[i])
		}
	}
}

func TestDynamicsValidation(t *testing.T) {
	epoch := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	env := NewEnvironment(Earth, epoch)
	if err := env.AddBody(NewPointBody("sat", 500)); err != nil {
		t.Fatal(err)
	}
	layout, err := NewStateLayout([]StateSpec{{Translational, []string{"ghost"}}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewDynamics(env, layout, nil); err == nil {
		t.Fatal("expected an error for an unknown body")
	}
	rotLayout, err := NewStateLayout([]StateSpec{{Rotational, []string{"sat"}}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewDynamics(env, rotLayout, nil); err == nil {
		t.Fatal("expected an error for a rotational body without inertia")
	}
}
