package tudat

import (
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"
)

func twoBodyVariational(t *testing.T, flipped bool) *VariationalEquations {
	t.Helper()
	epoch := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	env := NewEnvironment(Earth, epoch)
	sc := NewPointBody("sat", 500)
	o := NewOrbitFromOE(7000, 0.001, 30, 80, 40, 25, Earth)
	sc.R, sc.V = o.RV()
	if err := env.AddBody(sc); err != nil {
		t.Fatal(err)
	}
	layout, err := NewStateLayout([]StateSpec{{Translational, []string{"sat"}}})
	if err != nil {
		t.Fatal(err)
	}
	forces := []ForceModel{NewPointMassGravity(sc, Earth), NewHarmonicsGravity(sc, Earth, 3)}
	if flipped {
		forces[0], forces[1] = forces[1], forces[0]
	}
	dyn, err := NewDynamics(env, layout, map[string]*BodyModels{"sat": {Forces: forces}})
	if err != nil {
		t.Fatal(err)
	}
	varEq, err := NewVariationalEquations(dyn, nil)
	if err != nil {
		t.Fatal(err)
	}
	dyn.Derivative(epoch, dyn.stateVector())
	varEq.Evaluate(epoch)
	return varEq
}

func TestVariationalIdentityBlock(t *testing.T) {
	varEq := twoBodyVariational(t, false)
	for i := 0; i < 3; i++ {
		for j := 0; j < 6; j++ {
			want := 0.0
			if j == i+3 {
				want = 1.0
			}
			if got := varEq.A.At(i, j); got != want {
				t.Fatalf("A(%d,%d) = %g, want %g", i, j, got, want)
			}
		}
	}
}

func TestVariationalInsertionOrder(t *testing.T) {
	A1 := mat.DenseCopyOf(twoBodyVariational(t, false).A)
	A2 := mat.DenseCopyOf(twoBodyVariational(t, true).A)
	if !mat.EqualApprox(A1, A2, 1e-15) {
		t.Fatal("state Jacobian depends on model insertion order")
	}
}

func TestVariationalIdempotent(t *testing.T) {
	epoch := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	varEq := twoBodyVariational(t, false)
	A1 := mat.DenseCopyOf(varEq.A)
	// Refreshing any number of times at a fixed epoch and state must
	// reproduce the exact same matrix.
	varEq.UpdatePartials(epoch)
	varEq.UpdatePartials(epoch)
	varEq.SetBodyStatePartialMatrix()
	if !mat.Equal(A1, varEq.A) {
		t.Fatal("repeated updatePartials changed the state Jacobian")
	}
	varEq.Evaluate(epoch)
	if !mat.Equal(A1, varEq.A) {
		t.Fatal("repeated evaluation changed the state Jacobian")
	}
}

func TestVariationalAdditionIndex(t *testing.T) {
	varEq := twoBodyVariational(t, false)
	before := mat.DenseCopyOf(varEq.A)
	if err := varEq.AddAdditionIndex(AdditionIndex{From: 0, To: 3, Width: 3}); err != nil {
		t.Fatal(err)
	}
	varEq.SetBodyStatePartialMatrix()
	n, _ := before.Dims()
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			want := before.At(i, 3+j) + before.At(i, j)
			if got := varEq.A.At(i, 3+j); got != want {
				t.Fatalf("A(%d,%d) = %g, want %g after addition", i, 3+j, got, want)
			}
		}
	}
	if err := varEq.AddAdditionIndex(AdditionIndex{From: 4, To: 0, Width: 3}); err == nil {
		t.Fatal("expected an out of range error")
	}
	if err := varEq.AddAdditionIndex(AdditionIndex{From: 0, To: 0, Width: 0}); err == nil {
		t.Fatal("expected a zero width error")
	}
}

func TestVariationalSetupErrors(t *testing.T) {
	epoch := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	env := NewEnvironment(Earth, epoch)
	sc := NewPointBody("sat", 500)
	o := NewOrbitFromOE(7000, 0.001, 30, 80, 40, 25, Earth)
	sc.R, sc.V = o.RV()
	if err := env.AddBody(sc); err != nil {
		t.Fatal(err)
	}
	layout, err := NewStateLayout([]StateSpec{{Translational, []string{"sat"}}})
	if err != nil {
		t.Fatal(err)
	}
	pm := NewPointMassGravity(sc, Earth)
	dyn, err := NewDynamics(env, layout, map[string]*BodyModels{"sat": {Forces: []ForceModel{pm}}})
	if err != nil {
		t.Fatal(err)
	}
	// A parameter nothing depends on would produce an all zero sensitivity
	// column.
	if _, err := NewVariationalEquations(dyn, []EstimatedConstant{NewGravParam(Venus, pm)}); err == nil {
		t.Fatal("expected an error for an unbound parameter")
	}
}
