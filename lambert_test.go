package tudat

import (
	"testing"
	"time"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

func TestLambertVallado(t *testing.T) {
	// From Vallado 4th edition, page 497
	Ri := mat.NewVecDense(3, []float64{15945.34, 0, 0})
	Rf := mat.NewVecDense(3, []float64{12214.83899, 10249.46731, 0})
	ViExp := mat.NewVecDense(3, []float64{2.058913, 2.915965, 0})
	VfExp := mat.NewVecDense(3, []float64{-3.451565, 0.910315, 0})
	for _, dm := range []TransferType{TTypeAuto, TType1} {
		Vi, Vf, φ, err := Lambert(Ri, Rf, 76.0*time.Minute, dm, Earth)
		if err != nil {
			t.Fatalf("err %s", err)
		}
		if !mat.EqualApprox(Vi, ViExp, 1e-6) {
			t.Logf("φ=%f", φ)
			t.Logf("\nGot %+v\nExp %+v\n", mat.Formatted(Vi.T()), mat.Formatted(ViExp.T()))
			t.Fatalf("[%s] incorrect Vi computed", dm)
		}
		if !mat.EqualApprox(Vf, VfExp, 1e-6) {
			t.Logf("φ=%f", φ)
			t.Logf("\nGot %+v\nExp %+v\n", mat.Formatted(Vf.T()), mat.Formatted(VfExp.T()))
			t.Fatalf("[%s] incorrect Vf computed", dm)
		}
		t.Logf("[OK] %s", dm)
	}
	// Long way around.
	ViExp = mat.NewVecDense(3, []float64{-3.811158, -2.003854, 0})
	VfExp = mat.NewVecDense(3, []float64{4.207569, 0.914724, 0})

	Vi, Vf, φ, err := Lambert(Ri, Rf, 76.0*time.Minute, TType2, Earth)
	if err != nil {
		t.Fatalf("err %s", err)
	}
	if !mat.EqualApprox(Vi, ViExp, 1e-6) {
		t.Logf("φ=%f", φ)
		t.Logf("\nGot %+v\nExp %+v\n", mat.Formatted(Vi.T()), mat.Formatted(ViExp.T()))
		t.Fatalf("[%s] incorrect Vi computed", TType2)
	}
	if !mat.EqualApprox(Vf, VfExp, 1e-6) {
		t.Logf("φ=%f", φ)
		t.Logf("\nGot %+v\nExp %+v\n", mat.Formatted(Vf.T()), mat.Formatted(VfExp.T()))
		t.Fatalf("[%s] incorrect Vf computed", TType2)
	}
	t.Logf("[OK] %s", TType2)
}

func TestLambertMars2Jupiter(t *testing.T) {
	// These tests are from Dr. Davis' ASEN 6008 IMD course at CU.
	Ri := mat.NewVecDense(3, []float64{170145121.3, -117637192.8, -6642044.272})
	Rf := mat.NewVecDense(3, []float64{-803451694.7, 121525767.1, 17465211.78})
	Vi, Vf, φ, err := Lambert(Ri, Rf, 1200*24*time.Hour, TTypeAuto, Sun)
	if err != nil {
		t.Fatalf("err = %s", err)
	}
	ViExp := mat.NewVecDense(3, []float64{13.74077736, 28.83099312, 0.691285008})
	VfExp := mat.NewVecDense(3, []float64{-0.883933069, -7.983627014, -0.2407705978})
	if !mat.EqualApprox(Vi, ViExp, 1e-6) {
		t.Logf("φ=%f", φ)
		t.Logf("\nGot %+v\nExp %+v\n", mat.Formatted(Vi.T()), mat.Formatted(ViExp.T()))
		t.Fatal("incorrect Vi computed")
	}
	if !mat.EqualApprox(Vf, VfExp, 1e-6) {
		t.Logf("φ=%f", φ)
		t.Logf("\nGot %+v\nExp %+v\n", mat.Formatted(Vf.T()), mat.Formatted(VfExp.T()))
		t.Fatal("incorrect Vf computed")
	}
}

func TestLambertErrors(t *testing.T) {
	Rf := mat.NewVecDense(3, []float64{12214.83899, 10249.46731, 0})
	_, _, _, err := Lambert(mat.NewVecDense(2, []float64{15945.34, 0}), Rf, 76.0*time.Minute, TType2, Earth)
	if err == nil {
		t.Fatal("err should not be nil if the R vectors are of different dimensions")
	}
	_, _, _, err = Lambert(mat.NewVecDense(2, []float64{15945.34, 0}), mat.NewVecDense(2, []float64{12214.83899, 10249.46731}), 76.0*time.Minute, TType2, Earth)
	if err == nil {
		t.Fatal("err should not be nil if the R vectors are not of dimension 3x1")
	}
}

func TestHohmannVallado(t *testing.T) {
	// From Vallado 4th edition, example 6-1
	rI := 6569.48
	rF := 42159.48
	vDep, vArr, tof := Hohmann(rI, 7.79, rF, 3.08, Earth)
	if !scalar.EqualWithinAbs(vDep, 10.2464, 1e-3) {
		t.Fatalf("departure velocity = %f km/s, want 10.2464", vDep)
	}
	if !scalar.EqualWithinAbs(vArr, 1.5967, 1e-3) {
		t.Fatalf("arrival velocity = %f km/s, want 1.5967", vArr)
	}
	if !scalar.EqualWithinAbs(tof.Seconds(), 18925, 5) {
		t.Fatalf("time of flight = %s, want about 5.256 h", tof)
	}
}
