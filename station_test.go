package tudat

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestStationPlacement(t *testing.T) {
	for _, st := range []*Station{DSS34Canberra, DSS65Madrid, DSS13Goldstone} {
		if r := norm(st.R); !scalar.EqualWithinAbs(r, Earth.Radius+st.Altitude, 1e-9) {
			t.Fatalf("%s sits at %f km from the center, want %f", st.Name, r, Earth.Radius+st.Altitude)
		}
		// Surface velocity is ω×R: tangential and below half a km/s.
		if dot(st.R, st.V) > 1e-9 {
			t.Fatalf("%s velocity is not tangential", st.Name)
		}
		if v := norm(st.V); v <= 0 || v > 0.5 {
			t.Fatalf("%s surface speed = %f km/s", st.Name, v)
		}
	}
}

func TestStationRangeElAz(t *testing.T) {
	st := NewStation("eq0", 0, 5, 0, 0, σρDSN, σρDotDSN)
	// Directly overhead.
	_, ρ, el, _ := st.RangeElAz([]float64{Earth.Radius + 500, 0, 0})
	if !scalar.EqualWithinAbs(ρ, 500, 1e-9) {
		t.Fatalf("overhead range = %f km, want 500", ρ)
	}
	if !scalar.EqualWithinAbs(el, 90, 1e-9) {
		t.Fatalf("overhead elevation = %f deg, want 90", el)
	}
	// Due north along the surface.
	lat := Deg2rad(10.0)
	north := []float64{Earth.Radius * math.Cos(lat), 0, Earth.Radius * math.Sin(lat)}
	_, _, el, az := st.RangeElAz(north)
	if el >= 0 {
		t.Fatalf("a surface point beyond the horizon has elevation %f deg, want negative", el)
	}
	if !scalar.EqualWithinAbs(math.Mod(az, 360), 0, 1e-9) {
		t.Fatalf("due north azimuth = %f deg, want 0", az)
	}
	// Due east along the surface.
	long := Deg2rad(10.0)
	east := []float64{Earth.Radius * math.Cos(long), Earth.Radius * math.Sin(long), 0}
	_, _, _, az = st.RangeElAz(east)
	if !scalar.EqualWithinAbs(az, 90, 1e-9) {
		t.Fatalf("due east azimuth = %f deg, want 90", az)
	}
}

func TestStationVisible(t *testing.T) {
	st := NewStation("eq0", 0, 10, 0, 0, σρDSN, σρDotDSN)
	overhead := []float64{Earth.Radius + 800, 0, 0}
	if !st.Visible(overhead, 0) {
		t.Fatal("an overhead body must be visible")
	}
	if st.Visible([]float64{-(Earth.Radius + 800), 0, 0}, 0) {
		t.Fatal("an antipodal body must not be visible")
	}
	// A quarter turn of the planet carries the station away from the body.
	if st.Visible(overhead, math.Pi/2) {
		t.Fatal("the mask must reject a body near the horizon after a quarter turn")
	}
	// The same quarter turn expressed on the body instead keeps it overhead.
	rotated := ECEF2ECI([]float64{Earth.Radius + 800, 0, 0}, math.Pi/2)
	if !st.Visible(rotated, math.Pi/2) {
		t.Fatal("a body co-rotating with the station stays visible")
	}
}

func TestStationECIRoundTrip(t *testing.T) {
	st := DSS65Madrid
	θgst := 1.7
	R, V := st.ECI(θgst)
	if !vectorsEqual(ECI2ECEF(R, θgst), st.R) {
		t.Fatal("position did not survive the ECI round trip")
	}
	if !vectorsEqual(ECI2ECEF(V, θgst), st.V) {
		t.Fatal("velocity did not survive the ECI round trip")
	}
	// The rotation preserves norms.
	if !scalar.EqualWithinAbs(norm(R), norm(st.R), 1e-9) {
		t.Fatal("ECI rotation changed the position norm")
	}
}

func TestStationNoiseDraws(t *testing.T) {
	st := NewStation("noisy", 0, 10, 0, 0, σρDSN, σρDotDSN)
	draws := make([]float64, 50)
	for i := range draws {
		draws[i] = st.RangeNoise.Rand(nil)[0]
		if math.Abs(draws[i]) > 10*math.Sqrt(σρDSN) {
			t.Fatalf("draw %d = %f strayed beyond ten sigma", i, draws[i])
		}
	}
	allSame := true
	for _, d := range draws[1:] {
		if d != draws[0] {
			allSame = false
			break
		}
	}
	if allSame {
		t.Fatal("noise generator returned a constant")
	}
}
