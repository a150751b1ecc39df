package tudat

import (
	"math"
	"testing"
	"time"
)

func TestCelestialObject(t *testing.T) {
	for _, object := range []CelestialObject{Sun, Venus, Earth, Mars, Jupiter} {
		object.HelioOrbit(time.Now().UTC())
		var i uint8
		for i = 1; i < 6; i++ {
			if i == 2 && object.J(i) != object.J2 {
				t.Fatalf("J2 not returned for %s", object)
			} else if i == 3 && object.J(i) != object.J3 {
				t.Fatalf("J3 not returned for %s", object)
			} else if i == 4 && object.J(i) != object.J4 {
				t.Fatalf("J4 not returned for %s", object)
			} else if (i < 2 || i > 4) && object.J(i) != 0 {
				t.Fatalf("J(%d) = %f != 0 for %s", i, object.J(i), object)
			} else {
				t.Logf("[OK] J(%d) %s", i, object)
			}
		}
	}
}

func TestPanics(t *testing.T) {
	cfgLoaded = true
	cfg = _config{VSOP87: false}
	assertPanic(t, func() {
		fake := CelestialObject{"Fake", -1, -1, -1, -1, -1, -1, -1, -1, -1, 0, nil}
		fake.HelioOrbit(time.Now())
	})
	cfg = _config{VSOP87: true, VSOP87Dir: "/nonexistent"}
	assertPanic(t, func() {
		vesta := CelestialObject{"Vesta", -1, -1, -1, -1, -1, -1, -1, -1, -1, 0, nil}
		vesta.HelioOrbit(time.Now())
	})
	cfg = _config{VSOP87: false}
}

func TestHelioFallback(t *testing.T) {
	cfgLoaded = true
	cfg = _config{VSOP87: false}
	o := Earth.HelioOrbit(J2000)
	R, V := o.R(), o.V()
	if !vectorsEqual(R, []float64{Earth.a, 0, 0}) {
		t.Fatalf("R at J2000 = %+v", R)
	}
	vCirc := math.Sqrt(Sun.μ / Earth.a)
	if !vectorsEqual(V, []float64{0, vCirc, 0}) {
		t.Fatalf("V at J2000 = %+v", V)
	}
	h1 := Earth.HelioOrbit(time.Date(2017, 3, 20, 14, 45, 0, 0, time.UTC))
	h2 := Earth.HelioOrbit(time.Date(2017, 3, 20, 14, 46, 0, 0, time.UTC))
	if math.Abs(norm(h1.R())-norm(h2.R())) > 1e2 {
		t.Fatal("radius changed by more than 100 km in a minute")
	}
	if math.Abs(norm(h1.V())-norm(h2.V())) > 1e-4 {
		t.Fatal("velocity changed by more than 1 m/s in a minute")
	}
}

func TestCelestialFromString(t *testing.T) {
	for _, object := range []CelestialObject{Sun, Venus, Earth, Mars, Jupiter, Saturn, Uranus, Pluto} {
		found, err := CelestialObjectFromString(object.Name)
		if err != nil {
			t.Fatalf("%s: %s", object.Name, err)
		}
		if !found.Equals(object) {
			t.Fatalf("%s not returned from its name", object.Name)
		}
	}
	if _, err := CelestialObjectFromString("Krypton"); err == nil {
		t.Fatal("expected an error for an undefined planet")
	}
}
