package tudat

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/planetposition"
	"github.com/soniakeys/meeus/v3/pluto"
)

const (
	// AU is one astronomical unit in kilometers.
	AU = 1.49597870700e8
)

// CelestialObject defines a celestial object.
// Note: globe and elements may be nil; does not support satellites yet.
type CelestialObject struct {
	Name    string
	Radius  float64
	a       float64
	μ       float64
	tilt    float64 // Axial tilt
	incl    float64 // Ecliptic inclination
	SOI     float64 // With respect to the Sun
	J2      float64
	J3      float64
	J4      float64
	RotRate float64 // Body rotation rate in rad/s
	PP      *planetposition.V87Planet
}

// GM returns μ (which is unexported because it's a lowercase letter)
func (c CelestialObject) GM() float64 {
	return c.μ
}

// J returns the perturbing J_n factor for the provided n.
// Currently only J2 and J3 are supported.
func (c CelestialObject) J(n uint8) float64 {
	switch n {
	case 2:
		return c.J2
	case 3:
		return c.J3
	case 4:
		return c.J4
	default:
		return 0.0
	}
}

// String implements the Stringer interface.
func (c CelestialObject) String() string {
	return c.Name + " body"
}

// Equals returns whether the provided celestial object is the same.
func (c *CelestialObject) Equals(b CelestialObject) bool {
	return c.Name == b.Name && c.Radius == b.Radius && c.a == b.a && c.μ == b.μ && c.SOI == b.SOI && c.J2 == b.J2
}

// HelioOrbit returns the heliocentric position and velocity of this planet at a
// given time in equatorial coordinates. Note that the whole VSOP87 file is
// loaded the first time this is called. In fact, if we don't, then whoever is
// the first to call this function will set the Epoch at which the ephemeris are
// available, and that sucks.
func (c *CelestialObject) HelioOrbit(dt time.Time) Orbit {
	if c.Name == "Sun" {
		return *NewOrbitFromRV([]float64{0, 0, 0}, []float64{0, 0, 0}, *c)
	}
	if config().VSOP87 {
		if c.Name == "Pluto" {
			// Special case in Sonia Keys' Meeus
			l, b, r := pluto.Heliocentric(julian.TimeToJD(dt))
			r *= AU
			R, V := helioRV(l.Rad(), b.Rad(), r, c.a)
			return *NewOrbitFromRV(R, V, Sun)
		}
		if c.PP == nil {
			// Load the planet.
			var vsopPosition int
			switch c.Name {
			case "Venus":
				vsopPosition = 2
			case "Earth":
				vsopPosition = 3
			case "Mars":
				vsopPosition = 4
			case "Jupiter":
				vsopPosition = 5
			default:
				panic(fmt.Errorf("unknown object: %s", c.Name))
			}
			planet, err := planetposition.LoadPlanetPath(vsopPosition-1, config().VSOP87Dir)
			if err != nil {
				panic(fmt.Errorf("could not load planet number %d: %s", vsopPosition, err))
			}
			c.PP = planet
		}
		l, b, r := c.PP.Position2000(julian.TimeToJD(dt))
		r *= AU
		R, V := helioRV(l.Rad(), b.Rad(), r, c.a)
		return *NewOrbitFromRV(R, V, Sun)
	}
	// Without VSOP87 data files, fall back to a coarse circular ecliptic
	// ephemeris at the mean distance. Good enough for third body terms in
	// tests, nowhere near good enough for mission analysis.
	if c.a <= 0 {
		panic(fmt.Errorf("no mean distance for %s", c.Name))
	}
	n := math.Sqrt(Sun.μ / math.Pow(c.a, 3))
	λ := math.Mod(n*dt.Sub(J2000).Seconds(), 2*math.Pi)
	sλ, cλ := math.Sincos(λ)
	R := []float64{c.a * cλ, c.a * sλ, 0}
	v := math.Sqrt(Sun.μ / c.a)
	V := []float64{-v * sλ, v * cλ, 0}
	return *NewOrbitFromRV(R, V, Sun)
}

// helioRV converts heliocentric spherical L, B (radians) and range (km) to
// Cartesian position and velocity, with the velocity direction normal to the
// radius in the ecliptic.
func helioRV(l, b, r, a float64) ([]float64, []float64) {
	v := math.Sqrt(2*Sun.μ/r - Sun.μ/a)
	R, V := make([]float64, 3), make([]float64, 3)
	sB, cB := math.Sincos(b)
	sL, cL := math.Sincos(l)
	R[0] = r * cB * cL
	R[1] = r * cB * sL
	R[2] = r * sB
	vDir := cross(R, []float64{0, 0, -1})
	for i := 0; i < 3; i++ {
		V[i] = v * vDir[i] / norm(vDir)
	}
	return R, V
}

// J2000 is the standard astronomical reference epoch.
var J2000 = time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)

// CelestialObjectFromString returns the object from its name
func CelestialObjectFromString(name string) (CelestialObject, error) {
	switch strings.ToLower(name) {
	case "sun":
		return Sun, nil
	case "earth":
		return Earth, nil
	case "venus":
		return Venus, nil
	case "mars":
		return Mars, nil
	case "jupiter":
		return Jupiter, nil
	case "saturn":
		return Saturn, nil
	case "uranus":
		return Uranus, nil
	case "pluto":
		return Pluto, nil
	default:
		return CelestialObject{}, fmt.Errorf("undefined planet '%s'", name)
	}
}

/* Definitions */

// Sun is the only star we get.
var Sun = CelestialObject{"Sun", 695700, -1, 1.32712440017987e11, 0.0, 0.0, -1, 0, 0, 0, 0, nil}

// Venus rotates backwards, slowly.
var Venus = CelestialObject{"Venus", 6051.8, 108208601, 3.24858599e5, 117.36, 3.39458, 0.616e6, 0.000027, 0, 0, -2.99e-7, nil}

// Earth is home.
var Earth = CelestialObject{"Earth", 6378.1363, 149598023, 3.98600433e5, 23.4, 0.00005, 924645.0, 1082.6269e-6, -2.5324e-6, -1.6204e-6, EarthRotationRate, nil}

// Mars is where the orbiters go.
var Mars = CelestialObject{"Mars", 3396.19, 227939282.5616, 4.28283100e4, 25.19, 1.85, 576000, 1964e-6, 36e-6, -18e-6, 7.088218e-5, nil}

// Jupiter is big.
var Jupiter = CelestialObject{"Jupiter", 71492.0, 778298361, 1.266865361e8, 3.13, 1.30326966, 48.2e6, 0.01475, 0, -0.00058, 1.7585e-4, nil}

// Saturn would float, given a big enough pool.
// TODO: SOI
var Saturn = CelestialObject{"Saturn", 60268.0, 1429394133, 3.7931208e7, 0.93, 2.485, 0, 0.01645, 0, -0.001, 1.6379e-4, nil}

// Uranus spins on its side.
// TODO: SOI
var Uranus = CelestialObject{"Uranus", 25559.0, 2875038615, 5.7939513e6, 1.02, 0.773, 0, 0.012, 0, 0, -1.0124e-4, nil}

// Pluto got demoted and still shows up to work.
// WARNING: Pluto SOI is not defined.
var Pluto = CelestialObject{"Pluto", 1151.0, 5915799000, 9. * 1e2, 118.0, 17.14216667, 1, 0, 0, 0, -1.1386e-5, nil}
