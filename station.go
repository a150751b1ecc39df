package tudat

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

var (
	σρDSN    = math.Pow(5e-3, 2) // m, but all measurements in km.
	σρDotDSN = math.Pow(5e-6, 2) // m/s, but all measurements in km/s.
	// DSS34Canberra is the DSN 34 meter dish in Canberra.
	DSS34Canberra = NewStation("DSS34Canberra", 0.691750, 0, -35.398333, 148.981944, σρDSN, σρDotDSN)
	// DSS65Madrid is the DSN 34 meter dish in Madrid.
	DSS65Madrid = NewStation("DSS65Madrid", 0.834939, 0, 40.427222, 4.250556, σρDSN, σρDotDSN)
	// DSS13Goldstone is the DSN 34 meter research dish at Goldstone.
	DSS13Goldstone = NewStation("DSS13Goldstone", 1.07114904, 0, 35.247164, 243.205, σρDSN, σρDotDSN)
)

// Station is a ground station fixed to the surface of its planet. Its
// position and velocity are stored in the body fixed frame; the rotation to
// inertial happens per observation epoch through θgst.
type Station struct {
	Name                       string
	R, V                       []float64 // position and velocity in ECEF
	LatΦ, Longθ                float64   // stored in radians
	Altitude, Elevation        float64   // km above the surface, elevation mask in degrees
	RangeNoise, RangeRateNoise *distmv.Normal
	Planet                     CelestialObject
}

// NewStation returns a new Earth ground station from its geodetic placement.
// Latitude and longitude in degrees, altitude in km, σ are noise variances.
func NewStation(name string, altitude, elevation, latΦ, longθ, σρ, σρDot float64) *Station {
	latRad := Deg2rad(latΦ)
	longRad := Deg2rad(longθ)
	R := GEO2ECEF(altitude, latRad, longRad, Earth.Radius)
	V := cross([]float64{0, 0, EarthRotationRate}, R)
	src := rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	ρNoise, ok := distmv.NewNormal([]float64{0}, mat.NewSymDense(1, []float64{σρ}), src)
	if !ok {
		panic("range noise covariance is not positive definite")
	}
	ρDotNoise, ok := distmv.NewNormal([]float64{0}, mat.NewSymDense(1, []float64{σρDot}), src)
	if !ok {
		panic("range rate noise covariance is not positive definite")
	}
	return &Station{name, R, V, latRad, longRad, altitude, elevation, ρNoise, ρDotNoise, Earth}
}

// ECI returns the inertial position and velocity of the station for the given
// rotation angle of its planet.
func (s *Station) ECI(θgst float64) (R, V []float64) {
	return ECEF2ECI(s.R, θgst), ECEF2ECI(s.V, θgst)
}

// RangeElAz returns the range vector, range, elevation and azimuth (in
// degrees) of a body fixed position as seen from this station.
func (s *Station) RangeElAz(rECEF []float64) (ρECEF []float64, ρ, el, az float64) {
	ρECEF = make([]float64, 3)
	for i := 0; i < 3; i++ {
		ρECEF[i] = rECEF[i] - s.R[i]
	}
	ρ = norm(ρECEF)
	rSEZ := MxV33(R3(s.Longθ), ρECEF)
	rSEZ = MxV33(R2(math.Pi/2-s.LatΦ), rSEZ)
	el = Rad2deg(math.Asin(rSEZ[2] / ρ))
	if el > 180 {
		el -= 360
	}
	az = Rad2deg(2*math.Pi + math.Atan2(rSEZ[1], -rSEZ[0]))
	return
}

// Visible returns whether an inertial position clears the elevation mask at
// the given rotation angle.
func (s *Station) Visible(rECI []float64, θgst float64) bool {
	_, _, el, _ := s.RangeElAz(ECI2ECEF(rECI, θgst))
	return el >= s.Elevation
}

func (s *Station) String() string {
	return fmt.Sprintf("%s (%f,%f); alt = %f km; el = %f deg", s.Name, Rad2deg(s.LatΦ), Rad2deg(s.Longθ), s.Altitude, s.Elevation)
}
