package tudat

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// usmSingularityTol bounds how close an orbit may get to a singular
// configuration before conversions refuse it.
var usmSingularityTol = 20.0 * (math.Nextafter(1, 2) - 1)

var (
	// ErrPureRetrograde is returned for orbits at inclination = pi, where the
	// unified state model quaternion loses the ascending node.
	ErrPureRetrograde = errors.New("pure-retrograde orbit (inclination = pi): unified state model elements cannot be transformed")
	// ErrQuaternionNorm is returned when an attitude quaternion is not unit norm.
	ErrQuaternionNorm = errors.New("the norm of the quaternion should be equal to one")
	// ErrElementRange is returned when an orbital element lies outside its domain.
	ErrElementRange = errors.New("orbital element out of range")
)

// USM7 holds the unified state model elements: the velocity hodograph
// parameters C, Rf1, Rf2 and the orientation quaternion ε1, ε2, ε3, η (scalar
// last, after Vittaldev). The quaternion components are accessible through
// Quaternion.
type USM7 struct {
	C, Rf1, Rf2   float64
	ε1, ε2, ε3, η float64
}

// NewUSM7 builds the element set from its seven components.
func NewUSM7(c, rf1, rf2, ε1, ε2, ε3, η float64) USM7 {
	return USM7{c, rf1, rf2, ε1, ε2, ε3, η}
}

// Quaternion returns the four orientation quaternion components.
func (u USM7) Quaternion() (ε1, ε2, ε3, η float64) {
	return u.ε1, u.ε2, u.ε3, u.η
}

// String implements the Stringer interface.
func (u USM7) String() string {
	return fmt.Sprintf("C=%.6f Rf1=%.6f Rf2=%.6f ε=[%.6f %.6f %.6f] η=%.6f", u.C, u.Rf1, u.Rf2, u.ε1, u.ε2, u.ε3, u.η)
}

// quatNormCheck returns ErrQuaternionNorm if the orientation quaternion of u
// is not unit norm within the singularity tolerance.
func (u USM7) quatNormCheck() error {
	n := math.Sqrt(u.ε1*u.ε1 + u.ε2*u.ε2 + u.ε3*u.ε3 + u.η*u.η)
	if math.Abs(n-1.0) > usmSingularityTol {
		return fmt.Errorf("%w: norm of the specified quaternion is %g", ErrQuaternionNorm, n)
	}
	return nil
}

// pureRetrograde reports whether both ε3 and η vanish, i.e. inclination = pi.
func (u USM7) pureRetrograde() bool {
	return math.Abs(u.ε3) < usmSingularityTol && math.Abs(u.η) < usmSingularityTol
}

// KeplerianToUSM7 converts the classical orbital elements (angles in radians)
// to unified state model elements. For parabolic orbits, a is taken as the
// semi-latus rectum since the semi-major axis is not defined.
func KeplerianToUSM7(a, e, i, Ω, ω, ν, μ float64) (USM7, error) {
	var u USM7
	if e < 0 {
		return u, fmt.Errorf("%w: eccentricity is expected in range [0,inf), got %g", ErrElementRange, e)
	}
	if i < 0 || i > math.Pi {
		return u, fmt.Errorf("%w: inclination is expected in range [0,pi], got %g rad", ErrElementRange, i)
	}
	if ω < 0 || ω > 2*math.Pi {
		return u, fmt.Errorf("%w: argument of periapsis is expected in range [0,2pi], got %g rad", ErrElementRange, ω)
	}
	if Ω < 0 || Ω > 2*math.Pi {
		return u, fmt.Errorf("%w: RAAN is expected in range [0,2pi], got %g rad", ErrElementRange, Ω)
	}
	if ν < 0 || ν > 2*math.Pi {
		return u, fmt.Errorf("%w: true anomaly is expected in range [0,2pi], got %g rad", ErrElementRange, ν)
	}
	if math.Abs(i) < usmSingularityTol && math.Abs(Ω) > usmSingularityTol {
		return u, fmt.Errorf("%w: when the inclination is zero, the RAAN should be zero by definition, got %g rad", ErrElementRange, Ω)
	}
	if math.Abs(e) < usmSingularityTol && math.Abs(ω) > usmSingularityTol {
		return u, fmt.Errorf("%w: when the eccentricity is zero, the argument of periapsis should be zero by definition, got %g rad", ErrElementRange, ω)
	}
	if a < 0 && e <= 1 {
		return u, fmt.Errorf("%w: a negative semi-major axis requires an eccentricity larger than one, got a=%g e=%g", ErrElementRange, a, e)
	}
	if a > 0 && e > 1 {
		return u, fmt.Errorf("%w: a positive semi-major axis requires an eccentricity of at most one, got a=%g e=%g", ErrElementRange, a, e)
	}

	if math.Abs(e-1.0) < usmSingularityTol {
		// Parabolic orbit, a carries the semi-latus rectum.
		u.C = math.Sqrt(μ / a)
	} else {
		u.C = math.Sqrt(μ / (a * (1 - e*e)))
	}
	R := e * u.C
	u.Rf1 = -R * math.Sin(Ω+ω)
	u.Rf2 = R * math.Cos(Ω+ω)

	// Argument of latitude.
	arglat := ω + ν
	sHalfi, cHalfi := math.Sincos(0.5 * i)
	u.ε1 = sHalfi * math.Cos(0.5*(Ω-arglat))
	u.ε2 = sHalfi * math.Sin(0.5*(Ω-arglat))
	u.ε3 = cHalfi * math.Sin(0.5*(Ω+arglat))
	u.η = cHalfi * math.Cos(0.5*(Ω+arglat))
	return u, nil
}

// USM7ToKeplerian converts unified state model elements to the classical
// orbital elements, angles in radians. For parabolic orbits, the returned a is
// the semi-latus rectum.
func USM7ToKeplerian(u USM7, μ float64) (a, e, i, Ω, ω, ν float64, err error) {
	if err = u.quatNormCheck(); err != nil {
		return
	}
	if u.pureRetrograde() {
		err = ErrPureRetrograde
		return
	}

	denom := u.ε3*u.ε3 + u.η*u.η
	cosλ := (u.η*u.η - u.ε3*u.ε3) / denom
	sinλ := (2.0 * u.ε3 * u.η) / denom
	λ := math.Atan2(sinλ, cosλ)

	aux1 := u.Rf1*cosλ + u.Rf2*sinλ
	aux2 := u.C - u.Rf1*sinλ + u.Rf2*cosλ
	R := math.Sqrt(u.Rf1*u.Rf1 + u.Rf2*u.Rf2)

	e = R / u.C
	if math.Abs(e-1.0) < usmSingularityTol {
		// Parabolic orbit, report the semi-latus rectum.
		a = μ / (u.C * u.C)
	} else {
		a = μ / (u.C * u.C * (1 - e*e))
	}

	// Always defined since the inclination stays below pi.
	i = math.Acos(1.0 - 2.0*(u.ε1*u.ε1+u.ε2*u.ε2))

	sinΩ := u.ε1*u.ε3 + u.ε2*u.η
	cosΩ := u.ε1*u.η - u.ε2*u.ε3
	nodeDenom := math.Sqrt(cosΩ*cosΩ + sinΩ*sinΩ)
	if math.Abs(math.Abs(i)-math.Pi) < usmSingularityTol {
		err = ErrPureRetrograde
		return
	} else if math.Abs(nodeDenom) < usmSingularityTol {
		Ω = 0.0 // by definition
	} else {
		Ω = math.Atan2(sinΩ/nodeDenom, cosΩ/nodeDenom)
		if math.Abs(Ω) < usmSingularityTol {
			Ω = 0.0
		}
		for Ω < 0 {
			Ω += 2 * math.Pi
		}
	}

	if math.Abs(R) < usmSingularityTol {
		// Circular orbit
		ω = 0.0 // by definition
		ν = λ - Ω
		if math.Abs(ν) < usmSingularityTol {
			ν = 0.0
		}
		for ν < 0 {
			ν += 2 * math.Pi
		}
	} else {
		ν = math.Atan2(aux1/R, (aux2-u.C)/R)
		if math.Abs(ν) < usmSingularityTol {
			ν = 0.0
		}
		for ν < 0 {
			ν += 2 * math.Pi
		}
		ω = λ - Ω - ν
		if math.Abs(ω) < usmSingularityTol {
			ω = 0.0
		}
		for ω < 0 {
			ω += 2 * math.Pi
		}
	}
	return
}

// CartesianToUSM7 converts an inertial position and velocity to unified state
// model elements.
func CartesianToUSM7(R, V []float64, μ float64) (USM7, error) {
	var u USM7
	rNorm := norm(R)
	hVec := cross(R, V)
	h := norm(hVec)

	u.C = μ / h

	// Direction cosine matrix from the position and angular momentum vectors.
	hxr := cross(hVec, R)
	dcm := mat.NewDense(3, 3, nil)
	for col := 0; col < 3; col++ {
		dcm.Set(0, col, h*R[col])
		dcm.Set(1, col, hxr[col])
		dcm.Set(2, col, rNorm*hVec[col])
	}
	dcm.Scale(1/(rNorm*h), dcm)

	// Squares of the quaternion components.
	tr := dcm.At(0, 0) + dcm.At(1, 1) + dcm.At(2, 2)
	η2 := (1.0 + tr) / 4.0
	var ε2s [3]float64
	for i := 0; i < 3; i++ {
		ε2s[i] = (1.0 - tr + 2.0*dcm.At(i, i)) / 4.0
	}

	maxVal := math.Max(η2, math.Max(ε2s[0], math.Max(ε2s[1], ε2s[2])))
	switch {
	case math.Abs(ε2s[0]-maxVal) < usmSingularityTol:
		u.ε1 = math.Sqrt(ε2s[0])
		u.ε2 = (dcm.At(1, 0) + dcm.At(0, 1)) / (4 * u.ε1)
		u.ε3 = (dcm.At(2, 0) + dcm.At(0, 2)) / (4 * u.ε1)
		u.η = (dcm.At(1, 2) - dcm.At(2, 1)) / (4 * u.ε1)
	case math.Abs(ε2s[1]-maxVal) < usmSingularityTol:
		u.ε2 = math.Sqrt(ε2s[1])
		u.ε1 = (dcm.At(0, 1) + dcm.At(1, 0)) / (4 * u.ε2)
		u.ε3 = (dcm.At(2, 1) + dcm.At(1, 2)) / (4 * u.ε2)
		u.η = (dcm.At(2, 0) - dcm.At(0, 2)) / (4 * u.ε2)
	case math.Abs(ε2s[2]-maxVal) < usmSingularityTol:
		u.ε3 = math.Sqrt(ε2s[2])
		u.ε1 = (dcm.At(0, 2) + dcm.At(2, 0)) / (4 * u.ε3)
		u.ε2 = (dcm.At(1, 2) + dcm.At(2, 1)) / (4 * u.ε3)
		u.η = (dcm.At(0, 1) - dcm.At(1, 0)) / (4 * u.ε3)
	case math.Abs(η2-maxVal) < usmSingularityTol:
		u.η = math.Sqrt(η2)
		u.ε1 = (dcm.At(1, 2) - dcm.At(2, 1)) / (4 * u.η)
		u.ε2 = (dcm.At(2, 0) - dcm.At(0, 2)) / (4 * u.η)
		u.ε3 = (dcm.At(0, 1) - dcm.At(1, 0)) / (4 * u.η)
	default:
		return u, fmt.Errorf("could not find the maximum value of the quaternion (ε²=%v η²=%g)", ε2s, η2)
	}

	if u.pureRetrograde() {
		return u, ErrPureRetrograde
	}

	denom := u.ε3*u.ε3 + u.η*u.η
	cosλ := (u.η*u.η - u.ε3*u.ε3) / denom
	sinλ := (2.0 * u.ε3 * u.η) / denom

	// The sign of the radial hodograph component follows the radial velocity,
	// which relates to the true anomaly being below or above pi.
	vr := dot(R, V) / rNorm
	aux3 := []float64{vr / rNorm * R[0], vr / rNorm * R[1], vr / rNorm * R[2]}
	vt := norm([]float64{V[0] - aux3[0], V[1] - aux3[1], V[2] - aux3[2]})
	aux1 := sign(vr) * norm(aux3)

	u.Rf1 = aux1*cosλ - (vt-u.C)*sinλ
	u.Rf2 = aux1*sinλ + (vt-u.C)*cosλ
	return u, nil
}

// USM7ToCartesian converts unified state model elements to an inertial
// position and velocity.
func USM7ToCartesian(u USM7, μ float64) (R, V []float64, err error) {
	if err = u.quatNormCheck(); err != nil {
		return
	}
	if u.pureRetrograde() {
		err = ErrPureRetrograde
		return
	}

	denom := u.ε3*u.ε3 + u.η*u.η
	cosλ := (u.η*u.η - u.ε3*u.ε3) / denom
	sinλ := (2.0 * u.ε3 * u.η) / denom

	aux1 := u.Rf1*cosλ + u.Rf2*sinλ
	aux2 := u.C - u.Rf1*sinλ + u.Rf2*cosλ

	// Transpose of the quaternion direction cosine matrix.
	ε := []float64{u.ε1, u.ε2, u.ε3}
	εSq := dot(ε, ε)
	inv := mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			v := 2.0 * ε[r] * ε[c]
			if r == c {
				v += u.η*u.η - εSq
			}
			inv.Set(r, c, v)
		}
	}
	skew := mat.NewDense(3, 3, []float64{0, -ε[2], ε[1], ε[2], 0, -ε[0], -ε[1], ε[0], 0})
	var tmp mat.Dense
	tmp.Scale(2.0*u.η, skew)
	inv.Sub(inv, &tmp)
	inv = mat.DenseCopyOf(inv.T())

	R = MxV33(inv, []float64{μ / u.C / aux2, 0, 0})
	V = MxV33(inv, []float64{aux1, aux2, 0})
	return R, V, nil
}
