package tudat

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// EarthRotationRate is the average Earth rotation rate in radians per second.
	EarthRotationRate = 7.2921158553e-5
)

// Rot313Vec rotates a given vector by the 3-1-3 rotation of the provided angles.
func Rot313Vec(θ1, θ2, θ3 float64, vI []float64) []float64 {
	return MxV33(R3R1R3(θ1, θ2, θ3), vI)
}

// PQW2ECI converts a given vector from PQW frame to ECI frame.
func PQW2ECI(i, ω, Ω float64, vI []float64) []float64 {
	return Rot313Vec(-ω, -i, -Ω, vI)
}

// R3R1R3 performs a 3-1-3 Euler parameter rotation.
// From Schaub and Junkins (the one in Vallado is wrong... surprinsingly, right? =/)
func R3R1R3(θ1, θ2, θ3 float64) *mat.Dense {
	sθ1, cθ1 := math.Sincos(θ1)
	sθ2, cθ2 := math.Sincos(θ2)
	sθ3, cθ3 := math.Sincos(θ3)
	return mat.NewDense(3, 3, []float64{cθ3*cθ1 - sθ3*cθ2*sθ1, cθ3*sθ1 + sθ3*cθ2*cθ1, sθ3 * sθ2,
		-sθ3*cθ1 - cθ3*cθ2*sθ1, -sθ3*sθ1 + cθ3*cθ2*cθ1, cθ3 * sθ2,
		sθ2 * sθ1, -sθ2 * cθ1, cθ2})
}

// R1 rotation about the 1st axis.
func R1(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, c, s, 0, -s, c})
}

// R2 rotation about the 2nd axis.
func R2(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, 0, -s, 0, 1, 0, s, 0, c})
}

// R3 rotation about the 3rd axis.
func R3(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

// MxV33 multiplies a matrix with a vector. Note that there is no dimension check!
func MxV33(m *mat.Dense, v []float64) (o []float64) {
	vVec := mat.NewVecDense(len(v), v)
	var rVec mat.VecDense
	rVec.MulVec(m, vVec)
	return []float64{rVec.At(0, 0), rVec.At(1, 0), rVec.At(2, 0)}
}

// GEO2ECEF converts the provided parameters (in km and radians) to the body
// fixed vector. Note that the first parameter is the altitude, not the radius
// from the center of the body!
func GEO2ECEF(altitude, latitude, longitude, bodyRadius float64) []float64 {
	sLong, cLong := math.Sincos(longitude)
	sLat, cLat := math.Sincos(latitude)
	r := altitude + bodyRadius
	return []float64{r * cLat * cLong, r * cLat * sLong, r * sLat}
}

// ECI2ECEF converts the provided ECI vector to ECEF for the θgst given in radians.
func ECI2ECEF(R []float64, θgst float64) []float64 {
	return MxV33(R3(θgst), R)
}

// ECEF2ECI converts the provided ECEF vector to ECI for the θgst given in radians.
func ECEF2ECI(R []float64, θgst float64) []float64 {
	return ECI2ECEF(R, -θgst)
}

// Quaternion attitude helpers. Quaternions are stored scalar first,
// q = [q0 q1 q2 q3] with q0 = cos(Φ/2), and describe the rotation from the
// inertial frame to the body fixed frame.

// QuatNorm returns the norm of the given quaternion.
func QuatNorm(q []float64) float64 {
	return math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
}

// QuatUnit returns the normalized copy of the given quaternion.
func QuatUnit(q []float64) []float64 {
	n := QuatNorm(q)
	return []float64{q[0] / n, q[1] / n, q[2] / n, q[3] / n}
}

// Quat2DCM builds the direction cosine matrix rotating inertial vectors into
// the body fixed frame from a unit quaternion.
func Quat2DCM(q []float64) *mat.Dense {
	q0, q1, q2, q3 := q[0], q[1], q[2], q[3]
	return mat.NewDense(3, 3, []float64{
		q0*q0 + q1*q1 - q2*q2 - q3*q3, 2 * (q1*q2 + q0*q3), 2 * (q1*q3 - q0*q2),
		2 * (q1*q2 - q0*q3), q0*q0 - q1*q1 + q2*q2 - q3*q3, 2 * (q2*q3 + q0*q1),
		2 * (q1*q3 + q0*q2), 2 * (q2*q3 - q0*q1), q0*q0 - q1*q1 - q2*q2 + q3*q3})
}

// DCM2Quat extracts the unit quaternion from a direction cosine matrix using
// Shepperd's method: the largest component is computed first so no division
// ever happens near zero.
func DCM2Quat(c *mat.Dense) []float64 {
	tr := c.At(0, 0) + c.At(1, 1) + c.At(2, 2)
	qq := []float64{1 + tr, 1 + 2*c.At(0, 0) - tr, 1 + 2*c.At(1, 1) - tr, 1 + 2*c.At(2, 2) - tr}
	iMax := 0
	for i, v := range qq {
		if v > qq[iMax] {
			iMax = i
		}
	}
	q := make([]float64, 4)
	switch iMax {
	case 0:
		q[0] = 0.5 * math.Sqrt(qq[0])
		q[1] = (c.At(1, 2) - c.At(2, 1)) / (4 * q[0])
		q[2] = (c.At(2, 0) - c.At(0, 2)) / (4 * q[0])
		q[3] = (c.At(0, 1) - c.At(1, 0)) / (4 * q[0])
	case 1:
		q[1] = 0.5 * math.Sqrt(qq[1])
		q[0] = (c.At(1, 2) - c.At(2, 1)) / (4 * q[1])
		q[2] = (c.At(0, 1) + c.At(1, 0)) / (4 * q[1])
		q[3] = (c.At(2, 0) + c.At(0, 2)) / (4 * q[1])
	case 2:
		q[2] = 0.5 * math.Sqrt(qq[2])
		q[0] = (c.At(2, 0) - c.At(0, 2)) / (4 * q[2])
		q[1] = (c.At(0, 1) + c.At(1, 0)) / (4 * q[2])
		q[3] = (c.At(1, 2) + c.At(2, 1)) / (4 * q[2])
	case 3:
		q[3] = 0.5 * math.Sqrt(qq[3])
		q[0] = (c.At(0, 1) - c.At(1, 0)) / (4 * q[3])
		q[1] = (c.At(2, 0) + c.At(0, 2)) / (4 * q[3])
		q[2] = (c.At(1, 2) + c.At(2, 1)) / (4 * q[3])
	}
	if q[0] < 0 {
		for i := range q {
			q[i] = -q[i]
		}
	}
	return q
}

// QuatRate returns the quaternion kinematic derivative for body rates ω
// expressed in the body fixed frame.
func QuatRate(q, ω []float64) []float64 {
	q0, q1, q2, q3 := q[0], q[1], q[2], q[3]
	return []float64{
		0.5 * (-q1*ω[0] - q2*ω[1] - q3*ω[2]),
		0.5 * (q0*ω[0] - q3*ω[1] + q2*ω[2]),
		0.5 * (q3*ω[0] + q0*ω[1] - q1*ω[2]),
		0.5 * (-q2*ω[0] + q1*ω[1] + q0*ω[2])}
}
