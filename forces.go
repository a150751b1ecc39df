package tudat

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// modelEpoch caches the epoch of the latest Update call. A zero time is the
// invalid sentinel: the next Update must recompute.
type modelEpoch struct {
	lastUpdate time.Time
}

// Invalidate resets the cached epoch to the invalid sentinel.
func (m *modelEpoch) Invalidate() {
	m.lastUpdate = time.Time{}
}

func (m *modelEpoch) upToDate(dt time.Time) bool {
	return !m.lastUpdate.IsZero() && m.lastUpdate.Equal(dt)
}

func (m *modelEpoch) markUpdated(dt time.Time) {
	m.lastUpdate = dt
}

// addAt accumulates v into dst at (i, j). Partial functions never overwrite.
func addAt(dst *mat.Dense, i, j int, v float64) {
	dst.Set(i, j, dst.At(i, j)+v)
}

// skew returns the cross product matrix of v.
func skew(v []float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v[2], v[1],
		v[2], 0, -v[0],
		-v[1], v[0], 0,
	})
}

// pointMassJac returns I/|v|³ - 3 v vᵀ/|v|⁵, the Jacobian of -v/|v|³.
func pointMassJac(v []float64) *mat.Dense {
	v2 := v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
	v232 := math.Pow(v2, 3/2.)
	v252 := math.Pow(v2, 5/2.)
	J := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t := -3 * v[i] * v[j] / v252
			if i == j {
				t += 1 / v232
			}
			J.Set(i, j, t)
		}
	}
	return J
}

// GravParamName returns the estimation name of a body's gravitational
// parameter.
func GravParamName(c CelestialObject) string {
	return "μ:" + c.Name
}

// HarmonicName returns the estimation name of a zonal harmonic coefficient.
func HarmonicName(c CelestialObject, degree uint8) string {
	return fmt.Sprintf("J%d:%s", degree, c.Name)
}

// PointMassGravity is the central body point mass acceleration on one body.
type PointMassGravity struct {
	modelEpoch
	body   *Body
	center CelestialObject
	acc    []float64
}

// NewPointMassGravity builds the central gravity model acting on b.
func NewPointMassGravity(b *Body, center CelestialObject) *PointMassGravity {
	if b == nil {
		panic("point mass gravity needs a body")
	}
	return &PointMassGravity{body: b, center: center, acc: make([]float64, 3)}
}

func (g *PointMassGravity) Update(dt time.Time) {
	if g.upToDate(dt) {
		return
	}
	R := g.body.R
	r3 := math.Pow(norm(R), 3)
	for i := 0; i < 3; i++ {
		g.acc[i] = -g.center.μ * R[i] / r3
	}
	g.markUpdated(dt)
}

func (g *PointMassGravity) UpdateParameterPartials() {}

// SetGravParam adjusts the central gravitational parameter and drops the
// cached acceleration.
func (g *PointMassGravity) SetGravParam(μ float64) {
	g.center.μ = μ
	g.Invalidate()
}

func (g *PointMassGravity) Acceleration() []float64 {
	return g.acc
}

func (g *PointMassGravity) DerivativeWrtState(body string, stype StateType) (PartialFunc, int) {
	if body != g.body.Name || stype != Translational {
		return nil, 0
	}
	return func(dst *mat.Dense) {
		R := g.body.R
		x := R[0]
		y := R[1]
		z := R[2]
		x2 := math.Pow(x, 2)
		y2 := math.Pow(y, 2)
		z2 := math.Pow(z, 2)
		r2 := x2 + y2 + z2
		r232 := math.Pow(r2, 3/2.)
		r252 := math.Pow(r2, 5/2.)
		μ := g.center.μ
		addAt(dst, 3, 0, 3*μ*x2/r252-μ/r232)
		addAt(dst, 4, 0, 3*μ*x*y/r252)
		addAt(dst, 5, 0, 3*μ*x*z/r252)
		addAt(dst, 3, 1, 3*μ*x*y/r252)
		addAt(dst, 4, 1, 3*μ*y2/r252-μ/r232)
		addAt(dst, 5, 1, 3*μ*y*z/r252)
		addAt(dst, 3, 2, 3*μ*x*z/r252)
		addAt(dst, 4, 2, 3*μ*y*z/r252)
		addAt(dst, 5, 2, 3*μ*z2/r252-μ/r232)
	}, Translational.Size()
}

func (g *PointMassGravity) DerivativeWrtParameter(name string) (PartialFunc, int) {
	if name != GravParamName(g.center) {
		return nil, 0
	}
	// The acceleration is linear in μ.
	return func(dst *mat.Dense) {
		for i := 0; i < 3; i++ {
			addAt(dst, 3+i, 0, g.acc[i]/g.center.μ)
		}
	}, 1
}

// HarmonicsGravity is the zonal harmonic perturbation (J2, optionally J3) of
// the central body on one body.
type HarmonicsGravity struct {
	modelEpoch
	body   *Body
	center CelestialObject
	degree uint8
	accJ2  []float64
	accJ3  []float64
}

// NewHarmonicsGravity builds the Jn model up to the given degree (2 or 3).
func NewHarmonicsGravity(b *Body, center CelestialObject, degree uint8) *HarmonicsGravity {
	if b == nil {
		panic("harmonics gravity needs a body")
	}
	if degree < 2 || degree > 3 {
		panic(fmt.Errorf("unsupported harmonics degree %d", degree))
	}
	return &HarmonicsGravity{body: b, center: center, degree: degree,
		accJ2: make([]float64, 3), accJ3: make([]float64, 3)}
}

func (g *HarmonicsGravity) Update(dt time.Time) {
	if g.upToDate(dt) {
		return
	}
	R := g.body.R
	x := R[0]
	y := R[1]
	z := R[2]
	z2 := math.Pow(z, 2)
	z3 := math.Pow(z, 3)
	r2 := math.Pow(x, 2) + math.Pow(y, 2) + z2
	r252 := math.Pow(r2, 5/2.)
	r272 := math.Pow(r2, 7/2.)
	accJ2 := (3 / 2.) * g.center.J(2) * math.Pow(g.center.Radius, 2) * g.center.μ
	g.accJ2[0] = accJ2 * (5*x*z2/r272 - x/r252)
	g.accJ2[1] = accJ2 * (5*y*z2/r272 - y/r252)
	g.accJ2[2] = accJ2 * (5*z3/r272 - 3*z/r252)
	if g.degree >= 3 {
		r292 := math.Pow(r2, 9/2.)
		z4 := math.Pow(z, 4)
		accJ3 := g.center.J(3) * math.Pow(g.center.Radius, 3) * g.center.μ
		g.accJ3[0] = (5 / 2.) * accJ3 * (7*x*z3/r292 - 3*x*z/r272)
		g.accJ3[1] = (5 / 2.) * accJ3 * (7*y*z3/r292 - 3*y*z/r272)
		g.accJ3[2] = 0.5 * accJ3 * (35*z4/r292 - 30*z2/r272 + 3/r252)
	}
	g.markUpdated(dt)
}

func (g *HarmonicsGravity) UpdateParameterPartials() {}

// SetGravParam adjusts the central gravitational parameter and drops the
// cached accelerations.
func (g *HarmonicsGravity) SetGravParam(μ float64) {
	g.center.μ = μ
	g.Invalidate()
}

func (g *HarmonicsGravity) Acceleration() []float64 {
	return []float64{g.accJ2[0] + g.accJ3[0], g.accJ2[1] + g.accJ3[1], g.accJ2[2] + g.accJ3[2]}
}

func (g *HarmonicsGravity) DerivativeWrtState(body string, stype StateType) (PartialFunc, int) {
	if body != g.body.Name || stype != Translational {
		return nil, 0
	}
	return func(dst *mat.Dense) {
		R := g.body.R
		x := R[0]
		y := R[1]
		z := R[2]
		x2 := math.Pow(x, 2)
		y2 := math.Pow(y, 2)
		z2 := math.Pow(z, 2)
		z3 := math.Pow(z, 3)
		z4 := math.Pow(z, 4)
		r2 := x2 + y2 + z2
		r252 := math.Pow(r2, 5/2.)
		r272 := math.Pow(r2, 7/2.)
		r292 := math.Pow(r2, 9/2.)
		f32 := 3 / 2.
		f152 := 15 / 2.
		j2fact := g.center.J(2) * math.Pow(g.center.Radius, 2) * g.center.μ
		addAt(dst, 3, 0, -f32*j2fact*(35*x2*z2/r292-5*x2/r272-5*z2/r272+1/r252))
		addAt(dst, 4, 0, -f152*j2fact*(7*x*y*z2/r292-x*y/r272))
		addAt(dst, 5, 0, -f152*j2fact*(7*x*z3/r292-3*x*z/r272))
		addAt(dst, 3, 1, -f152*j2fact*(7*x*y*z2/r292-x*y/r272))
		addAt(dst, 4, 1, -f32*j2fact*(35*y2*z2/r292-5*y2/r272-5*z2/r272+1/r252))
		addAt(dst, 5, 1, -f152*j2fact*(7*y*z3/r292-3*y*z/r272))
		addAt(dst, 3, 2, -f152*j2fact*(7*x*z3/r292-3*x*z/r272))
		addAt(dst, 4, 2, -f152*j2fact*(7*y*z3/r292-3*y*z/r272))
		addAt(dst, 5, 2, -f32*j2fact*(35*z4/r292-30*z2/r272+3/r252))
		if g.degree >= 3 {
			z5 := math.Pow(z, 5)
			r2112 := math.Pow(r2, 11/2.)
			f52 := 5 / 2.
			f1052 := 105 / 2.
			j3fact := g.center.J(3) * math.Pow(g.center.Radius, 3) * g.center.μ
			addAt(dst, 3, 0, -f52*j3fact*(63*x2*z3/r2112-21*x2*z/r292-7*z3/r292+3*z/r272))
			addAt(dst, 4, 0, -f1052*j3fact*(3*x*y*z3/r2112-x*y*z/r292))
			addAt(dst, 5, 0, -f152*j3fact*(21*x*z4/r2112-14*x*z2/r292+x/r272))
			addAt(dst, 3, 1, -f1052*j3fact*(3*x*y*z3/r2112-x*y*z/r292))
			addAt(dst, 4, 1, -f52*j3fact*(63*y2*z3/r2112-21*y2*z/r292-7*z3/r292+3*z/r272))
			addAt(dst, 5, 1, -f152*j3fact*(21*y*z4/r2112-14*y*z2/r292+y/r272))
			addAt(dst, 3, 2, -f152*j3fact*(21*x*z4/r2112-14*x*z2/r292+x/r272))
			addAt(dst, 4, 2, -f152*j3fact*(21*y*z4/r2112-14*y*z2/r292+y/r272))
			addAt(dst, 5, 2, -f52*j3fact*(63*z5/r2112-70*z3/r292+15*z/r272))
		}
	}, Translational.Size()
}

func (g *HarmonicsGravity) DerivativeWrtParameter(name string) (PartialFunc, int) {
	// Each zonal contribution is linear in its own coefficient.
	switch name {
	case HarmonicName(g.center, 2):
		return func(dst *mat.Dense) {
			for i := 0; i < 3; i++ {
				addAt(dst, 3+i, 0, g.accJ2[i]/g.center.J(2))
			}
		}, 1
	case HarmonicName(g.center, 3):
		if g.degree < 3 {
			return nil, 0
		}
		return func(dst *mat.Dense) {
			for i := 0; i < 3; i++ {
				addAt(dst, 3+i, 0, g.accJ3[i]/g.center.J(3))
			}
		}, 1
	default:
		return nil, 0
	}
}

// ThirdBodyGravity is the differential attraction of a perturbing body on one
// body, both expressed about the same central body.
type ThirdBodyGravity struct {
	modelEpoch
	body  *Body
	third *Body
	μ     float64
	acc   []float64
	d     []float64 // body to perturber
}

// NewThirdBodyGravity builds the perturbation of third (gravitational
// parameter μ in km³/s²) acting on b.
func NewThirdBodyGravity(b, third *Body, μ float64) *ThirdBodyGravity {
	if b == nil || third == nil {
		panic("third body gravity needs two bodies")
	}
	if b == third {
		panic(fmt.Errorf("%s cannot perturb itself", b.Name))
	}
	return &ThirdBodyGravity{body: b, third: third, μ: μ,
		acc: make([]float64, 3), d: make([]float64, 3)}
}

func (g *ThirdBodyGravity) Update(dt time.Time) {
	if g.upToDate(dt) {
		return
	}
	for i := 0; i < 3; i++ {
		g.d[i] = g.third.R[i] - g.body.R[i]
	}
	d3 := math.Pow(norm(g.d), 3)
	ρ3 := math.Pow(norm(g.third.R), 3)
	for i := 0; i < 3; i++ {
		g.acc[i] = g.μ * (g.d[i]/d3 - g.third.R[i]/ρ3)
	}
	g.markUpdated(dt)
}

func (g *ThirdBodyGravity) UpdateParameterPartials() {}

// SetGravParam adjusts the perturbing body's gravitational parameter and
// drops the cached acceleration.
func (g *ThirdBodyGravity) SetGravParam(μ float64) {
	g.μ = μ
	g.Invalidate()
}

func (g *ThirdBodyGravity) Acceleration() []float64 {
	return g.acc
}

func (g *ThirdBodyGravity) DerivativeWrtState(body string, stype StateType) (PartialFunc, int) {
	if stype != Translational {
		return nil, 0
	}
	switch body {
	case g.body.Name:
		return func(dst *mat.Dense) {
			J := pointMassJac(g.d)
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					addAt(dst, 3+i, j, -g.μ*J.At(i, j))
				}
			}
		}, Translational.Size()
	case g.third.Name:
		// Cross term: moving the perturber changes both the direct and the
		// indirect attraction.
		return func(dst *mat.Dense) {
			Jd := pointMassJac(g.d)
			Jρ := pointMassJac(g.third.R)
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					addAt(dst, 3+i, j, g.μ*(Jd.At(i, j)-Jρ.At(i, j)))
				}
			}
		}, Translational.Size()
	default:
		return nil, 0
	}
}

func (g *ThirdBodyGravity) DerivativeWrtParameter(name string) (PartialFunc, int) {
	if name != "μ:"+g.third.Name {
		return nil, 0
	}
	return func(dst *mat.Dense) {
		for i := 0; i < 3; i++ {
			addAt(dst, 3+i, 0, g.acc[i]/g.μ)
		}
	}, 1
}

// RotationalKinematics provides the state partials of the torque free rigid
// body terms: quaternion kinematics and the gyroscopic rate coupling. The
// derivative itself is assembled structurally.
type RotationalKinematics struct {
	modelEpoch
	body *Body
}

// NewRotationalKinematics builds the kinematic partial provider for b.
func NewRotationalKinematics(b *Body) *RotationalKinematics {
	if b == nil || b.invInertia == nil {
		panic("rotational kinematics needs a rigid body")
	}
	return &RotationalKinematics{body: b}
}

func (k *RotationalKinematics) Update(dt time.Time) {
	if k.upToDate(dt) {
		return
	}
	k.markUpdated(dt)
}

func (k *RotationalKinematics) UpdateParameterPartials() {}

func (k *RotationalKinematics) DerivativeWrtState(body string, stype StateType) (PartialFunc, int) {
	if body != k.body.Name || stype != Rotational {
		return nil, 0
	}
	return func(dst *mat.Dense) {
		q := k.body.Q
		ω := k.body.W
		// ∂q̇/∂q = ½ Ω(ω) for q̇ = ½ q ⊗ (0, ω).
		dqDq := []float64{
			0, -ω[0], -ω[1], -ω[2],
			ω[0], 0, ω[2], -ω[1],
			ω[1], -ω[2], 0, ω[0],
			ω[2], ω[1], -ω[0], 0,
		}
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				addAt(dst, i, j, 0.5*dqDq[i*4+j])
			}
		}
		// ∂q̇/∂ω = ½ Ξ(q).
		dqDω := []float64{
			-q[1], -q[2], -q[3],
			q[0], -q[3], q[2],
			q[3], q[0], -q[1],
			-q[2], q[1], q[0],
		}
		for i := 0; i < 4; i++ {
			for j := 0; j < 3; j++ {
				addAt(dst, i, 4+j, 0.5*dqDω[i*3+j])
			}
		}
		// ∂ω̇/∂ω = -I⁻¹ (skew(ω) I - skew(Iω)) for the gyroscopic term.
		var Iω mat.VecDense
		Iω.MulVec(k.body.Inertia, mat.NewVecDense(3, ω))
		var inner, dωDω mat.Dense
		inner.Mul(skew(ω), k.body.Inertia)
		inner.Sub(&inner, skew([]float64{Iω.AtVec(0), Iω.AtVec(1), Iω.AtVec(2)}))
		dωDω.Mul(k.body.invInertia, &inner)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				addAt(dst, 4+i, 4+j, -dωDω.At(i, j))
			}
		}
	}, Rotational.Size()
}

func (k *RotationalKinematics) DerivativeWrtParameter(name string) (PartialFunc, int) {
	return nil, 0
}

// GravityGradientTorque is the second degree gravity gradient torque of the
// central body on a rigid body, expressed in the body frame.
type GravityGradientTorque struct {
	modelEpoch
	body   *Body
	center CelestialObject
	τ      []float64
	rb     []float64 // position in body axes
	C      *mat.Dense
}

// NewGravityGradientTorque builds the gravity gradient model acting on b.
func NewGravityGradientTorque(b *Body, center CelestialObject) *GravityGradientTorque {
	if b == nil || b.invInertia == nil {
		panic("gravity gradient torque needs a rigid body")
	}
	return &GravityGradientTorque{body: b, center: center,
		τ: make([]float64, 3), rb: make([]float64, 3)}
}

func (g *GravityGradientTorque) Update(dt time.Time) {
	if g.upToDate(dt) {
		return
	}
	g.C = Quat2DCM(g.body.Q)
	var rbVec mat.VecDense
	rbVec.MulVec(g.C, mat.NewVecDense(3, g.body.R))
	g.rb = []float64{rbVec.AtVec(0), rbVec.AtVec(1), rbVec.AtVec(2)}
	r := norm(g.body.R)
	fact := 3 * g.center.μ / math.Pow(r, 5)
	for i, ti := range g.ggCore(g.rb) {
		g.τ[i] = fact * ti
	}
	g.markUpdated(dt)
}

// ggCore returns u × (I u).
func (g *GravityGradientTorque) ggCore(u []float64) []float64 {
	var Iu mat.VecDense
	Iu.MulVec(g.body.Inertia, mat.NewVecDense(3, u))
	return cross(u, []float64{Iu.AtVec(0), Iu.AtVec(1), Iu.AtVec(2)})
}

func (g *GravityGradientTorque) UpdateParameterPartials() {}

// SetGravParam adjusts the central gravitational parameter and drops the
// cached torque.
func (g *GravityGradientTorque) SetGravParam(μ float64) {
	g.center.μ = μ
	g.Invalidate()
}

func (g *GravityGradientTorque) Torque() []float64 {
	return g.τ
}

// coreJac returns ∂(u × I u)/∂u = skew(u) I - skew(Iu).
func (g *GravityGradientTorque) coreJac(u []float64) *mat.Dense {
	var Iu mat.VecDense
	Iu.MulVec(g.body.Inertia, mat.NewVecDense(3, u))
	var J mat.Dense
	J.Mul(skew(u), g.body.Inertia)
	J.Sub(&J, skew([]float64{Iu.AtVec(0), Iu.AtVec(1), Iu.AtVec(2)}))
	return &J
}

func (g *GravityGradientTorque) DerivativeWrtState(body string, stype StateType) (PartialFunc, int) {
	if body != g.body.Name {
		return nil, 0
	}
	switch stype {
	case Rotational:
		// ∂ω̇/∂q through the attitude dependence of the body frame position.
		return func(dst *mat.Dense) {
			r := norm(g.body.R)
			fact := 3 * g.center.μ / math.Pow(r, 5)
			core := g.coreJac(g.rb)
			for kq := 0; kq < 4; kq++ {
				var dC mat.VecDense
				dC.MulVec(dcmGrad(g.body.Q, kq), mat.NewVecDense(3, g.body.R))
				var dτ mat.VecDense
				dτ.MulVec(core, &dC)
				var dω mat.VecDense
				dω.MulVec(g.body.invInertia, &dτ)
				for i := 0; i < 3; i++ {
					addAt(dst, 4+i, kq, fact*dω.AtVec(i))
				}
			}
		}, Rotational.Size()
	case Translational:
		// Cross term: ∂ω̇/∂r couples the attitude rows to the position block.
		return func(dst *mat.Dense) {
			R := g.body.R
			r := norm(R)
			fact := 3 * g.center.μ / math.Pow(r, 5)
			var dτdRb mat.Dense
			dτdRb.Mul(g.coreJac(g.rb), g.C)
			gg := g.ggCore(g.rb)
			var dω mat.Dense
			dω.Mul(g.body.invInertia, &dτdRb)
			var invτ mat.VecDense
			invτ.MulVec(g.body.invInertia, mat.NewVecDense(3, gg))
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					// Product rule: the 1/r⁵ factor also depends on r.
					v := fact*dω.At(i, j) - 5*fact*invτ.AtVec(i)*R[j]/math.Pow(r, 2)
					addAt(dst, 4+i, j, v)
				}
			}
		}, Translational.Size()
	default:
		return nil, 0
	}
}

func (g *GravityGradientTorque) DerivativeWrtParameter(name string) (PartialFunc, int) {
	if name != GravParamName(g.center) {
		return nil, 0
	}
	return func(dst *mat.Dense) {
		var dω mat.VecDense
		dω.MulVec(g.body.invInertia, mat.NewVecDense(3, g.τ))
		for i := 0; i < 3; i++ {
			addAt(dst, 4+i, 0, dω.AtVec(i)/g.center.μ)
		}
	}, 1
}

// dcmGrad returns ∂C/∂qk of the attitude matrix in its full quadratic form,
// the form Quat2DCM evaluates. The partials of the normalized form differ off
// the unit sphere and would not match the integrated flow.
func dcmGrad(q []float64, k int) *mat.Dense {
	q0, q1, q2, q3 := q[0], q[1], q[2], q[3]
	switch k {
	case 0:
		return mat.NewDense(3, 3, []float64{
			2 * q0, 2 * q3, -2 * q2,
			-2 * q3, 2 * q0, 2 * q1,
			2 * q2, -2 * q1, 2 * q0,
		})
	case 1:
		return mat.NewDense(3, 3, []float64{
			2 * q1, 2 * q2, 2 * q3,
			2 * q2, -2 * q1, 2 * q0,
			2 * q3, -2 * q0, -2 * q1,
		})
	case 2:
		return mat.NewDense(3, 3, []float64{
			-2 * q2, 2 * q1, -2 * q0,
			2 * q1, 2 * q2, 2 * q3,
			2 * q0, 2 * q3, -2 * q2,
		})
	case 3:
		return mat.NewDense(3, 3, []float64{
			-2 * q3, 2 * q0, 2 * q1,
			-2 * q0, -2 * q3, 2 * q2,
			2 * q1, 2 * q2, 2 * q3,
		})
	default:
		panic(fmt.Errorf("quaternion has no component %d", k))
	}
}
