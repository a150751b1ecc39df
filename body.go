package tudat

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Ephemeris provides the translational state of a body which is not being
// integrated. File based ephemeris loaders can implement this seam.
type Ephemeris interface {
	RVAtEpoch(dt time.Time) (R, V []float64)
}

// Body is a simulated object. Its current state is either integrated by a
// propagation or refreshed from its ephemeris when the epoch advances.
type Body struct {
	Name string
	Mass float64 // kg
	// Translational state with respect to the environment center, km and km/s.
	R, V []float64
	// Rotational state: attitude quaternion (scalar first) and body rates in rad/s.
	Q, W []float64
	// Inertia tensor in the body frame, kg·km². Nil for point bodies.
	Inertia    *mat.SymDense
	invInertia *mat.Dense
	Eph        Ephemeris // nil for integrated bodies
}

// NewPointBody returns a body without attitude information.
func NewPointBody(name string, mass float64) *Body {
	return &Body{Name: name, Mass: mass, R: make([]float64, 3), V: make([]float64, 3), Q: []float64{1, 0, 0, 0}, W: make([]float64, 3)}
}

// NewRigidBody returns a body carrying an inertia tensor for rotational
// dynamics. Panics if the inertia tensor is not invertible.
func NewRigidBody(name string, mass float64, inertia *mat.SymDense) *Body {
	b := NewPointBody(name, mass)
	b.Inertia = inertia
	var inv mat.Dense
	if err := inv.Inverse(inertia); err != nil {
		panic(fmt.Errorf("inertia tensor of %s is singular", name))
	}
	b.invInertia = &inv
	return b
}

// InverseInertia returns the cached inverse of the inertia tensor.
// Panics if this body was not built as a rigid body.
func (b *Body) InverseInertia() *mat.Dense {
	if b.invInertia == nil {
		panic(fmt.Errorf("%s has no inertia tensor", b.Name))
	}
	return b.invInertia
}

func (b *Body) String() string {
	return fmt.Sprintf("Body %s (%.1f kg)", b.Name, b.Mass)
}

// Environment holds the center of integration and every simulated body.
// It is passed explicitly to all components needing body state lookups.
type Environment struct {
	Central CelestialObject
	Epoch   time.Time
	bodies  map[string]*Body
	order   []string
}

// NewEnvironment returns an environment centered on the given celestial object.
func NewEnvironment(central CelestialObject, epoch time.Time) *Environment {
	return &Environment{Central: central, Epoch: epoch.UTC(), bodies: make(map[string]*Body)}
}

// AddBody registers a body. Body names are unique within an environment.
func (e *Environment) AddBody(b *Body) error {
	if _, found := e.bodies[b.Name]; found {
		return fmt.Errorf("body %s already in environment", b.Name)
	}
	e.bodies[b.Name] = b
	e.order = append(e.order, b.Name)
	return nil
}

// Body returns the named body.
func (e *Environment) Body(name string) (*Body, error) {
	b, found := e.bodies[name]
	if !found {
		return nil, fmt.Errorf("no body %s in environment", name)
	}
	return b, nil
}

// Bodies returns the bodies in registration order.
func (e *Environment) Bodies() []*Body {
	out := make([]*Body, len(e.order))
	for i, name := range e.order {
		out[i] = e.bodies[name]
	}
	return out
}

// SetEpoch advances the environment epoch and refreshes the state of every
// ephemeris driven body. Integrated bodies are left untouched, the propagator
// owns their state.
func (e *Environment) SetEpoch(dt time.Time) {
	e.Epoch = dt.UTC()
	for _, name := range e.order {
		b := e.bodies[name]
		if b.Eph == nil {
			continue
		}
		b.R, b.V = b.Eph.RVAtEpoch(e.Epoch)
	}
}

// KeplerEphemeris provides the closed form two body state of an orbit at any
// epoch by advancing the mean anomaly and solving Kepler's equation.
type KeplerEphemeris struct {
	orbit Orbit
	epoch time.Time
	M0    float64
	n     float64
}

// NewKeplerEphemeris returns an ephemeris anchored on the given osculating
// orbit at the given epoch.
func NewKeplerEphemeris(o *Orbit, epoch time.Time) *KeplerEphemeris {
	if o == nil {
		panic("nil orbit for Kepler ephemeris")
	}
	return &KeplerEphemeris{*o, epoch.UTC(), o.MeanAnomaly(), o.MeanMotion()}
}

// RVAtEpoch implements the Ephemeris interface.
func (k *KeplerEphemeris) RVAtEpoch(dt time.Time) (R, V []float64) {
	M := math.Mod(k.M0+k.n*dt.Sub(k.epoch).Seconds(), 2*math.Pi)
	if M < 0 {
		M += 2 * math.Pi
	}
	E := keplerSolve(M, k.orbit.e)
	sE2, cE2 := math.Sincos(E / 2)
	ν := 2 * math.Atan2(math.Sqrt(1+k.orbit.e)*sE2, math.Sqrt(1-k.orbit.e)*cE2)
	if ν < 0 {
		ν += 2 * math.Pi
	}
	prop := k.orbit
	prop.ν = ν
	return prop.RV()
}

// keplerSolve returns the eccentric anomaly for the given mean anomaly and
// eccentricity via Newton iterations on Kepler's equation.
func keplerSolve(M, e float64) float64 {
	E := M
	if e > 0.8 {
		E = math.Pi
	}
	for iter := 0; iter < 50; iter++ {
		f := E - e*math.Sin(E) - M
		if math.Abs(f) < 1e-12 {
			break
		}
		E -= f / (1 - e*math.Cos(E))
	}
	return E
}
