package tudat

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// StateType tags a category of integrated state.
type StateType uint8

const (
	// Translational is Cartesian position and velocity, size 6, order 2.
	Translational StateType = iota + 1
	// Rotational is attitude quaternion (scalar first) plus body rates, size 7.
	Rotational
)

// Size returns the per body state size of this type.
func (s StateType) Size() int {
	switch s {
	case Translational:
		return 6
	case Rotational:
		return 7
	default:
		panic(fmt.Errorf("unknown state type %d", s))
	}
}

// Order returns the differential equation order of this type. Translational
// states are order 2: the position derivative equals the velocity by
// structure, not by dynamics.
func (s StateType) Order() int {
	if s == Translational {
		return 2
	}
	return 1
}

func (s StateType) String() string {
	switch s {
	case Translational:
		return "translational"
	case Rotational:
		return "rotational"
	default:
		return fmt.Sprintf("stateType(%d)", s)
	}
}

// StateSpec couples a state type with the ordered bodies carrying it.
type StateSpec struct {
	Type   StateType
	Bodies []string
}

type stateKey struct {
	stype StateType
	body  string
}

// StateLayout freezes the ordering of an augmented state vector: blocks
// ordered by state type, then by body within each type. All start indices
// are computed once at construction and never change during a run.
type StateLayout struct {
	specs            []StateSpec
	typeStartIndices map[StateType]int
	start            map[stateKey]int
	dim              int
}

// NewStateLayout builds a layout from the ordered type to bodies list.
func NewStateLayout(specs []StateSpec) (*StateLayout, error) {
	l := &StateLayout{
		specs:            specs,
		typeStartIndices: make(map[StateType]int),
		start:            make(map[stateKey]int),
	}
	for _, spec := range specs {
		if len(spec.Bodies) == 0 {
			return nil, fmt.Errorf("no bodies for %s state", spec.Type)
		}
		if _, found := l.typeStartIndices[spec.Type]; found {
			return nil, fmt.Errorf("duplicate %s block", spec.Type)
		}
		l.typeStartIndices[spec.Type] = l.dim
		for _, name := range spec.Bodies {
			key := stateKey{spec.Type, name}
			if _, found := l.start[key]; found {
				return nil, fmt.Errorf("body %s listed twice for %s state", name, spec.Type)
			}
			l.start[key] = l.dim
			l.dim += spec.Type.Size()
		}
	}
	if l.dim == 0 {
		return nil, fmt.Errorf("empty state layout")
	}
	return l, nil
}

// Dim returns the total augmented state size.
func (l *StateLayout) Dim() int {
	return l.dim
}

// Specs returns the ordered type to bodies list.
func (l *StateLayout) Specs() []StateSpec {
	return l.specs
}

// StartOf returns the start index of the given body's block for the given
// state type.
func (l *StateLayout) StartOf(stype StateType, body string) (int, error) {
	idx, found := l.start[stateKey{stype, body}]
	if !found {
		return 0, fmt.Errorf("no %s state for body %s", stype, body)
	}
	return idx, nil
}

// Contains returns whether the layout carries the given block.
func (l *StateLayout) Contains(stype StateType, body string) bool {
	_, found := l.start[stateKey{stype, body}]
	return found
}

// PartialFunc adds one partial derivative contribution into the given matrix
// sub block. Implementations must accumulate, never overwrite: several
// contributions may target the same block.
type PartialFunc func(dst *mat.Dense)

// PartialProvider is the part of a force or torque model consumed by the
// variational equations.
type PartialProvider interface {
	// Invalidate resets the cached update epoch so the next Update call
	// cannot reuse stale intermediates.
	Invalidate()
	// Update recomputes the time dependent intermediates for this epoch.
	Update(dt time.Time)
	// UpdateParameterPartials refreshes cached parameter sensitivities.
	UpdateParameterPartials()
	// DerivativeWrtState returns the partial of this model's contribution
	// with respect to the state of the named integrated body, with the
	// block width. Width zero means no dependency and is not an error.
	DerivativeWrtState(body string, stype StateType) (PartialFunc, int)
	// DerivativeWrtParameter is the same for a named physical constant.
	DerivativeWrtParameter(name string) (PartialFunc, int)
}

// ForceModel contributes an acceleration to the body it was built for.
type ForceModel interface {
	PartialProvider
	Acceleration() []float64 // km/s²
}

// TorqueModel contributes a torque to the body it was built for.
type TorqueModel interface {
	PartialProvider
	Torque() []float64 // kg·km²/s²
}

// BodyModels collects the contributions acting on one body.
type BodyModels struct {
	Forces  []ForceModel
	Torques []TorqueModel
}

// Dynamics assembles the state derivative of the full augmented state from
// the per body force and torque contributions.
type Dynamics struct {
	env    *Environment
	layout *StateLayout
	models map[string]*BodyModels
}

// NewDynamics validates that every body named by the layout exists in the
// environment and that rotational bodies carry an inertia tensor.
func NewDynamics(env *Environment, layout *StateLayout, models map[string]*BodyModels) (*Dynamics, error) {
	for _, spec := range layout.Specs() {
		for _, name := range spec.Bodies {
			b, err := env.Body(name)
			if err != nil {
				return nil, err
			}
			if spec.Type == Rotational && b.invInertia == nil {
				return nil, fmt.Errorf("body %s has %s state but no inertia tensor", name, spec.Type)
			}
		}
	}
	return &Dynamics{env, layout, models}, nil
}

// Layout returns the augmented state layout.
func (d *Dynamics) Layout() *StateLayout {
	return d.layout
}

// applyState writes the augmented state vector into the environment bodies.
func (d *Dynamics) applyState(x []float64) {
	for _, spec := range d.layout.specs {
		for _, name := range spec.Bodies {
			b := d.env.bodies[name]
			i, _ := d.layout.StartOf(spec.Type, name)
			switch spec.Type {
			case Translational:
				b.R = []float64{x[i], x[i+1], x[i+2]}
				b.V = []float64{x[i+3], x[i+4], x[i+5]}
			case Rotational:
				b.Q = []float64{x[i], x[i+1], x[i+2], x[i+3]}
				b.W = []float64{x[i+4], x[i+5], x[i+6]}
			}
		}
	}
}

// stateVector reads the augmented state vector from the environment bodies.
func (d *Dynamics) stateVector() []float64 {
	x := make([]float64, d.layout.dim)
	for _, spec := range d.layout.specs {
		for _, name := range spec.Bodies {
			b := d.env.bodies[name]
			i, _ := d.layout.StartOf(spec.Type, name)
			switch spec.Type {
			case Translational:
				copy(x[i:i+3], b.R)
				copy(x[i+3:i+6], b.V)
			case Rotational:
				copy(x[i:i+4], b.Q)
				copy(x[i+4:i+7], b.W)
			}
		}
	}
	return x
}

// Derivative computes dx/dt at the given epoch and state. The environment
// epoch and body states are set from the arguments so the same inputs always
// produce the same derivative.
func (d *Dynamics) Derivative(dt time.Time, x []float64) []float64 {
	d.env.SetEpoch(dt)
	d.applyState(x)
	// Invalidate before updating: trial states within one step share an epoch,
	// so an epoch check alone would reuse a stale acceleration.
	for _, bm := range d.models {
		for _, f := range bm.Forces {
			f.Invalidate()
		}
		for _, tq := range bm.Torques {
			tq.Invalidate()
		}
	}
	for _, bm := range d.models {
		for _, f := range bm.Forces {
			f.Update(dt)
		}
		for _, tq := range bm.Torques {
			tq.Update(dt)
		}
	}
	xDot := make([]float64, d.layout.dim)
	for _, spec := range d.layout.specs {
		for _, name := range spec.Bodies {
			b := d.env.bodies[name]
			i, _ := d.layout.StartOf(spec.Type, name)
			bm := d.models[name]
			switch spec.Type {
			case Translational:
				// Position derivative is the velocity, by structure.
				copy(xDot[i:i+3], b.V)
				if bm != nil {
					for _, f := range bm.Forces {
						acc := f.Acceleration()
						for j := 0; j < 3; j++ {
							xDot[i+3+j] += acc[j]
						}
					}
				}
			case Rotational:
				copy(xDot[i:i+4], QuatRate(b.Q, b.W))
				τ := make([]float64, 3)
				if bm != nil {
					for _, tq := range bm.Torques {
						contrib := tq.Torque()
						for j := 0; j < 3; j++ {
							τ[j] += contrib[j]
						}
					}
				}
				copy(xDot[i+4:i+7], eulerRates(b, τ))
			}
		}
	}
	return xDot
}

// eulerRates returns ω̇ = I⁻¹ (τ - ω × I ω) for a rigid body.
func eulerRates(b *Body, τ []float64) []float64 {
	ω := mat.NewVecDense(3, b.W)
	var Iω mat.VecDense
	Iω.MulVec(b.Inertia, ω)
	gyro := cross(b.W, []float64{Iω.AtVec(0), Iω.AtVec(1), Iω.AtVec(2)})
	rhs := mat.NewVecDense(3, []float64{τ[0] - gyro[0], τ[1] - gyro[1], τ[2] - gyro[2]})
	var ωDot mat.VecDense
	ωDot.MulVec(b.invInertia, rhs)
	return []float64{ωDot.AtVec(0), ωDot.AtVec(1), ωDot.AtVec(2)}
}
