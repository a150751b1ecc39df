package tudat

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// EstimatedConstant is a scalar dynamical constant adjusted by the
// estimator.
type EstimatedConstant interface {
	Name() string
	Value() float64
	SetValue(v float64)
}

// GravParamSetter is implemented by models whose gravitational parameter can
// be adjusted between estimation iterations.
type GravParamSetter interface {
	SetGravParam(μ float64)
}

// GravParam estimates a gravitational parameter shared by several gravity
// models. Setting the value fans out to every registered model.
type GravParam struct {
	name  string
	value float64
	users []GravParamSetter
}

// NewGravParam builds the estimated gravitational parameter of center, tied
// to the models reading it.
func NewGravParam(center CelestialObject, users ...GravParamSetter) *GravParam {
	if len(users) == 0 {
		panic(fmt.Errorf("no model reads the gravitational parameter of %s", center.Name))
	}
	return &GravParam{name: GravParamName(center), value: center.μ, users: users}
}

// Name implements EstimatedConstant.
func (g *GravParam) Name() string { return g.name }

// Value implements EstimatedConstant.
func (g *GravParam) Value() float64 { return g.value }

// SetValue implements EstimatedConstant.
func (g *GravParam) SetValue(v float64) {
	g.value = v
	for _, u := range g.users {
		u.SetGravParam(v)
	}
}

// InitialStateParameter selects one integrated state block whose initial
// value is estimated.
type InitialStateParameter struct {
	Type StateType
	Body string
}

// ParameterSet orders the estimated parameters: the selected initial state
// blocks first, in selection order, then the scalar constants. Column
// indices into the design matrix follow this ordering.
type ParameterSet struct {
	layout    *StateLayout
	states    []InitialStateParameter
	constants []EstimatedConstant
	stateDim  int
}

// NewParameterSet validates the selection against the layout.
func NewParameterSet(layout *StateLayout, states []InitialStateParameter, constants []EstimatedConstant) (*ParameterSet, error) {
	if len(states) == 0 && len(constants) == 0 {
		return nil, fmt.Errorf("empty parameter set")
	}
	seen := make(map[InitialStateParameter]bool)
	stateDim := 0
	for _, sp := range states {
		if !layout.Contains(sp.Type, sp.Body) {
			return nil, fmt.Errorf("no integrated %s state for body %s", sp.Type, sp.Body)
		}
		if seen[sp] {
			return nil, fmt.Errorf("initial %s state of %s selected twice", sp.Type, sp.Body)
		}
		seen[sp] = true
		stateDim += sp.Type.Size()
	}
	names := make(map[string]bool)
	for _, c := range constants {
		if names[c.Name()] {
			return nil, fmt.Errorf("parameter %s registered twice", c.Name())
		}
		names[c.Name()] = true
	}
	return &ParameterSet{layout, states, constants, stateDim}, nil
}

// Dim returns the total number of estimated scalar parameters.
func (ps *ParameterSet) Dim() int {
	return ps.stateDim + len(ps.constants)
}

// StateDim returns the number of estimated initial state entries.
func (ps *ParameterSet) StateDim() int {
	return ps.stateDim
}

// Constants returns the estimated constants in column order.
func (ps *ParameterSet) Constants() []EstimatedConstant {
	return ps.constants
}

// FullValues returns the current parameter vector, reading the initial state
// blocks out of x0.
func (ps *ParameterSet) FullValues(x0 []float64) []float64 {
	vals := make([]float64, 0, ps.Dim())
	for _, sp := range ps.states {
		start, _ := ps.layout.StartOf(sp.Type, sp.Body)
		vals = append(vals, x0[start:start+sp.Type.Size()]...)
	}
	for _, c := range ps.constants {
		vals = append(vals, c.Value())
	}
	return vals
}

// SetFullValues overwrites the parameter vector: initial state blocks are
// written into x0 and constants fan out to their models. Quaternion blocks
// are renormalized so an off sphere reset cannot leak into the propagation.
func (ps *ParameterSet) SetFullValues(x0, vals []float64) error {
	if len(vals) != ps.Dim() {
		return fmt.Errorf("got %d parameter values, want %d", len(vals), ps.Dim())
	}
	col := 0
	for _, sp := range ps.states {
		start, _ := ps.layout.StartOf(sp.Type, sp.Body)
		size := sp.Type.Size()
		copy(x0[start:start+size], vals[col:col+size])
		if sp.Type == Rotational {
			copy(x0[start:start+4], QuatUnit(x0[start:start+4]))
		}
		col += size
	}
	for _, c := range ps.constants {
		c.SetValue(vals[col])
		col++
	}
	return nil
}

// Apply adds a least squares correction to the parameter vector. Additive
// corrections break the unit norm of quaternion blocks, so those four entries
// are renormalized right after the addition.
func (ps *ParameterSet) Apply(x0, Δ []float64) error {
	if len(Δ) != ps.Dim() {
		return fmt.Errorf("got %d corrections, want %d", len(Δ), ps.Dim())
	}
	col := 0
	for _, sp := range ps.states {
		start, _ := ps.layout.StartOf(sp.Type, sp.Body)
		size := sp.Type.Size()
		for i := 0; i < size; i++ {
			x0[start+i] += Δ[col+i]
		}
		if sp.Type == Rotational {
			copy(x0[start:start+4], QuatUnit(x0[start:start+4]))
		}
		col += size
	}
	for _, c := range ps.constants {
		c.SetValue(c.Value() + Δ[col])
		col++
	}
	return nil
}

// DesignColumns maps the state transition and sensitivity matrices onto the
// parameter columns: the selected Φ column blocks first, then S. The result
// is the [Φ|S] factor of the chain rule H = H̃·[Φ|S].
func (ps *ParameterSet) DesignColumns(Φ, S *mat.Dense) *mat.Dense {
	n := ps.layout.Dim()
	out := mat.NewDense(n, ps.Dim(), nil)
	col := 0
	for _, sp := range ps.states {
		start, _ := ps.layout.StartOf(sp.Type, sp.Body)
		size := sp.Type.Size()
		for i := 0; i < n; i++ {
			for j := 0; j < size; j++ {
				out.Set(i, col+j, Φ.At(i, start+j))
			}
		}
		col += size
	}
	if len(ps.constants) > 0 {
		if S == nil {
			panic("constants estimated without a sensitivity matrix")
		}
		for j := range ps.constants {
			for i := 0; i < n; i++ {
				out.Set(i, col+j, S.At(i, j))
			}
		}
	}
	return out
}
