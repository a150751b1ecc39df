package tudat

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// AdditionIndex adds one column block of the assembled state Jacobian into
// another after all direct partials are in place. It expresses a state block
// defined as another block plus a perturbation, so its sensitivity rides on
// an already computed column range.
type AdditionIndex struct {
	From  int
	To    int
	Width int
}

// VariationalEquations assembles the Jacobians of the state derivative: A
// with respect to the integrated state and B with respect to the estimated
// dynamical constants. Both matrices are owned by the assembler and are
// overwritten on every evaluation.
type VariationalEquations struct {
	A *mat.Dense // n×n
	B *mat.Dense // n×p, nil when no constants are estimated

	dyn       *Dynamics
	registry  *partialRegistry
	constants []EstimatedConstant
	paramCols []resolvedParam
	additions []AdditionIndex
}

type resolvedParam struct {
	col      int
	partials []paramPartial
}

// NewVariationalEquations resolves the partial providers of dyn against its
// layout and the estimated constants. A constant no provider depends on is a
// setup error: its sensitivity column would stay zero and make the normal
// equations singular.
func NewVariationalEquations(dyn *Dynamics, constants []EstimatedConstant) (*VariationalEquations, error) {
	if dyn == nil {
		panic("variational equations need dynamics")
	}
	reg, err := newPartialRegistry(dyn.env, dyn.layout, dyn.models)
	if err != nil {
		return nil, err
	}
	n := dyn.layout.Dim()
	v := &VariationalEquations{
		A:         mat.NewDense(n, n, nil),
		dyn:       dyn,
		registry:  reg,
		constants: constants,
	}
	for j, c := range constants {
		parts := reg.parameterPartials(c.Name())
		if len(parts) == 0 {
			return nil, fmt.Errorf("no dynamical dependency on parameter %s", c.Name())
		}
		for _, pp := range parts {
			if pp.width != 1 {
				return nil, fmt.Errorf("parameter %s partial has width %d, want 1", c.Name(), pp.width)
			}
		}
		v.paramCols = append(v.paramCols, resolvedParam{j, parts})
	}
	if len(constants) > 0 {
		v.B = mat.NewDense(n, len(constants), nil)
	}
	return v, nil
}

// ParamDim returns the number of estimated dynamical constants.
func (v *VariationalEquations) ParamDim() int {
	return len(v.constants)
}

// Constants returns the estimated dynamical constants in column order.
func (v *VariationalEquations) Constants() []EstimatedConstant {
	return v.constants
}

// AddAdditionIndex registers a post processing step applied after every state
// Jacobian assembly.
func (v *VariationalEquations) AddAdditionIndex(ai AdditionIndex) error {
	n := v.dyn.layout.Dim()
	if ai.Width <= 0 || ai.From < 0 || ai.To < 0 || ai.From+ai.Width > n || ai.To+ai.Width > n {
		return fmt.Errorf("addition index %+v out of range for state size %d", ai, n)
	}
	v.additions = append(v.additions, ai)
	return nil
}

// UpdatePartials refreshes every partial provider for this epoch: invalidate
// all, update all, then refresh parameter partials. Interleaving the passes
// would let a provider read a stale cached output of another one.
func (v *VariationalEquations) UpdatePartials(dt time.Time) {
	v.registry.updatePartials(dt)
}

// SetBodyStatePartialMatrix assembles A for the current environment state:
// zero the matrix, set the structural velocity to position identities of the
// translational bodies, invoke every registered partial in insertion order,
// then apply the addition indices. Each partial adds into its block, so the
// result is independent of the insertion order.
func (v *VariationalEquations) SetBodyStatePartialMatrix() {
	v.A.Zero()
	for _, spec := range v.dyn.layout.Specs() {
		if spec.Type != Translational {
			continue
		}
		for _, name := range spec.Bodies {
			i, _ := v.dyn.layout.StartOf(Translational, name)
			v.A.Set(i, i+3, 1)
			v.A.Set(i+1, i+4, 1)
			v.A.Set(i+2, i+5, 1)
		}
	}
	for _, sp := range v.registry.state {
		dst := v.A.Slice(sp.rowStart, sp.rowStart+sp.rowSpan, sp.colStart, sp.colStart+sp.width).(*mat.Dense)
		sp.fn(dst)
	}
	n := v.dyn.layout.Dim()
	for _, ai := range v.additions {
		for i := 0; i < n; i++ {
			for j := 0; j < ai.Width; j++ {
				v.A.Set(i, ai.To+j, v.A.At(i, ai.To+j)+v.A.At(i, ai.From+j))
			}
		}
	}
}

// setParameterPartialMatrix assembles B for the current environment state.
func (v *VariationalEquations) setParameterPartialMatrix() {
	if v.B == nil {
		return
	}
	v.B.Zero()
	for _, rp := range v.paramCols {
		for _, pp := range rp.partials {
			dst := v.B.Slice(pp.rowStart, pp.rowStart+pp.rowSpan, rp.col, rp.col+pp.width).(*mat.Dense)
			pp.fn(dst)
		}
	}
}

// Evaluate refreshes the partials at the given epoch and assembles both
// Jacobians. The environment must already carry the state to linearize
// about.
func (v *VariationalEquations) Evaluate(dt time.Time) {
	v.UpdatePartials(dt)
	v.SetBodyStatePartialMatrix()
	v.setParameterPartialMatrix()
}
