package tudat

import (
	"fmt"
	"time"
)

// statePartial is one resolved contribution to the state Jacobian: fn adds
// into the affected body's full row block restricted to the column block of
// the body whose state is differentiated against.
type statePartial struct {
	rowStart int
	rowSpan  int
	colStart int
	width    int
	fn       PartialFunc
}

// paramPartial is one resolved contribution to the parameter Jacobian for a
// single named constant.
type paramPartial struct {
	rowStart int
	rowSpan  int
	width    int
	fn       PartialFunc
}

type registeredProvider struct {
	PartialProvider
	rowStart int
	rowSpan  int
}

// partialRegistry resolves which model touches which Jacobian block. The
// resolution happens once: each provider is asked for its derivative against
// every integrated block and every non nil answer becomes an entry. Entries
// keep provider registration order, and since every partial function
// accumulates, the assembled matrix does not depend on that order.
type partialRegistry struct {
	layout    *StateLayout
	providers []registeredProvider
	state     []statePartial
}

// newPartialRegistry builds the registry for the given layout and models.
// Rotational bodies get their kinematic partial provider implicitly, the
// counterpart of the structural velocity identity of translational bodies.
func newPartialRegistry(env *Environment, layout *StateLayout, models map[string]*BodyModels) (*partialRegistry, error) {
	r := &partialRegistry{layout: layout}
	for _, spec := range layout.Specs() {
		for _, name := range spec.Bodies {
			rowStart, err := layout.StartOf(spec.Type, name)
			if err != nil {
				return nil, err
			}
			var provs []PartialProvider
			if spec.Type == Rotational {
				b, err := env.Body(name)
				if err != nil {
					return nil, err
				}
				provs = append(provs, NewRotationalKinematics(b))
			}
			if bm := models[name]; bm != nil {
				switch spec.Type {
				case Translational:
					for _, f := range bm.Forces {
						provs = append(provs, f)
					}
				case Rotational:
					for _, tq := range bm.Torques {
						provs = append(provs, tq)
					}
				}
			}
			for _, p := range provs {
				reg := registeredProvider{p, rowStart, spec.Type.Size()}
				r.providers = append(r.providers, reg)
				for _, cand := range layout.Specs() {
					for _, candBody := range cand.Bodies {
						fn, w := p.DerivativeWrtState(candBody, cand.Type)
						if w == 0 {
							continue
						}
						if w != cand.Type.Size() {
							return nil, fmt.Errorf("partial of %s block of %s has width %d, want %d",
								cand.Type, candBody, w, cand.Type.Size())
						}
						colStart, err := layout.StartOf(cand.Type, candBody)
						if err != nil {
							return nil, err
						}
						r.state = append(r.state, statePartial{
							rowStart: reg.rowStart,
							rowSpan:  reg.rowSpan,
							colStart: colStart,
							width:    w,
							fn:       fn,
						})
					}
				}
			}
		}
	}
	return r, nil
}

// updatePartials refreshes every provider for this epoch in three strict
// passes: invalidate all, update all, then refresh parameter partials. The
// passes make the refresh idempotent for a fixed epoch and environment state.
func (r *partialRegistry) updatePartials(dt time.Time) {
	for _, p := range r.providers {
		p.Invalidate()
	}
	for _, p := range r.providers {
		p.Update(dt)
	}
	for _, p := range r.providers {
		p.UpdateParameterPartials()
	}
}

// parameterPartials collects the contributions of every provider to the named
// constant. An empty result means the constant does not influence the
// dynamics, which the caller rejects.
func (r *partialRegistry) parameterPartials(name string) []paramPartial {
	var out []paramPartial
	for _, p := range r.providers {
		fn, w := p.DerivativeWrtParameter(name)
		if w == 0 {
			continue
		}
		out = append(out, paramPartial{p.rowStart, p.rowSpan, w, fn})
	}
	return out
}
