package tudat

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrSingularInformationMatrix is returned when the normal equations cannot
// be solved because the normalized information matrix is not positive
// definite. It usually means an estimated parameter is unobservable from the
// supplied measurements.
var ErrSingularInformationMatrix = errors.New("normal equations matrix is singular or not positive definite")

// EstimationStatus is the terminal state of an estimation run.
type EstimationStatus uint8

const (
	// EstimationConverged means the convergence checker accepted the solution.
	EstimationConverged EstimationStatus = iota + 1
	// EstimationMaxIterations means the iteration budget ran out first. This
	// is a reported outcome, not an error.
	EstimationMaxIterations
)

func (s EstimationStatus) String() string {
	switch s {
	case EstimationConverged:
		return "converged"
	case EstimationMaxIterations:
		return "max iterations reached"
	default:
		return fmt.Sprintf("estimationStatus(%d)", s)
	}
}

// ConvergenceChecker decides whether the iterative estimation may stop.
type ConvergenceChecker interface {
	// Converged receives the one based iteration count and the residual RMS
	// of every iteration so far, latest last.
	Converged(iteration int, rmsHistory []float64) bool
	// MaxIterations bounds the loop when convergence is never signaled.
	MaxIterations() int
}

// RMSConvergence stops once the residual RMS either drops below an absolute
// floor or stops improving between iterations.
type RMSConvergence struct {
	MaxIter    int
	MinRMS     float64 // absolute RMS floor, ignored if zero
	MinRMSDrop float64 // relative improvement floor, ignored if zero
}

// Converged implements ConvergenceChecker.
func (c RMSConvergence) Converged(iteration int, rmsHistory []float64) bool {
	rms := rmsHistory[len(rmsHistory)-1]
	if c.MinRMS > 0 && rms < c.MinRMS {
		return true
	}
	if c.MinRMSDrop > 0 && len(rmsHistory) > 1 {
		prev := rmsHistory[len(rmsHistory)-2]
		if math.Abs(prev-rms) < c.MinRMSDrop*prev {
			return true
		}
	}
	return false
}

// MaxIterations implements ConvergenceChecker.
func (c RMSConvergence) MaxIterations() int {
	return c.MaxIter
}

// MeasuredSet is one tracked observable over one link with its measurement
// weight (the inverse variance, applied to every epoch of the set).
type MeasuredSet struct {
	Key    ObservationKey
	Set    *ObservationSet
	Weight float64
}

// EstimationInput carries the measurements and the convergence policy of one
// estimation run.
type EstimationInput struct {
	Sets    []MeasuredSet
	Checker ConvergenceChecker
}

func (in EstimationInput) countObservations() int {
	n := 0
	for _, ms := range in.Sets {
		n += ms.Set.Len()
	}
	return n
}

// IterationSummary records the diagnostics of one completed iteration.
// Summaries of iterations preceding a failure are retained in the report.
type IterationSummary struct {
	Iteration  int
	RMS        float64
	Residuals  []float64
	Correction []float64
}

// EstimationReport is the outcome of an estimation run.
type EstimationReport struct {
	Status          EstimationStatus
	Iterations      []IterationSummary
	FinalParameters []float64
	Covariance      *mat.SymDense
}

// Converged returns whether the run reached the converged terminal state.
func (r *EstimationReport) Converged() bool {
	return r.Status == EstimationConverged
}

// RMSHistory returns the residual RMS of every iteration in order.
func (r *EstimationReport) RMSHistory() []float64 {
	out := make([]float64, len(r.Iterations))
	for i, it := range r.Iterations {
		out[i] = it.RMS
	}
	return out
}

// ODManager drives iterative batch least squares estimation of the selected
// parameters: propagate the variational equations over the arc, compare the
// measurements against the modeled observables, solve the normal equations
// for a correction, and repeat until the convergence checker stops the loop.
type ODManager struct {
	Method    IntegrationMethod
	Tolerance float64
	// RefEpoch anchors the planet rotation (θgst = 0). It defaults to the arc
	// start and must match the reference the measurements were generated with.
	RefEpoch time.Time

	name       string
	dyn        *Dynamics
	varEq      *VariationalEquations
	params     *ParameterSet
	start, end time.Time
	step       time.Duration
	x0         []float64
	logger     kitlog.Logger
}

// NewODManager validates that the parameter selection, the variational
// equations and the dynamics agree, and anchors the estimation arc. The
// current environment state at construction is the initial guess.
func NewODManager(name string, dyn *Dynamics, varEq *VariationalEquations, params *ParameterSet, start, end time.Time, step time.Duration) (*ODManager, error) {
	if dyn == nil || varEq == nil || params == nil {
		panic("estimation needs dynamics, variational equations and parameters")
	}
	if !end.After(start) {
		return nil, fmt.Errorf("estimation arc ends at %s, before its start %s", end, start)
	}
	cs := params.Constants()
	vs := varEq.Constants()
	if len(cs) != len(vs) {
		return nil, fmt.Errorf("parameter set estimates %d constants, variational equations carry %d", len(cs), len(vs))
	}
	for i := range cs {
		if cs[i].Name() != vs[i].Name() {
			return nil, fmt.Errorf("constant %d is %s in the parameter set but %s in the variational equations", i, cs[i].Name(), vs[i].Name())
		}
	}
	klog := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	klog = kitlog.With(klog, "od", name)
	return &ODManager{
		Method:    FixedRK4,
		Tolerance: 1e-12,
		RefEpoch:  start.UTC(),
		name:      name,
		dyn:       dyn,
		varEq:     varEq,
		params:    params,
		start:     start.UTC(),
		end:       end.UTC(),
		step:      step,
		x0:        dyn.stateVector(),
		logger:    klog,
	}, nil
}

// CurrentParameters returns the parameter vector of the latest accepted
// iteration (the initial guess before any call to EstimateParameters).
func (od *ODManager) CurrentParameters() []float64 {
	return od.params.FullValues(od.x0)
}

// propagateArc runs one reference propagation with variational equations and
// returns the stored augmented state history.
func (od *ODManager) propagateArc(iteration int) (*TimeSeries, error) {
	od.dyn.env.SetEpoch(od.start)
	od.dyn.applyState(od.x0)
	n := od.dyn.layout.Dim()
	size := n + n*n + n*od.varEq.ParamDim()
	traj := NewTimeSeries(size)
	prop := NewPropagation(fmt.Sprintf("%s-%d", od.name, iteration), od.dyn, od.varEq, od.start, od.end, od.step)
	prop.Method = od.Method
	prop.Tolerance = od.Tolerance
	var storeErr error
	prop.RegisterStateChan(func(states <-chan State) {
		for s := range states {
			if storeErr == nil {
				storeErr = traj.Add(s.DT, s.Vec)
			}
		}
	})
	if err := prop.Propagate(); err != nil {
		return nil, err
	}
	if storeErr != nil {
		return nil, storeErr
	}
	return traj, nil
}

// blocksAt splits one interpolated augmented state into the body state, the
// state transition matrix and the sensitivity matrix.
func (od *ODManager) blocksAt(x []float64) (state []float64, Φ, S *mat.Dense) {
	n := od.dyn.layout.Dim()
	state = x[:n]
	Φ = mat.NewDense(n, n, x[n:n+n*n])
	if p := od.varEq.ParamDim(); p > 0 {
		S = mat.NewDense(n, p, x[n+n*n:])
	}
	return
}

// EstimateParameters runs the batch least squares loop over the supplied
// measurements. A singular normal equations matrix aborts the run with
// ErrSingularInformationMatrix; the report then still carries the summaries
// of every iteration completed before the failure.
func (od *ODManager) EstimateParameters(input EstimationInput) (*EstimationReport, error) {
	if input.Checker == nil {
		panic("estimation needs a convergence checker")
	}
	nObs := input.countObservations()
	if nObs == 0 {
		return nil, fmt.Errorf("no observations supplied")
	}
	for _, ms := range input.Sets {
		if err := ms.Key.Links.validate(); err != nil {
			return nil, err
		}
		if ms.Weight <= 0 {
			return nil, fmt.Errorf("non positive weight for %s", ms.Key)
		}
		for _, dt := range ms.Set.Times {
			if dt.Before(od.start) || dt.After(od.end) {
				return nil, fmt.Errorf("observation at %s outside the estimation arc [%s, %s]", dt, od.start, od.end)
			}
		}
	}
	p := od.params.Dim()
	report := &EstimationReport{}
	od.logger.Log("level", "notice", "status", "starting", "observations", nObs, "parameters", p)

	var rmsHistory []float64
	for iteration := 1; ; iteration++ {
		traj, err := od.propagateArc(iteration)
		if err != nil {
			return report, err
		}
		Λ := mat.NewDense(p, p, nil)
		N := mat.NewVecDense(p, nil)
		residuals := make([]float64, 0, nObs)
		weights := make([]float64, 0, nObs)
		for _, ms := range input.Sets {
			body := ms.Key.Links.body()
			for i, dt := range ms.Set.Times {
				x, err := traj.Interpolate(dt)
				if err != nil {
					return report, err
				}
				state, Φ, S := od.blocksAt(x)
				start, err := od.dyn.layout.StartOf(Translational, body)
				if err != nil {
					return report, err
				}
				θgst := dt.Sub(od.RefEpoch).Seconds() * EarthRotationRate
				computed, htilde, err := observe(ms.Key.Type, ms.Key.Links, state[start:start+3], state[start+3:start+6], θgst)
				if err != nil {
					return report, err
				}
				hRow, err := observationPartial(od.dyn.layout, body, htilde)
				if err != nil {
					return report, err
				}
				// Chain rule through the propagated sensitivities: the
				// observation depends on the current state, the current state
				// on the estimated parameters through Φ and S.
				var H mat.Dense
				H.Mul(hRow, od.params.DesignColumns(Φ, S))
				y := ms.Set.Values[i] - computed
				var HtH mat.Dense
				HtH.Mul(H.T(), &H)
				HtH.Scale(ms.Weight, &HtH)
				Λ.Add(Λ, &HtH)
				var Ht mat.VecDense
				Ht.MulVec(H.T(), mat.NewVecDense(1, []float64{y}))
				N.AddScaledVec(N, ms.Weight, &Ht)
				residuals = append(residuals, y)
				weights = append(weights, ms.Weight)
			}
		}
		info := mat.NewSymDense(p, nil)
		for i := 0; i < p; i++ {
			for j := i; j < p; j++ {
				info.SetSym(i, j, Λ.At(i, j))
			}
		}
		var chol mat.Cholesky
		if ok := chol.Factorize(info); !ok {
			od.logger.Log("level", "critical", "status", "failed", "iteration", iteration, "err", "singular information matrix")
			return report, ErrSingularInformationMatrix
		}
		Δ := mat.NewVecDense(p, nil)
		if err := chol.SolveVecTo(Δ, N); err != nil {
			od.logger.Log("level", "critical", "status", "failed", "iteration", iteration, "err", err)
			return report, fmt.Errorf("%w: %s", ErrSingularInformationMatrix, err)
		}
		if err := od.params.Apply(od.x0, Δ.RawVector().Data); err != nil {
			return report, err
		}
		rms := math.Sqrt(stat.Mean(squaredWeighted(residuals, weights), nil))
		rmsHistory = append(rmsHistory, rms)
		correction := make([]float64, p)
		copy(correction, Δ.RawVector().Data)
		report.Iterations = append(report.Iterations, IterationSummary{
			Iteration:  iteration,
			RMS:        rms,
			Residuals:  residuals,
			Correction: correction,
		})
		od.logger.Log("level", "info", "iteration", iteration, "rms", rms, "correction", mat.Norm(Δ, 2))
		if input.Checker.Converged(iteration, rmsHistory) {
			report.Status = EstimationConverged
			var cov mat.SymDense
			if err := chol.InverseTo(&cov); err == nil {
				report.Covariance = &cov
			}
			break
		}
		if iteration >= input.Checker.MaxIterations() {
			report.Status = EstimationMaxIterations
			break
		}
	}
	report.FinalParameters = od.params.FullValues(od.x0)
	od.logger.Log("level", "notice", "status", report.Status.String(), "iterations", len(report.Iterations))
	return report, nil
}

// squaredWeighted returns the elementwise weighted squares of the residuals.
func squaredWeighted(residuals, weights []float64) []float64 {
	out := make([]float64, len(residuals))
	for i, r := range residuals {
		out[i] = weights[i] * r * r
	}
	return out
}
