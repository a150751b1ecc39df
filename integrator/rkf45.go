package integrator

import (
	"errors"
	"math"
)

// Fehlberg 4(5) Butcher tableau. The first weight row is the fifth order
// solution, the second the embedded fourth order solution.
var (
	rkf45Nodes = []float64{0, 1 / 4., 3 / 8., 12 / 13., 1, 1 / 2.}
	rkf45Mat   = [][]float64{
		nil,
		{1 / 4.},
		{3 / 32., 9 / 32.},
		{1932 / 2197., -7200 / 2197., 7296 / 2197.},
		{439 / 216., -8, 3680 / 513., -845 / 4104.},
		{-8 / 27., 2, -3544 / 2565., 1859 / 4104., -11 / 40.},
	}
	rkf45Weights = [][]float64{
		{16 / 135., 0, 6656 / 12825., 28561 / 56430., -9 / 50., 2 / 55.},
		{25 / 216., 0, 1408 / 2565., 2197 / 4104., -1 / 5., 0},
	}
)

// ErrStepUnderflow is returned when the tolerance cannot be met without
// shrinking the step below MinStep.
var ErrStepUnderflow = errors.New("integrator: step below MinStep without meeting tolerance")

// ErrMaxIterations is returned when the driver exceeds its iteration budget.
var ErrMaxIterations = errors.New("integrator: maximum number of iterations reached")

const maxRKF45Iterations = 1000000

// RKF45 defines an adaptive Runge-Kutta-Fehlberg 4(5) integrator. Each step is
// accepted only once the embedded error estimate meets Tolerance, halving the
// step as needed; steps whose estimate is far below Tolerance double the next
// attempt.
type RKF45 struct {
	X0         float64 // The initial x0.
	XEnd       float64 // Steps are clamped to land exactly on XEnd when XEnd > X0.
	StepSize   float64 // Initial step size.
	MinStep    float64 // Smallest step the driver may take.
	MaxStep    float64 // Largest step the driver may take.
	Tolerance  float64 // Local error tolerance per step.
	Integrator TimedIntegrable
}

// NewRKF45 returns a new RKF45 integrator instance.
func NewRKF45(x0, xEnd, stepSize, tolerance float64, inte TimedIntegrable) (r *RKF45) {
	if stepSize <= 0 {
		panic("config StepSize must be positive")
	}
	if tolerance <= 0 {
		panic("config Tolerance must be positive")
	}
	if inte == nil {
		panic("config Integrator may not be nil")
	}
	r = &RKF45{X0: x0, XEnd: xEnd, StepSize: stepSize, MinStep: stepSize * 1e-6,
		MaxStep: stepSize * 1e3, Tolerance: tolerance, Integrator: inte}
	return
}

// Solve solves the configured RKF45.
// Returns the number of accepted steps and the last X_i, or an error.
func (r *RKF45) Solve() (uint64, float64, error) {
	iterNum := uint64(0)
	xi := r.X0
	h := r.StepSize
	k := make([][]float64, len(rkf45Nodes))

	for !r.Integrator.Stop(iterNum) {
		if r.XEnd > r.X0 {
			if xi >= r.XEnd {
				break
			}
			if xi+h > r.XEnd {
				h = r.XEnd - xi
			}
		}
		state := r.Integrator.GetState()
		tState := make([]float64, len(state))
		newState := make([]float64, len(state))
		diff := make([]float64, len(state))

		for attempts := 0; ; attempts++ {
			if attempts >= maxRKF45Iterations {
				return iterNum, xi, ErrMaxIterations
			}
			// Compute the k's from the tableau.
			for stage := range rkf45Nodes {
				copy(tState, state)
				for prev, a := range rkf45Mat[stage] {
					for i := range tState {
						tState[i] += h * a * k[prev][i]
					}
				}
				k[stage] = r.Integrator.Func(xi+h*rkf45Nodes[stage], tState)
			}
			// The error estimate is the 4th/5th order difference summed over the
			// stages per component: the weight differences cancel, so the signed
			// sum must be formed before taking any absolute value.
			errEst := 0.0
			copy(newState, state)
			for i := range diff {
				diff[i] = 0
			}
			for stage := range rkf45Nodes {
				wΔ := rkf45Weights[0][stage] - rkf45Weights[1][stage]
				for i := range newState {
					newState[i] += h * rkf45Weights[0][stage] * k[stage][i]
					diff[i] += wΔ * k[stage][i]
				}
			}
			for i := range diff {
				errEst += math.Abs(h * diff[i])
			}
			if errEst <= r.Tolerance {
				xi += h
				// Local error scales as h^5, so doubling stays within
				// tolerance while the estimate sits 64x under it.
				if errEst*64 < r.Tolerance && h*2 <= r.MaxStep {
					h *= 2
				}
				break
			}
			if h <= r.MinStep {
				return iterNum, xi, ErrStepUnderflow
			}
			h = math.Max(h/2, r.MinStep)
		}
		r.Integrator.SetTimedState(iterNum, xi, newState)
		iterNum++
	}

	return iterNum, xi, nil
}
