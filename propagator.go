package tudat

import (
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"gonum.org/v1/gonum/mat"

	"github.com/alfonsoSR/tudat/integrator"
)

// IntegrationMethod selects the driver used by a propagation.
type IntegrationMethod uint8

const (
	// FixedRK4 is the fixed step fourth order Runge-Kutta driver.
	FixedRK4 IntegrationMethod = iota
	// AdaptiveRKF45 is the embedded Fehlberg driver with step control.
	AdaptiveRKF45
)

// State is one accepted propagation sample streamed to consumers. Vec is the
// full augmented vector: integrated state, then the state transition matrix
// row major, then the sensitivity matrix row major.
type State struct {
	DT  time.Time
	Vec []float64
}

// TerminationCondition decides whether an accepted step ends a propagation.
type TerminationCondition interface {
	fmt.Stringer
	Terminate(dt time.Time, env *Environment) bool
}

// AltitudeTermination stops a propagation when a body sinks below a given
// altitude above the central body's surface.
type AltitudeTermination struct {
	Body     string
	Central  CelestialObject
	Altitude float64 // km above the surface
}

func (a AltitudeTermination) String() string {
	return fmt.Sprintf("altitude of %s below %.1f km about %s", a.Body, a.Altitude, a.Central.Name)
}

// Terminate implements TerminationCondition.
func (a AltitudeTermination) Terminate(dt time.Time, env *Environment) bool {
	b, err := env.Body(a.Body)
	if err != nil {
		return false
	}
	return norm(b.R) < a.Central.Radius+a.Altitude
}

// Predicate wraps an arbitrary stop function as a termination condition.
type Predicate struct {
	What string
	Fn   func(dt time.Time, env *Environment) bool
}

func (p Predicate) String() string { return p.What }

// Terminate implements TerminationCondition.
func (p Predicate) Terminate(dt time.Time, env *Environment) bool { return p.Fn(dt, env) }

// Propagation drives the integration of one Dynamics, optionally augmented
// with its variational equations. The state transition block always starts
// from identity and the sensitivity block from zero: both are anchored at the
// start epoch, never carried over from a previous run.
type Propagation struct {
	Method    IntegrationMethod
	Tolerance float64 // local error tolerance for AdaptiveRKF45

	StartDT   time.Time
	StopDT    time.Time
	CurrentDT time.Time

	dyn       *Dynamics
	varEq     *VariationalEquations
	step      time.Duration
	dir       float64 // +1 forward, -1 backward
	x         []float64
	conds     []TerminationCondition
	stopChan  chan bool
	histChans []chan State
	done      bool
	logger    kitlog.Logger
	wg        sync.WaitGroup
}

// NewPropagation returns a propagation of dyn from start to stop. A stop
// epoch before start integrates backward. A zero stop epoch means the
// termination conditions alone decide, so at least one must be given.
func NewPropagation(name string, dyn *Dynamics, varEq *VariationalEquations, start, stop time.Time, step time.Duration, conds ...TerminationCondition) *Propagation {
	if dyn == nil {
		panic("propagation needs dynamics")
	}
	if step <= 0 {
		panic("config step must be positive")
	}
	if stop.IsZero() && len(conds) == 0 {
		panic("nothing would stop this propagation")
	}
	klog := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	klog = kitlog.With(klog, "prop", name)
	dir := 1.
	if !stop.IsZero() && stop.Before(start) {
		dir = -1
	}
	n := dyn.layout.Dim()
	size := n
	if varEq != nil {
		size += n * n
		size += n * varEq.ParamDim()
	}
	x := make([]float64, size)
	copy(x[:n], dyn.stateVector())
	if varEq != nil {
		for i := 0; i < n; i++ {
			x[n+i*n+i] = 1
		}
	}
	return &Propagation{
		Method:    FixedRK4,
		Tolerance: 1e-12,
		StartDT:   start,
		StopDT:    stop,
		CurrentDT: start,
		dyn:       dyn,
		varEq:     varEq,
		step:      step,
		dir:       dir,
		x:         x,
		conds:     conds,
		stopChan:  make(chan bool, 1),
		logger:    klog,
	}
}

// RegisterStateChan adds a streaming consumer fed one State per accepted
// step. The consumer must drain the channel until it closes; Propagate waits
// for all consumers before returning.
func (p *Propagation) RegisterStateChan(consume func(states <-chan State)) {
	ch := make(chan State, 1000)
	p.histChans = append(p.histChans, ch)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		consume(ch)
	}()
}

// Propagate blocks until the propagation terminates and all state consumers
// have drained their channels.
func (p *Propagation) Propagate() error {
	p.logger.Log("level", "notice", "subsys", "astro", "status", "starting", "start", p.StartDT, "stop", p.StopDT, "step", p.step)
	p.stream()
	var err error
	switch p.Method {
	case FixedRK4:
		_, _, err = integrator.NewRK4(0, p.step.Seconds(), p).Solve()
	case AdaptiveRKF45:
		span := math.Abs(p.StopDT.Sub(p.StartDT).Seconds())
		_, _, err = integrator.NewRKF45(0, span, p.step.Seconds(), p.Tolerance, p).Solve()
	default:
		panic(fmt.Errorf("unknown integration method %d", p.Method))
	}
	p.done = true
	for _, ch := range p.histChans {
		close(ch)
	}
	duration := p.CurrentDT.Sub(p.StartDT)
	if err != nil {
		p.logger.Log("level", "critical", "subsys", "astro", "status", "failed", "duration", duration, "err", err)
		return err
	}
	p.logger.Log("level", "notice", "subsys", "astro", "status", "finished", "duration", duration)
	p.wg.Wait()
	return nil
}

// StopPropagation interrupts the propagation before its end conditions.
func (p *Propagation) StopPropagation() {
	p.stopChan <- true
}

// STM returns a copy of the current state transition matrix.
func (p *Propagation) STM() *mat.Dense {
	if p.varEq == nil {
		panic("propagation carries no variational equations")
	}
	n := p.dyn.layout.Dim()
	Φ := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			Φ.Set(i, j, p.x[n+i*n+j])
		}
	}
	return Φ
}

// Sensitivity returns a copy of the current sensitivity matrix, or nil when
// no dynamical constant is estimated.
func (p *Propagation) Sensitivity() *mat.Dense {
	if p.varEq == nil {
		panic("propagation carries no variational equations")
	}
	pDim := p.varEq.ParamDim()
	if pDim == 0 {
		return nil
	}
	n := p.dyn.layout.Dim()
	S := mat.NewDense(n, pDim, nil)
	off := n + n*n
	for i := 0; i < n; i++ {
		for j := 0; j < pDim; j++ {
			S.Set(i, j, p.x[off+i*pDim+j])
		}
	}
	return S
}

func (p *Propagation) stream() {
	if len(p.histChans) == 0 {
		return
	}
	vec := make([]float64, len(p.x))
	copy(vec, p.x)
	for _, ch := range p.histChans {
		ch <- State{p.CurrentDT, vec}
	}
}

// epochAt maps integration time in seconds to an epoch, honoring direction.
func (p *Propagation) epochAt(t float64) time.Time {
	return p.StartDT.Add(time.Duration(p.dir * t * float64(time.Second)))
}

// GetState implements integrator.Integrable.
func (p *Propagation) GetState() []float64 {
	out := make([]float64, len(p.x))
	copy(out, p.x)
	return out
}

// SetState implements integrator.Integrable for the fixed step driver.
func (p *Propagation) SetState(i uint64, s []float64) {
	p.CurrentDT = p.StartDT.Add(time.Duration(p.dir * float64(i+1) * float64(p.step)))
	p.accept(s)
}

// SetTimedState implements integrator.TimedIntegrable for the adaptive
// driver.
func (p *Propagation) SetTimedState(i uint64, t float64, s []float64) {
	p.CurrentDT = p.epochAt(t)
	p.accept(s)
}

func (p *Propagation) accept(s []float64) {
	copy(p.x, s)
	n := p.dyn.layout.Dim()
	p.dyn.env.SetEpoch(p.CurrentDT)
	p.dyn.applyState(p.x[:n])
	p.stream()
}

// Stop implements integrator.Integrable. Termination conditions are only
// consulted here, after accepted steps, never against trial stage states.
func (p *Propagation) Stop(i uint64) bool {
	select {
	case <-p.stopChan:
		p.logger.Log("level", "notice", "subsys", "astro", "status", "stopped", "dt", p.CurrentDT)
		return true
	default:
	}
	if p.StopDT.IsZero() {
		// A hard limit is set on a ten year propagation.
		if p.CurrentDT.After(p.StartDT.Add(24 * 3652.5 * time.Hour)) {
			p.logger.Log("level", "critical", "subsys", "astro", "status", "killed")
			return true
		}
	} else if p.dir > 0 && !p.CurrentDT.Before(p.StopDT) {
		return true
	} else if p.dir < 0 && !p.CurrentDT.After(p.StopDT) {
		return true
	}
	for _, cond := range p.conds {
		if cond.Terminate(p.CurrentDT, p.dyn.env) {
			p.logger.Log("level", "notice", "subsys", "astro", "status", "terminated", "dt", p.CurrentDT, "cond", cond.String())
			return true
		}
	}
	return false
}

// Func implements integrator.Integrable for the augmented vector. Backward
// runs integrate in positive τ with the derivative negated.
func (p *Propagation) Func(t float64, f []float64) []float64 {
	dt := p.epochAt(t)
	n := p.dyn.layout.Dim()
	out := make([]float64, len(f))
	xDot := p.dyn.Derivative(dt, f[:n])
	for i := 0; i < n; i++ {
		out[i] = p.dir * xDot[i]
	}
	if p.varEq != nil {
		p.varEq.Evaluate(dt)
		Φ := mat.NewDense(n, n, f[n:n+n*n])
		var ΦDot mat.Dense
		ΦDot.Mul(p.varEq.A, Φ)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				out[n+i*n+j] = p.dir * ΦDot.At(i, j)
			}
		}
		if pDim := p.varEq.ParamDim(); pDim > 0 {
			off := n + n*n
			S := mat.NewDense(n, pDim, f[off:])
			var SDot mat.Dense
			SDot.Mul(p.varEq.A, S)
			SDot.Add(&SDot, p.varEq.B)
			for i := 0; i < n; i++ {
				for j := 0; j < pDim; j++ {
					out[off+i*pDim+j] = p.dir * SDot.At(i, j)
				}
			}
		}
	}
	for i, v := range out {
		if math.IsNaN(v) {
			panic(fmt.Errorf("fDot[%d]=NaN @ dt=%s", i, dt))
		}
	}
	return out
}
