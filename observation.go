package tudat

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// lightSpeed is the speed of light in km/s, used for light time iterations.
const lightSpeed = 299792.458

// ObservableType tags the kind of quantity an observation carries.
type ObservableType uint8

const (
	// OneWayRange is the light time corrected distance between the link ends, in km.
	OneWayRange ObservableType = iota + 1
	// OneWayRangeRate is the line of sight velocity between the link ends, in km/s.
	OneWayRangeRate
)

func (o ObservableType) String() string {
	switch o {
	case OneWayRange:
		return "one-way range"
	case OneWayRangeRate:
		return "one-way range-rate"
	default:
		return fmt.Sprintf("observableType(%d)", o)
	}
}

// LinkEnd is one participant of an observation: either an integrated body or
// a ground station.
type LinkEnd struct {
	Body    string
	Station *Station
}

func (l LinkEnd) String() string {
	if l.Station != nil {
		return l.Station.Name
	}
	return l.Body
}

// LinkEnds binds the participant roles of an observation. It is immutable
// once observations have been simulated for it. Exactly one end must be a
// ground station and the other an integrated body.
type LinkEnds struct {
	Transmitter LinkEnd
	Receiver    LinkEnd
}

func (l LinkEnds) String() string {
	return fmt.Sprintf("%s -> %s", l.Transmitter, l.Receiver)
}

// station returns the ground station end and whether it transmits.
func (l LinkEnds) station() (*Station, bool) {
	if l.Transmitter.Station != nil {
		return l.Transmitter.Station, true
	}
	return l.Receiver.Station, false
}

// body returns the name of the integrated body end.
func (l LinkEnds) body() string {
	if l.Transmitter.Station != nil {
		return l.Receiver.Body
	}
	return l.Transmitter.Body
}

func (l LinkEnds) validate() error {
	stations := 0
	if l.Transmitter.Station != nil {
		stations++
	}
	if l.Receiver.Station != nil {
		stations++
	}
	if stations != 1 {
		return fmt.Errorf("link %s must bind exactly one ground station, has %d", l, stations)
	}
	if l.body() == "" {
		return fmt.Errorf("link %s binds no integrated body", l)
	}
	return nil
}

// ObservationKey identifies one simulated observable over one link.
type ObservationKey struct {
	Type  ObservableType
	Links LinkEnds
}

func (k ObservationKey) String() string {
	return fmt.Sprintf("%s over %s", k.Type, k.Links)
}

// ObservationSet holds the ordered epochs and values of one observable over
// one link.
type ObservationSet struct {
	Times  []time.Time
	Values []float64
}

// Len returns the number of observations in the set.
func (s *ObservationSet) Len() int {
	return len(s.Times)
}

// ObservationRequest asks a simulator for one observable over one link at
// the given epochs.
type ObservationRequest struct {
	Key   ObservationKey
	Times []time.Time
}

// observe computes the observable value and its partial with respect to the
// body's translational state, given the body's inertial state at the
// observation epoch. The station epoch is light time corrected: a
// transmitting station is evaluated at t - ρ/c, a receiving one at t + ρ/c.
func observe(typ ObservableType, links LinkEnds, rECI, vECI []float64, θgst float64) (val float64, htilde []float64, err error) {
	st, transmits := links.station()
	lightDir := -1.0
	if !transmits {
		lightDir = 1.0
	}
	stR, stV := st.ECI(θgst)
	ρVec := make([]float64, 3)
	for i := 0; i < 3; i++ {
		ρVec[i] = rECI[i] - stR[i]
	}
	ρ := norm(ρVec)
	// Light time iteration: move the station epoch along its rotation until
	// the range stops changing. Converges in two or three passes for any
	// planetary geometry.
	for iter := 0; iter < 10; iter++ {
		θ := θgst + lightDir*(ρ/lightSpeed)*EarthRotationRate
		stR, stV = st.ECI(θ)
		for i := 0; i < 3; i++ {
			ρVec[i] = rECI[i] - stR[i]
		}
		ρNew := norm(ρVec)
		if math.Abs(ρNew-ρ) < 1e-12 {
			ρ = ρNew
			break
		}
		ρ = ρNew
	}
	vDiff := make([]float64, 3)
	for i := 0; i < 3; i++ {
		vDiff[i] = vECI[i] - stV[i]
	}
	ρDot := dot(ρVec, vDiff) / ρ
	switch typ {
	case OneWayRange:
		htilde = []float64{ρVec[0] / ρ, ρVec[1] / ρ, ρVec[2] / ρ, 0, 0, 0}
		return ρ, htilde, nil
	case OneWayRangeRate:
		htilde = make([]float64, 6)
		for i := 0; i < 3; i++ {
			htilde[i] = vDiff[i]/ρ - ρDot*ρVec[i]/(ρ*ρ)
			htilde[3+i] = ρVec[i] / ρ
		}
		return ρDot, htilde, nil
	default:
		return 0, nil, fmt.Errorf("cannot observe %s", typ)
	}
}

// ObservationSimulator produces synthetic observations from a stored
// trajectory. Each link is computed independently of the others, so one
// simulator may serve any number of links within a pass.
type ObservationSimulator struct {
	layout *StateLayout
	traj   *TimeSeries
	ref    time.Time // epoch at which θgst = 0
	Noisy  bool
}

// NewObservationSimulator returns a simulator reading the augmented state
// history in traj, laid out by layout, with the planet rotation anchored at
// ref.
func NewObservationSimulator(layout *StateLayout, traj *TimeSeries, ref time.Time) *ObservationSimulator {
	if layout == nil || traj == nil {
		panic("observation simulator needs a layout and a trajectory")
	}
	return &ObservationSimulator{layout: layout, traj: traj, ref: ref.UTC()}
}

// Simulate computes the requested observable at every epoch clearing the
// station's elevation mask. The returned set orders times and values as
// requested, skipping non visible epochs.
func (sim *ObservationSimulator) Simulate(key ObservationKey, times []time.Time) (*ObservationSet, error) {
	if err := key.Links.validate(); err != nil {
		return nil, err
	}
	start, err := sim.layout.StartOf(Translational, key.Links.body())
	if err != nil {
		return nil, err
	}
	st, _ := key.Links.station()
	set := &ObservationSet{}
	for _, dt := range times {
		x, err := sim.traj.Interpolate(dt)
		if err != nil {
			return nil, err
		}
		rECI := x[start : start+3]
		vECI := x[start+3 : start+6]
		θgst := dt.Sub(sim.ref).Seconds() * EarthRotationRate
		if !st.Visible(rECI, θgst) {
			continue
		}
		val, _, err := observe(key.Type, key.Links, rECI, vECI, θgst)
		if err != nil {
			return nil, err
		}
		if sim.Noisy {
			switch key.Type {
			case OneWayRange:
				val += st.RangeNoise.Rand(nil)[0]
			case OneWayRangeRate:
				val += st.RangeRateNoise.Rand(nil)[0]
			}
		}
		set.Times = append(set.Times, dt)
		set.Values = append(set.Values, val)
	}
	return set, nil
}

// SimulateAll runs every request and collects the results per key.
func (sim *ObservationSimulator) SimulateAll(reqs []ObservationRequest) (map[ObservationKey]*ObservationSet, error) {
	out := make(map[ObservationKey]*ObservationSet, len(reqs))
	for _, req := range reqs {
		set, err := sim.Simulate(req.Key, req.Times)
		if err != nil {
			return nil, err
		}
		if prior, found := out[req.Key]; found {
			prior.Times = append(prior.Times, set.Times...)
			prior.Values = append(prior.Values, set.Values...)
		} else {
			out[req.Key] = set
		}
	}
	return out, nil
}

// observationPartial expands the 1×6 translational partial of an observable
// into a full width design matrix row for the given layout.
func observationPartial(layout *StateLayout, body string, htilde []float64) (*mat.Dense, error) {
	start, err := layout.StartOf(Translational, body)
	if err != nil {
		return nil, err
	}
	row := mat.NewDense(1, layout.Dim(), nil)
	for j := 0; j < 6; j++ {
		row.Set(0, start+j, htilde[j])
	}
	return row, nil
}
