// Package motion evaluates sway offsets for the links of a chain.
//
// Every evaluation is a pure function of (t, link index, parameters, chain).
// The physics variant carries no state between calls: it replays a fixed-step
// Verlet integration from t = 0 up to the requested frame each time, capped at
// Tuning.MaxPhysicsFrames steps. Scrubbing backwards therefore works, and the
// cost of a call is bounded by the cap.
package motion

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/starford/sway/internal/params"
	"github.com/starford/sway/internal/rig"
)

// stepEpsilon absorbs float error when t is an exact frame time.
const stepEpsilon = 1e-9

// Model evaluates one chain with one parameter set.
type Model struct {
	params params.Set
	chain  []rig.ChainLink
	tuning Tuning
	shape  params.DecayShape
}

// New builds a Model. The chain must be topologically ordered: every
// parent index is smaller than the link's own index.
func New(p params.Set, chain []rig.ChainLink, tuning Tuning) (*Model, error) {
	if err := tuning.Validate(); err != nil {
		return nil, err
	}
	for i, l := range chain {
		if l.Index != i {
			return nil, fmt.Errorf("motion: link %d carries index %d", i, l.Index)
		}
		if l.Parent != rig.NoParent && (l.Parent < 0 || l.Parent >= i) {
			return nil, fmt.Errorf("motion: link %d has parent %d out of order", i, l.Parent)
		}
	}
	p.Normalize()

	shape := p.DecayShape
	if shape == params.DecayDefault {
		shape = defaultShape(p.Mode)
	}
	return &Model{params: p, chain: chain, tuning: tuning, shape: shape}, nil
}

// Params returns the parameter set of the model.
func (m *Model) Params() params.Set { return m.params }

// Len returns the number of links.
func (m *Model) Len() int { return len(m.chain) }

// Evaluate returns the value of link index at time t. current is the
// property value before sway is applied; hybrid mode adds its offset to it,
// the other modes add theirs to the link's rest position. A disabled model
// and an index outside the chain return current unchanged.
func (m *Model) Evaluate(t float64, index int, current r2.Vec) r2.Vec {
	if !m.params.Enabled || index < 0 || index >= len(m.chain) {
		return current
	}
	base := m.chain[index].Anchor.Position
	if m.params.Mode == params.ModeHybrid {
		base = current
	}
	return r2.Add(base, m.Offset(t, index))
}

// Offset returns the decayed displacement of link index at time t.
func (m *Model) Offset(t float64, index int) r2.Vec {
	if !m.params.Enabled || index < 0 || index >= len(m.chain) {
		return r2.Vec{}
	}

	var off r2.Vec
	switch m.params.Mode {
	case params.ModePhysics:
		off = m.physics(t, index)
	case params.ModeHybrid:
		blend := m.params.BlendFraction()
		proc := m.procedural(t, index)
		phys := m.physics(t, index)
		off = r2.Add(r2.Scale(1-blend, proc), r2.Scale(blend, phys))
	default:
		off = m.procedural(t, index)
	}
	return r2.Scale(Decay(t, m.params.DecayStart, m.params.DecayDuration, m.shape), off)
}

// LinkMultiplier scales motion along the chain so that it grows toward
// the tip.
func LinkMultiplier(index int, topology params.RootMotion) float64 {
	if topology == params.RootBaseline {
		return 1 + float64(index)*0.3
	}
	return float64(index) * 0.5
}

// procedural is the closed-form oscillation plus noise and wind, undecayed.
func (m *Model) procedural(t float64, index int) r2.Vec {
	p := m.params
	tau := t - float64(index)*p.ChainDelay
	angle := tau*p.Frequency*2*math.Pi + p.PhaseRadians()

	sineX := math.Sin(angle)
	sineY := math.Sin(angle+math.Pi/4) * 0.3

	seed := float64(index * 1000)
	nx := noiseSigned(tau*p.NoiseScale, seed)
	ny := noiseSigned(tau*p.NoiseScale+100, seed)

	n := p.NoiseFraction()
	motionX := sineX*(1-n) + nx*n
	motionY := sineY*(1-n) + ny*n*0.5

	var windX, windY float64
	if p.WindStrength != 0 {
		dir := p.WindRadians()
		windX = math.Cos(dir) * p.WindStrength * (1 + noise01(tau*2, seed+500)*0.5)
		windY = math.Sin(dir) * p.WindStrength * (1 + noise01(tau*2, seed+600)*0.5)
	}

	mult := LinkMultiplier(index, p.RootMotion)
	return r2.Vec{
		X: (motionX*p.Amplitude + windX) * mult,
		Y: (motionY*p.Amplitude + windY) * mult,
	}
}
