package motion

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Steps returns the number of physics steps replayed for time t.
func (m *Model) Steps(t float64) int {
	if t <= 0 {
		return 0
	}
	n := math.Floor(t*m.tuning.FrameRate + stepEpsilon)
	if n >= float64(m.tuning.MaxPhysicsFrames) {
		return m.tuning.MaxPhysicsFrames
	}
	return int(n)
}

// physics replays the chain prefix 0..index from rest and returns the
// simulated displacement of link index, undecayed. Links are swept root to
// tip each step, so a link's spring sees its parent's position from the
// same step.
func (m *Model) physics(t float64, index int) r2.Vec {
	steps := m.Steps(t)
	if steps == 0 {
		return r2.Vec{}
	}

	n := index + 1
	pos := make([]r2.Vec, n)
	prev := make([]r2.Vec, n)
	for i := 0; i < n; i++ {
		pos[i] = m.chain[i].Anchor.Position
		prev[i] = pos[i]
	}

	p := m.params
	dt := m.tuning.Step()
	dt2 := dt * dt
	k := p.Stiffness * m.tuning.SpringScale
	damp := math.Max(0, math.Min(1, 1-p.Damping*m.tuning.DampingScale))
	g := r2.Vec{Y: p.Gravity * m.tuning.GravityScale}

	for s := 0; s < steps; s++ {
		for i := 0; i < n; i++ {
			link := m.chain[i]
			rest := link.Anchor.Position

			anchor, goal := rest, rest
			if !link.IsRoot() {
				anchor = pos[link.Parent]
				goal = r2.Add(anchor, r2.Sub(rest, m.chain[link.Parent].Anchor.Position))
			}

			acc := r2.Add(r2.Scale(k, r2.Sub(goal, pos[i])), g)
			vel := r2.Scale(damp, r2.Sub(pos[i], prev[i]))
			next := r2.Add(r2.Add(pos[i], vel), r2.Scale(dt2, acc))
			next = constrain(anchor, next, m.tuning.DistanceClamp*link.RestLength)

			prev[i], pos[i] = pos[i], next
		}
	}

	return r2.Sub(pos[index], m.chain[index].Anchor.Position)
}

// constrain projects p back onto the circle of radius maxLen around anchor
// when it is farther away.
func constrain(anchor, p r2.Vec, maxLen float64) r2.Vec {
	d := r2.Sub(p, anchor)
	dist := r2.Norm(d)
	if dist <= maxLen {
		return p
	}
	return r2.Add(anchor, r2.Scale(maxLen/dist, d))
}
