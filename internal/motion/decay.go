package motion

import (
	"math"

	"github.com/starford/sway/internal/params"
)

// Decay returns the fade multiplier at time t. It is 1 until start (or
// always, when start <= 0) and reaches 0 at start+duration.
//
// Procedural motion fades linearly, physics and hybrid fade with an
// inverted smoothstep; see defaultShape.
func Decay(t, start, duration float64, shape params.DecayShape) float64 {
	if start <= 0 || t <= start {
		return 1
	}
	s := (t - start) / math.Max(duration, params.MinDecayDuration)
	s = math.Max(0, math.Min(1, s))
	if shape == params.DecayLinear {
		return 1 - s
	}
	return 1 - s*s*(3-2*s)
}

func defaultShape(mode params.Mode) params.DecayShape {
	if mode == params.ModeProcedural {
		return params.DecayLinear
	}
	return params.DecaySmoothstep
}
