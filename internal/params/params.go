// Package params defines the tunable parameter set shared by every link of
// a sway chain, with defaults, validation and flat-map decoding.
package params

import (
	"errors"
	"fmt"
	"math"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/sway/internal/apperr"
)

// MinDecayDuration replaces non-positive decay durations.
const MinDecayDuration = 0.001

// Mode selects the motion model variant.
type Mode string

// Motion modes.
const (
	ModeProcedural Mode = "procedural"
	ModePhysics    Mode = "physics"
	ModeHybrid     Mode = "hybrid"
)

// RootMotion selects the per-link amplitude multiplier topology.
type RootMotion string

const (
	// RootPinned scales link i by i*0.5: the root never moves.
	RootPinned RootMotion = "pinned"
	// RootBaseline scales link i by 1+i*0.3: the root has baseline motion.
	RootBaseline RootMotion = "baseline"
)

// DecayShape selects the fade-out curve. Empty means the mode default.
type DecayShape string

// Decay shapes.
const (
	DecayDefault    DecayShape = ""
	DecayLinear     DecayShape = "linear"
	DecaySmoothstep DecayShape = "smoothstep"
)

// Set is the ControlParameterSet. Angles are in degrees, NoiseAmount and
// PhysicsBlend are percentages.
type Set struct {
	Mode    Mode `json:"mode" yaml:"mode"`
	Enabled bool `json:"enabled" yaml:"enabled"`

	Amplitude     float64 `json:"amplitude" yaml:"amplitude"`
	Frequency     float64 `json:"frequency" yaml:"frequency"`
	PhaseOffset   float64 `json:"phaseOffset" yaml:"phaseOffset"`
	ChainDelay    float64 `json:"chainDelay" yaml:"chainDelay"`
	NoiseAmount   float64 `json:"noiseAmount" yaml:"noiseAmount"`
	NoiseScale    float64 `json:"noiseScale" yaml:"noiseScale"`
	Damping       float64 `json:"damping" yaml:"damping"`
	Stiffness     float64 `json:"stiffness" yaml:"stiffness"`
	Gravity       float64 `json:"gravity" yaml:"gravity"`
	WindDirection float64 `json:"windDirection" yaml:"windDirection"`
	WindStrength  float64 `json:"windStrength" yaml:"windStrength"`
	PhysicsBlend  float64 `json:"physicsBlend" yaml:"physicsBlend"`
	DecayStart    float64 `json:"decayStart" yaml:"decayStart"`
	DecayDuration float64 `json:"decayDuration" yaml:"decayDuration"`

	RootMotion RootMotion `json:"rootMotion,omitempty" yaml:"rootMotion,omitempty"`
	DecayShape DecayShape `json:"decayShape,omitempty" yaml:"decayShape,omitempty"`
}

// Default returns the parameter set used for missing keys.
func Default() Set {
	return Set{
		Mode:          ModeProcedural,
		Enabled:       true,
		Amplitude:     50,
		Frequency:     2,
		PhaseOffset:   0,
		ChainDelay:    0.1,
		NoiseAmount:   20,
		NoiseScale:    1,
		Damping:       30,
		Stiffness:     50,
		Gravity:       0,
		WindDirection: 0,
		WindStrength:  0,
		PhysicsBlend:  0,
		DecayStart:    0,
		DecayDuration: 1,
		RootMotion:    RootPinned,
	}
}

// Normalize fills empty enum fields and clamps DecayDuration.
func (s *Set) Normalize() {
	if s.Mode == "" {
		s.Mode = ModeProcedural
	}
	if s.RootMotion == "" {
		s.RootMotion = RootPinned
	}
	if s.DecayDuration <= 0 {
		s.DecayDuration = MinDecayDuration
	}
}

// Validate checks the invariants of the set. Errors wrap
// apperr.ErrInvalidParameters.
func (s *Set) Validate() error {
	err := validation.ValidateStruct(s,
		validation.Field(&s.Mode, validation.Required, validation.In(ModeProcedural, ModePhysics, ModeHybrid)),
		validation.Field(&s.RootMotion, validation.In(RootPinned, RootBaseline)),
		validation.Field(&s.DecayShape, validation.In(DecayLinear, DecaySmoothstep)),
		validation.Field(&s.Amplitude, finiteRule, validation.Min(0.0)),
		validation.Field(&s.Frequency, finiteRule, validation.Min(0.0)),
		validation.Field(&s.PhaseOffset, finiteRule),
		validation.Field(&s.ChainDelay, finiteRule),
		validation.Field(&s.NoiseAmount, finiteRule, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&s.NoiseScale, finiteRule),
		validation.Field(&s.Damping, finiteRule, validation.Min(0.0)),
		validation.Field(&s.Stiffness, finiteRule, validation.Min(0.0)),
		validation.Field(&s.Gravity, finiteRule),
		validation.Field(&s.WindDirection, finiteRule),
		validation.Field(&s.WindStrength, finiteRule),
		validation.Field(&s.PhysicsBlend, finiteRule, validation.Min(0.0), validation.Max(100.0)),
		validation.Field(&s.DecayStart, finiteRule),
		validation.Field(&s.DecayDuration, finiteRule, validation.Min(MinDecayDuration)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidParameters, err)
	}
	return nil
}

// NoiseFraction returns NoiseAmount as a 0..1 fraction.
func (s Set) NoiseFraction() float64 { return s.NoiseAmount / 100 }

// BlendFraction returns PhysicsBlend as a 0..1 fraction.
func (s Set) BlendFraction() float64 { return s.PhysicsBlend / 100 }

// PhaseRadians returns PhaseOffset in radians.
func (s Set) PhaseRadians() float64 { return s.PhaseOffset * math.Pi / 180 }

// WindRadians returns WindDirection in radians.
func (s Set) WindRadians() float64 { return s.WindDirection * math.Pi / 180 }

var finiteRule = validation.By(func(value any) error {
	f, ok := value.(float64)
	if !ok {
		return errors.New("must be a number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.New("must be finite")
	}
	return nil
})
