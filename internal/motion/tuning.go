package motion

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Default engine constants.
const (
	DefaultFrameRate        = 24.0
	DefaultMaxPhysicsFrames = 500
	DefaultDistanceClamp    = 1.5  // max stretch, in rest lengths, from the parent
	DefaultSpringScale      = 0.5  // stiffness -> spring acceleration
	DefaultDampingScale     = 0.05 // damping -> velocity loss per step
	DefaultGravityScale     = 0.1  // gravity -> downward acceleration
)

// Tuning holds the engine constants. FrameRate is the timeline frame rate
// and fixes the physics step Δt = 1/FrameRate.
type Tuning struct {
	FrameRate        float64 `yaml:"-"`
	MaxPhysicsFrames int     `yaml:"max_physics_frames"`
	DistanceClamp    float64 `yaml:"distance_clamp"`
	SpringScale      float64 `yaml:"spring_scale"`
	DampingScale     float64 `yaml:"damping_scale"`
	GravityScale     float64 `yaml:"gravity_scale"`
}

// DefaultTuning returns the stock engine constants at DefaultFrameRate.
func DefaultTuning() Tuning {
	return Tuning{
		FrameRate:        DefaultFrameRate,
		MaxPhysicsFrames: DefaultMaxPhysicsFrames,
		DistanceClamp:    DefaultDistanceClamp,
		SpringScale:      DefaultSpringScale,
		DampingScale:     DefaultDampingScale,
		GravityScale:     DefaultGravityScale,
	}
}

// WithFrameRate returns a copy of t stepping at fps.
func (t Tuning) WithFrameRate(fps float64) Tuning {
	t.FrameRate = fps
	return t
}

// Step returns the physics step in seconds.
func (t Tuning) Step() float64 { return 1 / t.FrameRate }

// Validate validates the tuning.
func (t *Tuning) Validate() error {
	err := validation.ValidateStruct(t,
		validation.Field(&t.FrameRate, validation.Required, validation.Min(0.001)),
		validation.Field(&t.MaxPhysicsFrames, validation.Min(0)),
		validation.Field(&t.DistanceClamp, validation.Required, validation.Min(1.0)),
		validation.Field(&t.SpringScale, validation.Min(0.0)),
		validation.Field(&t.DampingScale, validation.Min(0.0)),
		validation.Field(&t.GravityScale, validation.Min(0.0)),
	)
	if err != nil {
		return fmt.Errorf("motion: tuning: %w", err)
	}
	return nil
}
