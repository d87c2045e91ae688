package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/sway/internal/motion"
	"github.com/starford/sway/internal/rig"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Document DocumentConfig    `yaml:"document"`
	Presets  PresetsConfig     `yaml:"presets"`
	Auth     AuthConfig        `yaml:"auth"`
	Engine   EngineConfig      `yaml:"engine"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Document.Validate(); err != nil {
		return err
	}
	if err := c.Presets.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Engine.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// DocumentConfig holds the path of the SQLite document database.
type DocumentConfig struct {
	Path string `yaml:"path"`
	// Scene, when set, is a YAML scene imported at startup.
	Scene string `yaml:"scene"`
}

// Validate validates the document configuration.
func (c *DocumentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// PresetsConfig holds the directory of saved presets.
type PresetsConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

// Validate validates the presets configuration.
func (c *PresetsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// EngineConfig holds the motion engine constants. The frame rate is not
// configured here; it always follows the document timeline.
type EngineConfig struct {
	MaxPhysicsFrames int     `yaml:"max_physics_frames"`
	DistanceClamp    float64 `yaml:"distance_clamp"`
	SpringScale      float64 `yaml:"spring_scale"`
	DampingScale     float64 `yaml:"damping_scale"`
	GravityScale     float64 `yaml:"gravity_scale"`
	RootTieTolerance float64 `yaml:"root_tie_tolerance"`
}

// Validate validates the engine configuration.
func (c *EngineConfig) Validate() error {
	t := c.Tuning()
	if err := t.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.RootTieTolerance, validation.Min(0.0)),
	)
}

// Tuning converts the engine configuration into motion tuning.
func (c *EngineConfig) Tuning() motion.Tuning {
	return motion.Tuning{
		FrameRate:        motion.DefaultFrameRate,
		MaxPhysicsFrames: c.MaxPhysicsFrames,
		DistanceClamp:    c.DistanceClamp,
		SpringScale:      c.SpringScale,
		DampingScale:     c.DampingScale,
		GravityScale:     c.GravityScale,
	}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Document: DocumentConfig{
			Path: "./sway.db",
		},
		Presets: PresetsConfig{
			Dir:   "./presets",
			Watch: true,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Engine: EngineConfig{
			MaxPhysicsFrames: motion.DefaultMaxPhysicsFrames,
			DistanceClamp:    motion.DefaultDistanceClamp,
			SpringScale:      motion.DefaultSpringScale,
			DampingScale:     motion.DefaultDampingScale,
			GravityScale:     motion.DefaultGravityScale,
			RootTieTolerance: rig.DefaultTieTolerance,
		},
	}
}
