package document

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"

	"github.com/starford/sway/internal/apperr"
	"github.com/starford/sway/internal/bake"
	"github.com/starford/sway/internal/rig"
)

// Scene is the YAML description of a document: its timeline and its
// layers with their puppet pins.
//
//	timeline: {frame_rate: 24, duration: 10}
//	layers:
//	  - name: Hair
//	    pins:
//	      - {name: Pin 1, x: 0, y: 0, selected: true}
type Scene struct {
	Timeline SceneTimeline `yaml:"timeline" json:"timeline"`
	Layers   []SceneLayer  `yaml:"layers" json:"layers"`
}

// SceneTimeline mirrors bake.Timeline with YAML names.
type SceneTimeline struct {
	FrameRate float64 `yaml:"frame_rate" json:"frame_rate"`
	Duration  float64 `yaml:"duration" json:"duration"`
}

// SceneLayer is one layer of a scene. Rig defaults to true.
type SceneLayer struct {
	Name string     `yaml:"name" json:"name"`
	Rig  *bool      `yaml:"rig,omitempty" json:"rig,omitempty"`
	Pins []ScenePin `yaml:"pins" json:"pins"`
}

// ScenePin is one puppet pin of a scene layer.
type ScenePin struct {
	Name     string  `yaml:"name" json:"name"`
	X        float64 `yaml:"x" json:"x"`
	Y        float64 `yaml:"y" json:"y"`
	Selected bool    `yaml:"selected" json:"selected"`
}

// Validate validates the scene.
func (s *Scene) Validate() error {
	if err := validation.ValidateStruct(s,
		validation.Field(&s.Layers, validation.Required),
	); err != nil {
		return err
	}
	if s.Timeline != (SceneTimeline{}) {
		if err := s.Timeline.bake().Validate(); err != nil {
			return err
		}
	}
	seen := make(map[string]struct{}, len(s.Layers))
	for i := range s.Layers {
		l := &s.Layers[i]
		if err := l.Validate(); err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
		if _, dup := seen[l.Name]; dup {
			return fmt.Errorf("layer %q declared twice", l.Name)
		}
		seen[l.Name] = struct{}{}
	}
	return nil
}

// Validate validates a scene layer.
func (l *SceneLayer) Validate() error {
	if err := validation.ValidateStruct(l,
		validation.Field(&l.Name, validation.Required),
	); err != nil {
		return err
	}
	for j := range l.Pins {
		p := &l.Pins[j]
		if err := validation.ValidateStruct(p, validation.Field(&p.Name, validation.Required)); err != nil {
			return fmt.Errorf("pin %d: %w", j, err)
		}
	}
	return nil
}

func (t SceneTimeline) bake() bake.Timeline {
	return bake.Timeline{FrameRate: t.FrameRate, Duration: t.Duration}
}

// Layer converts the scene layer into a document layer.
func (l SceneLayer) Layer() Layer {
	out := Layer{Name: l.Name, HasRig: l.Rig == nil || *l.Rig}
	if !out.HasRig {
		return out
	}
	out.Pins = make([]rig.AnchorPoint, len(l.Pins))
	for i, p := range l.Pins {
		out.Pins[i] = rig.AnchorPoint{Name: p.Name, Position: r2.Vec{X: p.X, Y: p.Y}, Selected: p.Selected}
	}
	return out
}

// ParseScene decodes and validates a YAML scene. Errors wrap
// apperr.ErrInvalidParameters.
func ParseScene(data []byte) (*Scene, error) {
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: scene: %v", apperr.ErrInvalidParameters, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: scene: %v", apperr.ErrInvalidParameters, err)
	}
	return &s, nil
}

// ImportScene writes every layer of s into the document. A zero timeline
// leaves the current one in place.
func (db *DB) ImportScene(ctx context.Context, s *Scene) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("document: invalid scene: %w", err)
	}
	if s.Timeline != (SceneTimeline{}) {
		if err := db.SetTimeline(ctx, s.Timeline.bake()); err != nil {
			return err
		}
	}
	for _, l := range s.Layers {
		if err := db.UpsertLayer(ctx, l.Layer()); err != nil {
			return err
		}
	}
	return nil
}
