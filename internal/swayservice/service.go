// Package swayservice binds sway chains to document pins and drives the
// apply, remove, bake and evaluate commands.
package swayservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/starford/sway/internal/apperr"
	"github.com/starford/sway/internal/bake"
	"github.com/starford/sway/internal/document"
	"github.com/starford/sway/internal/motion"
	"github.com/starford/sway/internal/params"
	"github.com/starford/sway/internal/preset"
	"github.com/starford/sway/internal/rig"
)

// DefaultControlName is the base name of new controls.
const DefaultControlName = "Sway_Control"

// Event kinds sent to the Notifier.
const (
	EventApplied        = "sway.applied"
	EventRemoved        = "sway.removed"
	EventBaked          = "sway.baked"
	EventSceneImported  = "scene.imported"
	EventPresetsUpdated = "presets.updated"
)

// Document is the part of the host document the service reads and writes.
// *document.DB implements it.
type Document interface {
	Timeline(ctx context.Context) (bake.Timeline, error)
	Layer(ctx context.Context, name string) (*document.Layer, error)
	ImportScene(ctx context.Context, s *document.Scene) error

	UniqueControlName(ctx context.Context, base string) (string, error)
	WriteControl(ctx context.Context, c document.Control) error
	Control(ctx context.Context, name string) (*document.Control, error)
	DeleteControlIfUnused(ctx context.Context, name string) (bool, error)

	WriteBinding(ctx context.Context, b document.Binding) error
	Binding(ctx context.Context, layer, pin string) (*document.Binding, error)
	LayerBindings(ctx context.Context, layer string) ([]document.Binding, error)
	RemoveBinding(ctx context.Context, layer, pin string) (bool, error)

	WriteKeyframes(ctx context.Context, layer, pin string, samples []bake.Sample) error
	BaseValueAt(ctx context.Context, layer, pin string, t float64) (r2.Vec, error)
}

// Notifier receives a message after every document change.
type Notifier interface {
	PublishSwayEvent(kind string, data any)
}

// Service coordinates the document, the preset library and the motion
// engine.
type Service struct {
	doc          Document
	presets      *preset.Library
	tuning       motion.Tuning
	tieTolerance float64
	notifier     Notifier
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTuning overrides the engine constants. The frame rate is always taken
// from the document timeline.
func WithTuning(t motion.Tuning) Option {
	return func(s *Service) { s.tuning = t }
}

// WithTieTolerance sets the vertical tolerance of root selection.
func WithTieTolerance(tol float64) Option {
	return func(s *Service) { s.tieTolerance = tol }
}

// WithNotifier sets the change notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service. presets may be nil, in which case only the
// built-in table is served.
func New(doc Document, presets *preset.Library, opts ...Option) *Service {
	s := &Service{
		doc:          doc,
		presets:      presets,
		tuning:       motion.DefaultTuning(),
		tieTolerance: rig.DefaultTieTolerance,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.presets == nil {
		s.presets, _ = preset.NewLibrary(nil, s.logger)
	}
	return s
}

func (s *Service) notify(kind string, data any) {
	if s.notifier != nil {
		s.notifier.PublishSwayEvent(kind, data)
	}
}

// Selection names the pins a command acts on. With no Pins, the pins
// flagged as selected in the document are used, in document order.
type Selection struct {
	Layer string   `json:"layer"`
	Pins  []string `json:"pins,omitempty"`
}

// resolveLayer loads the layer of a selection and checks it carries a rig.
func (s *Service) resolveLayer(ctx context.Context, layer string) (*document.Layer, error) {
	if layer == "" {
		return nil, fmt.Errorf("%w: no layer given", apperr.ErrNoSelection)
	}
	l, err := s.doc.Layer(ctx, layer)
	if err != nil {
		return nil, err
	}
	if !l.HasRig {
		return nil, fmt.Errorf("%w: %s", apperr.ErrMissingRigStructure, layer)
	}
	return l, nil
}

// resolvePins returns the points of sel. Named pins keep the order they
// are given in; unknown names are skipped.
func (s *Service) resolvePins(ctx context.Context, sel Selection) (*document.Layer, []rig.AnchorPoint, error) {
	l, err := s.resolveLayer(ctx, sel.Layer)
	if err != nil {
		return nil, nil, err
	}

	var out []rig.AnchorPoint
	if len(sel.Pins) > 0 {
		byName := make(map[string]rig.AnchorPoint, len(l.Pins))
		for _, p := range l.Pins {
			byName[p.Name] = p
		}
		for _, name := range sel.Pins {
			if p, ok := byName[name]; ok {
				out = append(out, p)
			}
		}
	} else {
		for _, p := range l.Pins {
			if p.Selected {
				out = append(out, p)
			}
		}
	}
	if len(out) == 0 {
		return nil, nil, fmt.Errorf("%w: no pins of %s selected", apperr.ErrNoSelection, sel.Layer)
	}
	return l, out, nil
}

// model builds the motion model of a control for the current timeline.
func (s *Service) model(ctx context.Context, c *document.Control) (*motion.Model, error) {
	tl, err := s.doc.Timeline(ctx)
	if err != nil {
		return nil, err
	}
	return motion.New(c.Params, c.Chain, s.tuning.WithFrameRate(tl.FrameRate))
}

// Evaluate returns the value of a pin at t: its live sway formula when one
// is bound, else its keyframed or rest value.
func (s *Service) Evaluate(ctx context.Context, layer, pin string, t float64) (r2.Vec, error) {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return r2.Vec{}, fmt.Errorf("%w: time must be finite, got %v", apperr.ErrInvalidParameters, t)
	}
	current, err := s.doc.BaseValueAt(ctx, layer, pin, t)
	if err != nil {
		return r2.Vec{}, err
	}
	b, err := s.doc.Binding(ctx, layer, pin)
	if errors.Is(err, apperr.ErrNotFound) {
		return current, nil
	}
	if err != nil {
		return r2.Vec{}, err
	}
	c, err := s.doc.Control(ctx, b.Control)
	if err != nil {
		return r2.Vec{}, err
	}
	m, err := s.model(ctx, c)
	if err != nil {
		return r2.Vec{}, err
	}
	return m.Evaluate(t, b.ChainIndex, current), nil
}

// Timeline returns the document timeline.
func (s *Service) Timeline(ctx context.Context) (bake.Timeline, error) {
	return s.doc.Timeline(ctx)
}

// PinStatus is a pin with its binding, if any.
type PinStatus struct {
	rig.AnchorPoint
	Control    string `json:"control,omitempty"`
	ChainIndex *int   `json:"chain_index,omitempty"`
}

// Pins lists the pins of a layer with their live bindings.
func (s *Service) Pins(ctx context.Context, layer string) ([]PinStatus, error) {
	l, err := s.resolveLayer(ctx, layer)
	if err != nil {
		return nil, err
	}
	bindings, err := s.doc.LayerBindings(ctx, layer)
	if err != nil {
		return nil, err
	}
	bound := make(map[string]document.Binding, len(bindings))
	for _, b := range bindings {
		bound[b.Pin] = b
	}

	out := make([]PinStatus, len(l.Pins))
	for i, p := range l.Pins {
		out[i] = PinStatus{AnchorPoint: p}
		if b, ok := bound[p.Name]; ok {
			idx := b.ChainIndex
			out[i].Control = b.Control
			out[i].ChainIndex = &idx
		}
	}
	return out, nil
}

// Presets lists the preset table.
func (s *Service) Presets() []preset.Preset {
	return s.presets.List()
}

// SavePreset overlays values on the defaults and stores the result as a
// named preset.
func (s *Service) SavePreset(name string, values map[string]any) (params.Set, error) {
	set, err := params.FromMap(params.Default(), values)
	if err != nil {
		return params.Set{}, err
	}
	if err := s.presets.Save(name, set); err != nil {
		return params.Set{}, err
	}
	s.logger.Info("sway: preset saved", slog.String("preset", name))
	s.notify(EventPresetsUpdated, map[string]any{"names": []string{name}})
	return set, nil
}

// DeletePreset removes a saved preset file.
func (s *Service) DeletePreset(name string) error {
	if err := s.presets.Delete(name); err != nil {
		return err
	}
	s.logger.Info("sway: preset deleted", slog.String("preset", name))
	s.notify(EventPresetsUpdated, map[string]any{"names": []string{name}})
	return nil
}

// ImportScene parses a YAML or JSON scene and writes it to the document.
func (s *Service) ImportScene(ctx context.Context, data []byte) (*document.Scene, error) {
	scene, err := document.ParseScene(data)
	if err != nil {
		return nil, err
	}
	if err := s.doc.ImportScene(ctx, scene); err != nil {
		return nil, err
	}
	names := make([]string, len(scene.Layers))
	for i, l := range scene.Layers {
		names[i] = l.Name
	}
	s.logger.Info("sway: scene imported", slog.Int("layers", len(names)))
	s.notify(EventSceneImported, map[string]any{"layers": names})
	return scene, nil
}

// dropUnused deletes the named controls that lost their last binding.
func (s *Service) dropUnused(ctx context.Context, controls map[string]struct{}) []string {
	var dropped []string
	for name := range controls {
		ok, err := s.doc.DeleteControlIfUnused(ctx, name)
		if err != nil {
			s.logger.Warn("sway: drop control failed", slog.String("control", name), slog.String("error", err.Error()))
			continue
		}
		if ok {
			dropped = append(dropped, name)
		}
	}
	return dropped
}
