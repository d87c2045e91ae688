package swayservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/starford/sway/internal/apperr"
	"github.com/starford/sway/internal/bake"
	"github.com/starford/sway/internal/document"
	"github.com/starford/sway/internal/motion"
)

// BakeResult reports a bake.
type BakeResult struct {
	Layer           string        `json:"layer"`
	Timeline        bake.Timeline `json:"timeline"`
	Report          bake.Report   `json:"report"`
	ControlsDropped []string      `json:"controls_dropped,omitempty"`
}

// Message is the short human-readable outcome.
func (r BakeResult) Message() string {
	return fmt.Sprintf("Baked %d pins", len(r.Report.Baked))
}

// Bake replaces the live formula of every selected pin with keyframes over
// the whole timeline.
func (s *Service) Bake(ctx context.Context, sel Selection) (BakeResult, error) {
	res := BakeResult{Layer: sel.Layer}
	_, points, err := s.resolvePins(ctx, sel)
	if err != nil {
		return res, err
	}
	tl, err := s.doc.Timeline(ctx)
	if err != nil {
		return res, err
	}
	res.Timeline = tl

	pins := make([]string, len(points))
	for i, p := range points {
		pins[i] = p.Name
	}

	target := &layerTarget{svc: s, layer: sel.Layer, models: map[string]*motion.Model{}, touched: map[string]struct{}{}}
	rep, err := bake.Bake(ctx, target, pins, tl)
	res.Report = rep
	res.ControlsDropped = s.dropUnused(ctx, target.touched)
	sort.Strings(res.ControlsDropped)
	if err != nil {
		return res, err
	}

	for _, pin := range rep.Skipped {
		s.logger.Debug("sway: bake skipped link", slog.String("layer", sel.Layer), slog.String("pin", pin))
	}
	s.logger.Info("sway: baked",
		slog.String("layer", sel.Layer),
		slog.Int("pins", len(rep.Baked)),
		slog.Float64("frame_rate", tl.FrameRate),
		slog.Float64("duration", tl.Duration))
	s.notify(EventBaked, res)
	return res, nil
}

// layerTarget exposes the bindings of one layer to the baker. Models are
// built once per control for the duration of a bake.
type layerTarget struct {
	svc     *Service
	layer   string
	models  map[string]*motion.Model
	touched map[string]struct{}
}

func (t *layerTarget) binding(ctx context.Context, pin string) (*document.Binding, error) {
	return t.svc.doc.Binding(ctx, t.layer, pin)
}

func (t *layerTarget) HasFormula(ctx context.Context, pin string) (bool, error) {
	_, err := t.binding(ctx, pin)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (t *layerTarget) LiveValue(ctx context.Context, pin string, at float64) (r2.Vec, error) {
	b, err := t.binding(ctx, pin)
	if err != nil {
		return r2.Vec{}, err
	}
	m, ok := t.models[b.Control]
	if !ok {
		c, err := t.svc.doc.Control(ctx, b.Control)
		if err != nil {
			return r2.Vec{}, err
		}
		if m, err = t.svc.model(ctx, c); err != nil {
			return r2.Vec{}, err
		}
		t.models[b.Control] = m
	}
	current, err := t.svc.doc.BaseValueAt(ctx, t.layer, pin, at)
	if err != nil {
		return r2.Vec{}, err
	}
	return m.Evaluate(at, b.ChainIndex, current), nil
}

func (t *layerTarget) DetachFormula(ctx context.Context, pin string) error {
	b, err := t.binding(ctx, pin)
	if err != nil {
		return err
	}
	if _, err := t.svc.doc.RemoveBinding(ctx, t.layer, pin); err != nil {
		return err
	}
	t.touched[b.Control] = struct{}{}
	return nil
}

func (t *layerTarget) WriteKeyframes(ctx context.Context, pin string, samples []bake.Sample) error {
	return t.svc.doc.WriteKeyframes(ctx, t.layer, pin, samples)
}
