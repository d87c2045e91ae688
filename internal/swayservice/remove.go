package swayservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/starford/sway/internal/apperr"
)

// RemoveResult reports a remove.
type RemoveResult struct {
	Layer           string   `json:"layer"`
	Removed         []string `json:"removed"`
	ControlsDropped []string `json:"controls_dropped,omitempty"`
}

// Message is the short human-readable outcome.
func (r RemoveResult) Message() string {
	return fmt.Sprintf("Removed from %d pins", len(r.Removed))
}

// Remove detaches the live formula of every selected pin. Pins without one
// are ignored. Controls left without bindings are deleted.
func (s *Service) Remove(ctx context.Context, sel Selection) (RemoveResult, error) {
	res := RemoveResult{Layer: sel.Layer, Removed: []string{}}
	_, points, err := s.resolvePins(ctx, sel)
	if err != nil {
		return res, err
	}

	touched := map[string]struct{}{}
	for _, p := range points {
		b, err := s.doc.Binding(ctx, sel.Layer, p.Name)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return res, err
		}
		ok, err := s.doc.RemoveBinding(ctx, sel.Layer, p.Name)
		if err != nil {
			return res, err
		}
		if ok {
			touched[b.Control] = struct{}{}
			res.Removed = append(res.Removed, p.Name)
		}
	}
	res.ControlsDropped = s.dropUnused(ctx, touched)
	sort.Strings(res.ControlsDropped)

	s.logger.Info("sway: removed", slog.String("layer", sel.Layer), slog.Int("pins", len(res.Removed)))
	s.notify(EventRemoved, res)
	return res, nil
}
