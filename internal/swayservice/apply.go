package swayservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/starford/sway/internal/apperr"
	"github.com/starford/sway/internal/document"
	"github.com/starford/sway/internal/params"
	"github.com/starford/sway/internal/rig"
)

// ApplyRequest describes one apply command.
type ApplyRequest struct {
	Selection
	// Preset is the base parameter set; empty means params.Default.
	Preset string `json:"preset,omitempty"`
	// Params overlays individual values on the base set.
	Params map[string]any `json:"params,omitempty"`
	// Root picks the root when the chain is built from the selection.
	Root rig.RootPolicy `json:"-"`
	// Order, when set, builds the chain in exactly this pin order from all
	// pins of the layer, ignoring the selection.
	Order []string `json:"order,omitempty"`
	// ControlName is the base of the control name; empty means
	// DefaultControlName.
	ControlName string `json:"control_name,omitempty"`
}

// LinkResult is one bound chain link.
type LinkResult struct {
	Pin        string  `json:"pin"`
	Index      int     `json:"index"`
	Parent     int     `json:"parent"`
	RestLength float64 `json:"rest_length"`
}

// ApplyResult reports an apply. On ErrBindingFailure it is still returned
// and LinksApplied counts the links written before the failure.
type ApplyResult struct {
	Layer        string       `json:"layer"`
	Control      string       `json:"control"`
	Params       params.Set   `json:"params"`
	Links        []LinkResult `json:"links"`
	LinksApplied int          `json:"links_applied"`
	Superseded   []string     `json:"superseded,omitempty"`
}

// Message is the short human-readable outcome.
func (r ApplyResult) Message() string {
	return fmt.Sprintf("Applied to %d pins", r.LinksApplied)
}

// resolveParams builds the parameter set of a request. Every failure wraps
// apperr.ErrInvalidParameters.
func (s *Service) resolveParams(req ApplyRequest) (params.Set, error) {
	base := params.Default()
	if req.Preset != "" {
		p, err := s.presets.Get(req.Preset)
		if err != nil {
			return params.Set{}, fmt.Errorf("%w: %v", apperr.ErrInvalidParameters, err)
		}
		base = p
	}
	return params.FromMap(base, req.Params)
}

// Apply builds a chain from the selection and binds every link to a new
// control. Parameters and chain are checked before anything is written. A
// link that fails to bind stops the command; links bound before it stay.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (ApplyResult, error) {
	res := ApplyResult{Layer: req.Layer}

	set, err := s.resolveParams(req)
	if err != nil {
		return res, err
	}
	res.Params = set

	var chain []rig.ChainLink
	if len(req.Order) > 0 {
		l, err := s.resolveLayer(ctx, req.Layer)
		if err != nil {
			return res, err
		}
		if chain, err = rig.OrderedChain(l.Pins, req.Order); err != nil {
			return res, err
		}
	} else {
		_, points, err := s.resolvePins(ctx, req.Selection)
		if err != nil {
			return res, err
		}
		chain, err = rig.BuildChain(points, rig.BuildOptions{Root: req.Root, TieTolerance: s.tieTolerance})
		if err != nil {
			return res, err
		}
	}
	for _, l := range chain {
		res.Links = append(res.Links, LinkResult{
			Pin:        l.Anchor.Name,
			Index:      l.Index,
			Parent:     l.Parent,
			RestLength: l.RestLength,
		})
	}

	base := req.ControlName
	if base == "" {
		base = DefaultControlName
	}
	name, err := s.doc.UniqueControlName(ctx, base)
	if err != nil {
		return res, err
	}
	if err := s.doc.WriteControl(ctx, document.Control{Name: name, Layer: req.Layer, Params: set, Chain: chain}); err != nil {
		return res, fmt.Errorf("%w: control %s: %v", apperr.ErrBindingFailure, name, err)
	}
	res.Control = name

	previous := map[string]struct{}{}
	for _, l := range chain {
		old, err := s.doc.Binding(ctx, req.Layer, l.Anchor.Name)
		switch {
		case err == nil:
			previous[old.Control] = struct{}{}
		case !errors.Is(err, apperr.ErrNotFound):
			return res, fmt.Errorf("%w: link %d (%s): %v", apperr.ErrBindingFailure, l.Index, l.Anchor.Name, err)
		}

		err = s.doc.WriteBinding(ctx, document.Binding{
			Layer:       req.Layer,
			Pin:         l.Anchor.Name,
			Control:     name,
			ChainIndex:  l.Index,
			ParentIndex: l.Parent,
			RestLength:  l.RestLength,
			Rest:        l.Anchor.Position,
		})
		if err != nil {
			s.logger.Warn("sway: apply stopped",
				slog.String("control", name),
				slog.Int("links_applied", res.LinksApplied),
				slog.String("error", err.Error()))
			return res, fmt.Errorf("%w: link %d (%s): %v", apperr.ErrBindingFailure, l.Index, l.Anchor.Name, err)
		}
		res.LinksApplied++
	}

	res.Superseded = s.dropUnused(ctx, previous)
	sort.Strings(res.Superseded)

	s.logger.Info("sway: applied",
		slog.String("layer", req.Layer),
		slog.String("control", name),
		slog.String("mode", string(set.Mode)),
		slog.Int("links", res.LinksApplied))
	s.notify(EventApplied, res)
	return res, nil
}
