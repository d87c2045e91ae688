// Package rig turns an unordered pin selection into a root-to-tip chain.
package rig

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/starford/sway/internal/apperr"
)

// DefaultTieTolerance is the vertical band (in composition pixels) within
// which two candidate roots are considered equally high.
const DefaultTieTolerance = 10.0

// NoParent marks the root link.
const NoParent = -1

// AnchorPoint is a rig control point as read from the host document.
type AnchorPoint struct {
	Name     string `json:"name" yaml:"name"`
	Position r2.Vec `json:"position" yaml:"position"`
	Selected bool   `json:"selected,omitempty" yaml:"selected,omitempty"`
}

// ChainLink is one element of an ordered chain. Parent is an index into the
// chain slice, NoParent for the root.
type ChainLink struct {
	Index      int         `json:"index"`
	Anchor     AnchorPoint `json:"anchor"`
	Parent     int         `json:"parent"`
	RestLength float64     `json:"rest_length"`
}

// IsRoot reports whether the link is the fixed end of the chain.
func (l ChainLink) IsRoot() bool { return l.Parent == NoParent }

// RootPolicy selects how the chain root is chosen.
type RootPolicy int

const (
	// RootTopmost picks the smallest y, breaking near-ties by smallest x.
	RootTopmost RootPolicy = iota
	// RootFirstSelected uses the first point in selection order.
	RootFirstSelected
)

// String implements fmt.Stringer.
func (p RootPolicy) String() string {
	switch p {
	case RootTopmost:
		return "topmost"
	case RootFirstSelected:
		return "first-selected"
	default:
		return fmt.Sprintf("RootPolicy(%d)", int(p))
	}
}

// ParseRootPolicy maps the textual form back to a RootPolicy. Empty input
// yields RootTopmost.
func ParseRootPolicy(s string) (RootPolicy, error) {
	switch s {
	case "", "topmost":
		return RootTopmost, nil
	case "first-selected", "first":
		return RootFirstSelected, nil
	default:
		return RootTopmost, fmt.Errorf("rig: unknown root policy %q", s)
	}
}

// BuildOptions configures BuildChain.
type BuildOptions struct {
	Root         RootPolicy
	TieTolerance float64 // <= 0 means DefaultTieTolerance
}

// BuildChain orders points into a chain using a greedy nearest-neighbour
// tour that starts at the root chosen by opts.Root.
func BuildChain(points []AnchorPoint, opts BuildOptions) ([]ChainLink, error) {
	usable := usablePoints(points)
	if len(usable) < 2 {
		return nil, fmt.Errorf("%w: got %d usable", apperr.ErrInsufficientPins, len(usable))
	}

	tol := opts.TieTolerance
	if tol <= 0 {
		tol = DefaultTieTolerance
	}

	rootIdx := 0
	if opts.Root == RootTopmost {
		rootIdx = topmost(usable, tol)
	}

	ordered := make([]AnchorPoint, 0, len(usable))
	ordered = append(ordered, usable[rootIdx])
	remaining := make([]AnchorPoint, 0, len(usable)-1)
	remaining = append(remaining, usable[:rootIdx]...)
	remaining = append(remaining, usable[rootIdx+1:]...)

	for len(remaining) > 0 {
		tail := ordered[len(ordered)-1].Position
		nearest := 0
		nearestDist := r2.Norm(r2.Sub(remaining[0].Position, tail))
		for i := 1; i < len(remaining); i++ {
			// Strict comparison keeps the first-encountered point on ties.
			if d := r2.Norm(r2.Sub(remaining[i].Position, tail)); d < nearestDist {
				nearest, nearestDist = i, d
			}
		}
		ordered = append(ordered, remaining[nearest])
		remaining = append(remaining[:nearest], remaining[nearest+1:]...)
	}

	return link(ordered), nil
}

// OrderedChain builds a chain following an explicit name order. Names that
// do not resolve to a point are skipped.
func OrderedChain(points []AnchorPoint, order []string) ([]ChainLink, error) {
	byName := make(map[string]AnchorPoint, len(points))
	for _, p := range usablePoints(points) {
		byName[p.Name] = p
	}

	seen := make(map[string]struct{}, len(order))
	ordered := make([]AnchorPoint, 0, len(order))
	for _, name := range order {
		p, ok := byName[name]
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		ordered = append(ordered, p)
	}
	if len(ordered) < 2 {
		return nil, fmt.Errorf("%w: only %d of %d named pins found", apperr.ErrInsufficientPins, len(ordered), len(order))
	}
	return link(ordered), nil
}

// TourLength sums the rest lengths of the chain.
func TourLength(chain []ChainLink) float64 {
	var total float64
	for _, l := range chain {
		total += l.RestLength
	}
	return total
}

// topmost returns the index of the root candidate: the smallest y, and among
// every point within tol of that y, the smallest x. The first pass finds the
// band, the second picks inside it.
func topmost(points []AnchorPoint, tol float64) int {
	minY := points[0].Position.Y
	for _, p := range points[1:] {
		minY = math.Min(minY, p.Position.Y)
	}

	best := -1
	for i, p := range points {
		if p.Position.Y-minY > tol {
			continue
		}
		if best < 0 || p.Position.X < points[best].Position.X {
			best = i
		}
	}
	return best
}

func link(ordered []AnchorPoint) []ChainLink {
	chain := make([]ChainLink, len(ordered))
	for i, p := range ordered {
		chain[i] = ChainLink{Index: i, Anchor: p, Parent: NoParent}
		if i > 0 {
			chain[i].Parent = i - 1
			chain[i].RestLength = r2.Norm(r2.Sub(p.Position, ordered[i-1].Position))
		}
	}
	return chain
}

// usablePoints drops non-finite positions and repeated names, keeping the
// first occurrence and the input order.
func usablePoints(points []AnchorPoint) []AnchorPoint {
	out := make([]AnchorPoint, 0, len(points))
	seen := make(map[string]struct{}, len(points))
	for _, p := range points {
		if !finite(p.Position.X) || !finite(p.Position.Y) {
			continue
		}
		if p.Name != "" {
			if _, dup := seen[p.Name]; dup {
				continue
			}
			seen[p.Name] = struct{}{}
		}
		out = append(out, p)
	}
	return out
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
