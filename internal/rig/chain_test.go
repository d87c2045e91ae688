package rig

import (
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/starford/sway/internal/apperr"
)

func pt(name string, x, y float64) AnchorPoint {
	return AnchorPoint{Name: name, Position: r2.Vec{X: x, Y: y}}
}

func names(chain []ChainLink) []string {
	out := make([]string, len(chain))
	for i, l := range chain {
		out[i] = l.Anchor.Name
	}
	return out
}

func TestBuildChain_RootSmallestY(t *testing.T) {
	chain, err := BuildChain([]AnchorPoint{
		pt("a", 0, 0),
		pt("b", 0, 100),
		pt("c", 5, 0),
	}, BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, "a", chain[0].Anchor.Name)
}

func TestBuildChain_RootTieWithinTolerance(t *testing.T) {
	chain, err := BuildChain([]AnchorPoint{
		pt("high", 10, 50),
		pt("left", 2, 55),
	}, BuildOptions{TieTolerance: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"left", "high"}, names(chain))
}

func TestBuildChain_RootFirstSelected(t *testing.T) {
	chain, err := BuildChain([]AnchorPoint{
		pt("tip", 0, 100),
		pt("mid", 0, 50),
		pt("top", 0, 0),
	}, BuildOptions{Root: RootFirstSelected})
	require.NoError(t, err)
	assert.Equal(t, []string{"tip", "mid", "top"}, names(chain))
}

func TestBuildChain_GreedyNearestNeighbour(t *testing.T) {
	chain, err := BuildChain([]AnchorPoint{
		pt("d", 0, 300),
		pt("b", 0, 100),
		pt("a", 0, 0),
		pt("c", 0, 180),
	}, BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, names(chain))

	assert.Equal(t, NoParent, chain[0].Parent)
	assert.True(t, chain[0].IsRoot())
	assert.Zero(t, chain[0].RestLength)
	for i := 1; i < len(chain); i++ {
		assert.Equal(t, i-1, chain[i].Parent)
		assert.Equal(t, i, chain[i].Index)
	}
	assert.InDelta(t, 100, chain[1].RestLength, 1e-12)
	assert.InDelta(t, 80, chain[2].RestLength, 1e-12)
	assert.InDelta(t, 120, chain[3].RestLength, 1e-12)
	assert.InDelta(t, 300, TourLength(chain), 1e-12)
}

func TestBuildChain_TieKeepsFirstEncountered(t *testing.T) {
	chain, err := BuildChain([]AnchorPoint{
		pt("root", 0, 0),
		pt("right", 10, 20),
		pt("left", -10, 20),
	}, BuildOptions{Root: RootFirstSelected})
	require.NoError(t, err)
	assert.Equal(t, "right", chain[1].Anchor.Name)
}

func TestBuildChain_PermutationAndDeterminism(t *testing.T) {
	in := []AnchorPoint{
		pt("p0", 12, 80), pt("p1", 40, 3), pt("p2", 7, 44), pt("p3", 90, 90),
		pt("p4", 33, 61), pt("p5", 58, 12), pt("p6", 5, 5), pt("p7", 70, 40),
	}
	first, err := BuildChain(in, BuildOptions{})
	require.NoError(t, err)

	got := names(first)
	want := make([]string, len(in))
	for i, p := range in {
		want[i] = p.Name
	}
	sort.Strings(got)
	sort.Strings(want)
	assert.Equal(t, want, got, "chain must be a permutation of the input")

	for i := 0; i < 10; i++ {
		again, err := BuildChain(in, BuildOptions{})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestBuildChain_InsufficientPins(t *testing.T) {
	_, err := BuildChain([]AnchorPoint{pt("only", 0, 0)}, BuildOptions{})
	assert.True(t, errors.Is(err, apperr.ErrInsufficientPins))

	_, err = BuildChain([]AnchorPoint{
		pt("a", 0, 0),
		pt("a", 5, 5),
		pt("nan", math.NaN(), 0),
	}, BuildOptions{})
	assert.True(t, errors.Is(err, apperr.ErrInsufficientPins), "duplicates and NaN positions are not usable")
}

func TestOrderedChain(t *testing.T) {
	pins := []AnchorPoint{pt("a", 0, 0), pt("b", 0, 50), pt("c", 0, 100)}

	chain, err := OrderedChain(pins, []string{"c", "missing", "a", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, names(chain))
	assert.InDelta(t, 100, chain[1].RestLength, 1e-12)

	_, err = OrderedChain(pins, []string{"a", "nope"})
	assert.True(t, errors.Is(err, apperr.ErrInsufficientPins))
}

func TestParseRootPolicy(t *testing.T) {
	p, err := ParseRootPolicy("")
	require.NoError(t, err)
	assert.Equal(t, RootTopmost, p)

	p, err = ParseRootPolicy("first-selected")
	require.NoError(t, err)
	assert.Equal(t, RootFirstSelected, p)
	assert.Equal(t, "first-selected", p.String())

	_, err = ParseRootPolicy("sideways")
	assert.Error(t, err)
}
