package bake

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/starford/sway/internal/motion"
	"github.com/starford/sway/internal/params"
	"github.com/starford/sway/internal/rig"
)

// fakeTarget binds every pin of a chain to one motion model.
type fakeTarget struct {
	model    *motion.Model
	index    map[string]int
	live     map[string]bool
	keys     map[string][]Sample
	detached int
	failOn   string
}

func newFakeTarget(t *testing.T, p params.Set) *fakeTarget {
	t.Helper()
	chain, err := rig.BuildChain([]rig.AnchorPoint{
		{Name: "a", Position: r2.Vec{X: 0, Y: 0}},
		{Name: "b", Position: r2.Vec{X: 10, Y: 40}},
		{Name: "c", Position: r2.Vec{X: 15, Y: 90}},
	}, rig.BuildOptions{})
	require.NoError(t, err)
	m, err := motion.New(p, chain, motion.DefaultTuning().WithFrameRate(24))
	require.NoError(t, err)

	ft := &fakeTarget{
		model: m,
		index: map[string]int{},
		live:  map[string]bool{},
		keys:  map[string][]Sample{},
	}
	for _, l := range chain {
		ft.index[l.Anchor.Name] = l.Index
		ft.live[l.Anchor.Name] = true
	}
	return ft
}

func (f *fakeTarget) HasFormula(_ context.Context, pin string) (bool, error) {
	return f.live[pin], nil
}

func (f *fakeTarget) LiveValue(_ context.Context, pin string, t float64) (r2.Vec, error) {
	if f.detached > 0 {
		return r2.Vec{}, errors.New("sampled after a formula was detached")
	}
	return f.model.Evaluate(t, f.index[pin], r2.Vec{}), nil
}

func (f *fakeTarget) DetachFormula(_ context.Context, pin string) error {
	f.live[pin] = false
	f.detached++
	return nil
}

func (f *fakeTarget) WriteKeyframes(_ context.Context, pin string, samples []Sample) error {
	if pin == f.failOn {
		return errors.New("sink rejected write")
	}
	f.keys[pin] = samples
	return nil
}

func TestTimes_Grid(t *testing.T) {
	times, err := Timeline{FrameRate: 24, Duration: 2}.Times()
	require.NoError(t, err)
	require.Len(t, times, 49)
	assert.Equal(t, 0.0, times[0])
	assert.Equal(t, 2.0, times[48])
	assert.Equal(t, 1.0/24, times[1])

	// 29.97 fps over 10s: 299.7 frames, so 300 samples including t=0.
	times, err = Timeline{FrameRate: 29.97, Duration: 10}.Times()
	require.NoError(t, err)
	assert.Len(t, times, 300)
	assert.LessOrEqual(t, times[len(times)-1], 10.0)
}

func TestTimes_Invalid(t *testing.T) {
	_, err := Timeline{FrameRate: 0, Duration: 1}.Times()
	assert.Error(t, err)
	_, err = Timeline{FrameRate: 24, Duration: -1}.Times()
	assert.Error(t, err)
	_, err = Timeline{FrameRate: math.NaN(), Duration: 1}.Times()
	assert.Error(t, err)
	_, err = Timeline{FrameRate: 24, Duration: 1e12}.Times()
	assert.Error(t, err)
	_, err = Timeline{FrameRate: 1e9, Duration: 1}.Times()
	assert.Error(t, err)
}

func TestTimes_FrameLimit(t *testing.T) {
	times, err := Timeline{FrameRate: 1000, Duration: MaxFrames / 1000}.Times()
	require.NoError(t, err)
	assert.Len(t, times, MaxFrames+1)
}

func TestBake_RoundTripMatchesLiveModel(t *testing.T) {
	for _, mode := range []params.Mode{params.ModeProcedural, params.ModePhysics, params.ModeHybrid} {
		t.Run(string(mode), func(t *testing.T) {
			p := params.Default()
			p.Mode = mode
			p.Gravity = 80
			p.PhysicsBlend = 50
			p.DecayStart = 1
			p.DecayDuration = 0.5
			ft := newFakeTarget(t, p)

			tl := Timeline{FrameRate: 24, Duration: 2}
			rep, err := Bake(context.Background(), ft, []string{"a", "b", "c"}, tl)
			require.NoError(t, err)
			require.Len(t, rep.Baked, 3)

			// Independent evaluation with a fresh model.
			chain, _ := rig.BuildChain([]rig.AnchorPoint{
				{Name: "a", Position: r2.Vec{X: 0, Y: 0}},
				{Name: "b", Position: r2.Vec{X: 10, Y: 40}},
				{Name: "c", Position: r2.Vec{X: 15, Y: 90}},
			}, rig.BuildOptions{})
			ref, err := motion.New(p, chain, motion.DefaultTuning().WithFrameRate(24))
			require.NoError(t, err)

			for pin, idx := range ft.index {
				samples := ft.keys[pin]
				require.Len(t, samples, 49, pin)
				for i, s := range samples {
					want := ref.Evaluate(float64(i)/24, idx, r2.Vec{})
					assert.Equal(t, float64(i)/24, s.Time)
					assertClose(t, want.X, s.Value.X)
					assertClose(t, want.Y, s.Value.Y)
				}
				assert.False(t, ft.live[pin], "formula detached after bake")
			}
		})
	}
}

func assertClose(t *testing.T, want, got float64) {
	t.Helper()
	tol := 1e-9 * math.Max(1, math.Abs(want))
	assert.InDelta(t, want, got, tol)
}

func TestBake_SkipsPinsWithoutFormula(t *testing.T) {
	ft := newFakeTarget(t, params.Default())
	ft.live["b"] = false

	rep, err := Bake(context.Background(), ft, []string{"a", "b", "c", "ghost"}, Timeline{FrameRate: 12, Duration: 1})
	require.NoError(t, err)
	assert.Len(t, rep.Baked, 2)
	assert.Equal(t, []string{"b", "ghost"}, rep.Skipped)
	assert.Empty(t, ft.keys["b"])
}

func TestBake_DigestIsReproducible(t *testing.T) {
	tl := Timeline{FrameRate: 24, Duration: 1}
	first, err := Bake(context.Background(), newFakeTarget(t, params.Default()), []string{"c"}, tl)
	require.NoError(t, err)
	second, err := Bake(context.Background(), newFakeTarget(t, params.Default()), []string{"c"}, tl)
	require.NoError(t, err)
	assert.Equal(t, first.Baked[0].Digest, second.Baked[0].Digest)
	assert.Len(t, first.Baked[0].Digest, 64)
}

func TestBake_CommitFailureIsPartial(t *testing.T) {
	ft := newFakeTarget(t, params.Default())
	ft.failOn = "b"

	rep, err := Bake(context.Background(), ft, []string{"a", "b", "c"}, Timeline{FrameRate: 24, Duration: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPartialCommit))
	require.Len(t, rep.Baked, 1)
	assert.Equal(t, "a", rep.Baked[0].Pin)
	assert.True(t, ft.live["c"], "links after the failure keep their formula")
}

func TestBake_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ft := newFakeTarget(t, params.Default())
	_, err := Bake(ctx, ft, []string{"a"}, Timeline{FrameRate: 24, Duration: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, ft.detached)
}
