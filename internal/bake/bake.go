// Package bake converts live sway formulas into discrete keyframes.
//
// A bake samples every requested link on the frame grid first and only
// then detaches the formulas and writes keyframes, so no sample can observe
// a partially baked chain.
package bake

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/starford/sway/internal/checksum"
)

// gridEpsilon absorbs float error in duration*frameRate.
const gridEpsilon = 1e-9

// MaxFrames bounds the number of frames a timeline may span.
const MaxFrames = 1_000_000

// Sample is one baked (time, value) pair.
type Sample struct {
	Time  float64 `json:"t"`
	Value r2.Vec  `json:"value"`
}

// Timeline describes the sampling domain [0, Duration] at FrameRate.
type Timeline struct {
	FrameRate float64 `json:"frame_rate"`
	Duration  float64 `json:"duration"`
}

// Validate checks that the timeline can be sampled.
func (tl Timeline) Validate() error {
	if !(tl.FrameRate > 0) || math.IsInf(tl.FrameRate, 0) {
		return fmt.Errorf("bake: frame rate must be positive, got %v", tl.FrameRate)
	}
	if !(tl.Duration >= 0) || math.IsInf(tl.Duration, 0) {
		return fmt.Errorf("bake: duration must be non-negative, got %v", tl.Duration)
	}
	if frames := tl.Duration * tl.FrameRate; frames > MaxFrames {
		return fmt.Errorf("bake: timeline spans %.0f frames, limit is %d", frames, MaxFrames)
	}
	return nil
}

// Times returns the sample instants i/FrameRate for every i with
// i/FrameRate <= Duration. Times are computed by multiplication, never by
// accumulation, so late frames do not drift.
func (tl Timeline) Times() ([]float64, error) {
	if err := tl.Validate(); err != nil {
		return nil, err
	}
	last := int(math.Floor(tl.Duration*tl.FrameRate + gridEpsilon))
	out := make([]float64, last+1)
	for i := range out {
		out[i] = float64(i) / tl.FrameRate
	}
	return out, nil
}

// Evaluator returns the live value of one link at time t.
type Evaluator func(t float64) (r2.Vec, error)

// SampleAll evaluates ev on the timeline grid.
func SampleAll(ev Evaluator, tl Timeline) ([]Sample, error) {
	times, err := tl.Times()
	if err != nil {
		return nil, err
	}
	out := make([]Sample, len(times))
	for i, t := range times {
		v, err := ev(t)
		if err != nil {
			return nil, fmt.Errorf("bake: evaluate t=%v: %w", t, err)
		}
		out[i] = Sample{Time: t, Value: v}
	}
	return out, nil
}

// Target is the document side of a bake for one layer.
type Target interface {
	// HasFormula reports whether pin has a live formula bound.
	HasFormula(ctx context.Context, pin string) (bool, error)
	// LiveValue evaluates the bound formula of pin at t.
	LiveValue(ctx context.Context, pin string, t float64) (r2.Vec, error)
	// DetachFormula removes the live formula from pin.
	DetachFormula(ctx context.Context, pin string) error
	// WriteKeyframes stores samples as keyframes of pin.
	WriteKeyframes(ctx context.Context, pin string, samples []Sample) error
}

// LinkReport describes one baked link.
type LinkReport struct {
	Pin     string `json:"pin"`
	Samples int    `json:"samples"`
	Digest  string `json:"digest"`
}

// Report summarises a bake.
type Report struct {
	Baked   []LinkReport `json:"baked"`
	Skipped []string     `json:"skipped,omitempty"`
}

// ErrPartialCommit is returned when a write fails after earlier links were
// already committed.
var ErrPartialCommit = errors.New("bake: partially committed")

// Bake samples every pin that has a live formula, then commits all of them.
// Pins without a formula are skipped. A failure during sampling leaves the
// document untouched; a failure during commit keeps the links already
// written and wraps ErrPartialCommit.
func Bake(ctx context.Context, target Target, pins []string, tl Timeline) (Report, error) {
	var rep Report
	if _, err := tl.Times(); err != nil {
		return rep, err
	}

	type pending struct {
		pin     string
		samples []Sample
	}
	var queue []pending

	for _, pin := range pins {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		ok, err := target.HasFormula(ctx, pin)
		if err != nil {
			return Report{}, fmt.Errorf("bake: %s: %w", pin, err)
		}
		if !ok {
			rep.Skipped = append(rep.Skipped, pin)
			continue
		}
		samples, err := SampleAll(func(t float64) (r2.Vec, error) {
			return target.LiveValue(ctx, pin, t)
		}, tl)
		if err != nil {
			return Report{}, fmt.Errorf("bake: %s: %w", pin, err)
		}
		queue = append(queue, pending{pin: pin, samples: samples})
	}

	for _, p := range queue {
		if err := target.DetachFormula(ctx, p.pin); err != nil {
			return rep, fmt.Errorf("%w: detach %s: %v", ErrPartialCommit, p.pin, err)
		}
		if err := target.WriteKeyframes(ctx, p.pin, p.samples); err != nil {
			return rep, fmt.Errorf("%w: keyframes %s: %v", ErrPartialCommit, p.pin, err)
		}
		rep.Baked = append(rep.Baked, LinkReport{
			Pin:     p.pin,
			Samples: len(p.samples),
			Digest:  Digest(p.samples),
		})
	}
	return rep, nil
}

// Digest returns a stable SHA-256 digest of a sample sequence, computed
// over the exact float64 bits.
func Digest(samples []Sample) string {
	d := checksum.NewFloats()
	for _, s := range samples {
		d.Add(s.Time, s.Value.X, s.Value.Y)
	}
	return d.String()
}
