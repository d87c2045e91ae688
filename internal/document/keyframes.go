package document

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/starford/sway/internal/bake"
)

// WriteKeyframes stores samples as keyframes of a pin, replacing keys at
// the same instants.
func (db *DB) WriteKeyframes(ctx context.Context, layer, pin string, samples []bake.Sample) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("document: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO keyframes (layer, pin, t, x, y) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(layer, pin, t) DO UPDATE SET x = excluded.x, y = excluded.y
	`)
	if err != nil {
		return fmt.Errorf("document: prepare keyframe insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.ExecContext(ctx, layer, pin, s.Time, s.Value.X, s.Value.Y); err != nil {
			return fmt.Errorf("document: keyframe %s/%s@%v: %w", layer, pin, s.Time, err)
		}
	}
	return tx.Commit()
}

// Keyframes returns the keyframes of a pin ordered by time.
func (db *DB) Keyframes(ctx context.Context, layer, pin string) ([]bake.Sample, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT t, x, y FROM keyframes WHERE layer = ? AND pin = ? ORDER BY t`, layer, pin)
	if err != nil {
		return nil, fmt.Errorf("document: keyframes: %w", err)
	}
	defer rows.Close()
	var out []bake.Sample
	for rows.Next() {
		var s bake.Sample
		if err := rows.Scan(&s.Time, &s.Value.X, &s.Value.Y); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ClearKeyframes drops every keyframe of a pin.
func (db *DB) ClearKeyframes(ctx context.Context, layer, pin string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM keyframes WHERE layer = ? AND pin = ?`, layer, pin); err != nil {
		return fmt.Errorf("document: clear keyframes: %w", err)
	}
	return nil
}

// BaseValueAt is the value a pin has at t without any live formula: its
// keyframes interpolated linearly and held at the ends, or its rest
// position when it has none.
func (db *DB) BaseValueAt(ctx context.Context, layer, pin string, t float64) (r2.Vec, error) {
	keys, err := db.Keyframes(ctx, layer, pin)
	if err != nil {
		return r2.Vec{}, err
	}
	if len(keys) == 0 {
		return db.RestPosition(ctx, layer, pin)
	}
	return Interpolate(keys, t), nil
}

// Interpolate evaluates time-ordered keys at t. A NaN t holds the first key.
func Interpolate(keys []bake.Sample, t float64) r2.Vec {
	if math.IsNaN(t) || t <= keys[0].Time {
		return keys[0].Value
	}
	last := keys[len(keys)-1]
	if t >= last.Time {
		return last.Value
	}
	i := sort.Search(len(keys), func(i int) bool { return keys[i].Time > t })
	a, b := keys[i-1], keys[i]
	f := (t - a.Time) / (b.Time - a.Time)
	return r2.Add(a.Value, r2.Scale(f, r2.Sub(b.Value, a.Value)))
}
