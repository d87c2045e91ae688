package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/starford/sway/internal/apperr"
	"github.com/starford/sway/internal/rig"
)

// Layer is a document layer. HasRig is false for layers without a puppet
// effect; such layers keep no pins.
type Layer struct {
	Name   string            `json:"name"`
	HasRig bool              `json:"has_rig"`
	Pins   []rig.AnchorPoint `json:"pins"`
}

// UpsertLayer creates or replaces a layer and its pins. Pins keep the
// order in which they are given.
func (db *DB) UpsertLayer(ctx context.Context, l Layer) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("document: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.ExecContext(ctx, `
		INSERT INTO layers (name, has_rig) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET has_rig = excluded.has_rig
	`, l.Name, l.HasRig)
	if err != nil {
		return fmt.Errorf("document: upsert layer: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pins WHERE layer = ?`, l.Name); err != nil {
		return fmt.Errorf("document: clear pins: %w", err)
	}
	if l.HasRig && len(l.Pins) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO pins (layer, name, ord, x, y, selected) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("document: prepare pin insert: %w", err)
		}
		defer stmt.Close()
		for i, p := range l.Pins {
			if _, err := stmt.ExecContext(ctx, l.Name, p.Name, i, p.Position.X, p.Position.Y, p.Selected); err != nil {
				return fmt.Errorf("document: insert pin %s: %w", p.Name, err)
			}
		}
	}

	return tx.Commit()
}

// Layer returns a layer with its pins in document order.
func (db *DB) Layer(ctx context.Context, name string) (*Layer, error) {
	l := &Layer{Name: name}
	err := db.conn.QueryRowContext(ctx, `SELECT has_rig FROM layers WHERE name = ?`, name).Scan(&l.HasRig)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document: layer %q: %w", name, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("document: layer: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT name, x, y, selected FROM pins WHERE layer = ? ORDER BY ord`, name)
	if err != nil {
		return nil, fmt.Errorf("document: pins: %w", err)
	}
	defer rows.Close()

	l.Pins = []rig.AnchorPoint{}
	for rows.Next() {
		var p rig.AnchorPoint
		if err := rows.Scan(&p.Name, &p.Position.X, &p.Position.Y, &p.Selected); err != nil {
			return nil, err
		}
		l.Pins = append(l.Pins, p)
	}
	return l, rows.Err()
}

// LayerNames lists every layer.
func (db *DB) LayerNames(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT name FROM layers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("document: layer names: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// SelectPins marks exactly the named pins of layer as selected.
func (db *DB) SelectPins(ctx context.Context, layer string, names []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("document: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `UPDATE pins SET selected = 0 WHERE layer = ?`, layer); err != nil {
		return fmt.Errorf("document: clear selection: %w", err)
	}
	for _, n := range names {
		if _, err := tx.ExecContext(ctx, `UPDATE pins SET selected = 1 WHERE layer = ? AND name = ?`, layer, n); err != nil {
			return fmt.Errorf("document: select %s: %w", n, err)
		}
	}
	return tx.Commit()
}

// RestPosition returns the stored position of a pin.
func (db *DB) RestPosition(ctx context.Context, layer, pin string) (r2.Vec, error) {
	var v r2.Vec
	err := db.conn.QueryRowContext(ctx, `SELECT x, y FROM pins WHERE layer = ? AND name = ?`, layer, pin).Scan(&v.X, &v.Y)
	if errors.Is(err, sql.ErrNoRows) {
		return v, fmt.Errorf("document: pin %s/%s: %w", layer, pin, apperr.ErrNotFound)
	}
	if err != nil {
		return v, fmt.Errorf("document: rest position: %w", err)
	}
	return v, nil
}
