package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/starford/sway/internal/apperr"
	"github.com/starford/sway/internal/params"
	"github.com/starford/sway/internal/rig"
)

// Control is a named parameter set together with the chain it drives. The
// chain is stored whole so the model survives removal of single links.
type Control struct {
	Name   string          `json:"name"`
	Layer  string          `json:"layer"`
	Params params.Set      `json:"params"`
	Chain  []rig.ChainLink `json:"chain"`
}

// Binding attaches the live sway formula of one chain link to a pin.
type Binding struct {
	Layer       string  `json:"layer"`
	Pin         string  `json:"pin"`
	Control     string  `json:"control"`
	ChainIndex  int     `json:"chain_index"`
	ParentIndex int     `json:"parent_index"`
	RestLength  float64 `json:"rest_length"`
	Rest        r2.Vec  `json:"rest"`
}

// IsRoot reports whether the bound pin is the fixed end of its chain.
func (b Binding) IsRoot() bool { return b.ParentIndex == rig.NoParent }

// UniqueControlName returns base, or base_2, base_3, ... whichever is the
// first name not yet taken.
func (db *DB) UniqueControlName(ctx context.Context, base string) (string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT name FROM controls WHERE name = ? OR name LIKE ?`,
		base, strings.ReplaceAll(base, "%", "")+"_%")
	if err != nil {
		return "", fmt.Errorf("document: control names: %w", err)
	}
	defer rows.Close()

	taken := make(map[string]struct{})
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return "", err
		}
		taken[n] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	name := base
	for counter := 2; ; counter++ {
		if _, ok := taken[name]; !ok {
			return name, nil
		}
		name = fmt.Sprintf("%s_%d", base, counter)
	}
}

// WriteControl stores a new control. It fails with apperr.ErrAlreadyExists
// when the name is taken.
func (db *DB) WriteControl(ctx context.Context, c Control) error {
	payload, err := json.Marshal(c.Params)
	if err != nil {
		return fmt.Errorf("document: encode params: %w", err)
	}
	chain := c.Chain
	if chain == nil {
		chain = []rig.ChainLink{}
	}
	links, err := json.Marshal(chain)
	if err != nil {
		return fmt.Errorf("document: encode chain: %w", err)
	}
	res, err := db.conn.ExecContext(ctx, `INSERT OR IGNORE INTO controls (name, layer, params, chain) VALUES (?, ?, ?, ?)`,
		c.Name, c.Layer, string(payload), string(links))
	if err != nil {
		return fmt.Errorf("document: write control: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document: control %q: %w", c.Name, apperr.ErrAlreadyExists)
	}
	return nil
}

// Control returns a stored control.
func (db *DB) Control(ctx context.Context, name string) (*Control, error) {
	c := &Control{Name: name}
	var payload, links string
	err := db.conn.QueryRowContext(ctx, `SELECT layer, params, chain FROM controls WHERE name = ?`, name).
		Scan(&c.Layer, &payload, &links)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document: control %q: %w", name, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("document: control: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &c.Params); err != nil {
		return nil, fmt.Errorf("document: decode params of %q: %w", name, err)
	}
	if err := json.Unmarshal([]byte(links), &c.Chain); err != nil {
		return nil, fmt.Errorf("document: decode chain of %q: %w", name, err)
	}
	return c, nil
}

// DeleteControlIfUnused removes a control that no binding references and
// reports whether it did.
func (db *DB) DeleteControlIfUnused(ctx context.Context, name string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM controls
		WHERE name = ? AND NOT EXISTS (SELECT 1 FROM bindings WHERE control = ?)
	`, name, name)
	if err != nil {
		return false, fmt.Errorf("document: delete control: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// WriteBinding binds a pin to a control, replacing any earlier binding of
// the same pin.
func (db *DB) WriteBinding(ctx context.Context, b Binding) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO bindings (layer, pin, control, chain_index, parent_index, rest_length, rest_x, rest_y)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(layer, pin) DO UPDATE SET
			control      = excluded.control,
			chain_index  = excluded.chain_index,
			parent_index = excluded.parent_index,
			rest_length  = excluded.rest_length,
			rest_x       = excluded.rest_x,
			rest_y       = excluded.rest_y
	`, b.Layer, b.Pin, b.Control, b.ChainIndex, b.ParentIndex, b.RestLength, b.Rest.X, b.Rest.Y)
	if err != nil {
		return fmt.Errorf("document: write binding %s/%s: %w", b.Layer, b.Pin, err)
	}
	return nil
}

const bindingColumns = `layer, pin, control, chain_index, parent_index, rest_length, rest_x, rest_y`

func scanBinding(row interface{ Scan(...any) error }) (Binding, error) {
	var b Binding
	err := row.Scan(&b.Layer, &b.Pin, &b.Control, &b.ChainIndex, &b.ParentIndex, &b.RestLength, &b.Rest.X, &b.Rest.Y)
	return b, err
}

// Binding returns the live binding of a pin.
func (db *DB) Binding(ctx context.Context, layer, pin string) (*Binding, error) {
	b, err := scanBinding(db.conn.QueryRowContext(ctx,
		`SELECT `+bindingColumns+` FROM bindings WHERE layer = ? AND pin = ?`, layer, pin))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document: binding %s/%s: %w", layer, pin, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("document: binding: %w", err)
	}
	return &b, nil
}

// ChainBindings returns every binding of a control ordered root to tip.
func (db *DB) ChainBindings(ctx context.Context, control string) ([]Binding, error) {
	return db.queryBindings(ctx, `SELECT `+bindingColumns+` FROM bindings WHERE control = ? ORDER BY chain_index`, control)
}

// LayerBindings returns every binding on a layer.
func (db *DB) LayerBindings(ctx context.Context, layer string) ([]Binding, error) {
	return db.queryBindings(ctx, `SELECT `+bindingColumns+` FROM bindings WHERE layer = ? ORDER BY control, chain_index`, layer)
}

func (db *DB) queryBindings(ctx context.Context, query string, arg any) ([]Binding, error) {
	rows, err := db.conn.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("document: bindings: %w", err)
	}
	defer rows.Close()
	var out []Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// RemoveBinding detaches the live formula of a pin and reports whether one
// was bound.
func (db *DB) RemoveBinding(ctx context.Context, layer, pin string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM bindings WHERE layer = ? AND pin = ?`, layer, pin)
	if err != nil {
		return false, fmt.Errorf("document: remove binding: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
