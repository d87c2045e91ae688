package document

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/starford/sway/internal/apperr"
	"github.com/starford/sway/internal/bake"
	"github.com/starford/sway/internal/params"
	"github.com/starford/sway/internal/rig"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "sway-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedLayer(t *testing.T, db *DB) {
	t.Helper()
	err := db.UpsertLayer(context.Background(), Layer{
		Name:   "Hair",
		HasRig: true,
		Pins: []rig.AnchorPoint{
			{Name: "Pin 1", Position: r2.Vec{X: 0, Y: 0}, Selected: true},
			{Name: "Pin 2", Position: r2.Vec{X: 0, Y: 50}, Selected: true},
			{Name: "Pin 3", Position: r2.Vec{X: 0, Y: 100}},
		},
	})
	if err != nil {
		t.Fatalf("UpsertLayer: %v", err)
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"timeline", "layers", "pins", "controls", "bindings", "keyframes"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestTimelineDefaultsAndUpdate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	tl, err := db.Timeline(ctx)
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if tl.FrameRate != DefaultFrameRate || tl.Duration != DefaultDuration {
		t.Errorf("default timeline = %+v", tl)
	}

	if err := db.SetTimeline(ctx, bake.Timeline{FrameRate: 30, Duration: 4}); err != nil {
		t.Fatalf("SetTimeline: %v", err)
	}
	tl, _ = db.Timeline(ctx)
	if tl.FrameRate != 30 || tl.Duration != 4 {
		t.Errorf("timeline = %+v, want 30fps 4s", tl)
	}

	if err := db.SetTimeline(ctx, bake.Timeline{FrameRate: 0, Duration: 4}); err == nil {
		t.Error("expected error for zero frame rate")
	}
}

func TestLayerRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedLayer(t, db)

	l, err := db.Layer(ctx, "Hair")
	if err != nil {
		t.Fatalf("Layer: %v", err)
	}
	if !l.HasRig || len(l.Pins) != 3 {
		t.Fatalf("layer = %+v", l)
	}
	if l.Pins[1].Name != "Pin 2" || l.Pins[1].Position.Y != 50 || !l.Pins[1].Selected {
		t.Errorf("pin 2 = %+v", l.Pins[1])
	}
	if l.Pins[2].Selected {
		t.Error("pin 3 should not be selected")
	}

	if _, err := db.Layer(ctx, "Missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing layer err = %v, want ErrNotFound", err)
	}
}

func TestUpsertLayerReplacesPins(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedLayer(t, db)

	err := db.UpsertLayer(ctx, Layer{Name: "Hair", HasRig: true, Pins: []rig.AnchorPoint{{Name: "Only"}}})
	if err != nil {
		t.Fatalf("UpsertLayer: %v", err)
	}
	l, _ := db.Layer(ctx, "Hair")
	if len(l.Pins) != 1 || l.Pins[0].Name != "Only" {
		t.Errorf("pins = %+v, want only one", l.Pins)
	}

	names, err := db.LayerNames(ctx)
	if err != nil || len(names) != 1 {
		t.Errorf("LayerNames = %v, %v", names, err)
	}
}

func TestSelectPins(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedLayer(t, db)

	if err := db.SelectPins(ctx, "Hair", []string{"Pin 3"}); err != nil {
		t.Fatalf("SelectPins: %v", err)
	}
	l, _ := db.Layer(ctx, "Hair")
	for _, p := range l.Pins {
		if p.Selected != (p.Name == "Pin 3") {
			t.Errorf("%s selected = %v", p.Name, p.Selected)
		}
	}
}

func TestUniqueControlName(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	name, err := db.UniqueControlName(ctx, "Sway_Control")
	if err != nil || name != "Sway_Control" {
		t.Fatalf("first name = %q, %v", name, err)
	}
	for _, n := range []string{"Sway_Control", "Sway_Control_2"} {
		if err := db.WriteControl(ctx, Control{Name: n, Layer: "Hair", Params: params.Default()}); err != nil {
			t.Fatalf("WriteControl(%s): %v", n, err)
		}
	}
	name, _ = db.UniqueControlName(ctx, "Sway_Control")
	if name != "Sway_Control_3" {
		t.Errorf("next name = %q, want Sway_Control_3", name)
	}

	err = db.WriteControl(ctx, Control{Name: "Sway_Control", Layer: "Hair", Params: params.Default()})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate control err = %v, want ErrAlreadyExists", err)
	}
}

func TestControlParamsRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	p := params.Default()
	p.Mode = params.ModeHybrid
	p.PhysicsBlend = 40
	p.Gravity = 12.5
	chain, err := rig.BuildChain([]rig.AnchorPoint{
		{Name: "a", Position: r2.Vec{X: 0, Y: 0}},
		{Name: "b", Position: r2.Vec{X: 3.3, Y: 41.7}},
	}, rig.BuildOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.WriteControl(ctx, Control{Name: "c", Layer: "Hair", Params: p, Chain: chain}); err != nil {
		t.Fatalf("WriteControl: %v", err)
	}
	c, err := db.Control(ctx, "c")
	if err != nil {
		t.Fatalf("Control: %v", err)
	}
	if c.Params != p {
		t.Errorf("params = %+v, want %+v", c.Params, p)
	}
	if len(c.Chain) != 2 || c.Chain[1] != chain[1] {
		t.Errorf("chain = %+v, want %+v", c.Chain, chain)
	}
	if _, err := db.Control(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing control err = %v", err)
	}
}

func TestBindingsLifecycle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedLayer(t, db)

	if err := db.WriteControl(ctx, Control{Name: "c", Layer: "Hair", Params: params.Default()}); err != nil {
		t.Fatal(err)
	}
	for i, pin := range []string{"Pin 1", "Pin 2"} {
		b := Binding{Layer: "Hair", Pin: pin, Control: "c", ChainIndex: i, ParentIndex: i - 1, RestLength: float64(i) * 50, Rest: r2.Vec{Y: float64(i) * 50}}
		if err := db.WriteBinding(ctx, b); err != nil {
			t.Fatalf("WriteBinding: %v", err)
		}
	}

	chain, err := db.ChainBindings(ctx, "c")
	if err != nil {
		t.Fatalf("ChainBindings: %v", err)
	}
	if len(chain) != 2 || chain[0].Pin != "Pin 1" || chain[1].ParentIndex != 0 {
		t.Fatalf("chain = %+v", chain)
	}
	if !chain[0].IsRoot() || chain[1].IsRoot() {
		t.Error("only the first link should be the root")
	}

	if deleted, _ := db.DeleteControlIfUnused(ctx, "c"); deleted {
		t.Error("control deleted while still bound")
	}

	removed, err := db.RemoveBinding(ctx, "Hair", "Pin 2")
	if err != nil || !removed {
		t.Fatalf("RemoveBinding = %v, %v", removed, err)
	}
	removed, _ = db.RemoveBinding(ctx, "Hair", "Pin 2")
	if removed {
		t.Error("second remove should report nothing removed")
	}
	if _, err := db.Binding(ctx, "Hair", "Pin 2"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("binding after remove err = %v", err)
	}

	_, _ = db.RemoveBinding(ctx, "Hair", "Pin 1")
	if deleted, _ := db.DeleteControlIfUnused(ctx, "c"); !deleted {
		t.Error("unused control should be deleted")
	}
}

func TestBaseValueAt(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	seedLayer(t, db)

	v, err := db.BaseValueAt(ctx, "Hair", "Pin 2", 3)
	if err != nil {
		t.Fatalf("BaseValueAt: %v", err)
	}
	if v != (r2.Vec{X: 0, Y: 50}) {
		t.Errorf("rest value = %v", v)
	}

	keys := []bake.Sample{
		{Time: 0, Value: r2.Vec{X: 0, Y: 0}},
		{Time: 1, Value: r2.Vec{X: 10, Y: 20}},
	}
	if err := db.WriteKeyframes(ctx, "Hair", "Pin 2", keys); err != nil {
		t.Fatalf("WriteKeyframes: %v", err)
	}

	cases := []struct {
		t    float64
		want r2.Vec
	}{
		{-1, r2.Vec{X: 0, Y: 0}},
		{0.5, r2.Vec{X: 5, Y: 10}},
		{2, r2.Vec{X: 10, Y: 20}},
	}
	for _, tc := range cases {
		got, _ := db.BaseValueAt(ctx, "Hair", "Pin 2", tc.t)
		if got != tc.want {
			t.Errorf("BaseValueAt(%v) = %v, want %v", tc.t, got, tc.want)
		}
	}

	if err := db.ClearKeyframes(ctx, "Hair", "Pin 2"); err != nil {
		t.Fatal(err)
	}
	got, _ := db.Keyframes(ctx, "Hair", "Pin 2")
	if len(got) != 0 {
		t.Errorf("keyframes after clear = %d", len(got))
	}
}

func TestInterpolateNaNHoldsFirstKey(t *testing.T) {
	keys := []bake.Sample{
		{Time: 0, Value: r2.Vec{X: 1, Y: 2}},
		{Time: 1, Value: r2.Vec{X: 3, Y: 4}},
	}
	if got := Interpolate(keys, math.NaN()); got != keys[0].Value {
		t.Errorf("Interpolate(NaN) = %v, want %v", got, keys[0].Value)
	}
	if got := Interpolate(keys, math.Inf(1)); got != keys[1].Value {
		t.Errorf("Interpolate(+Inf) = %v, want %v", got, keys[1].Value)
	}
}

const sceneYAML = `
timeline:
  frame_rate: 30
  duration: 2
layers:
  - name: Tail
    pins:
      - {name: Root, x: 0, y: 0, selected: true}
      - {name: Tip, x: 40, y: 0, selected: true}
  - name: Background
    rig: false
`

func TestImportScene(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	s, err := ParseScene([]byte(sceneYAML))
	if err != nil {
		t.Fatalf("ParseScene: %v", err)
	}
	if err := db.ImportScene(ctx, s); err != nil {
		t.Fatalf("ImportScene: %v", err)
	}

	tl, _ := db.Timeline(ctx)
	if tl.FrameRate != 30 || tl.Duration != 2 {
		t.Errorf("timeline = %+v", tl)
	}
	tail, err := db.Layer(ctx, "Tail")
	if err != nil || len(tail.Pins) != 2 || tail.Pins[1].Position.X != 40 {
		t.Fatalf("tail = %+v, %v", tail, err)
	}
	bg, err := db.Layer(ctx, "Background")
	if err != nil || bg.HasRig || len(bg.Pins) != 0 {
		t.Errorf("background = %+v, %v", bg, err)
	}
}

func TestParseSceneRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"no layers":       "timeline: {frame_rate: 24, duration: 1}\n",
		"unnamed layer":   "layers:\n  - pins: []\n",
		"duplicate layer": "layers:\n  - name: A\n  - name: A\n",
		"unnamed pin":     "layers:\n  - name: A\n    pins:\n      - {x: 1}\n",
		"bad timeline":    "timeline: {frame_rate: -1, duration: 1}\nlayers:\n  - name: A\n",
		"huge timeline":   "timeline: {frame_rate: 24, duration: 1e12}\nlayers:\n  - name: A\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseScene([]byte(doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
