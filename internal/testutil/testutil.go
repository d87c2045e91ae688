// Package testutil provides shared test helpers for setting up documents
// and preset directories.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/sway/internal/document"
	"github.com/starford/sway/internal/preset"
	"github.com/starford/sway/internal/storage"
)

// Scene is a small document with one vertical three-pin rig ("Hair", every
// pin selected), one unselected four-pin rig ("Tail") and one layer
// without a rig ("Background").
const Scene = `
timeline:
  frame_rate: 24
  duration: 2
layers:
  - name: Hair
    pins:
      - {name: Pin 1, x: 0, y: 0, selected: true}
      - {name: Pin 2, x: 0, y: 50, selected: true}
      - {name: Pin 3, x: 0, y: 100, selected: true}
  - name: Tail
    pins:
      - {name: T1, x: 200, y: 10}
      - {name: T2, x: 240, y: 12}
      - {name: T3, x: 280, y: 18}
      - {name: T4, x: 320, y: 30}
  - name: Background
    rig: false
`

// TestDB creates a temporary document database that is automatically
// cleaned up.
func TestDB(t *testing.T) *document.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "sway-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := document.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDoc creates a temporary document loaded with Scene.
func TestDoc(t *testing.T) *document.DB {
	t.Helper()
	db := TestDB(t)
	s, err := document.ParseScene([]byte(Scene))
	if err != nil {
		t.Fatal(err)
	}
	if err := db.ImportScene(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	return db
}

// TestPresets creates a preset library over a temporary directory.
func TestPresets(t *testing.T) (string, *preset.Library) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	lib, err := preset.NewLibrary(store, Logger())
	if err != nil {
		t.Fatal(err)
	}
	return dir, lib
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
