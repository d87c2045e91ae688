package preset

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/sway/internal/apperr"
	"github.com/starford/sway/internal/checksum"
	"github.com/starford/sway/internal/params"
	"github.com/starford/sway/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newLibrary(t *testing.T) (*Library, *storage.FS) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	require.NoError(t, err)
	lib, err := NewLibrary(store, quietLogger())
	require.NoError(t, err)
	return lib, store
}

func TestBuiltin_Table(t *testing.T) {
	table := Builtin()
	require.Len(t, table, 5)

	rope := table["rope"]
	assert.Equal(t, 40.0, rope.Amplitude)
	assert.Equal(t, 0.8, rope.Frequency)
	assert.Equal(t, 0.05, rope.ChainDelay)
	assert.Equal(t, 10.0, rope.NoiseAmount)
	assert.Equal(t, 60.0, rope.Damping)
	assert.Equal(t, 70.0, rope.Stiffness)
	assert.Equal(t, 80.0, rope.PhysicsBlend)
	assert.Equal(t, 20.0, rope.Gravity)

	// Fields no preset touches come from the defaults.
	assert.Equal(t, params.ModeProcedural, rope.Mode)
	assert.True(t, rope.Enabled)
	assert.Equal(t, params.Default().DecayDuration, rope.DecayDuration)

	assert.Equal(t, params.Default().Amplitude, table["custom"].Amplitude)
}

func TestLibrary_NilStoreServesBuiltins(t *testing.T) {
	lib, err := NewLibrary(nil, quietLogger())
	require.NoError(t, err)

	hair, err := lib.Get("hair")
	require.NoError(t, err)
	assert.Equal(t, 1.5, hair.Frequency)

	_, err = lib.Get("missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Error(t, lib.Save("x", params.Default()))
}

func TestLibrary_SaveOverridesBuiltin(t *testing.T) {
	lib, store := newLibrary(t)

	p := params.Default()
	p.Amplitude = 12
	p.Mode = params.ModePhysics
	require.NoError(t, lib.Save("hair", p))

	got, err := lib.Get("hair")
	require.NoError(t, err)
	assert.Equal(t, 12.0, got.Amplitude)
	assert.Equal(t, params.ModePhysics, got.Mode)

	_, err = store.Read("hair.yaml")
	require.NoError(t, err)

	// A fresh library sees the file.
	again, err := NewLibrary(store, quietLogger())
	require.NoError(t, err)
	got, err = again.Get("hair")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	var hairEntries []Preset
	for _, pr := range again.List() {
		if pr.Name == "hair" {
			hairEntries = append(hairEntries, pr)
		}
	}
	require.Len(t, hairEntries, 1)
	assert.Equal(t, SourceFile, hairEntries[0].Source)
}

func TestLibrary_SaveRejectsBadInput(t *testing.T) {
	lib, _ := newLibrary(t)

	assert.ErrorIs(t, lib.Save("../escape", params.Default()), apperr.ErrInvalidParameters)
	assert.ErrorIs(t, lib.Save("", params.Default()), apperr.ErrInvalidParameters)

	bad := params.Default()
	bad.NoiseAmount = 150
	assert.ErrorIs(t, lib.Save("loud", bad), apperr.ErrInvalidParameters)
}

func TestLibrary_ReloadSkipsBrokenFiles(t *testing.T) {
	lib, store := newLibrary(t)
	require.NoError(t, store.Write("good.yaml", []byte("amplitude: 7\nmode: hybrid\n")))
	require.NoError(t, store.Write("broken.yaml", []byte("amplitude: [")))
	require.NoError(t, store.Write("invalid.yaml", []byte("physicsBlend: 400\n")))

	require.NoError(t, lib.Reload())

	good, err := lib.Get("good")
	require.NoError(t, err)
	assert.Equal(t, 7.0, good.Amplitude)
	assert.Equal(t, params.ModeHybrid, good.Mode)

	_, err = lib.Get("broken")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = lib.Get("invalid")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	names := make([]string, 0)
	for _, p := range lib.List() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"cloth", "custom", "good", "hair", "rope", "tail"}, names)
}

func TestLibrary_Delete(t *testing.T) {
	lib, store := newLibrary(t)

	p := params.Default()
	p.Amplitude = 12
	require.NoError(t, lib.Save("hair", p))
	require.NoError(t, lib.Save("breeze", p))

	require.NoError(t, lib.Delete("hair"))
	hair, err := lib.Get("hair")
	require.NoError(t, err)
	assert.Equal(t, 30.0, hair.Amplitude, "built-in visible again")
	_, err = store.Read("hair.yaml")
	assert.Error(t, err)

	assert.ErrorIs(t, lib.Delete("hair"), apperr.ErrInvalidParameters)
	assert.ErrorIs(t, lib.Delete("missing"), apperr.ErrNotFound)
	assert.ErrorIs(t, lib.Delete("../breeze"), apperr.ErrInvalidParameters)

	_, err = lib.Get("breeze")
	assert.NoError(t, err)

	nilLib, err := NewLibrary(nil, quietLogger())
	require.NoError(t, err)
	assert.Error(t, nilLib.Delete("breeze"))
}

func TestLibrary_ListCarriesFileMetadata(t *testing.T) {
	lib, store := newLibrary(t)
	require.NoError(t, store.Write("calm.yaml", []byte("amplitude: 4\n")))
	require.NoError(t, lib.Reload())

	var calm, rope Preset
	for _, p := range lib.List() {
		switch p.Name {
		case "calm":
			calm = p
		case "rope":
			rope = p
		}
	}
	assert.Equal(t, checksum.Sum([]byte("amplitude: 4\n")), calm.Checksum)
	require.NotNil(t, calm.UpdatedAt)
	assert.False(t, calm.UpdatedAt.IsZero())
	assert.Empty(t, rope.Checksum)
	assert.Nil(t, rope.UpdatedAt)

	// A rewritten file is parsed again.
	require.NoError(t, store.Write("calm.yaml", []byte("amplitude: 9\n")))
	require.NoError(t, lib.Reload())
	got, err := lib.Get("calm")
	require.NoError(t, err)
	assert.Equal(t, 9.0, got.Amplitude)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatch_ReloadsOnFileChange(t *testing.T) {
	lib, store := newLibrary(t)
	dir := store.Root()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var changed []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = lib.Watch(ctx, dir, func(names []string) {
			mu.Lock()
			changed = append(changed, names...)
			mu.Unlock()
		})
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "breeze.yaml"), []byte("amplitude: 3\n"), 0o644))

	eventually(t, 3*time.Second, 50*time.Millisecond, func() bool {
		_, err := lib.Get("breeze")
		return err == nil
	}, "preset not picked up by watcher")

	mu.Lock()
	assert.Contains(t, changed, "breeze")
	mu.Unlock()

	require.NoError(t, os.Remove(filepath.Join(dir, "breeze.yaml")))
	eventually(t, 3*time.Second, 50*time.Millisecond, func() bool {
		_, err := lib.Get("breeze")
		return err != nil
	}, "removed preset still served")

	cancel()
	<-done
}
