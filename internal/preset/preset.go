// Package preset holds named parameter sets: a built-in table plus a
// directory of YAML files that extends or overrides it.
package preset

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/sway/internal/apperr"
	"github.com/starford/sway/internal/checksum"
	"github.com/starford/sway/internal/params"
	"github.com/starford/sway/internal/storage"
)

// FileExt is the extension of preset files.
const FileExt = ".yaml"

// Sources of a preset.
const (
	SourceBuiltin = "builtin"
	SourceFile    = "file"
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Preset is a named parameter set. File presets also carry the checksum
// and modification time of their file.
type Preset struct {
	Name      string     `json:"name"`
	Source    string     `json:"source"`
	Params    params.Set `json:"params"`
	Checksum  string     `json:"checksum,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// fileEntry is a parsed preset file.
type fileEntry struct {
	set       params.Set
	checksum  string
	updatedAt time.Time
}

// builtin lists the stock presets. Only the fields that differ between
// presets are set; everything else comes from params.Default.
var builtin = map[string]map[string]any{
	"custom": {"amplitude": 50, "frequency": 2, "chainDelay": 0.1, "noiseAmount": 20, "damping": 30, "stiffness": 50, "physicsBlend": 0, "gravity": 0},
	"hair":   {"amplitude": 30, "frequency": 1.5, "chainDelay": 0.08, "noiseAmount": 35, "damping": 40, "stiffness": 20, "physicsBlend": 0, "gravity": 5},
	"rope":   {"amplitude": 40, "frequency": 0.8, "chainDelay": 0.05, "noiseAmount": 10, "damping": 60, "stiffness": 70, "physicsBlend": 80, "gravity": 20},
	"cloth":  {"amplitude": 50, "frequency": 1.0, "chainDelay": 0.12, "noiseAmount": 50, "damping": 30, "stiffness": 40, "physicsBlend": 40, "gravity": 3},
	"tail":   {"amplitude": 60, "frequency": 2.0, "chainDelay": 0.1, "noiseAmount": 25, "damping": 25, "stiffness": 35, "physicsBlend": 0, "gravity": 0},
}

// Builtin returns the stock preset table.
func Builtin() map[string]params.Set {
	out := make(map[string]params.Set, len(builtin))
	for name, values := range builtin {
		set, err := params.FromMap(params.Default(), values)
		if err != nil {
			panic(fmt.Sprintf("preset: builtin %s: %v", name, err))
		}
		out[name] = set
	}
	return out
}

// ValidName reports whether name can be used as a preset file name.
func ValidName(name string) bool { return nameRe.MatchString(name) }

// Library is the merged preset table. It is safe for concurrent use.
type Library struct {
	store  storage.Provider
	logger *slog.Logger

	mu    sync.RWMutex
	files map[string]fileEntry
	base  map[string]params.Set
}

// NewLibrary builds a library over store and loads its files. A nil store
// serves only the built-in table.
func NewLibrary(store storage.Provider, logger *slog.Logger) (*Library, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Library{
		store:  store,
		logger: logger,
		files:  map[string]fileEntry{},
		base:   Builtin(),
	}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload rereads every preset file. Files whose checksum is unchanged keep
// their parsed set. Files that fail to parse are logged and skipped.
func (l *Library) Reload() error {
	if l.store == nil {
		return nil
	}
	infos, err := l.store.List(FileExt)
	if err != nil {
		return fmt.Errorf("preset: reload: %w", err)
	}

	l.mu.RLock()
	prev := l.files
	l.mu.RUnlock()

	files := make(map[string]fileEntry, len(infos))
	reused := 0
	for _, info := range infos {
		name := strings.TrimSuffix(info.Path, FileExt)
		if !ValidName(name) {
			continue
		}
		if old, ok := prev[name]; ok && old.checksum == info.Checksum {
			old.updatedAt = info.UpdatedAt
			files[name] = old
			reused++
			continue
		}
		data, err := l.store.Read(info.Path)
		if err != nil {
			l.logger.Warn("preset: read failed", slog.String("file", info.Path), slog.String("error", err.Error()))
			continue
		}
		set, err := params.Parse(data, params.Default())
		if err != nil {
			l.logger.Warn("preset: parse failed", slog.String("file", info.Path), slog.String("error", err.Error()))
			continue
		}
		files[name] = fileEntry{set: set, checksum: info.Checksum, updatedAt: info.UpdatedAt}
	}

	l.mu.Lock()
	l.files = files
	l.mu.Unlock()
	l.logger.Debug("preset: reloaded", slog.Int("files", len(files)), slog.Int("unchanged", reused))
	return nil
}

// Get returns the named preset. Files override built-ins of the same name.
func (l *Library) Get(name string) (params.Set, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if f, ok := l.files[name]; ok {
		return f.set, nil
	}
	if set, ok := l.base[name]; ok {
		return set, nil
	}
	return params.Set{}, fmt.Errorf("preset %q: %w", name, apperr.ErrNotFound)
}

// List returns every preset sorted by name.
func (l *Library) List() []Preset {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Preset, 0, len(l.base)+len(l.files))
	for name, set := range l.base {
		if _, overridden := l.files[name]; overridden {
			continue
		}
		out = append(out, Preset{Name: name, Source: SourceBuiltin, Params: set})
	}
	for name, f := range l.files {
		updated := f.updatedAt
		out = append(out, Preset{Name: name, Source: SourceFile, Params: f.set, Checksum: f.checksum, UpdatedAt: &updated})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Save validates set and writes it as a preset file.
func (l *Library) Save(name string, set params.Set) error {
	if l.store == nil {
		return fmt.Errorf("preset: no preset directory configured")
	}
	if !ValidName(name) {
		return fmt.Errorf("%w: preset name %q", apperr.ErrInvalidParameters, name)
	}
	set.Normalize()
	if err := set.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(set)
	if err != nil {
		return fmt.Errorf("preset: encode %s: %w", name, err)
	}
	if err := l.store.Write(name+FileExt, data); err != nil {
		return err
	}

	l.mu.Lock()
	l.files[name] = fileEntry{set: set, checksum: checksum.Sum(data), updatedAt: time.Now()}
	l.mu.Unlock()
	return nil
}

// Delete removes the preset file name. Built-ins cannot be deleted; a
// built-in that the file overrode becomes visible again.
func (l *Library) Delete(name string) error {
	if l.store == nil {
		return fmt.Errorf("preset: no preset directory configured")
	}
	if !ValidName(name) {
		return fmt.Errorf("%w: preset name %q", apperr.ErrInvalidParameters, name)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.files[name]; !ok {
		if _, builtin := l.base[name]; builtin {
			return fmt.Errorf("%w: preset %q is built in", apperr.ErrInvalidParameters, name)
		}
		return fmt.Errorf("preset %q: %w", name, apperr.ErrNotFound)
	}
	if err := l.store.Delete(name + FileExt); err != nil {
		return err
	}
	delete(l.files, name)
	return nil
}
