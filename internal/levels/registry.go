package levels

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed levels.yaml
var embeddedLevels []byte

// Registry is an immutable, ordered set of levels keyed by ID.
type Registry struct {
	levels []Level
	byID   map[string]*Level
}

type document struct {
	Levels []Level `yaml:"levels"`
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry built from the embedded levels.yaml.
// It panics if the embedded document is invalid, which is a build defect.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := Load(bytes.NewReader(embeddedLevels))
		if err != nil {
			panic(fmt.Sprintf("levels: embedded levels.yaml: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Load parses and validates a levels document.
func Load(r io.Reader) (*Registry, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse levels: empty document")
		}
		return nil, fmt.Errorf("parse levels: %w", err)
	}

	for i := range doc.Levels {
		normalize(&doc.Levels[i])
	}

	if err := validateLevels(doc.Levels); err != nil {
		return nil, err
	}

	reg := &Registry{
		levels: doc.Levels,
		byID:   make(map[string]*Level, len(doc.Levels)),
	}
	for i := range reg.levels {
		reg.byID[reg.levels[i].ID] = &reg.levels[i]
	}
	return reg, nil
}

// LoadFile loads levels from a YAML file on disk.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open levels file: %w", err)
	}
	defer f.Close()

	reg, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return reg, nil
}

// Resolve returns the registry from path, or the embedded one when path is
// empty. An empty path falls back to LATCH_LEVELS_FILE.
func Resolve(path string) (*Registry, error) {
	if path == "" {
		path = os.Getenv("LATCH_LEVELS_FILE")
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// Lookup returns the level with the given ID.
func (r *Registry) Lookup(id string) (*Level, bool) {
	l, ok := r.byID[id]
	return l, ok
}

// All returns every level in declaration order.
func (r *Registry) All() []Level {
	out := make([]Level, len(r.levels))
	copy(out, r.levels)
	return out
}

// IDs returns the level IDs in declaration order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.levels))
	for i, l := range r.levels {
		ids[i] = l.ID
	}
	return ids
}

func normalize(l *Level) {
	l.ID = strings.TrimSpace(l.ID)
	for i := range l.Goals {
		l.Goals[i].ID = strings.TrimSpace(l.Goals[i].ID)
		if l.Goals[i].Label == "" {
			l.Goals[i].Label = l.Goals[i].ID
		}
	}
}
