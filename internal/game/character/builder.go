package character

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Builtins returns the default archetypes.
func Builtins() []*Archetype {
	return []*Archetype{
		{ID: "warrior", Name: "Warrior", Moves: []string{"Slash", "Shield Bash", "War Cry"}},
		{ID: "mage", Name: "Mage", Moves: []string{"Fireball", "Frost Nova", "Arcane Missile"}},
		{ID: "rogue", Name: "Rogue", Moves: []string{"Backstab", "Poison Dart", "Smoke Bomb"}},
		{ID: "paladin", Name: "Paladin", Moves: []string{"Holy Strike", "Smite", "Divine Shield"}},
	}
}

// Registry holds archetypes keyed by ID. All methods are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	archetypes map[string]*Archetype
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{archetypes: make(map[string]*Archetype)}
}

// NewBuiltinRegistry returns a Registry holding the default archetypes.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, a := range Builtins() {
		if err := r.Register(a); err != nil {
			panic("character: " + err.Error())
		}
	}
	return r
}

// Register validates a, fills defaults, and adds it to the registry.
//
// Postcondition: Returns an error if a is invalid or its ID is already registered.
func (r *Registry) Register(a *Archetype) error {
	if a == nil {
		return fmt.Errorf("archetype must not be nil")
	}
	a.applyDefaults()
	if err := a.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.archetypes[a.ID]; exists {
		return fmt.Errorf("archetype %q already registered", a.ID)
	}
	r.archetypes[a.ID] = a
	return nil
}

// Lookup returns the archetype with the given ID.
func (r *Registry) Lookup(id string) (*Archetype, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.archetypes[id]
	return a, ok
}

// All returns every archetype sorted by ID.
func (r *Registry) All() []*Archetype {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Archetype, 0, len(r.archetypes))
	for _, a := range r.archetypes {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LoadArchetypes reads all .yaml files in dir and parses each as an Archetype.
//
// Postcondition: Returns all parsed archetypes (may be empty) or a non-nil error.
func LoadArchetypes(dir string) ([]*Archetype, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	sort.Strings(paths)
	out := make([]*Archetype, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var a Archetype
		if err := yaml.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("parsing archetype file %s: %w", path, err)
		}
		out = append(out, &a)
	}
	return out, nil
}
