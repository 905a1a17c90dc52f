package ability

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/duel/internal/game/dice"
)

// HookSpec declares a chance-gated numeric transform.
//
// When the optional Below/Above guards hold and a Chance roll succeeds, the
// value becomes floor(value*Multiply) + Add.
type HookSpec struct {
	// Chance is the trigger probability in percent (0-100).
	Chance int `yaml:"chance"`
	// Multiply scales the value; nil leaves it unscaled.
	Multiply *float64 `yaml:"multiply,omitempty"`
	// Add is a flat amount added after scaling.
	Add int `yaml:"add,omitempty"`
	// Below, when non-nil, requires value < *Below.
	Below *int `yaml:"below,omitempty"`
	// Above, when non-nil, requires value > *Above.
	Above *int `yaml:"above,omitempty"`
}

// Validate checks h's invariants.
func (h HookSpec) Validate() error {
	if h.Chance < 0 || h.Chance > 100 {
		return fmt.Errorf("chance must be 0-100, got %d", h.Chance)
	}
	if h.Multiply != nil && *h.Multiply < 0 {
		return fmt.Errorf("multiply must not be negative, got %v", *h.Multiply)
	}
	if h.Multiply == nil && h.Add == 0 {
		return fmt.Errorf("hook must multiply or add")
	}
	return nil
}

// Build returns a Hook applying h with chance checks drawn from roller.
func (h HookSpec) Build(roller *dice.Roller) Hook {
	return func(v int) int {
		if h.Below != nil && v >= *h.Below {
			return v
		}
		if h.Above != nil && v <= *h.Above {
			return v
		}
		if !roller.Chance(h.Chance) {
			return v
		}
		out := v
		if h.Multiply != nil {
			out = int(math.Floor(float64(v) * *h.Multiply))
		}
		return out + h.Add
	}
}

// Definition is the YAML form of an ability. Hooks come from exactly one of
// the declarative specs or a Lua script.
type Definition struct {
	ID          string    `yaml:"id"`
	Kind        string    `yaml:"kind"`
	Description string    `yaml:"description"`
	OnAttack    *HookSpec `yaml:"on_attack,omitempty"`
	OnDefend    *HookSpec `yaml:"on_defend,omitempty"`
	AfterDamage *HookSpec `yaml:"after_damage,omitempty"`
	// Script is a Lua file, relative to the scripts directory, defining any of
	// on_attack, on_defend, after_damage.
	Script string `yaml:"script,omitempty"`
}

// Validate checks the definition's invariants.
func (d Definition) Validate() error {
	var errs []string
	if d.ID == "" {
		errs = append(errs, "id must not be empty")
	}
	kind, err := ParseKind(d.Kind)
	if err != nil {
		errs = append(errs, err.Error())
	}
	hasSpec := d.OnAttack != nil || d.OnDefend != nil || d.AfterDamage != nil
	if hasSpec && d.Script != "" {
		errs = append(errs, "declarative hooks and script are mutually exclusive")
	}
	if !hasSpec && d.Script == "" {
		errs = append(errs, "ability defines no hooks")
	}
	if kind == KindOffense && (d.OnDefend != nil || d.AfterDamage != nil) {
		errs = append(errs, "offense abilities may only define on_attack")
	}
	if kind == KindDefense && d.OnAttack != nil {
		errs = append(errs, "defense abilities may not define on_attack")
	}
	for name, spec := range map[string]*HookSpec{"on_attack": d.OnAttack, "on_defend": d.OnDefend, "after_damage": d.AfterDamage} {
		if spec == nil {
			continue
		}
		if err := spec.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("ability %q: %s", d.ID, strings.Join(errs, "; "))
	}
	return nil
}

// ScriptBinder produces hooks backed by a script file.
type ScriptBinder interface {
	BindScript(abilityID, path string) (Hooks, error)
}

// Build turns d into an Ability. binder may be nil when d has no Script.
func (d Definition) Build(roller *dice.Roller, binder ScriptBinder, scriptDir string) (*Ability, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	a := &Ability{ID: d.ID, Kind: Kind(d.Kind), Description: d.Description}
	if d.Script != "" {
		if binder == nil {
			return nil, fmt.Errorf("ability %q: script %q requires scripting to be enabled", d.ID, d.Script)
		}
		hooks, err := binder.BindScript(d.ID, filepath.Join(scriptDir, d.Script))
		if err != nil {
			return nil, fmt.Errorf("ability %q: %w", d.ID, err)
		}
		a.Hooks = hooks
		return a, nil
	}
	if d.OnAttack != nil {
		a.Hooks.OnAttack = d.OnAttack.Build(roller)
	}
	if d.OnDefend != nil {
		a.Hooks.OnDefend = d.OnDefend.Build(roller)
	}
	if d.AfterDamage != nil {
		a.Hooks.AfterDamage = d.AfterDamage.Build(roller)
	}
	return a, nil
}

// LoadDefinitions reads every .yaml file in dir as a Definition, sorted by filename.
//
// Postcondition: Returns all parsed definitions (may be empty) or a non-nil error.
func LoadDefinitions(dir string) ([]Definition, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	sort.Strings(paths)
	defs := make([]Definition, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var d Definition
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("parsing ability file %s: %w", path, err)
		}
		defs = append(defs, d)
	}
	return defs, nil
}

// BuildCatalog creates a Catalog of the built-in abilities extended with defs.
//
// Postcondition: Returns an error if any definition is invalid or collides
// with an already registered id.
func BuildCatalog(roller *dice.Roller, defs []Definition, binder ScriptBinder, scriptDir string) (*Catalog, error) {
	c := NewBuiltinCatalog(roller)
	for _, d := range defs {
		a, err := d.Build(roller, binder, scriptDir)
		if err != nil {
			return nil, err
		}
		if err := c.Register(a); err != nil {
			return nil, err
		}
	}
	return c, nil
}
