// Package character defines the static character archetypes a player picks
// when joining a duel.
package character

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/duel/internal/game/dice"
)

// DefaultHealth is the starting health of an archetype that does not set one.
const DefaultHealth = 100

// Default stat ranges: attack uniform in [15,20], defense uniform in [10,15].
const (
	DefaultAttack  = "1d6+14"
	DefaultDefense = "1d6+9"
)

// Archetype is an immutable character template.
//
// Attack and Defense are dice expressions drawn once per combatant at join time.
type Archetype struct {
	ID      string   `yaml:"id" json:"id"`
	Name    string   `yaml:"name" json:"name"`
	Moves   []string `yaml:"moves" json:"moves"`
	Health  int      `yaml:"health" json:"health"`
	Attack  string   `yaml:"attack" json:"attack"`
	Defense string   `yaml:"defense" json:"defense"`
}

// applyDefaults fills zero-valued optional fields.
func (a *Archetype) applyDefaults() {
	if a.Name == "" {
		a.Name = a.ID
	}
	if a.Health == 0 {
		a.Health = DefaultHealth
	}
	if a.Attack == "" {
		a.Attack = DefaultAttack
	}
	if a.Defense == "" {
		a.Defense = DefaultDefense
	}
}

// Validate checks the archetype's invariants.
//
// Postcondition: Returns nil when ID is set, Health > 0, and both stat
// expressions parse with a non-negative minimum.
func (a Archetype) Validate() error {
	var errs []string
	if a.ID == "" {
		errs = append(errs, "id must not be empty")
	}
	if a.Health <= 0 {
		errs = append(errs, fmt.Sprintf("health must be > 0, got %d", a.Health))
	}
	for _, stat := range []struct{ name, expr string }{{"attack", a.Attack}, {"defense", a.Defense}} {
		name, expr := stat.name, stat.expr
		e, err := dice.Parse(expr)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		if e.Min() < 0 {
			errs = append(errs, fmt.Sprintf("%s %q can roll below zero", name, expr))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("archetype %q: %s", a.ID, strings.Join(errs, "; "))
	}
	return nil
}

// Stats are the combat stats drawn for one combatant.
type Stats struct {
	Attack  int
	Defense int
}

// RollStats draws attack and defense from the archetype's expressions.
//
// Precondition: a must have passed Validate; roller must be non-nil.
func (a Archetype) RollStats(roller *dice.Roller) (Stats, error) {
	atk, err := roller.RollExpr(a.Attack)
	if err != nil {
		return Stats{}, fmt.Errorf("rolling attack for %q: %w", a.ID, err)
	}
	def, err := roller.RollExpr(a.Defense)
	if err != nil {
		return Stats{}, fmt.Errorf("rolling defense for %q: %w", a.ID, err)
	}
	return Stats{Attack: atk.Total(), Defense: def.Total()}, nil
}
