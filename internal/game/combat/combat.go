// Package combat implements the duel's turn-resolution pipeline.
package combat

import (
	"fmt"

	"github.com/cory-johannsen/duel/internal/game/ability"
	"github.com/cory-johannsen/duel/internal/game/character"
	"github.com/cory-johannsen/duel/internal/game/dice"
)

// Combatant is a joined player's in-duel character state.
//
// Invariant: Health >= 0. Only ResolveAttack mutates Health.
type Combatant struct {
	PlayerID  string
	Archetype *character.Archetype
	Ability   *ability.Ability
	Health    int
	Attack    int
	Defense   int
}

// NewCombatant builds a combatant for playerID with stats drawn from arch.
//
// Precondition: arch and ab must be non-nil catalog entries; roller must be non-nil.
// Postcondition: Health == arch.Health; Attack and Defense are drawn from the
// archetype's stat expressions.
func NewCombatant(playerID string, arch *character.Archetype, ab *ability.Ability, roller *dice.Roller) (*Combatant, error) {
	if arch == nil || ab == nil {
		return nil, fmt.Errorf("combatant %q requires an archetype and an ability", playerID)
	}
	stats, err := arch.RollStats(roller)
	if err != nil {
		return nil, err
	}
	return &Combatant{
		PlayerID:  playerID,
		Archetype: arch,
		Ability:   ab,
		Health:    arch.Health,
		Attack:    stats.Attack,
		Defense:   stats.Defense,
	}, nil
}

// Name returns the archetype display name.
func (c *Combatant) Name() string { return c.Archetype.Name }

// IsDown reports whether the combatant has no health left.
func (c *Combatant) IsDown() bool { return c.Health <= 0 }

// RoundOutcome is the structured result of one resolved attack.
type RoundOutcome struct {
	RoundNumber  int    `json:"roundNumber"`
	AttackerID   string `json:"attackerId"`
	AttackerName string `json:"attackerName"`
	DefenderID   string `json:"defenderId"`
	DefenderName string `json:"defenderName"`
	// AbilityUsed joins the triggered ability labels, offense first; nil when none triggered.
	AbilityUsed *string `json:"abilityUsed"`
	// Triggered lists each hook trigger in pipeline order.
	Triggered   []string       `json:"triggered"`
	BaseAttack  int            `json:"baseAttack"`
	AttackValue int            `json:"attackValue"`
	DamageDealt int            `json:"damageDealt"`
	HealthAfter map[string]int `json:"healthAfter"`
}
