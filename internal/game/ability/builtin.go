package ability

import "github.com/cory-johannsen/duel/internal/game/dice"

// Built-in ability ids.
const (
	CriticalStrike     = "CriticalStrike"
	DoubleStrike       = "DoubleStrike"
	HalfDamageOnDefend = "HalfDamageOnDefend"
	Evade              = "Evade"
	HealUnder30        = "HealUnder30"
)

func ptr[T any](v T) *T { return &v }

// builtinDefinitions are always present in every catalog.
var builtinDefinitions = []Definition{
	{
		ID:          CriticalStrike,
		Kind:        string(KindOffense),
		Description: "25% chance to strike for 1.5x attack.",
		OnAttack:    &HookSpec{Chance: 25, Multiply: ptr(1.5)},
	},
	{
		ID:          DoubleStrike,
		Kind:        string(KindOffense),
		Description: "15% chance to strike for double attack.",
		OnAttack:    &HookSpec{Chance: 15, Multiply: ptr(2.0)},
	},
	{
		ID:          HalfDamageOnDefend,
		Kind:        string(KindDefense),
		Description: "30% chance to halve incoming damage.",
		OnDefend:    &HookSpec{Chance: 30, Multiply: ptr(0.5)},
	},
	{
		ID:          Evade,
		Kind:        string(KindDefense),
		Description: "10% chance to avoid all damage.",
		OnDefend:    &HookSpec{Chance: 10, Multiply: ptr(0.0)},
	},
	{
		ID:          HealUnder30,
		Kind:        string(KindDefense),
		Description: "While standing below 30 health, 50% chance to recover 5 after each hit.",
		// Above 0 keeps a knocked-out combatant down.
		AfterDamage: &HookSpec{Chance: 50, Add: 5, Below: ptr(30), Above: ptr(0)},
	},
}

// Builtins returns the built-in abilities with hooks drawing from roller.
//
// Precondition: roller must be non-nil.
func Builtins(roller *dice.Roller) []*Ability {
	out := make([]*Ability, 0, len(builtinDefinitions))
	for _, d := range builtinDefinitions {
		a, err := d.Build(roller, nil, "")
		if err != nil {
			panic("ability: invalid builtin definition: " + err.Error())
		}
		out = append(out, a)
	}
	return out
}

// NewBuiltinCatalog returns a Catalog holding only the built-in abilities.
func NewBuiltinCatalog(roller *dice.Roller) *Catalog {
	c := NewCatalog()
	for _, a := range Builtins(roller) {
		if err := c.Register(a); err != nil {
			panic("ability: " + err.Error())
		}
	}
	return c
}
