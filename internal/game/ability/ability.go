// Package ability defines the ability catalog: each ability is a tagged value
// carrying its kind and id, with hooks resolved by id at call time.
package ability

import (
	"fmt"
	"sort"
	"sync"
)

// Kind classifies an ability as offensive or defensive.
type Kind string

const (
	KindOffense Kind = "offense"
	KindDefense Kind = "defense"
)

// ParseKind converts s into a Kind.
//
// Postcondition: Returns an error when s is not "offense" or "defense".
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindOffense, KindDefense:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown ability kind %q", s)
	}
}

// Hook is a probabilistic transform over a single numeric value. A hook that
// returns its input unchanged did not trigger.
type Hook func(value int) int

// Hooks is the optional hook set of an ability. Nil fields are absent hooks.
type Hooks struct {
	// OnAttack transforms the attacker's base attack value.
	OnAttack Hook
	// OnDefend transforms the net damage about to be applied to the defender.
	OnDefend Hook
	// AfterDamage transforms the defender's health after damage was applied.
	AfterDamage Hook
}

// Ability is an immutable catalog entry shared by reference.
type Ability struct {
	ID          string
	Kind        Kind
	Description string
	Hooks       Hooks
}

// IsOffense reports whether a is an offense ability.
func (a *Ability) IsOffense() bool { return a != nil && a.Kind == KindOffense }

// IsDefense reports whether a is a defense ability.
func (a *Ability) IsDefense() bool { return a != nil && a.Kind == KindDefense }

// Catalog maps ability ids to abilities. All methods are safe for concurrent use.
type Catalog struct {
	mu        sync.RWMutex
	abilities map[string]*Ability
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{abilities: make(map[string]*Ability)}
}

// Register adds a to the catalog.
//
// Precondition: a must be non-nil with a non-empty ID and a valid Kind.
// Postcondition: Returns an error if the ID is already registered.
func (c *Catalog) Register(a *Ability) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("ability must have a non-empty id")
	}
	if _, err := ParseKind(string(a.Kind)); err != nil {
		return fmt.Errorf("ability %q: %w", a.ID, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.abilities[a.ID]; exists {
		return fmt.Errorf("ability %q already registered", a.ID)
	}
	c.abilities[a.ID] = a
	return nil
}

// Lookup returns the ability registered under id.
func (c *Catalog) Lookup(id string) (*Ability, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.abilities[id]
	return a, ok
}

// All returns every registered ability sorted by ID.
func (c *Catalog) All() []*Ability {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Ability, 0, len(c.abilities))
	for _, a := range c.abilities {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByKind returns the registered abilities of kind k sorted by ID.
func (c *Catalog) ByKind(k Kind) []*Ability {
	var out []*Ability
	for _, a := range c.All() {
		if a.Kind == k {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the number of registered abilities.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.abilities)
}
