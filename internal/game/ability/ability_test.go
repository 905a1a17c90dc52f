package ability_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/duel/internal/game/ability"
	"github.com/cory-johannsen/duel/internal/game/dice"
)

// alwaysRoller triggers every chance check (Intn always returns 0).
func alwaysRoller() *dice.Roller {
	return dice.NewLoggedRoller(&dice.FixedSource{Values: []int{0}}, zap.NewNop())
}

// neverRoller fails every chance check below 100%.
func neverRoller() *dice.Roller {
	return dice.NewLoggedRoller(&dice.FixedSource{Values: []int{99}}, zap.NewNop())
}

func TestParseKind(t *testing.T) {
	k, err := ability.ParseKind("offense")
	require.NoError(t, err)
	assert.Equal(t, ability.KindOffense, k)
	_, err = ability.ParseKind("support")
	assert.Error(t, err)
}

func TestCatalog_RegisterAndLookup(t *testing.T) {
	c := ability.NewCatalog()
	require.NoError(t, c.Register(&ability.Ability{ID: "A", Kind: ability.KindOffense}))
	a, ok := c.Lookup("A")
	require.True(t, ok)
	assert.True(t, a.IsOffense())
	assert.False(t, a.IsDefense())

	_, ok = c.Lookup("missing")
	assert.False(t, ok)
}

func TestCatalog_RegisterRejectsDuplicatesAndBadKinds(t *testing.T) {
	c := ability.NewCatalog()
	require.NoError(t, c.Register(&ability.Ability{ID: "A", Kind: ability.KindDefense}))
	assert.Error(t, c.Register(&ability.Ability{ID: "A", Kind: ability.KindDefense}))
	assert.Error(t, c.Register(&ability.Ability{ID: "B", Kind: "support"}))
	assert.Error(t, c.Register(&ability.Ability{Kind: ability.KindDefense}))
	assert.Error(t, c.Register(nil))
}

func TestBuiltinCatalog_Contents(t *testing.T) {
	c := ability.NewBuiltinCatalog(neverRoller())
	assert.Equal(t, 5, c.Len())
	assert.Len(t, c.ByKind(ability.KindOffense), 2)
	assert.Len(t, c.ByKind(ability.KindDefense), 3)

	all := c.All()
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}
}

func TestBuiltins_AlwaysTrigger(t *testing.T) {
	c := ability.NewBuiltinCatalog(alwaysRoller())

	crit, _ := c.Lookup(ability.CriticalStrike)
	assert.Equal(t, 30, crit.Hooks.OnAttack(20))
	assert.Equal(t, 25, crit.Hooks.OnAttack(17), "1.5x floors")

	double, _ := c.Lookup(ability.DoubleStrike)
	assert.Equal(t, 40, double.Hooks.OnAttack(20))

	half, _ := c.Lookup(ability.HalfDamageOnDefend)
	assert.Equal(t, 10, half.Hooks.OnDefend(20))
	assert.Equal(t, 3, half.Hooks.OnDefend(7))

	evade, _ := c.Lookup(ability.Evade)
	assert.Equal(t, 0, evade.Hooks.OnDefend(20))

	heal, _ := c.Lookup(ability.HealUnder30)
	assert.Equal(t, 30, heal.Hooks.AfterDamage(25))
	assert.Equal(t, 30, heal.Hooks.AfterDamage(30), "no heal at threshold")
	assert.Equal(t, 0, heal.Hooks.AfterDamage(0), "no heal when knocked out")
	assert.Nil(t, heal.Hooks.OnDefend)
}

func TestBuiltins_NeverTrigger_Property(t *testing.T) {
	c := ability.NewBuiltinCatalog(neverRoller())
	rapid.Check(t, func(rt *rapid.T) {
		v := rapid.IntRange(0, 500).Draw(rt, "value")
		for _, a := range c.All() {
			h := a.Hooks
			if h.OnAttack != nil {
				assert.Equal(rt, v, h.OnAttack(v))
			}
			if h.OnDefend != nil {
				assert.Equal(rt, v, h.OnDefend(v))
			}
			if h.AfterDamage != nil {
				assert.Equal(rt, v, h.AfterDamage(v))
			}
		}
	})
}

func TestDefinition_Validate(t *testing.T) {
	half := 0.5
	cases := []struct {
		name string
		def  ability.Definition
		ok   bool
	}{
		{"valid offense", ability.Definition{ID: "X", Kind: "offense", OnAttack: &ability.HookSpec{Chance: 10, Add: 3}}, true},
		{"missing id", ability.Definition{Kind: "offense", OnAttack: &ability.HookSpec{Chance: 10, Add: 3}}, false},
		{"bad kind", ability.Definition{ID: "X", Kind: "buff", OnAttack: &ability.HookSpec{Chance: 10, Add: 3}}, false},
		{"no hooks", ability.Definition{ID: "X", Kind: "defense"}, false},
		{"offense with defend hook", ability.Definition{ID: "X", Kind: "offense", OnDefend: &ability.HookSpec{Chance: 10, Multiply: &half}}, false},
		{"defense with attack hook", ability.Definition{ID: "X", Kind: "defense", OnAttack: &ability.HookSpec{Chance: 10, Add: 1}}, false},
		{"chance out of range", ability.Definition{ID: "X", Kind: "defense", OnDefend: &ability.HookSpec{Chance: 101, Multiply: &half}}, false},
		{"noop spec", ability.Definition{ID: "X", Kind: "defense", OnDefend: &ability.HookSpec{Chance: 50}}, false},
		{"script and spec", ability.Definition{ID: "X", Kind: "defense", Script: "x.lua", OnDefend: &ability.HookSpec{Chance: 10, Multiply: &half}}, false},
		{"script only", ability.Definition{ID: "X", Kind: "defense", Script: "x.lua"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.def.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

type stubBinder struct {
	hooks ability.Hooks
	err   error
	paths []string
}

func (b *stubBinder) BindScript(id, path string) (ability.Hooks, error) {
	b.paths = append(b.paths, path)
	return b.hooks, b.err
}

func TestDefinition_Build_Script(t *testing.T) {
	b := &stubBinder{hooks: ability.Hooks{OnAttack: func(v int) int { return v + 1 }}}
	d := ability.Definition{ID: "Lua", Kind: "offense", Script: "lua.lua"}
	a, err := d.Build(neverRoller(), b, "/scripts")
	require.NoError(t, err)
	assert.Equal(t, 11, a.Hooks.OnAttack(10))
	assert.Equal(t, []string{filepath.Join("/scripts", "lua.lua")}, b.paths)

	_, err = d.Build(neverRoller(), nil, "/scripts")
	assert.Error(t, err, "scripted ability without a binder")

	b.err = errors.New("boom")
	_, err = d.Build(neverRoller(), b, "/scripts")
	assert.ErrorContains(t, err, "boom")
}

func TestLoadDefinitions_BuildCatalog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "berserk.yaml"), []byte(`
id: Berserk
kind: offense
description: Adds 8 attack one time in five.
on_attack:
  chance: 20
  add: 8
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	defs, err := ability.LoadDefinitions(dir)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "Berserk", defs[0].ID)

	c, err := ability.BuildCatalog(alwaysRoller(), defs, nil, "")
	require.NoError(t, err)
	assert.Equal(t, 6, c.Len())
	b, ok := c.Lookup("Berserk")
	require.True(t, ok)
	assert.Equal(t, 28, b.Hooks.OnAttack(20))
}

func TestBuildCatalog_RejectsBuiltinCollision(t *testing.T) {
	defs := []ability.Definition{{ID: ability.Evade, Kind: "defense", OnDefend: &ability.HookSpec{Chance: 1, Add: 1}}}
	_, err := ability.BuildCatalog(neverRoller(), defs, nil, "")
	assert.Error(t, err)
}

func TestLoadDefinitions_BadYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("id: [unterminated"), 0644))
	_, err := ability.LoadDefinitions(dir)
	assert.Error(t, err)
}
