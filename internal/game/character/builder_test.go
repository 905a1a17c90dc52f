package character_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/duel/internal/game/character"
	"github.com/cory-johannsen/duel/internal/game/dice"
)

func TestBuiltinRegistry(t *testing.T) {
	r := character.NewBuiltinRegistry()
	w, ok := r.Lookup("warrior")
	require.True(t, ok)
	assert.Equal(t, "Warrior", w.Name)
	assert.Equal(t, character.DefaultHealth, w.Health)
	assert.Equal(t, character.DefaultAttack, w.Attack)
	assert.NotEmpty(t, w.Moves)
	assert.Len(t, r.All(), 4)

	_, ok = r.Lookup("dragon")
	assert.False(t, ok)
}

func TestRegistry_RejectsDuplicateAndInvalid(t *testing.T) {
	r := character.NewRegistry()
	require.NoError(t, r.Register(&character.Archetype{ID: "a"}))
	assert.Error(t, r.Register(&character.Archetype{ID: "a"}))
	assert.Error(t, r.Register(&character.Archetype{}))
	assert.Error(t, r.Register(&character.Archetype{ID: "b", Attack: "1d6-9"}))
	assert.Error(t, r.Register(&character.Archetype{ID: "c", Defense: "lots"}))
	assert.Error(t, r.Register(&character.Archetype{ID: "d", Health: -1}))
	assert.Error(t, r.Register(nil))
}

func TestArchetype_Validate_StableErrorOrder(t *testing.T) {
	a := character.Archetype{ID: "x", Health: 10, Attack: "lots", Defense: "plenty"}
	first := a.Validate()
	require.Error(t, first)
	msg := first.Error()
	assert.Less(t, strings.Index(msg, "attack"), strings.Index(msg, "defense"))
	for i := 0; i < 50; i++ {
		assert.Equal(t, msg, a.Validate().Error())
	}
}

func TestRollStats_DefaultRanges_Property(t *testing.T) {
	arch, _ := character.NewBuiltinRegistry().Lookup("mage")
	roller := dice.NewLoggedRoller(dice.NewCryptoSource(), zap.NewNop())
	rapid.Check(t, func(rt *rapid.T) {
		s, err := arch.RollStats(roller)
		require.NoError(rt, err)
		assert.GreaterOrEqual(rt, s.Attack, 15)
		assert.LessOrEqual(rt, s.Attack, 20)
		assert.GreaterOrEqual(rt, s.Defense, 10)
		assert.LessOrEqual(rt, s.Defense, 15)
	})
}

func TestLoadArchetypes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "knight.yaml"), []byte(`
id: knight
name: Knight
moves: [Lance, Parry]
health: 120
attack: "20"
defense: 1d4+10
`), 0644))

	list, err := character.LoadArchetypes(dir)
	require.NoError(t, err)
	require.Len(t, list, 1)

	r := character.NewRegistry()
	require.NoError(t, r.Register(list[0]))
	k, ok := r.Lookup("knight")
	require.True(t, ok)
	assert.Equal(t, 120, k.Health)
	assert.Equal(t, []string{"Lance", "Parry"}, k.Moves)

	s, err := k.RollStats(dice.NewLoggedRoller(dice.NewCryptoSource(), zap.NewNop()))
	require.NoError(t, err)
	assert.Equal(t, 20, s.Attack)
}

func TestLoadArchetypes_BadYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.yaml"), []byte("moves: {"), 0644))
	_, err := character.LoadArchetypes(dir)
	assert.Error(t, err)
}
