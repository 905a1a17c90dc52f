package postgres_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/duel/internal/game/combat"
	"github.com/cory-johannsen/duel/internal/storage/postgres"
	"github.com/cory-johannsen/duel/internal/testutil"
)

func setupRoundRepo(t *testing.T) (*postgres.RoundRepository, *testutil.PostgresContainer) {
	t.Helper()
	pc := testutil.NewMigratedPostgres(t)
	return postgres.NewRoundRepository(pc.Pool.DB()), pc
}

func makeOutcome(round int, label *string) combat.RoundOutcome {
	triggered := []string{}
	if label != nil {
		triggered = []string{*label}
	}
	return combat.RoundOutcome{
		RoundNumber:  round,
		AttackerID:   "p1",
		AttackerName: "Warrior",
		DefenderID:   "p2",
		DefenderName: "Mage",
		AbilityUsed:  label,
		Triggered:    triggered,
		BaseAttack:   18,
		AttackValue:  18,
		DamageDealt:  6,
		HealthAfter:  map[string]int{"p1": 100, "p2": 100 - 6*round},
	}
}

func TestRoundRepository_RecordAndList(t *testing.T) {
	repo, _ := setupRoundRepo(t)
	ctx := context.Background()
	sid := uuid.NewString()

	crit := "CriticalStrike"
	require.NoError(t, repo.Record(ctx, sid, makeOutcome(1, nil)))
	require.NoError(t, repo.Record(ctx, sid, makeOutcome(2, &crit)))
	require.NoError(t, repo.Record(ctx, uuid.NewString(), makeOutcome(1, nil)))

	recs, err := repo.ListBySession(ctx, sid)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, sid, recs[0].SessionID)
	assert.Equal(t, 1, recs[0].Outcome.RoundNumber)
	assert.Nil(t, recs[0].Outcome.AbilityUsed)
	assert.Empty(t, recs[0].Outcome.Triggered)

	got := recs[1].Outcome
	assert.Equal(t, makeOutcome(2, &crit), got)
	assert.False(t, recs[1].RecordedAt.IsZero())

	n, err := repo.CountBySession(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRoundRepository_Rounds(t *testing.T) {
	repo, _ := setupRoundRepo(t)
	ctx := context.Background()
	sid := uuid.NewString()

	require.NoError(t, repo.Record(ctx, sid, makeOutcome(2, nil)))
	require.NoError(t, repo.Record(ctx, sid, makeOutcome(1, nil)))

	outs, err := repo.Rounds(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, []combat.RoundOutcome{makeOutcome(1, nil), makeOutcome(2, nil)}, outs)
}

func TestRoundRepository_DuplicateRoundRejected(t *testing.T) {
	repo, _ := setupRoundRepo(t)
	ctx := context.Background()
	sid := uuid.NewString()

	require.NoError(t, repo.Record(ctx, sid, makeOutcome(1, nil)))
	assert.Error(t, repo.Record(ctx, sid, makeOutcome(1, nil)))
}

func TestRoundRepository_ListUnknownSession(t *testing.T) {
	repo, _ := setupRoundRepo(t)
	recs, err := repo.ListBySession(context.Background(), uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestMigrate_IdempotentAndReversible(t *testing.T) {
	pc := testutil.NewMigratedPostgres(t)

	res, err := postgres.Migrate(pc.Config.DSN(), testutil.MigrationsDir(), postgres.Up, 0)
	require.NoError(t, err)
	assert.True(t, res.NoChange)
	assert.Equal(t, uint(1), res.Version)

	res, err = postgres.Migrate(pc.Config.DSN(), testutil.MigrationsDir(), postgres.Down, 1)
	require.NoError(t, err)
	assert.False(t, res.Dirty)

	_, err = postgres.Migrate(pc.Config.DSN(), testutil.MigrationsDir(), "sideways", 0)
	assert.Error(t, err)
}

func TestProperty_RoundsListedInOrder(t *testing.T) {
	repo, _ := setupRoundRepo(t)
	ctx := context.Background()
	rapid.Check(t, func(rt *rapid.T) {
		sid := uuid.NewString()
		rounds := rapid.Permutation([]int{1, 2, 3, 4, 5}).Draw(rt, "order")
		for _, n := range rounds {
			if err := repo.Record(ctx, sid, makeOutcome(n, nil)); err != nil {
				rt.Fatalf("record round %d: %v", n, err)
			}
		}
		recs, err := repo.ListBySession(ctx, sid)
		if err != nil {
			rt.Fatalf("list: %v", err)
		}
		for i, rec := range recs {
			if rec.Outcome.RoundNumber != i+1 {
				rt.Fatalf("position %d holds round %d", i, rec.Outcome.RoundNumber)
			}
		}
	})
}
