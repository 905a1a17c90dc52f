package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/duel/internal/game/combat"
)

// RoundRecord is one persisted round outcome.
type RoundRecord struct {
	ID         int64
	SessionID  string
	Outcome    combat.RoundOutcome
	RecordedAt time.Time
}

// RoundRepository appends round outcomes to the rounds audit table. Rows are
// never read back into live session state.
type RoundRepository struct {
	db *pgxpool.Pool
}

// NewRoundRepository creates a RoundRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewRoundRepository(db *pgxpool.Pool) *RoundRepository {
	return &RoundRepository{db: db}
}

// Record appends out for sessionID.
//
// Precondition: out.RoundNumber > 0.
// Postcondition: Returns an error if the (session, round) pair already exists.
func (r *RoundRepository) Record(ctx context.Context, sessionID string, out combat.RoundOutcome) error {
	triggered := out.Triggered
	if triggered == nil {
		triggered = []string{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO rounds (
			session_id, round_number, attacker_id, attacker_name, defender_id, defender_name,
			ability_used, triggered, base_attack, attack_value, damage_dealt, health_after
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sessionID, out.RoundNumber, out.AttackerID, out.AttackerName, out.DefenderID, out.DefenderName,
		out.AbilityUsed, triggered, out.BaseAttack, out.AttackValue, out.DamageDealt, out.HealthAfter,
	)
	if err != nil {
		return fmt.Errorf("recording round %d of session %s: %w", out.RoundNumber, sessionID, err)
	}
	return nil
}

// ListBySession returns every recorded round of sessionID in round order.
//
// Postcondition: Returns an empty slice when nothing was recorded.
func (r *RoundRepository) ListBySession(ctx context.Context, sessionID string) ([]RoundRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, round_number, attacker_id, attacker_name, defender_id, defender_name,
		        ability_used, triggered, base_attack, attack_value, damage_dealt, health_after, recorded_at
		 FROM rounds
		 WHERE session_id = $1
		 ORDER BY round_number`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing rounds of session %s: %w", sessionID, err)
	}

	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (RoundRecord, error) {
		var rec RoundRecord
		o := &rec.Outcome
		err := row.Scan(&rec.ID, &rec.SessionID, &o.RoundNumber, &o.AttackerID, &o.AttackerName,
			&o.DefenderID, &o.DefenderName, &o.AbilityUsed, &o.Triggered, &o.BaseAttack,
			&o.AttackValue, &o.DamageDealt, &o.HealthAfter, &rec.RecordedAt)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning rounds of session %s: %w", sessionID, err)
	}
	return recs, nil
}

// Rounds returns the recorded outcomes of sessionID in round order.
func (r *RoundRepository) Rounds(ctx context.Context, sessionID string) ([]combat.RoundOutcome, error) {
	recs, err := r.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	outs := make([]combat.RoundOutcome, 0, len(recs))
	for _, rec := range recs {
		outs = append(outs, rec.Outcome)
	}
	return outs, nil
}

// CountBySession returns the number of rounds recorded for sessionID.
func (r *RoundRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM rounds WHERE session_id = $1`, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting rounds of session %s: %w", sessionID, err)
	}
	return n, nil
}
