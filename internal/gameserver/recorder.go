package gameserver

import (
	"context"

	"github.com/cory-johannsen/duel/internal/game/combat"
)

// RoundRecorder persists resolved rounds. It is called after the session lock
// is released; a failure is logged and never affects the duel.
type RoundRecorder interface {
	Record(ctx context.Context, sessionID string, out combat.RoundOutcome) error
}

// NopRecorder discards every round.
type NopRecorder struct{}

// Record implements RoundRecorder.
func (NopRecorder) Record(context.Context, string, combat.RoundOutcome) error { return nil }
