// Package session implements duel sessions: slot assignment, connection
// tracking, join and disconnect deadlines, and serialized combat resolution,
// plus the registry that owns them.
package session

import "errors"

var (
	// ErrSessionNotFound is returned when a session id is unknown or the session was destroyed.
	ErrSessionNotFound = errors.New("session not found")
	// ErrPlayerNotRecognized is returned for a player id that has not joined the session.
	ErrPlayerNotRecognized = errors.New("player not recognized")
	// ErrSessionFull is returned when both slots already hold players.
	ErrSessionFull = errors.New("session is full")
	// ErrNoSlotsAvailable is returned when no slot can be claimed.
	ErrNoSlotsAvailable = errors.New("no slots available")
	// ErrInvalidCharacterType is returned for an unknown archetype id.
	ErrInvalidCharacterType = errors.New("invalid character type")
	// ErrInvalidAbilityID is returned for an unknown ability id or a mismatched ability kind.
	ErrInvalidAbilityID = errors.New("invalid ability id")
	// ErrPlayersNotFound is returned when an attack references ids absent from the session.
	ErrPlayersNotFound = errors.New("players not found")
	// ErrInvalidTarget is returned when a player attacks themselves.
	ErrInvalidTarget = errors.New("a player cannot attack themselves")
	// ErrDuelFinished is returned for attacks once either combatant is down.
	ErrDuelFinished = errors.New("duel is already finished")
)
