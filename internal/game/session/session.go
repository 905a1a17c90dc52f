package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/duel/internal/game/ability"
	"github.com/cory-johannsen/duel/internal/game/character"
	"github.com/cory-johannsen/duel/internal/game/combat"
	"github.com/cory-johannsen/duel/internal/game/dice"
)

// SlotCount is the number of player slots in a duel.
const SlotCount = 2

// State is the coarse lifecycle state of a session.
type State string

const (
	StateAwaitingPlayers    State = "awaiting_players"
	StateBothConnected      State = "both_connected"
	StatePartiallyConnected State = "partially_connected"
	StateDestroyed          State = "destroyed"
)

// ArchetypeSource resolves character archetype ids.
type ArchetypeSource interface {
	Lookup(id string) (*character.Archetype, bool)
}

// AbilitySource resolves ability ids.
type AbilitySource interface {
	Lookup(id string) (*ability.Ability, bool)
}

// JoinRequest describes a player joining a session.
type JoinRequest struct {
	CharacterTypeID string
	// AbilityKind, when non-empty, must match the catalog kind of AbilityID.
	AbilityKind string
	AbilityID   string
	// PreferredSlot is 1 or 2; 0 means no preference.
	PreferredSlot int
}

type slot struct {
	playerID  string
	combatant *combat.Combatant
}

// Session is one duel between two players.
//
// Every exported method acquires mu, so all mutations of a session are
// serialized, including the ones triggered by its timers.
type Session struct {
	id     string
	deps   *deps
	expire func(s *Session, reason string)

	mu              sync.Mutex
	slots           [SlotCount]slot
	conns           map[string]string // connection id → player id
	joinTimer       *Timer
	disconnectTimer *Timer
	disconnectGen   int
	everAttached    bool
	round           int

	// pubMu orders per-round publication; published is the last round handed
	// to a publish callback.
	pubMu     sync.Mutex
	pubCond   *sync.Cond
	published int

	destroyed       bool
	createdAt       time.Time
}

func newSession(id string, d *deps, expire func(*Session, string)) *Session {
	s := &Session{
		id:        id,
		deps:      d,
		expire:    expire,
		conns:     make(map[string]string),
		createdAt: time.Now(),
	}
	for i := range s.slots {
		s.slots[i].playerID = uuid.NewString()
	}
	s.pubCond = sync.NewCond(&s.pubMu)
	return s
}

// startJoinDeadline arms the join deadline. Called once, after the session is
// reachable through its registry.
func (s *Session) startJoinDeadline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}
	s.joinTimer = NewTimer(s.deps.opts.JoinTimeout, s.onJoinDeadline)
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// GetAvailableSlots returns the unclaimed slot numbers in ascending order.
//
// Postcondition: Result is a subset of {1, 2} excluding every claimed slot.
func (s *Session) GetAvailableSlots() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.availableSlotsLocked()
}

func (s *Session) availableSlotsLocked() []int {
	out := make([]int, 0, SlotCount)
	for i, sl := range s.slots {
		if sl.combatant == nil {
			out = append(out, i+1)
		}
	}
	return out
}

// assignSlotLocked picks preferred when free, else the lowest free slot.
func (s *Session) assignSlotLocked(preferred int) (int, error) {
	if preferred >= 1 && preferred <= SlotCount && s.slots[preferred-1].combatant == nil {
		return preferred, nil
	}
	free := s.availableSlotsLocked()
	if len(free) == 0 {
		return 0, ErrNoSlotsAvailable
	}
	return free[0], nil
}

func (s *Session) joinedLocked() int {
	n := 0
	for _, sl := range s.slots {
		if sl.combatant != nil {
			n++
		}
	}
	return n
}

// AddPlayer validates req against the catalogs, claims a slot, and creates
// the player's combatant.
//
// Postcondition: Returns the slot's stable player id and slot number. When the
// second player joins, the join deadline is cancelled for good.
func (s *Session) AddPlayer(req JoinRequest) (string, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return "", 0, ErrSessionNotFound
	}
	if s.joinedLocked() >= SlotCount {
		return "", 0, ErrSessionFull
	}
	arch, ok := s.deps.characters.Lookup(req.CharacterTypeID)
	if !ok {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidCharacterType, req.CharacterTypeID)
	}
	ab, ok := s.deps.abilities.Lookup(req.AbilityID)
	if !ok {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidAbilityID, req.AbilityID)
	}
	if req.AbilityKind != "" && string(ab.Kind) != req.AbilityKind {
		return "", 0, fmt.Errorf("%w: %q is a %s ability, not %s", ErrInvalidAbilityID, req.AbilityID, ab.Kind, req.AbilityKind)
	}
	n, err := s.assignSlotLocked(req.PreferredSlot)
	if err != nil {
		return "", 0, err
	}

	sl := &s.slots[n-1]
	cbt, err := combat.NewCombatant(sl.playerID, arch, ab, s.deps.roller)
	if err != nil {
		return "", 0, fmt.Errorf("creating combatant: %w", err)
	}
	sl.combatant = cbt

	s.deps.logger.Info("player joined",
		zap.String("session", s.id),
		zap.String("player", sl.playerID),
		zap.Int("slot", n),
		zap.String("character", arch.ID),
		zap.String("ability", ab.ID),
		zap.Int("attack", cbt.Attack),
		zap.Int("defense", cbt.Defense),
	)

	if s.joinedLocked() == SlotCount {
		if s.joinTimer != nil {
			s.joinTimer.Stop()
			s.joinTimer = nil
		}
		// A player may have attached and left before the session filled.
		if s.everAttached && !s.bothConnectedLocked() {
			s.startDisconnectDeadlineLocked()
		}
	}
	return sl.playerID, n, nil
}

// HasPlayer reports whether playerID has joined this session.
func (s *Session) HasPlayer(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.combatantLocked(playerID) != nil
}

func (s *Session) combatantLocked(playerID string) *combat.Combatant {
	for _, sl := range s.slots {
		if sl.combatant != nil && sl.playerID == playerID {
			return sl.combatant
		}
	}
	return nil
}

// AttachSocket maps connID to playerID. Once both players are connected any
// running disconnect deadline is cancelled.
//
// Postcondition: Returns ErrPlayerNotRecognized if playerID has not joined.
func (s *Session) AttachSocket(connID, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return ErrSessionNotFound
	}
	if s.combatantLocked(playerID) == nil {
		return fmt.Errorf("%w: %q", ErrPlayerNotRecognized, playerID)
	}
	s.conns[connID] = playerID
	s.everAttached = true
	if s.bothConnectedLocked() && s.disconnectTimer != nil {
		s.disconnectTimer.Stop()
		s.disconnectTimer = nil
		s.deps.logger.Info("disconnect deadline cancelled", zap.String("session", s.id))
	}
	return nil
}

// DetachSocket removes connID. When the session is full and no longer both
// connected, a disconnect deadline starts unless one is already running.
//
// Postcondition: Returns true iff connID was attached.
func (s *Session) DetachSocket(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conns[connID]; !ok {
		return false
	}
	delete(s.conns, connID)
	if s.destroyed {
		return true
	}
	if s.joinedLocked() == SlotCount && !s.bothConnectedLocked() {
		s.startDisconnectDeadlineLocked()
	}
	return true
}

// startDisconnectDeadlineLocked arms the disconnect deadline unless one is
// already running.
func (s *Session) startDisconnectDeadlineLocked() {
	if s.disconnectTimer != nil {
		return
	}
	s.disconnectGen++
	gen := s.disconnectGen
	s.disconnectTimer = NewTimer(s.deps.opts.DisconnectTimeout, func() { s.onDisconnectDeadline(gen) })
	s.deps.logger.Info("disconnect deadline started",
		zap.String("session", s.id),
		zap.Duration("timeout", s.deps.opts.DisconnectTimeout),
	)
}

// BothConnected reports whether exactly two players have joined and each has
// a live connection.
func (s *Session) BothConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bothConnectedLocked()
}

func (s *Session) bothConnectedLocked() bool {
	if s.joinedLocked() != SlotCount {
		return false
	}
	live := make(map[string]bool, len(s.conns))
	for _, pid := range s.conns {
		live[pid] = true
	}
	for _, sl := range s.slots {
		if !live[sl.playerID] {
			return false
		}
	}
	return true
}

// PlayerForConn returns the player attached to connID.
func (s *Session) PlayerForConn(connID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pid, ok := s.conns[connID]
	return pid, ok
}

// Connections returns the ids of every attached connection.
func (s *Session) Connections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

// Round returns the number of resolved attacks.
func (s *Session) Round() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.destroyed:
		return StateDestroyed
	case s.joinedLocked() < SlotCount:
		return StateAwaitingPlayers
	case s.bothConnectedLocked():
		return StateBothConnected
	default:
		return StatePartiallyConnected
	}
}

// ResolveAttack resolves one attack from fromPlayer against toPlayer and
// advances the round counter.
//
// Postcondition: On error nothing was mutated. On success the round counter
// grew by exactly one and only the defender's health changed.
func (s *Session) ResolveAttack(fromPlayer, toPlayer string) (combat.RoundOutcome, error) {
	return s.ResolveAttackAndPublish(fromPlayer, toPlayer, nil)
}

// ResolveAttackAndPublish is ResolveAttack followed by publish(out), where
// publish calls run in round order even when attacks race: the callback for
// round N starts only after the one for round N-1 returned. publish runs
// without the session lock held, so it may call other Session methods. A nil
// publish only advances the ordering.
func (s *Session) ResolveAttackAndPublish(fromPlayer, toPlayer string, publish func(combat.RoundOutcome)) (combat.RoundOutcome, error) {
	out, err := s.resolveAttack(fromPlayer, toPlayer)
	if err != nil {
		return out, err
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	for s.published != out.RoundNumber-1 {
		s.pubCond.Wait()
	}
	if publish != nil {
		publish(out)
	}
	s.published = out.RoundNumber
	s.pubCond.Broadcast()
	return out, nil
}

func (s *Session) resolveAttack(fromPlayer, toPlayer string) (combat.RoundOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return combat.RoundOutcome{}, ErrSessionNotFound
	}
	attacker := s.combatantLocked(fromPlayer)
	defender := s.combatantLocked(toPlayer)
	if attacker == nil || defender == nil {
		return combat.RoundOutcome{}, fmt.Errorf("%w: %q → %q", ErrPlayersNotFound, fromPlayer, toPlayer)
	}
	if attacker == defender {
		return combat.RoundOutcome{}, ErrInvalidTarget
	}
	if attacker.IsDown() || defender.IsDown() {
		return combat.RoundOutcome{}, ErrDuelFinished
	}

	s.round++
	out := combat.ResolveAttack(s.round, attacker, defender)

	fields := []zap.Field{
		zap.String("session", s.id),
		zap.Int("round", out.RoundNumber),
		zap.String("attacker", out.AttackerID),
		zap.String("defender", out.DefenderID),
		zap.Int("damage", out.DamageDealt),
		zap.Int("defender_health", defender.Health),
	}
	if out.AbilityUsed != nil {
		fields = append(fields, zap.String("ability", *out.AbilityUsed))
	}
	s.deps.logger.Info("round resolved", fields...)
	return out, nil
}

func (s *Session) onJoinDeadline() {
	s.mu.Lock()
	if s.destroyed || s.joinedLocked() >= SlotCount {
		s.mu.Unlock()
		return
	}
	s.destroyLocked()
	s.mu.Unlock()
	s.expire(s, "join deadline elapsed")
}

func (s *Session) onDisconnectDeadline(gen int) {
	s.mu.Lock()
	if s.destroyed || gen != s.disconnectGen || s.disconnectTimer == nil || s.bothConnectedLocked() {
		s.mu.Unlock()
		return
	}
	s.destroyLocked()
	s.mu.Unlock()
	s.expire(s, "disconnect deadline elapsed")
}

// destroy marks the session destroyed and cancels its timers.
func (s *Session) destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyLocked()
}

func (s *Session) destroyLocked() {
	s.destroyed = true
	if s.joinTimer != nil {
		s.joinTimer.Stop()
		s.joinTimer = nil
	}
	if s.disconnectTimer != nil {
		s.disconnectTimer.Stop()
		s.disconnectTimer = nil
	}
}

// deps are the collaborators shared by every session of a Registry.
type deps struct {
	characters ArchetypeSource
	abilities  AbilitySource
	roller     *dice.Roller
	logger     *zap.Logger
	opts       Options
}
