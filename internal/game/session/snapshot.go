package session

// PlayerView is the broadcast view of one joined player.
type PlayerView struct {
	ID           string   `json:"id"`
	Slot         int      `json:"slot"`
	Name         string   `json:"name"`
	CharacterID  string   `json:"characterId"`
	Health       int      `json:"health"`
	AttackPower  int      `json:"attackPower"`
	DefensePower int      `json:"defensePower"`
	AbilityID    string   `json:"abilityId"`
	AbilityKind  string   `json:"abilityKind"`
	Moves        []string `json:"moves"`
	Connected    bool     `json:"connected"`
}

// Snapshot is the full session state sent with every state broadcast.
type Snapshot struct {
	SessionID     string       `json:"sessionId"`
	Players       []PlayerView `json:"players"`
	BothConnected bool         `json:"bothConnected"`
	Round         int          `json:"round"`
	State         State        `json:"state"`
	// WinnerID is set once a combatant is knocked out.
	WinnerID string `json:"winnerId,omitempty"`
}

// Serialize captures the session state, players ordered by slot.
func (s *Session) Serialize() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := make(map[string]bool, len(s.conns))
	for _, pid := range s.conns {
		live[pid] = true
	}

	snap := Snapshot{
		SessionID:     s.id,
		Players:       make([]PlayerView, 0, SlotCount),
		BothConnected: s.bothConnectedLocked(),
		Round:         s.round,
	}
	var down, standing []string
	for i, sl := range s.slots {
		c := sl.combatant
		if c == nil {
			continue
		}
		snap.Players = append(snap.Players, PlayerView{
			ID:           sl.playerID,
			Slot:         i + 1,
			Name:         c.Name(),
			CharacterID:  c.Archetype.ID,
			Health:       c.Health,
			AttackPower:  c.Attack,
			DefensePower: c.Defense,
			AbilityID:    c.Ability.ID,
			AbilityKind:  string(c.Ability.Kind),
			Moves:        append([]string(nil), c.Archetype.Moves...),
			Connected:    live[sl.playerID],
		})
		if c.IsDown() {
			down = append(down, sl.playerID)
		} else {
			standing = append(standing, sl.playerID)
		}
	}
	if len(down) == 1 && len(standing) == 1 {
		snap.WinnerID = standing[0]
	}

	switch {
	case s.destroyed:
		snap.State = StateDestroyed
	case len(snap.Players) < SlotCount:
		snap.State = StateAwaitingPlayers
	case snap.BothConnected:
		snap.State = StateBothConnected
	default:
		snap.State = StatePartiallyConnected
	}
	return snap
}
