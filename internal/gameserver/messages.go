package gameserver

import "encoding/json"

// Realtime message types.
const (
	MsgJoin        = "join"
	MsgUseAbility  = "useAbility"
	MsgState       = "state"
	MsgRoundResult = "roundResult"
	MsgError       = "error"
)

// Envelope is the wire frame of every realtime message.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// outbound is an encoded server event. An error event's Data is the message
// string itself.
type outbound struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// JoinMessage attaches the sending connection to a joined player.
type JoinMessage struct {
	SessionID string `json:"sessionId"`
	PlayerID  string `json:"playerId"`
}

// UseAbilityMessage requests one attack from FromPlayer at ToPlayer.
type UseAbilityMessage struct {
	SessionID  string `json:"sessionId"`
	FromPlayer string `json:"fromPlayer"`
	ToPlayer   string `json:"toPlayer"`
}

func encode(msgType string, data any) ([]byte, error) {
	return json.Marshal(outbound{Type: msgType, Data: data})
}
