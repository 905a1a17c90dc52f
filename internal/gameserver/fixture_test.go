package gameserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/duel/internal/game/ability"
	"github.com/cory-johannsen/duel/internal/game/character"
	"github.com/cory-johannsen/duel/internal/game/combat"
	"github.com/cory-johannsen/duel/internal/game/dice"
	"github.com/cory-johannsen/duel/internal/game/session"
	"github.com/cory-johannsen/duel/internal/gameserver"
)

type fakeRecorder struct {
	mu     sync.Mutex
	rounds map[string][]combat.RoundOutcome
	err    error
}

func (f *fakeRecorder) Record(_ context.Context, sessionID string, out combat.RoundOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.rounds == nil {
		f.rounds = make(map[string][]combat.RoundOutcome)
	}
	f.rounds[sessionID] = append(f.rounds[sessionID], out)
	return nil
}

func (f *fakeRecorder) Rounds(_ context.Context, sessionID string) ([]combat.RoundOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]combat.RoundOutcome(nil), f.rounds[sessionID]...), nil
}

func (f *fakeRecorder) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeRecorder) count(sessionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rounds[sessionID])
}

type fixture struct {
	registry *session.Registry
	gateway  *gameserver.Gateway
	recorder *fakeRecorder
	srv      *httptest.Server
	logs     *observer.ObservedLogs
}

// fixtureOption adjusts the API before the server starts.
type fixtureOption func(api *gameserver.API, rec *fakeRecorder)

// withHistory serves round history from the fixture's recorder.
func withHistory() fixtureOption {
	return func(api *gameserver.API, rec *fakeRecorder) { api.History = rec }
}

func newFixture(t *testing.T, opts session.Options, fopts ...fixtureOption) *fixture {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	chars := character.NewRegistry()
	require.NoError(t, chars.Register(&character.Archetype{ID: "warrior", Name: "Warrior", Moves: []string{"Slash"}, Attack: "20", Defense: "10"}))
	abilities := ability.NewCatalog()
	require.NoError(t, abilities.Register(&ability.Ability{ID: "Inert", Kind: ability.KindOffense, Hooks: ability.Hooks{OnAttack: func(v int) int { return v }}}))
	require.NoError(t, abilities.Register(&ability.Ability{ID: "Crit", Kind: ability.KindOffense, Description: "always crits", Hooks: ability.Hooks{OnAttack: func(v int) int { return v * 3 / 2 }}}))
	require.NoError(t, abilities.Register(&ability.Ability{ID: "Ward", Kind: ability.KindDefense, Hooks: ability.Hooks{OnDefend: func(v int) int { return v / 2 }}}))

	roller := dice.NewLoggedRoller(dice.NewCryptoSource(), logger)
	reg := session.NewRegistry(chars, abilities, roller, logger, opts)
	rec := &fakeRecorder{}
	gw := gameserver.NewGateway(reg, rec, logger, gameserver.GatewayOptions{})
	api := &gameserver.API{
		Registry:   reg,
		Characters: chars,
		Abilities:  abilities,
		PublicURL:  "https://duel.example.com/",
		Logger:     logger,
	}
	for _, o := range fopts {
		o(api, rec)
	}
	srv := httptest.NewServer(gameserver.NewRouter(api, gw))
	t.Cleanup(func() {
		gw.Close()
		srv.Close()
		reg.Close()
	})
	return &fixture{registry: reg, gateway: gw, recorder: rec, srv: srv, logs: logs}
}

func longOpts() session.Options {
	return session.Options{JoinTimeout: time.Hour, DisconnectTimeout: time.Hour}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (f *fixture) createSession(t *testing.T) string {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out gameserver.CreateSessionResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out.SessionID
}

func (f *fixture) join(t *testing.T, sessionID, abilityID string) string {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/api/sessions/"+sessionID+"/join", gameserver.JoinRequest{
		CharacterTypeID: "warrior",
		AbilityID:       abilityID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out gameserver.JoinResponse
	require.NoError(t, json.Unmarshal(body, &out))
	return out.PlayerID
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func (f *fixture) dial(t *testing.T) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(msgType string, data any) {
	c.t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteJSON(gameserver.Envelope{Type: msgType, Data: raw}))
}

// next reads the next envelope of msgType, skipping others.
func (c *wsClient) next(msgType string) json.RawMessage {
	c.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(c.t, c.conn.SetReadDeadline(deadline))
		var env gameserver.Envelope
		require.NoError(c.t, c.conn.ReadJSON(&env), "waiting for %s", msgType)
		if env.Type == msgType {
			return env.Data
		}
	}
}

func (c *wsClient) nextState() session.Snapshot {
	c.t.Helper()
	var snap session.Snapshot
	require.NoError(c.t, json.Unmarshal(c.next(gameserver.MsgState), &snap))
	return snap
}

// stateWhere reads state events until pred holds.
func (c *wsClient) stateWhere(pred func(session.Snapshot) bool) session.Snapshot {
	c.t.Helper()
	for {
		if snap := c.nextState(); pred(snap) {
			return snap
		}
	}
}

func (c *wsClient) nextError() string {
	c.t.Helper()
	var msg string
	require.NoError(c.t, json.Unmarshal(c.next(gameserver.MsgError), &msg))
	return msg
}
