package gameserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cory-johannsen/duel/internal/game/combat"
	"github.com/cory-johannsen/duel/internal/game/session"
)

// GatewayOptions tunes the websocket transport. Zero values take defaults.
type GatewayOptions struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	// RecordTimeout bounds one RoundRecorder call.
	RecordTimeout time.Duration
}

func (o GatewayOptions) withDefaults() GatewayOptions {
	if o.SendBuffer <= 0 {
		o.SendBuffer = DefaultSendBuffer
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4096
	}
	if o.RecordTimeout <= 0 {
		o.RecordTimeout = 2 * time.Second
	}
	return o
}

// pingPeriod must be shorter than PongWait.
func (o GatewayOptions) pingPeriod() time.Duration {
	return o.PongWait * 9 / 10
}

// Gateway translates realtime messages into session calls and broadcasts the
// results to every connection attached to the session.
type Gateway struct {
	registry *session.Registry
	recorder RoundRecorder
	logger   *zap.Logger
	opts     GatewayOptions
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewGateway creates a Gateway and subscribes it to session removals.
//
// Precondition: registry and logger must be non-nil. A nil recorder discards rounds.
func NewGateway(registry *session.Registry, recorder RoundRecorder, logger *zap.Logger, opts GatewayOptions) *Gateway {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	g := &Gateway{
		registry: registry,
		recorder: recorder,
		logger:   logger,
		opts:     opts.withDefaults(),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		conns:    make(map[string]*Conn),
	}
	registry.OnRemove(g.sessionRemoved)
	return g
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := NewConn(uuid.NewString(), g.opts.SendBuffer)
	g.mu.Lock()
	g.conns[c.ID()] = c
	g.mu.Unlock()
	g.logger.Info("connection opened",
		zap.String("conn", c.ID()),
		zap.String("remote", r.RemoteAddr),
	)

	go g.writeLoop(ws, c)
	g.readLoop(ws, c)
	g.disconnect(c)
}

func (g *Gateway) readLoop(ws *websocket.Conn, c *Conn) {
	ws.SetReadLimit(g.opts.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(g.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(g.opts.PongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug("websocket read error", zap.String("conn", c.ID()), zap.Error(err))
			}
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			g.sendError(c, "malformed message")
			continue
		}
		g.handle(c, env)
	}
}

// writeLoop drains c to the socket and keeps the connection alive with pings.
// It owns every write to ws.
func (g *Gateway) writeLoop(ws *websocket.Conn, c *Conn) {
	ticker := time.NewTicker(g.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.Events():
			_ = ws.SetWriteDeadline(time.Now().Add(g.opts.WriteWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				g.logger.Debug("websocket write failed", zap.String("conn", c.ID()), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(g.opts.WriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (g *Gateway) handle(c *Conn, env Envelope) {
	switch env.Type {
	case MsgJoin:
		var msg JoinMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			g.sendError(c, "malformed join message")
			return
		}
		g.handleJoin(c, msg)
	case MsgUseAbility:
		var msg UseAbilityMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			g.sendError(c, "malformed useAbility message")
			return
		}
		g.handleUseAbility(c, msg)
	default:
		g.sendError(c, "unknown message type "+env.Type)
	}
}

func (g *Gateway) handleJoin(c *Conn, msg JoinMessage) {
	s, ok := g.registry.Get(msg.SessionID)
	if !ok {
		g.sendError(c, session.ErrSessionNotFound.Error())
		return
	}
	if err := s.AttachSocket(c.ID(), msg.PlayerID); err != nil {
		g.sendError(c, err.Error())
		return
	}

	if prev := c.bind(s.ID()); prev != "" && prev != s.ID() {
		if old, ok := g.registry.Get(prev); ok && old.DetachSocket(c.ID()) {
			g.broadcastState(old)
		}
	}
	g.logger.Info("connection attached",
		zap.String("conn", c.ID()),
		zap.String("session", s.ID()),
		zap.String("player", msg.PlayerID),
	)
	g.broadcastState(s)
}

func (g *Gateway) handleUseAbility(c *Conn, msg UseAbilityMessage) {
	s, ok := g.registry.Get(msg.SessionID)
	if !ok {
		g.sendError(c, session.ErrSessionNotFound.Error())
		return
	}
	if pid, ok := s.PlayerForConn(c.ID()); !ok || pid != msg.FromPlayer {
		g.sendError(c, session.ErrPlayerNotRecognized.Error())
		return
	}

	// Concurrent attacks in one session publish in round order.
	out, err := s.ResolveAttackAndPublish(msg.FromPlayer, msg.ToPlayer, func(res combat.RoundOutcome) {
		g.broadcast(s, MsgRoundResult, res)
		g.broadcastState(s)
	})
	if err != nil {
		g.sendError(c, err.Error())
		return
	}
	g.record(s.ID(), out)
}

func (g *Gateway) record(sessionID string, out combat.RoundOutcome) {
	ctx, cancel := context.WithTimeout(context.Background(), g.opts.RecordTimeout)
	defer cancel()
	if err := g.recorder.Record(ctx, sessionID, out); err != nil {
		g.logger.Warn("recording round failed",
			zap.String("session", sessionID),
			zap.Int("round", out.RoundNumber),
			zap.Error(err),
		)
	}
}

func (g *Gateway) disconnect(c *Conn) {
	g.mu.Lock()
	delete(g.conns, c.ID())
	g.mu.Unlock()

	if sid := c.SessionID(); sid != "" {
		if s, ok := g.registry.Get(sid); ok && s.DetachSocket(c.ID()) {
			g.broadcastState(s)
		}
	}
	c.Close()
	g.logger.Info("connection closed", zap.String("conn", c.ID()))
}

// sessionRemoved tells every connection still bound to id that its session
// is gone and forgets the binding.
func (g *Gateway) sessionRemoved(id, reason string) {
	data, err := encode(MsgError, "session expired")
	if err != nil {
		return
	}
	g.mu.RLock()
	conns := make([]*Conn, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.RUnlock()

	for _, c := range conns {
		if !c.unbindFrom(id) {
			continue
		}
		g.push(c, data)
	}
	g.logger.Debug("gateway notified of session removal",
		zap.String("session", id),
		zap.String("reason", reason),
	)
}

func (g *Gateway) broadcastState(s *session.Session) {
	g.broadcast(s, MsgState, s.Serialize())
}

// broadcast encodes once and pushes to every connection attached to s.
func (g *Gateway) broadcast(s *session.Session, msgType string, payload any) {
	data, err := encode(msgType, payload)
	if err != nil {
		g.logger.Error("encoding broadcast", zap.String("type", msgType), zap.Error(err))
		return
	}
	for _, id := range s.Connections() {
		g.mu.RLock()
		c, ok := g.conns[id]
		g.mu.RUnlock()
		if ok {
			g.push(c, data)
		}
	}
}

func (g *Gateway) sendError(c *Conn, msg string) {
	data, err := encode(MsgError, msg)
	if err != nil {
		return
	}
	g.push(c, data)
}

func (g *Gateway) push(c *Conn, data []byte) {
	if err := c.Push(data); err != nil {
		g.logger.Warn("push to connection failed",
			zap.String("conn", c.ID()),
			zap.Error(err),
		)
	}
}

// ConnCount returns the number of open connections.
func (g *Gateway) ConnCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}

// Close closes every connection; their sockets close once drained.
func (g *Gateway) Close() {
	g.mu.RLock()
	conns := make([]*Conn, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.RUnlock()
	for _, c := range conns {
		c.Close()
	}
}
