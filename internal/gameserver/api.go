package gameserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/cory-johannsen/duel/internal/game/ability"
	"github.com/cory-johannsen/duel/internal/game/character"
	"github.com/cory-johannsen/duel/internal/game/combat"
	"github.com/cory-johannsen/duel/internal/game/session"
	"github.com/cory-johannsen/duel/internal/observability"
)

// ArchetypeLister lists the character catalog.
type ArchetypeLister interface {
	All() []*character.Archetype
}

// AbilityLister lists the ability catalog.
type AbilityLister interface {
	All() []*ability.Ability
}

// RoundHistory reads persisted rounds back for inspection.
type RoundHistory interface {
	Rounds(ctx context.Context, sessionID string) ([]combat.RoundOutcome, error)
}

// API serves the request/response endpoints.
type API struct {
	Registry   *session.Registry
	Characters ArchetypeLister
	Abilities  AbilityLister
	// History is optional; nil disables the rounds endpoint.
	History RoundHistory
	// PublicURL is the base of join links; empty derives it from the request.
	PublicURL string
	Logger    *zap.Logger
}

// CreateSessionResponse is returned by POST /api/sessions.
type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
	JoinURL   string `json:"joinUrl"`
}

// SlotsResponse is returned by GET /api/sessions/{id}/slots.
type SlotsResponse struct {
	AvailableSlots []int `json:"availableSlots"`
}

// RoundsResponse is returned by GET /api/sessions/{id}/rounds.
type RoundsResponse struct {
	Rounds []combat.RoundOutcome `json:"rounds"`
}

// JoinRequest is the body of POST /api/sessions/{id}/join.
type JoinRequest struct {
	CharacterTypeID string `json:"characterTypeId"`
	AbilityKind     string `json:"abilityKind"`
	AbilityID       string `json:"abilityId"`
	PreferredSlot   *int   `json:"preferredSlot,omitempty"`
}

// JoinResponse is returned by a successful join.
type JoinResponse struct {
	PlayerID string `json:"playerId"`
	Slot     int    `json:"slot"`
}

// AbilityView is the catalog entry of one ability.
type AbilityView struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

// CatalogResponse is returned by GET /api/catalog.
type CatalogResponse struct {
	Characters []*character.Archetype `json:"characters"`
	Abilities  []AbilityView          `json:"abilities"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter mounts the API, the realtime gateway at /ws, and access logging.
//
// Precondition: api.Registry, api.Characters, api.Abilities, api.Logger and gw must be non-nil.
func NewRouter(api *API, gw http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(observability.AccessLog(api.Logger))

	r.HandleFunc("/healthz", api.health).Methods(http.MethodGet)
	r.Handle("/ws", gw).Methods(http.MethodGet)

	s := r.PathPrefix("/api").Subrouter()
	s.HandleFunc("/catalog", api.catalog).Methods(http.MethodGet)
	s.HandleFunc("/sessions", api.createSession).Methods(http.MethodPost)
	s.HandleFunc("/sessions/{id}", api.getSession).Methods(http.MethodGet)
	s.HandleFunc("/sessions/{id}", api.deleteSession).Methods(http.MethodDelete)
	s.HandleFunc("/sessions/{id}/slots", api.slots).Methods(http.MethodGet)
	s.HandleFunc("/sessions/{id}/join", api.join).Methods(http.MethodPost)
	s.HandleFunc("/sessions/{id}/rounds", api.rounds).Methods(http.MethodGet)
	return r
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": a.Registry.Len()})
}

func (a *API) catalog(w http.ResponseWriter, _ *http.Request) {
	resp := CatalogResponse{Characters: a.Characters.All()}
	for _, ab := range a.Abilities.All() {
		resp.Abilities = append(resp.Abilities, AbilityView{ID: ab.ID, Kind: string(ab.Kind), Description: ab.Description})
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	id := a.Registry.Create()
	a.writeJSON(w, http.StatusCreated, CreateSessionResponse{
		SessionID: id,
		JoinURL:   fmt.Sprintf("%s/?session=%s", a.baseURL(r), id),
	})
}

func (a *API) getSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.Registry.Get(mux.Vars(r)["id"])
	if !ok {
		a.writeError(w, session.ErrSessionNotFound)
		return
	}
	a.writeJSON(w, http.StatusOK, s.Serialize())
}

func (a *API) deleteSession(w http.ResponseWriter, r *http.Request) {
	if !a.Registry.Delete(mux.Vars(r)["id"]) {
		a.writeError(w, session.ErrSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) slots(w http.ResponseWriter, r *http.Request) {
	s, ok := a.Registry.Get(mux.Vars(r)["id"])
	if !ok {
		a.writeError(w, session.ErrSessionNotFound)
		return
	}
	a.writeJSON(w, http.StatusOK, SlotsResponse{AvailableSlots: s.GetAvailableSlots()})
}

func (a *API) join(w http.ResponseWriter, r *http.Request) {
	s, ok := a.Registry.Get(mux.Vars(r)["id"])
	if !ok {
		a.writeError(w, session.ErrSessionNotFound)
		return
	}
	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed join request"})
		return
	}
	jr := session.JoinRequest{
		CharacterTypeID: req.CharacterTypeID,
		AbilityKind:     req.AbilityKind,
		AbilityID:       req.AbilityID,
	}
	if req.PreferredSlot != nil {
		jr.PreferredSlot = *req.PreferredSlot
	}
	pid, slot, err := s.AddPlayer(jr)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, JoinResponse{PlayerID: pid, Slot: slot})
}

func (a *API) rounds(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		a.writeJSON(w, http.StatusNotFound, errorResponse{Error: "round history is disabled"})
		return
	}
	outs, err := a.History.Rounds(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.writeError(w, err)
		return
	}
	if outs == nil {
		outs = []combat.RoundOutcome{}
	}
	a.writeJSON(w, http.StatusOK, RoundsResponse{Rounds: outs})
}

func (a *API) baseURL(r *http.Request) string {
	if a.PublicURL != "" {
		return strings.TrimRight(a.PublicURL, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

// StatusFor maps a session error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSessionFull),
		errors.Is(err, session.ErrNoSlotsAvailable),
		errors.Is(err, session.ErrInvalidCharacterType),
		errors.Is(err, session.ErrInvalidAbilityID),
		errors.Is(err, session.ErrPlayerNotRecognized),
		errors.Is(err, session.ErrPlayersNotFound),
		errors.Is(err, session.ErrInvalidTarget),
		errors.Is(err, session.ErrDuelFinished):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		a.Logger.Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	a.writeJSON(w, status, errorResponse{Error: msg})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.Logger.Debug("writing response", zap.Error(err))
	}
}
