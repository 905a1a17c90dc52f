package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/duel/internal/game/dice"
)

// Default lifecycle deadlines.
const (
	DefaultJoinTimeout       = 60 * time.Second
	DefaultDisconnectTimeout = 60 * time.Second
)

// Options configures session deadlines.
type Options struct {
	// JoinTimeout bounds how long a session may wait for its second player.
	JoinTimeout time.Duration
	// DisconnectTimeout bounds how long a full session may stay under-connected.
	DisconnectTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.JoinTimeout <= 0 {
		o.JoinTimeout = DefaultJoinTimeout
	}
	if o.DisconnectTimeout <= 0 {
		o.DisconnectTimeout = DefaultDisconnectTimeout
	}
	return o
}

// RemoveFunc is notified after a session leaves the registry.
type RemoveFunc func(id, reason string)

// Registry owns every live session. All methods are safe for concurrent use.
type Registry struct {
	deps *deps

	mu       sync.RWMutex
	sessions map[string]*Session
	onRemove []RemoveFunc
}

// NewRegistry creates an empty Registry whose sessions resolve joins against
// characters and abilities and draw stats from roller.
//
// Precondition: all arguments must be non-nil.
func NewRegistry(characters ArchetypeSource, abilities AbilitySource, roller *dice.Roller, logger *zap.Logger, opts Options) *Registry {
	return &Registry{
		deps: &deps{
			characters: characters,
			abilities:  abilities,
			roller:     roller,
			logger:     logger,
			opts:       opts.withDefaults(),
		},
		sessions: make(map[string]*Session),
	}
}

// OnRemove registers fn to be called whenever a session is removed.
func (r *Registry) OnRemove(fn RemoveFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRemove = append(r.onRemove, fn)
}

// Create allocates a session with a fresh id and starts its join deadline.
func (r *Registry) Create() string {
	id := uuid.NewString()
	s := newSession(id, r.deps, r.expire)

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	s.startJoinDeadline()

	r.deps.logger.Info("session created",
		zap.String("session", id),
		zap.Duration("join_timeout", r.deps.opts.JoinTimeout),
	)
	return id
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Delete removes and destroys the session. It is idempotent.
//
// Postcondition: Returns true only for the call that removed the session.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.destroy()
	r.removed(id, "deleted")
	return true
}

// expire removes s on behalf of one of its deadlines. A session already
// replaced or removed is left alone.
func (r *Registry) expire(s *Session, reason string) {
	r.mu.Lock()
	cur, ok := r.sessions[s.id]
	if ok && cur == s {
		delete(r.sessions, s.id)
	}
	r.mu.Unlock()
	if !ok || cur != s {
		return
	}
	r.removed(s.id, reason)
}

func (r *Registry) removed(id, reason string) {
	r.deps.logger.Info("session removed",
		zap.String("session", id),
		zap.String("reason", reason),
	)
	r.mu.RLock()
	hooks := append([]RemoveFunc(nil), r.onRemove...)
	r.mu.RUnlock()
	for _, fn := range hooks {
		fn(id, reason)
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs returns the ids of every live session, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Close destroys every session, cancelling all timers.
func (r *Registry) Close() {
	for _, id := range r.IDs() {
		r.Delete(id)
	}
}
