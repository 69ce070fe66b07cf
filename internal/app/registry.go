package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Remote/internal/core"
	"github.com/dkeye/Remote/internal/domain"
	"github.com/dkeye/Remote/internal/protocol"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrNotNegotiation = errors.New("not a negotiation envelope")
)

type RegistryConfig struct {
	NewTransport core.TransportFactory
	Signal       Sender
	// NegotiationTimeout stops offers that stay unanswered. Zero disables it.
	NegotiationTimeout time.Duration
	Hooks              SessionHooks
	// OnStopped runs after a session leaves the registry.
	OnStopped func(domain.SessionID)
}

// SessionInfo is a read-only view of a registered session.
type SessionInfo struct {
	ID    string              `json:"id"`
	Role  domain.Role         `json:"role"`
	State domain.SessionState `json:"state"`
}

// Registry owns the live sessions of one endpoint, keyed by session id.
type Registry struct {
	cfg RegistryConfig

	mu       sync.RWMutex
	sessions map[domain.SessionID]*Session
}

func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		cfg:      cfg,
		sessions: make(map[domain.SessionID]*Session),
	}
}

// Subscribe replaces the session hooks and the stop callback. Call it
// before the registry handles its first envelope; sessions keep the hooks
// they were created with.
func (r *Registry) Subscribe(hooks SessionHooks, onStopped func(domain.SessionID)) {
	r.cfg.Hooks = hooks
	r.cfg.OnStopped = onStopped
}

func (r *Registry) newSession(id domain.SessionID, role domain.Role) *Session {
	hooks := r.cfg.Hooks
	hooks.onStopped = r.onSessionStopped
	return newSession(id, role, r.cfg.NewTransport, r.cfg.Signal, r.cfg.NegotiationTimeout, hooks)
}

// Start creates the offering session for id. A live session with the same
// id is stopped first, so its media is released before the new offer exists.
// A session that fails to start is not left registered. While it starts,
// the entry is an offerer and Route discards remote offers for it.
func (r *Registry) Start(id domain.SessionID, binding core.MediaBinding) (*Session, error) {
	s := r.newSession(id, domain.RoleOfferer)

	r.mu.Lock()
	old, replaced := r.sessions[id]
	r.sessions[id] = s
	r.mu.Unlock()

	if replaced {
		log.Info().Str("module", "app.registry").Str("sid", id.String()).Msg("replacing live session")
		old.Stop()
		if r.cfg.OnStopped != nil {
			r.cfg.OnStopped(id)
		}
	}

	if err := s.Start(binding); err != nil {
		log.Error().Err(err).Str("module", "app.registry").Str("sid", id.String()).Msg("session start failed")
		s.Stop()
		return nil, err
	}
	log.Info().Str("module", "app.registry").Str("sid", id.String()).Msg("session started")
	return s, nil
}

// Stop stops and removes the session for id. Unknown ids are a no-op.
func (r *Registry) Stop(id domain.SessionID) bool {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	s.Stop()
	return true
}

// Route hands a negotiation envelope to the session it names. Only an
// offer may create a session; anything else for an unknown id is dropped.
func (r *Registry) Route(env protocol.Envelope) error {
	id := env.Session()
	switch env.Type {
	case protocol.TypeOffer:
		s, created := r.getOrCreateAnswerer(id)
		if created {
			log.Info().Str("module", "app.registry").Str("sid", id.String()).Msg("session created for remote offer")
		}
		return s.HandleOffer(env.SDP)
	case protocol.TypeAnswer, protocol.TypeICECandidate:
		s, ok := r.Get(id)
		if !ok {
			log.Warn().Str("module", "app.registry").Str("sid", id.String()).Str("type", string(env.Type)).Msg("envelope for unknown session dropped")
			return fmt.Errorf("%s for %s: %w", env.Type, id, ErrUnknownSession)
		}
		if env.Type == protocol.TypeAnswer {
			return s.HandleAnswer(env.SDP)
		}
		return s.HandleCandidate(env.Candidate)
	default:
		return fmt.Errorf("%s: %w", env.Type, ErrNotNegotiation)
	}
}

func (r *Registry) getOrCreateAnswerer(id domain.SessionID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok && s.State() != domain.StateClosed {
		return s, false
	}
	s := r.newSession(id, domain.RoleAnswerer)
	r.sessions[id] = s
	return s, true
}

func (r *Registry) Get(id domain.SessionID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) Snapshot() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for id, s := range r.sessions {
		out = append(out, SessionInfo{ID: id.String(), Role: s.Role(), State: s.State()})
	}
	return out
}

// Close stops every session. Used on process shutdown.
func (r *Registry) Close() {
	r.mu.RLock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.RUnlock()
	for _, s := range all {
		s.Stop()
	}
	log.Info().Str("module", "app.registry").Int("sessions", len(all)).Msg("registry closed")
}

// onSessionStopped removes s if it is still the entry for its id.
func (r *Registry) onSessionStopped(s *Session) {
	r.mu.Lock()
	cur, ok := r.sessions[s.id]
	removed := ok && cur == s
	if removed {
		delete(r.sessions, s.id)
	}
	r.mu.Unlock()
	if !removed {
		return
	}
	log.Info().Str("module", "app.registry").Str("sid", s.id.String()).Msg("session removed")
	if r.cfg.OnStopped != nil {
		r.cfg.OnStopped(s.id)
	}
}
