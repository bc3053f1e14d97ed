package flow

import (
	"sync"
	"time"

	"github.com/SakuraBurst/rewards/internal/rewards/types"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type Backend interface {
	redeemer
	claimer
	sharer
}

// Session is the set of flows of one user.
type Session struct {
	Redemption *Redemption
	Claim      *Claim
	Share      *Share

	lastSeen time.Time
}

func (s *Session) discard() {
	s.Redemption.discard()
	s.Claim.discard()
	s.Share.discard()
}

// Registry keeps a Session per user and evicts the ones left untouched for
// longer than the idle TTL. Late responses for an evicted session are ignored.
type Registry struct {
	backend Backend
	clock   clockwork.Clock
	idleTTL time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewRegistry(backend Backend, clock clockwork.Clock, idleTTL time.Duration, logger *zap.Logger) *Registry {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Registry{
		backend:  backend,
		clock:    clock,
		idleTTL:  idleTTL,
		logger:   logger.Named("flow"),
		sessions: map[uuid.UUID]*Session{},
	}
}

// Get returns the actor's session, creating it on first use.
func (r *Registry) Get(actor types.Actor) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[actor.ID]
	if !ok {
		log := r.logger.With(zap.String("user", actor.ID.String()))
		s = &Session{
			Redemption: NewRedemption(actor, r.backend, r.clock, log),
			Claim:      NewClaim(actor, r.backend, log),
			Share:      NewShare(actor, r.backend, log),
		}
		r.sessions[actor.ID] = s
	}
	s.lastSeen = r.clock.Now()
	return s
}

// Drop discards the actor's session, as on logout.
func (r *Registry) Drop(userID uuid.UUID) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()
	if ok {
		s.discard()
	}
}

// Sweep evicts idle sessions and returns how many were removed.
func (r *Registry) Sweep() int {
	now := r.clock.Now()
	var evicted []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if now.Sub(s.lastSeen) >= r.idleTTL {
			evicted = append(evicted, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()
	for _, s := range evicted {
		s.discard()
	}
	return len(evicted)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
