// Package session holds the authoritative set of joined players.
//
// A Registry has a single owner: the game event loop. It carries no lock and
// must not be shared between goroutines.
package session

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dino-runner/internal/domain"
)

// Registry maps connection identity to player session.
type Registry struct {
	sessions map[domain.ConnID]*domain.PlayerSession
	maxName  int
	now      func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithMaxNameLength caps player names to n runes.
func WithMaxNameLength(n int) Option {
	return func(r *Registry) { r.maxName = n }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[domain.ConnID]*domain.PlayerSession),
		maxName:  32,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Join starts a run for connID. An empty name is ignored and reports false.
// Joining again on the same connection starts a fresh run in place.
func (r *Registry) Join(connID domain.ConnID, playerName string) (domain.PlayerSession, bool) {
	name := truncate(strings.TrimSpace(playerName), r.maxName)
	if name == "" || connID == "" {
		return domain.PlayerSession{}, false
	}

	now := r.now()
	if s, ok := r.sessions[connID]; ok {
		s.PlayerName = name
		s.Score = 0
		s.IsJumping = false
		s.JoinedAt = now
		s.LastUpdateTime = now
		return *s, true
	}

	s := &domain.PlayerSession{
		ConnID:         connID,
		PlayerID:       domain.PlayerID(uuid.NewString()),
		PlayerName:     name,
		JoinedAt:       now,
		LastUpdateTime: now,
	}
	r.sessions[connID] = s
	return *s, true
}

// Update records the latest client-reported state. It reports false when
// connID has no session.
func (r *Registry) Update(connID domain.ConnID, score float64, isJumping bool) (domain.PlayerSession, bool) {
	s, ok := r.sessions[connID]
	if !ok {
		return domain.PlayerSession{}, false
	}
	if math.IsNaN(score) || score < 0 {
		score = 0
	}
	s.Score = score
	s.IsJumping = isJumping
	s.LastUpdateTime = r.now()
	return *s, true
}

// Leave removes the session for connID and returns it. It reports false when
// there was nothing to remove, so callers announce a departure at most once.
func (r *Registry) Leave(connID domain.ConnID) (domain.PlayerSession, bool) {
	s, ok := r.sessions[connID]
	if !ok {
		return domain.PlayerSession{}, false
	}
	delete(r.sessions, connID)
	return *s, true
}

// Sweep is the per-tick liveness pass. Sessions are never expired here;
// lastUpdateTime is kept for inspection only.
func (r *Registry) Sweep(now time.Time) int {
	idle := 0
	for _, s := range r.sessions {
		if now.Sub(s.LastUpdateTime) > 5*time.Second {
			idle++
		}
	}
	return idle
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// Snapshot returns copies of all sessions ordered by join time.
func (r *Registry) Snapshot() []domain.PlayerSession {
	out := make([]domain.PlayerSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].ConnID < out[j].ConnID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
