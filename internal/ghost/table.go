package ghost

import (
	"sort"
	"sync"
	"time"

	"github.com/dino-runner/internal/domain"
)

// Ghost is the last known state of a remote player.
type Ghost struct {
	SocketID   domain.ConnID
	PlayerName string
	Score      float64
	IsJumping  bool
	UpdatedAt  time.Time
}

// Table holds render state for remote players. Each inbound update replaces
// the previous one for the same identity.
type Table struct {
	mu     sync.RWMutex
	self   domain.ConnID
	ghosts map[domain.ConnID]Ghost
	now    func() time.Time
}

// NewTable creates an empty table. Updates addressed from self are ignored.
func NewTable(self domain.ConnID) *Table {
	return &Table{
		self:   self,
		ghosts: make(map[domain.ConnID]Ghost),
		now:    time.Now,
	}
}

// SetSelf records the local identity once the server has assigned it.
func (t *Table) SetSelf(id domain.ConnID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.self = id
	delete(t.ghosts, id)
}

// Join records a remote player's name, creating a grounded ghost if none
// exists yet.
func (t *Table) Join(id domain.ConnID, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == t.self {
		return
	}
	g, ok := t.ghosts[id]
	if !ok {
		g = Ghost{SocketID: id}
	}
	g.PlayerName = name
	g.UpdatedAt = t.now()
	t.ghosts[id] = g
}

// Apply stores u as the latest state for its sender.
func (t *Table) Apply(u domain.GhostUpdate) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if u.SocketID == "" || u.SocketID == t.self {
		return false
	}
	g := t.ghosts[u.SocketID]
	g.SocketID = u.SocketID
	g.Score = u.Score
	g.IsJumping = u.IsJumping
	g.UpdatedAt = t.now()
	t.ghosts[u.SocketID] = g
	return true
}

// Remove drops the ghost for id.
func (t *Table) Remove(id domain.ConnID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.ghosts[id]; !ok {
		return false
	}
	delete(t.ghosts, id)
	return true
}

// Get returns the ghost for id.
func (t *Table) Get(id domain.ConnID) (Ghost, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	g, ok := t.ghosts[id]
	return g, ok
}

// Len returns the number of ghosts.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ghosts)
}

// IDs returns the ghost identities in sorted order.
func (t *Table) IDs() []domain.ConnID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]domain.ConnID, 0, len(t.ghosts))
	for id := range t.ghosts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
