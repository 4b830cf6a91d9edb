package roster

import (
	"errors"
	"sort"
	"sync"

	"github.com/picis-sec/picis/approval"
)

// ErrNotFound is returned when a principal is not in the roster.
var ErrNotFound = errors.New("principal not found")

// Principal is a known human user of the system.
type Principal struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    Role   `json:"role"`
	GroupID string `json:"group_id,omitempty"`
	Active  bool   `json:"active"`
}

// Roster is an in-memory principal directory. It implements
// approval.Directory: supervisor pools are the active principals whose role
// supervises the category, and the responsible pool is the active
// responsible approvers.
type Roster struct {
	mu      sync.RWMutex
	byID    map[string]Principal
	byEmail map[string]string
}

var _ approval.Directory = (*Roster)(nil)

// New creates a roster seeded with the given principals.
func New(principals ...Principal) *Roster {
	r := &Roster{
		byID:    make(map[string]Principal),
		byEmail: make(map[string]string),
	}
	for _, p := range principals {
		r.Put(p)
	}
	return r
}

// Put adds or replaces a principal.
func (r *Roster) Put(p Principal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.byID[p.ID]; ok && old.Email != p.Email {
		delete(r.byEmail, old.Email)
	}
	r.byID[p.ID] = p
	if p.Email != "" {
		r.byEmail[p.Email] = p.ID
	}
}

// ByID looks up a principal by ID.
func (r *Roster) ByID(id string) (Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return Principal{}, ErrNotFound
	}
	return p, nil
}

// ByEmail looks up a principal by email address.
func (r *Roster) ByEmail(email string) (Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return Principal{}, ErrNotFound
	}
	return r.byID[id], nil
}

// All returns every principal, sorted by ID.
func (r *Roster) All() []Principal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Principal, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SupervisorPool returns the IDs of active principals supervising category c.
func (r *Roster) SupervisorPool(c approval.Category) []string {
	return r.pool(func(p Principal) bool {
		cat, ok := p.Role.Supervises()
		return ok && cat == c
	})
}

// ResponsiblePool returns the IDs of active responsible approvers.
func (r *Roster) ResponsiblePool() []string {
	return r.pool(func(p Principal) bool { return p.Role.IsResponsibleApprover() })
}

func (r *Roster) pool(match func(Principal) bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, p := range r.byID {
		if p.Active && match(p) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
