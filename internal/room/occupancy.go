package room

import (
	"sort"
	"sync"
)

// OccupancyRegistry tracks which identities are currently connected to each
// room. It is transient process state fed by join/leave events and is always
// read as a snapshot, never cached by callers across events.
type OccupancyRegistry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{}
}

// NewOccupancyRegistry constructs an empty registry.
func NewOccupancyRegistry() *OccupancyRegistry {
	return &OccupancyRegistry{rooms: make(map[string]map[string]struct{})}
}

// Join marks identityID as connected to roomID.
func (r *OccupancyRegistry) Join(roomID string, identityID string) {
	if r == nil || roomID == "" || identityID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	occupants, ok := r.rooms[roomID]
	if !ok {
		occupants = make(map[string]struct{})
		r.rooms[roomID] = occupants
	}
	occupants[identityID] = struct{}{}
}

// Leave marks identityID as disconnected from roomID.
func (r *OccupancyRegistry) Leave(roomID string, identityID string) {
	if r == nil || roomID == "" || identityID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	occupants, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(occupants, identityID)
	if len(occupants) == 0 {
		delete(r.rooms, roomID)
	}
}

// Occupants returns a sorted snapshot of roomID's current occupants.
func (r *OccupancyRegistry) Occupants(roomID string) []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	occupants, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(occupants))
	for id := range occupants {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
