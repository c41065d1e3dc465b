package realtime

import "sync"

// Registry tracks live connections: which user owns each connection id and
// which rooms it has joined. A Hub owns exactly one Registry.
type Registry interface {
	Add(connID string, userID uint)
	// Remove forgets the connection and returns its user.
	Remove(connID string) (uint, bool)
	User(connID string) (uint, bool)
	Join(connID, room string) bool
	Leave(connID, room string)
	InRoom(connID, room string) bool
	Members(room string) []string
	All() []string
	// Connections counts live connections of a user.
	Connections(userID uint) int
}

type memberSet map[string]struct{}

type connEntry struct {
	userID uint
	rooms  memberSet
}

// MemoryRegistry is the in-process Registry.
type MemoryRegistry struct {
	mu    sync.RWMutex
	conns map[string]*connEntry
	rooms map[string]memberSet
	users map[uint]int
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		conns: make(map[string]*connEntry),
		rooms: make(map[string]memberSet),
		users: make(map[uint]int),
	}
}

func (r *MemoryRegistry) Add(connID string, userID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; ok {
		return
	}
	r.conns[connID] = &connEntry{userID: userID, rooms: memberSet{}}
	r.users[userID]++
}

func (r *MemoryRegistry) Remove(connID string) (uint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[connID]
	if !ok {
		return 0, false
	}
	for room := range e.rooms {
		r.leaveLocked(connID, room)
	}
	delete(r.conns, connID)
	if r.users[e.userID]--; r.users[e.userID] <= 0 {
		delete(r.users, e.userID)
	}
	return e.userID, true
}

func (r *MemoryRegistry) User(connID string) (uint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[connID]
	if !ok {
		return 0, false
	}
	return e.userID, true
}

func (r *MemoryRegistry) Join(connID, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[connID]
	if !ok {
		return false
	}
	e.rooms[room] = struct{}{}
	members, ok := r.rooms[room]
	if !ok {
		members = memberSet{}
		r.rooms[room] = members
	}
	members[connID] = struct{}{}
	return true
}

func (r *MemoryRegistry) Leave(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, room)
}

func (r *MemoryRegistry) leaveLocked(connID, room string) {
	if e, ok := r.conns[connID]; ok {
		delete(e.rooms, room)
	}
	if members, ok := r.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
}

func (r *MemoryRegistry) InRoom(connID, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][connID]
	return ok
}

func (r *MemoryRegistry) Members(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.rooms[room]))
	for id := range r.rooms[room] {
		out = append(out, id)
	}
	return out
}

func (r *MemoryRegistry) All() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.conns))
	for id := range r.conns {
		out = append(out, id)
	}
	return out
}

func (r *MemoryRegistry) Connections(userID uint) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users[userID]
}
