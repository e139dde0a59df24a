package core

import "sync"

// Presence is a concurrency-safe counter store for connected clients and
// per-room member counts. It has no knowledge of why a count changed.
type Presence struct {
	mu      sync.Mutex
	clients int
	rooms   map[string]int
}

// NewPresence constructs an empty presence registry.
func NewPresence() *Presence {
	return &Presence{
		rooms: make(map[string]int),
	}
}

// IncrClients increments the total client count and returns the new value.
func (p *Presence) IncrClients() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clients++
	return p.clients
}

// DecrClients decrements the total client count, clamping at zero, and
// returns the new value.
func (p *Presence) DecrClients() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.clients > 0 {
		p.clients--
	}
	return p.clients
}

// Clients returns the current total client count.
func (p *Presence) Clients() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clients
}

// IncrRoom increments the member count for a room, creating the counter
// lazily, and returns the new value.
func (p *Presence) IncrRoom(roomID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rooms[roomID]++
	return p.rooms[roomID]
}

// DecrRoom decrements the member count for a room, clamping at zero, and
// returns the new value.
func (p *Presence) DecrRoom(roomID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rooms[roomID] > 0 {
		p.rooms[roomID]--
	}
	return p.rooms[roomID]
}

// RoomCount returns the current member count for a room.
func (p *Presence) RoomCount(roomID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rooms[roomID]
}
