package core

// room tracks the connections currently scoped to one broadcast target.
// Access is guarded by the hub's lock.
type room struct {
	id      string
	clients map[*Client]struct{}
}

func newRoom(id string) *room {
	return &room{
		id:      id,
		clients: make(map[*Client]struct{}),
	}
}

// add inserts a client into the room. Returns false if already present.
func (r *room) add(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// remove deletes a client from the room. Returns false if absent.
func (r *room) remove(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// snapshot copies the current member set so a broadcast never observes a
// partially-updated room.
func (r *room) snapshot() []*Client {
	members := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		members = append(members, c)
	}
	return members
}

func (r *room) empty() bool {
	return len(r.clients) == 0
}
