package core

// Client is an authenticated connection as seen by the core layer.
type Client struct {
	// ID identifies the connection, not the user; one user may hold
	// several connections.
	ID     string
	UserID string
	Name   string

	Commands chan *Command
	Events   chan *Event

	// rooms the connection is currently scoped to. Owned by the hub and
	// mutated only under its lock.
	rooms map[string]struct{}

	// pumpDone is closed when the client's command pump exits.
	pumpDone chan struct{}
}

// NewClient constructs a client with initialized channels.
func NewClient(id, userID, name string) *Client {
	if name == "" {
		name = userID
	}
	return &Client{
		ID:       id,
		UserID:   userID,
		Name:     name,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 8),
		rooms:    make(map[string]struct{}),
		pumpDone: make(chan struct{}),
	}
}
