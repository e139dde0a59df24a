package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("not found")

// User represents a user in the system.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

// RoomKind distinguishes the two trust models a room can have.
type RoomKind string

const (
	// RoomPublic is open enrollment gated only by existence.
	RoomPublic RoomKind = "public"
	// RoomPrivate is allow-listed: membership is pre-provisioned.
	RoomPrivate RoomKind = "private"
)

// Room represents a chat room.
type Room struct {
	ID        string
	Name      string
	Kind      RoomKind
	CreatedAt time.Time
}

// Visibility marks a message as public or private.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Message represents a persisted chat message.
type Message struct {
	ID         int64
	RoomID     string
	SenderID   string
	Visibility Visibility
	Body       string
	CreatedAt  time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, email, displayName, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID. Returns ErrNotFound if absent.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByEmail retrieves a user by email. Returns ErrNotFound if absent.
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// RoomStore handles room persistence and membership.
type RoomStore interface {
	// CreateRoom creates a new room of the given kind.
	CreateRoom(ctx context.Context, name string, kind RoomKind) (*Room, error)

	// GetRoom retrieves a room by ID and kind. Returns ErrNotFound if no room
	// of that kind exists under the ID.
	GetRoom(ctx context.Context, id string, kind RoomKind) (*Room, error)

	// AddMember records a user as a member of a room. Adding an existing
	// member is a no-op.
	AddMember(ctx context.Context, roomID, userID string) error

	// IsMember reports whether the user is on the room's member list.
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a message, assigning it a server-generated ID
	// and timestamp.
	CreateMessage(ctx context.Context, roomID, senderID string, visibility Visibility, body string) (*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
