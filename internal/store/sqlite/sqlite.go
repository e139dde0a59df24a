package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/akarpov/roomcast-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	display_name  TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	kind       TEXT NOT NULL CHECK (kind IN ('public', 'private')),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS room_members (
	room_id   TEXT NOT NULL REFERENCES rooms(id),
	user_id   TEXT NOT NULL REFERENCES users(id),
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (room_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id    TEXT NOT NULL REFERENCES rooms(id),
	sender_id  TEXT NOT NULL REFERENCES users(id),
	visibility TEXT NOT NULL CHECK (visibility IN ('public', 'private')),
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup opens a SQLite database and runs a setup function. Tests use
// it to seed fixtures on top of the schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, email, displayName, passwordHash string) (*store.User, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO users (id, email, display_name, password_hash)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, email, displayName, passwordHash); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, email, display_name, password_hash, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `
		SELECT id, email, display_name, password_hash, created_at
		FROM users
		WHERE email = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var u store.User
	err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// ==== RoomStore implementation ====

// CreateRoom creates a new room of the given kind.
func (s *SQLiteStore) CreateRoom(ctx context.Context, name string, kind store.RoomKind) (*store.Room, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO rooms (id, name, kind)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, name, string(kind)); err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}
	return s.GetRoom(ctx, id, kind)
}

// GetRoom retrieves a room by ID and kind.
func (s *SQLiteStore) GetRoom(ctx context.Context, id string, kind store.RoomKind) (*store.Room, error) {
	query := `
		SELECT id, name, kind, created_at
		FROM rooms
		WHERE id = ? AND kind = ?
	`
	var r store.Room
	err := s.db.QueryRowContext(ctx, query, id, string(kind)).Scan(&r.ID, &r.Name, &r.Kind, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan room: %w", err)
	}
	return &r, nil
}

// AddMember records a user as a member of a room.
func (s *SQLiteStore) AddMember(ctx context.Context, roomID, userID string) error {
	query := `
		INSERT OR IGNORE INTO room_members (room_id, user_id)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, userID); err != nil {
		return fmt.Errorf("insert room member: %w", err)
	}
	return nil
}

// IsMember reports whether the user is on the room's member list.
func (s *SQLiteStore) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	query := `
		SELECT COUNT(1)
		FROM room_members
		WHERE room_id = ? AND user_id = ?
	`
	var n int
	if err := s.db.QueryRowContext(ctx, query, roomID, userID).Scan(&n); err != nil {
		return false, fmt.Errorf("count room member: %w", err)
	}
	return n > 0, nil
}

// ==== MessageStore implementation ====

// CreateMessage persists a message, assigning it an ID and timestamp.
func (s *SQLiteStore) CreateMessage(ctx context.Context, roomID, senderID string, visibility store.Visibility, body string) (*store.Message, error) {
	query := `
		INSERT INTO messages (room_id, sender_id, visibility, body)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, roomID, senderID, string(visibility), body)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	var m store.Message
	row := s.db.QueryRowContext(ctx, `
		SELECT id, room_id, sender_id, visibility, body, created_at
		FROM messages
		WHERE id = ?
	`, id)
	if err := row.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Visibility, &m.Body, &m.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return &m, nil
}
