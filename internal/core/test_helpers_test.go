package core

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akarpov/roomcast-server/internal/store"
	"github.com/akarpov/roomcast-server/internal/store/sqlite"
	"github.com/akarpov/roomcast-server/internal/upload"
)

func mustEvent(t testing.TB, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// mustNoEvent drains the channel for a short window and fails if an event of
// the given kind shows up.
func mustNoEvent(t testing.TB, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event: %+v", ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// recordingStore counts persisted messages on top of a real store.
type recordingStore struct {
	store.Store
	created atomic.Int32
}

func (r *recordingStore) CreateMessage(ctx context.Context, roomID, senderID string, visibility store.Visibility, body string) (*store.Message, error) {
	msg, err := r.Store.CreateMessage(ctx, roomID, senderID, visibility, body)
	if err == nil {
		r.created.Add(1)
	}
	return msg, err
}

type fixture struct {
	hub   *Hub
	store *recordingStore

	alice *store.User
	bob   *store.User

	lobby   *store.Room // public
	vault   *store.Room // private, alice on the allow list
	uploads *upload.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()

	alice, err := st.CreateUser(ctx, "alice@example.com", "alice", "hash")
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := st.CreateUser(ctx, "bob@example.com", "bob", "hash")
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}

	lobby, err := st.CreateRoom(ctx, "lobby", store.RoomPublic)
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}
	vault, err := st.CreateRoom(ctx, "vault", store.RoomPrivate)
	if err != nil {
		t.Fatalf("create vault: %v", err)
	}
	if err := st.AddMember(ctx, vault.ID, alice.ID); err != nil {
		t.Fatalf("provision vault member: %v", err)
	}

	sink, err := upload.NewFSSink(t.TempDir())
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	uploads := upload.NewManager(sink)

	recording := &recordingStore{Store: st}

	return &fixture{
		hub:     NewHub(recording, uploads, nil),
		store:   recording,
		alice:   alice,
		bob:     bob,
		lobby:   lobby,
		vault:   vault,
		uploads: uploads,
	}
}

// connect registers a fresh connection for the given user and drains the
// resulting client_count broadcast.
func (f *fixture) connect(t *testing.T, id string, user *store.User) *Client {
	t.Helper()

	c := NewClient(id, user.ID, user.DisplayName)
	f.hub.RegisterClient(c)
	mustEvent(t, c.Events, EventClientCount)
	return c
}
