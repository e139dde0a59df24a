package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/akarpov/roomcast-server/internal/auth"
	"github.com/akarpov/roomcast-server/internal/config"
	"github.com/akarpov/roomcast-server/internal/core"
	"github.com/akarpov/roomcast-server/internal/log"
	"github.com/akarpov/roomcast-server/internal/proto"
	"github.com/akarpov/roomcast-server/internal/store"
	"github.com/akarpov/roomcast-server/internal/store/sqlite"
	"github.com/akarpov/roomcast-server/internal/upload"
)

type testEnv struct {
	ts    *httptest.Server
	auth  *auth.Service
	store *sqlite.SQLiteStore
	lobby *store.Room
	alice *store.User
	bob   *store.User
}

func startTestServer(t *testing.T) *testEnv {
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

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	sink, err := upload.NewFSSink(t.TempDir())
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}

	logger := log.NewWithOutput("error", io.Discard)
	hub := core.NewHub(st, upload.NewManager(sink), logger)

	server := NewServer(hub, authService, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}, logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, auth: authService, store: st, lobby: lobby, alice: alice, bob: bob}
}

func (e *testEnv) token(t *testing.T, user *store.User) string {
	t.Helper()

	token, err := auth.GenerateToken(&auth.JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	}, user.ID, user.Email)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func (e *testEnv) dial(ctx context.Context, t *testing.T) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(ctx context.Context, t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: data}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

type outbound struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// readUntil discards frames until one of the wanted type arrives.
func readUntil(ctx context.Context, t *testing.T, conn *websocket.Conn, typ string) outbound {
	t.Helper()

	for {
		var out outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("read (waiting for %s): %v", typ, err)
		}
		if out.Type == typ {
			return out
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := startTestServer(t)

	body := `{"email":"carol@example.com","display_name":"carol","password":"password123"}`
	resp, err := env.ts.Client().Post(env.ts.URL+"/api/register", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("register request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 201 {
		t.Fatalf("unexpected register status: %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}

	// The issued token must pass the connection verifier.
	user, err := env.auth.Verify(context.Background(), authResp.Token)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if user.Email != "carol@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	resp2, err := env.ts.Client().Post(env.ts.URL+"/api/login", "application/json",
		strings.NewReader(`{"email":"carol@example.com","password":"wrong"}`))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != 401 {
		t.Fatalf("expected 401 for bad password, got %d", resp2.StatusCode)
	}
}

func TestWSRejectsBadToken(t *testing.T) {
	env := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(ctx, t)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	send(ctx, t, conn, proto.InboundConnect, proto.ConnectData{Token: "garbage"})

	// The connection is terminated without an error event.
	var out outbound
	if err := wsjson.Read(ctx, conn, &out); err == nil {
		t.Fatalf("expected closed connection, got frame %+v", out)
	}
}

func TestWSConnectJoinAndMessage(t *testing.T) {
	env := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	connA := env.dial(ctx, t)
	defer connA.Close(websocket.StatusNormalClosure, "done")
	send(ctx, t, connA, proto.InboundConnect, proto.ConnectData{Token: env.token(t, env.alice)})

	out := readUntil(ctx, t, connA, proto.OutboundClientCount)
	var count int
	if err := json.Unmarshal(out.Data, &count); err != nil || count != 1 {
		t.Fatalf("unexpected client_count: %s (%v)", out.Data, err)
	}

	connB := env.dial(ctx, t)
	defer connB.Close(websocket.StatusNormalClosure, "done")
	send(ctx, t, connB, proto.InboundConnect, proto.ConnectData{Token: env.token(t, env.bob)})
	readUntil(ctx, t, connB, proto.OutboundClientCount)

	send(ctx, t, connA, proto.InboundJoiningPublicRoom, proto.RoomData{RoomID: env.lobby.ID, UserID: env.alice.ID})
	out = readUntil(ctx, t, connA, proto.OutboundRoomCount)
	var rc proto.EventRoomCount
	if err := json.Unmarshal(out.Data, &rc); err != nil || rc.Count != 1 || rc.RoomID != env.lobby.ID {
		t.Fatalf("unexpected room_count: %s (%v)", out.Data, err)
	}

	send(ctx, t, connB, proto.InboundJoiningPublicRoom, proto.RoomData{RoomID: env.lobby.ID, UserID: env.bob.ID})
	readUntil(ctx, t, connB, proto.OutboundUserJoined)

	send(ctx, t, connA, proto.InboundSendPublicMessage, proto.MessageData{
		RoomID:  env.lobby.ID,
		UserID:  env.alice.ID,
		Message: "hi there",
	})

	out = readUntil(ctx, t, connB, proto.OutboundMessage)
	var msg proto.EventMessage
	if err := json.Unmarshal(out.Data, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	if msg.UserID != env.alice.ID || msg.Message != "hi there" || msg.RoomID != env.lobby.ID {
		t.Fatalf("unexpected message payload: %+v", msg)
	}
}

func TestWSMalformedPayloadKeepsConnectionAlive(t *testing.T) {
	env := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := env.dial(ctx, t)
	defer conn.Close(websocket.StatusNormalClosure, "done")
	send(ctx, t, conn, proto.InboundConnect, proto.ConnectData{Token: env.token(t, env.alice)})
	readUntil(ctx, t, conn, proto.OutboundClientCount)

	// A join whose data is a bare string instead of an object is rejected
	// with an error frame; the connection stays usable.
	send(ctx, t, conn, proto.InboundJoiningPublicRoom, "nope")

	out := readUntil(ctx, t, conn, proto.OutboundError)
	if out.Error == nil || out.Error.Msg != "Invalid room_id or user_id" {
		t.Fatalf("expected payload rejection, got %+v", out.Error)
	}

	send(ctx, t, conn, proto.InboundJoiningPublicRoom, proto.RoomData{RoomID: env.lobby.ID, UserID: env.alice.ID})
	out = readUntil(ctx, t, conn, proto.OutboundRoomCount)
	var rc proto.EventRoomCount
	if err := json.Unmarshal(out.Data, &rc); err != nil || rc.Count != 1 {
		t.Fatalf("connection unusable after rejection: %s (%v)", out.Data, err)
	}
}

func TestWSPrivateRoomDenial(t *testing.T) {
	env := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	vault, err := env.store.CreateRoom(context.Background(), "vault", store.RoomPrivate)
	if err != nil {
		t.Fatalf("create vault: %v", err)
	}

	conn := env.dial(ctx, t)
	defer conn.Close(websocket.StatusNormalClosure, "done")
	send(ctx, t, conn, proto.InboundConnect, proto.ConnectData{Token: env.token(t, env.bob)})
	readUntil(ctx, t, conn, proto.OutboundClientCount)

	send(ctx, t, conn, proto.InboundJoiningPrivateRoom, proto.RoomData{RoomID: vault.ID, UserID: env.bob.ID})

	out := readUntil(ctx, t, conn, proto.OutboundError)
	if out.Error == nil || out.Error.Code != core.ErrCodeAccessDenied || out.Error.Msg != "Access denied" {
		t.Fatalf("expected Access denied, got %+v", out.Error)
	}
}

func TestWSUploadRoundTrip(t *testing.T) {
	env := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := env.dial(ctx, t)
	defer conn.Close(websocket.StatusNormalClosure, "done")
	send(ctx, t, conn, proto.InboundConnect, proto.ConnectData{Token: env.token(t, env.alice)})
	readUntil(ctx, t, conn, proto.OutboundClientCount)

	send(ctx, t, conn, proto.InboundJoiningPublicRoom, proto.RoomData{RoomID: env.lobby.ID, UserID: env.alice.ID})
	readUntil(ctx, t, conn, proto.OutboundUserJoined)

	payload := bytes.Repeat([]byte("x"), 8)
	send(ctx, t, conn, proto.InboundUploadFile, proto.UploadData{
		RoomID: env.lobby.ID,
		UserID: env.alice.ID,
		FileInfo: &proto.FileInfo{
			Filename: "pic.png",
			FileSize: int64(len(payload)),
			UploadID: "up1",
		},
		FileChunk: payload,
	})

	out := readUntil(ctx, t, conn, proto.OutboundUploadAck)
	var ack proto.EventUploadAck
	if err := json.Unmarshal(out.Data, &ack); err != nil || ack.Received != int64(len(payload)) {
		t.Fatalf("unexpected upload_ack: %s (%v)", out.Data, err)
	}

	out = readUntil(ctx, t, conn, proto.OutboundFileUploaded)
	var uploaded proto.EventFileUploaded
	if err := json.Unmarshal(out.Data, &uploaded); err != nil || uploaded.Filename != "pic.png" {
		t.Fatalf("unexpected file_uploaded: %s (%v)", out.Data, err)
	}
}
