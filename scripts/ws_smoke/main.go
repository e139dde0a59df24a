// Command ws_smoke exercises a running roomcast server end to end:
// register a throwaway user, open the gateway, join a room, send a message.
//
// Usage:
//
//	go run ./scripts/ws_smoke -url http://localhost:8080 -room <room-id>
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/akarpov/roomcast-server/internal/proto"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	roomID := flag.String("room", "", "public room ID to join")
	message := flag.String("message", "smoke test", "message to send")
	flag.Parse()

	if *roomID == "" {
		log.Fatal("-room is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	email := fmt.Sprintf("smoke-%s@example.com", uuid.NewString()[:8])
	token, userID, err := register(ctx, *baseURL, email)
	if err != nil {
		log.Fatalf("register: %v", err)
	}
	log.Printf("registered %s", email)

	wsURL := strings.Replace(*baseURL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	if err := send(ctx, conn, proto.InboundConnect, proto.ConnectData{Token: token}); err != nil {
		log.Fatalf("connect: %v", err)
	}
	if err := send(ctx, conn, proto.InboundJoiningPublicRoom, proto.RoomData{RoomID: *roomID, UserID: userID}); err != nil {
		log.Fatalf("join: %v", err)
	}
	if err := send(ctx, conn, proto.InboundSendPublicMessage, proto.MessageData{
		RoomID:  *roomID,
		UserID:  userID,
		Message: *message,
	}); err != nil {
		log.Fatalf("send message: %v", err)
	}

	// Echo a few outbound frames so a human can eyeball the flow.
	for i := 0; i < 5; i++ {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			log.Fatalf("read: %v", err)
		}
		log.Printf("<- %s", raw)
	}
}

func send(ctx context.Context, conn *websocket.Conn, typ string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: data})
}

func register(ctx context.Context, baseURL, email string) (token, userID string, err error) {
	body, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": "smoke-password",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/register", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var authResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return "", "", err
	}

	// The subject claim carries the user ID; skip verification, the server
	// just issued it.
	parts := strings.Split(authResp.Token, ".")
	if len(parts) != 3 {
		return "", "", fmt.Errorf("malformed token")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", err
	}
	var claims struct {
		Sub string `json:"sub"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", "", err
	}

	return authResp.Token, claims.Sub, nil
}
