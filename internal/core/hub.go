// Package core implements the connection and room-broadcast engine: room
// membership, presence counting, message fan-out, and upload dispatch.
package core

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/akarpov/roomcast-server/internal/store"
	"github.com/akarpov/roomcast-server/internal/upload"
)

// Hub coordinates all registered connections. Each connection's commands are
// handled sequentially by its own pump goroutine; the client set, the room
// membership maps, and the presence registry are the only state shared
// across connections and are guarded here.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]*room

	presence *Presence
	store    store.Store
	uploads  *upload.Manager
	log      zerolog.Logger
}

// NewHub constructs a hub over the given store and upload manager. A nil
// logger disables logging.
func NewHub(st store.Store, uploads *upload.Manager, logger *zerolog.Logger) *Hub {
	lg := zerolog.Nop()
	if logger != nil {
		lg = *logger
	}
	return &Hub{
		clients:  make(map[*Client]struct{}),
		rooms:    make(map[string]*room),
		presence: NewPresence(),
		store:    st,
		uploads:  uploads,
		log:      lg,
	}
}

// Presence exposes the hub's counter registry.
func (h *Hub) Presence() *Presence {
	return h.presence
}

// RegisterClient adds an authenticated connection, announces the new total
// client count to everyone, and starts the connection's command pump.
func (h *Hub) RegisterClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	total := h.presence.IncrClients()
	h.log.Info().Str("client_id", c.ID).Str("user_id", c.UserID).Int("clients", total).Msg("client connected")
	h.broadcastAll(&Event{Kind: EventClientCount, Count: total})

	go h.pump(c)
}

// UnregisterClient removes a connection, releases the rooms it still holds,
// and announces the new total client count. Safe to call once per client.
func (h *Hub) UnregisterClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	h.mu.Unlock()

	// Stop the pump before touching membership so no command races the
	// teardown.
	close(c.Commands)
	<-c.pumpDone

	h.releaseRooms(c)

	total := h.presence.DecrClients()
	h.log.Info().Str("client_id", c.ID).Int("clients", total).Msg("client disconnected")
	h.broadcastAll(&Event{Kind: EventClientCount, Count: total})

	// Events is left open: a concurrent broadcast may still hold this
	// client in its snapshot. The transport's write loop exits on its own
	// context instead.
}

// pump handles one connection's commands sequentially. A slow store call
// stalls only this connection.
func (h *Hub) pump(c *Client) {
	defer close(c.pumpDone)
	ctx := context.Background()
	for cmd := range c.Commands {
		h.dispatch(ctx, c, cmd)
	}
}

func (h *Hub) dispatch(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandJoinPublicRoom:
		h.joinPublic(ctx, c, cmd.Room, cmd.UserID)
	case CommandJoinPrivateRoom:
		h.joinPrivate(ctx, c, cmd.Room, cmd.UserID)
	case CommandLeaveRoom:
		h.leave(c, cmd.Room, cmd.UserID)
	case CommandSendPublicMessage:
		h.sendPublic(ctx, c, cmd.Room, cmd.UserID, cmd.Text)
	case CommandSendPrivateMessage:
		h.sendPrivate(ctx, c, cmd.Room, cmd.UserID, cmd.Text)
	case CommandUploadChunk:
		h.uploadChunk(c, cmd.Room, cmd.UserID, cmd.Chunk)
	default:
		h.sendError(c, ErrCodeBadRequest, "unknown command")
	}
}

// joinPublic admits any user into an existing public room and records the
// membership in the store.
func (h *Hub) joinPublic(ctx context.Context, c *Client, roomID, userID string) {
	if _, err := h.store.GetRoom(ctx, roomID, store.RoomPublic); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.log.Warn().Err(err).Str("room_id", roomID).Msg("public room lookup failed")
		}
		h.sendError(c, ErrCodeRoomNotFound, "Room not found")
		return
	}

	if err := h.store.AddMember(ctx, roomID, userID); err != nil {
		h.log.Warn().Err(err).Str("room_id", roomID).Str("user_id", userID).Msg("record membership failed")
		h.sendError(c, ErrCodeBadRequest, "join failed")
		return
	}

	if !h.enterRoom(c, roomID) {
		h.sendError(c, ErrCodeAlreadyJoined, "already joined")
		return
	}

	count := h.presence.IncrRoom(roomID)
	h.log.Debug().Str("room_id", roomID).Str("user_id", userID).Int("members", count).Msg("joined public room")
	h.broadcastRoom(roomID, &Event{Kind: EventRoomCount, Room: roomID, Count: count})
	h.broadcastRoom(roomID, &Event{Kind: EventUserJoined, Room: roomID, User: userID})
}

// joinPrivate admits only users already on the room's allow list. The three
// denial reasons are distinguished so join failures stay auditable.
func (h *Hub) joinPrivate(ctx context.Context, c *Client, roomID, userID string) {
	if _, err := h.store.GetRoom(ctx, roomID, store.RoomPrivate); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.log.Warn().Err(err).Str("room_id", roomID).Msg("private room lookup failed")
		}
		h.sendError(c, ErrCodeRoomNotFound, "Room not found")
		return
	}

	if _, err := h.store.GetUserByID(ctx, userID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.log.Warn().Err(err).Str("user_id", userID).Msg("user lookup failed")
		}
		h.sendError(c, ErrCodeUserNotFound, "User not found")
		return
	}

	member, err := h.store.IsMember(ctx, roomID, userID)
	if err != nil {
		h.log.Warn().Err(err).Str("room_id", roomID).Str("user_id", userID).Msg("membership check failed")
		h.sendError(c, ErrCodeBadRequest, "join failed")
		return
	}
	if !member {
		h.sendError(c, ErrCodeAccessDenied, "Access denied")
		return
	}

	if !h.enterRoom(c, roomID) {
		h.sendError(c, ErrCodeAlreadyJoined, "already joined")
		return
	}

	// Private rooms do not feed the per-room presence counter; only the
	// join announcement goes out.
	h.log.Debug().Str("room_id", roomID).Str("user_id", userID).Msg("joined private room")
	h.broadcastRoom(roomID, &Event{Kind: EventUserJoined, Room: roomID, User: userID})
}

// leave removes the connection from room scope. It is idempotent and always
// succeeds, even for rooms the connection never joined.
func (h *Hub) leave(c *Client, roomID, userID string) {
	h.mu.Lock()
	if rm, ok := h.rooms[roomID]; ok {
		rm.remove(c)
		if rm.empty() {
			delete(h.rooms, roomID)
		}
	}
	delete(c.rooms, roomID)
	h.mu.Unlock()

	count := h.presence.DecrRoom(roomID)
	h.log.Debug().Str("room_id", roomID).Str("user_id", userID).Int("members", count).Msg("left room")
	h.broadcastRoom(roomID, &Event{Kind: EventRoomCount, Room: roomID, Count: count})
	h.broadcastRoom(roomID, &Event{Kind: EventUserLeft, Room: roomID, User: userID})
}

// sendPublic validates, persists, and fans out a message to a public room.
// A sender who is not on the room's member list is dropped silently so the
// error surface never leaks membership to non-members.
func (h *Hub) sendPublic(ctx context.Context, c *Client, roomID, userID, text string) {
	if _, err := h.store.GetRoom(ctx, roomID, store.RoomPublic); err != nil {
		h.sendError(c, ErrCodeRoomNotFound, "Room not found")
		return
	}

	if _, err := h.store.GetUserByID(ctx, userID); err != nil {
		h.sendError(c, ErrCodeUserNotFound, "User not found")
		return
	}

	member, err := h.store.IsMember(ctx, roomID, userID)
	if err != nil {
		h.log.Warn().Err(err).Str("room_id", roomID).Str("user_id", userID).Msg("membership check failed")
		h.sendError(c, ErrCodeBadRequest, "send failed")
		return
	}
	if !member {
		h.log.Debug().Str("room_id", roomID).Str("user_id", userID).Msg("non-member public message dropped")
		return
	}

	msg, err := h.store.CreateMessage(ctx, roomID, userID, store.VisibilityPublic, text)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("persist message failed")
		h.sendError(c, ErrCodeBadRequest, "send failed")
		return
	}

	h.broadcastRoom(roomID, &Event{Kind: EventRoomMessage, Room: roomID, User: userID, Message: msg})
}

// sendPrivate persists and fans out a private-room message once room and
// sender existence are confirmed. Membership was checked at join time and is
// not re-checked here.
func (h *Hub) sendPrivate(ctx context.Context, c *Client, roomID, userID, text string) {
	if _, err := h.store.GetRoom(ctx, roomID, store.RoomPrivate); err != nil {
		h.sendError(c, ErrCodeRoomNotFound, "Room not found")
		return
	}

	if _, err := h.store.GetUserByID(ctx, userID); err != nil {
		h.sendError(c, ErrCodeUserNotFound, "User not found")
		return
	}

	msg, err := h.store.CreateMessage(ctx, roomID, userID, store.VisibilityPrivate, text)
	if err != nil {
		h.log.Error().Err(err).Str("room_id", roomID).Msg("persist message failed")
		h.sendError(c, ErrCodeBadRequest, "send failed")
		return
	}

	h.broadcastRoom(roomID, &Event{Kind: EventRoomMessage, Room: roomID, User: userID, Message: msg})
}

// uploadChunk appends a chunk to its session, acks the uploader, and
// announces completion to the room once the declared size is reached.
func (h *Hub) uploadChunk(c *Client, roomID, userID string, chunk *UploadChunk) {
	if roomID == "" || userID == "" {
		h.sendError(c, ErrCodeBadRequest, "Invalid room_id or user_id")
		return
	}
	if chunk == nil {
		h.sendError(c, ErrCodeBadRequest, "Invalid file_info or file_chunk")
		return
	}

	progress, err := h.uploads.Receive(upload.Chunk{
		UploadID: chunk.UploadID,
		Filename: chunk.Filename,
		Size:     chunk.Size,
		Data:     chunk.Data,
	})
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrInvalidChunk):
			h.sendError(c, ErrCodeBadRequest, "Invalid file_info or file_chunk")
		case errors.Is(err, upload.ErrSizeExceeded):
			h.sendError(c, ErrCodeUploadFailed, "declared size exceeded")
		default:
			h.log.Error().Err(err).Str("upload_id", chunk.UploadID).Msg("chunk append failed")
			h.sendError(c, ErrCodeUploadFailed, "upload failed")
		}
		return
	}

	h.sendTo(c, &Event{Kind: EventUploadAck, Room: roomID, Upload: &UploadNotice{
		UploadID: progress.UploadID,
		Filename: progress.Filename,
		Received: progress.Received,
		Size:     progress.Size,
	}})

	if progress.Complete {
		h.log.Info().Str("upload_id", progress.UploadID).Str("file", progress.Location).Msg("file uploaded")
		h.broadcastRoom(roomID, &Event{Kind: EventFileUploaded, Room: roomID, User: userID, Upload: &UploadNotice{
			UploadID: progress.UploadID,
			Filename: progress.Filename,
			FileURL:  progress.Location,
			Received: progress.Received,
			Size:     progress.Size,
		}})
	}
}

// enterRoom scopes the connection to a room. Returns false if this
// connection is already in it.
func (h *Hub) enterRoom(c *Client, roomID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm, ok := h.rooms[roomID]
	if !ok {
		rm = newRoom(roomID)
		h.rooms[roomID] = rm
	}
	if !rm.add(c) {
		return false
	}
	c.rooms[roomID] = struct{}{}
	return true
}

// releaseRooms drops every room scope the connection still holds and
// announces the departures, mirroring an explicit leave per room.
func (h *Hub) releaseRooms(c *Client) {
	h.mu.Lock()
	held := make([]string, 0, len(c.rooms))
	for roomID := range c.rooms {
		held = append(held, roomID)
		if rm, ok := h.rooms[roomID]; ok {
			rm.remove(c)
			if rm.empty() {
				delete(h.rooms, roomID)
			}
		}
		delete(c.rooms, roomID)
	}
	h.mu.Unlock()

	for _, roomID := range held {
		count := h.presence.DecrRoom(roomID)
		h.broadcastRoom(roomID, &Event{Kind: EventRoomCount, Room: roomID, Count: count})
		h.broadcastRoom(roomID, &Event{Kind: EventUserLeft, Room: roomID, User: c.UserID})
	}
}

// broadcastRoom delivers an event to every connection currently scoped to
// the room. Delivery is computed from a snapshot of the member set.
func (h *Hub) broadcastRoom(roomID string, event *Event) {
	h.mu.RLock()
	rm, ok := h.rooms[roomID]
	var members []*Client
	if ok {
		members = rm.snapshot()
	}
	h.mu.RUnlock()

	for _, c := range members {
		h.sendTo(c, event)
	}
}

// broadcastAll delivers an event to every registered connection.
func (h *Hub) broadcastAll(event *Event) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		h.sendTo(c, event)
	}
}

// sendTo delivers an event to one connection, dropping it if the consumer
// is too slow to keep up.
func (h *Hub) sendTo(c *Client, event *Event) {
	select {
	case c.Events <- event:
	default:
		h.log.Debug().Str("client_id", c.ID).Msg("slow consumer, event dropped")
	}
}

func (h *Hub) sendError(c *Client, code, msg string) {
	h.sendTo(c, &Event{Kind: EventError, Error: coreError(code, msg)})
}
