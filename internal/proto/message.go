// Package proto defines the JSON envelopes exchanged over the persistent
// connection. Every inbound event is a tagged payload validated before it
// reaches the core.
package proto

import "encoding/json"

// Inbound is the envelope for events coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Inbound event names.
const (
	InboundConnect            = "connect"
	InboundJoiningPublicRoom  = "joining_public_room"
	InboundJoiningPrivateRoom = "joining_private_room"
	InboundLeaveRoom          = "leave_room"
	InboundSendPublicMessage  = "send_public_message"
	InboundSendPrivateMessage = "send_private_message"
	InboundUploadFile         = "upload_file"
	InboundDisconnect         = "disconnect"
)

// Outbound event names.
const (
	OutboundClientCount  = "client_count"
	OutboundRoomCount    = "room_count"
	OutboundUserJoined   = "user_joined"
	OutboundUserLeft     = "user_left"
	OutboundMessage      = "message"
	OutboundFileUploaded = "file_uploaded"
	OutboundUploadAck    = "upload_ack"
	OutboundError        = "error"
)

// ConnectData authenticates the connection. It must be the first frame.
type ConnectData struct {
	Token string `json:"token"`
}

// RoomData addresses a join/leave request.
type RoomData struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

// MessageData is a chat message from the client.
type MessageData struct {
	RoomID  string `json:"room_id"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// FileInfo describes the transfer an upload chunk belongs to.
type FileInfo struct {
	Filename string `json:"filename"`
	FileSize int64  `json:"file_size"`
	UploadID string `json:"upload_id"`
}

// UploadData carries one chunk of a file transfer. FileChunk is base64 on
// the wire.
type UploadData struct {
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	FileInfo  *FileInfo `json:"file_info"`
	FileChunk []byte    `json:"file_chunk"`
}

// Outbound is the envelope for events sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventRoomCount reports a room's member count, room-scoped.
type EventRoomCount struct {
	RoomID string `json:"room_id"`
	Count  int    `json:"count"`
}

// EventUserPresence notifies that a user joined or left a room.
type EventUserPresence struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

// EventMessage is a chat message fanned out to a room.
type EventMessage struct {
	ID      int64  `json:"message_id"`
	RoomID  string `json:"room_id"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`
	TS      int64  `json:"ts"`
}

// EventFileUploaded announces a completed file transfer, room-scoped.
type EventFileUploaded struct {
	FileURL  string `json:"file_url"`
	Filename string `json:"filename"`
}

// EventUploadAck confirms an accepted chunk to the uploader.
type EventUploadAck struct {
	UploadID string `json:"upload_id"`
	Filename string `json:"filename"`
	Received int64  `json:"received"`
	Size     int64  `json:"size"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
