package core

import "github.com/akarpov/roomcast-server/internal/store"

// EventKind is a notification the core emits to connections.
type EventKind int

const (
	// EventClientCount notifies all connections about the total client count.
	EventClientCount EventKind = iota
	// EventRoomCount notifies room members about the room's member count.
	EventRoomCount
	// EventUserJoined notifies room members about a user joining.
	EventUserJoined
	// EventUserLeft notifies room members about a user leaving.
	EventUserLeft
	// EventRoomMessage notifies room members about a chat message.
	EventRoomMessage
	// EventFileUploaded notifies room members that a file transfer completed.
	EventFileUploaded
	// EventUploadAck confirms an accepted chunk to the uploader.
	EventUploadAck
	// EventError notifies the originating connection about a domain error.
	EventError
)

// Event is sent to connections to describe what happened in the system.
type Event struct {
	Kind    EventKind
	Room    string
	User    string
	Count   int
	Message *store.Message
	Upload  *UploadNotice
	Error   *CoreError
}

// UploadNotice holds data for upload-related events.
type UploadNotice struct {
	UploadID string
	Filename string
	FileURL  string
	Received int64
	Size     int64
}
