package core

// CommandKind describes what the connection wants to do.
type CommandKind int

const (
	// CommandJoinPublicRoom subscribes the connection to a public room.
	CommandJoinPublicRoom CommandKind = iota
	// CommandJoinPrivateRoom subscribes the connection to an allow-listed room.
	CommandJoinPrivateRoom
	// CommandLeaveRoom unsubscribes the connection from a room.
	CommandLeaveRoom
	// CommandSendPublicMessage delivers a message to a public room.
	CommandSendPublicMessage
	// CommandSendPrivateMessage delivers a message to a private room.
	CommandSendPrivateMessage
	// CommandUploadChunk appends a chunk to an upload session.
	CommandUploadChunk
)

// Command represents an action requested by a connection.
type Command struct {
	Kind   CommandKind
	Room   string
	UserID string
	Text   string
	Chunk  *UploadChunk
}

// UploadChunk carries one piece of a chunked file transfer.
type UploadChunk struct {
	UploadID string
	Filename string
	Size     int64
	Data     []byte
}
