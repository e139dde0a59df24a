// Package upload accumulates chunked file transfers into an append-only
// byte sink, one session per (upload ID, filename) pair.
package upload

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInvalidChunk is returned when a chunk is missing required fields.
	// No state is mutated.
	ErrInvalidChunk = errors.New("invalid chunk")
	// ErrSizeExceeded is returned when a chunk would push the session past
	// its declared total size. The chunk is rejected, not truncated.
	ErrSizeExceeded = errors.New("declared size exceeded")
)

// Chunk is one inbound piece of a file transfer.
type Chunk struct {
	UploadID string
	Filename string
	Size     int64 // declared total size of the transfer
	Data     []byte
}

// Progress reports the state of a session after a chunk was accepted.
type Progress struct {
	UploadID string
	Filename string
	Received int64
	Size     int64
	Complete bool
	Location string
}

type session struct {
	uploadID string
	filename string
	size     int64
	received int64
}

// Manager tracks upload sessions and appends accepted chunks to the sink.
// Sessions are created lazily on first chunk. Upload IDs are client-chosen;
// two connections reusing the same (uploadID, filename) pair write to the
// same session.
type Manager struct {
	mu       sync.Mutex
	sink     Sink
	sessions map[string]*session
}

// NewManager constructs a manager over the given sink.
func NewManager(sink Sink) *Manager {
	return &Manager{
		sink:     sink,
		sessions: make(map[string]*session),
	}
}

// Receive validates and appends one chunk. The accumulated offset increases
// monotonically and never exceeds the declared total size.
func (m *Manager) Receive(chunk Chunk) (*Progress, error) {
	if chunk.UploadID == "" || chunk.Filename == "" || len(chunk.Data) == 0 {
		return nil, ErrInvalidChunk
	}
	if chunk.Size <= 0 {
		return nil, ErrInvalidChunk
	}

	key := sessionKey(chunk.UploadID, chunk.Filename)

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[key]
	if !ok {
		sess = &session{
			uploadID: chunk.UploadID,
			filename: chunk.Filename,
			size:     chunk.Size,
		}
		m.sessions[key] = sess
	}

	if sess.received+int64(len(chunk.Data)) > sess.size {
		return nil, ErrSizeExceeded
	}

	n, err := m.sink.Append(key, chunk.Data)
	sess.received += int64(n)
	if err != nil {
		return nil, fmt.Errorf("append to sink: %w", err)
	}

	progress := &Progress{
		UploadID: sess.uploadID,
		Filename: sess.filename,
		Received: sess.received,
		Size:     sess.size,
		Complete: sess.received == sess.size,
		Location: m.sink.Location(key),
	}

	if progress.Complete {
		delete(m.sessions, key)
	}

	return progress, nil
}

// Received returns the accumulated offset for a session, or zero if the
// session does not exist (yet, or anymore).
func (m *Manager) Received(uploadID, filename string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[sessionKey(uploadID, filename)]; ok {
		return sess.received
	}
	return 0
}

func sessionKey(uploadID, filename string) string {
	return uploadID + "_" + filename
}
