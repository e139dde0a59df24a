package upload

import (
	"fmt"
	"os"
	"path/filepath"
)

// Sink is an append-only write target addressed by an upload session key.
type Sink interface {
	// Append writes b to the end of the blob identified by key, creating it
	// on first write. Returns the number of bytes written.
	Append(key string, b []byte) (int, error)

	// Location returns the address at which the blob can be retrieved.
	Location(key string) string
}

// FSSink appends chunks to files under a base directory.
type FSSink struct {
	dir string
}

// NewFSSink creates the base directory if needed and returns a sink over it.
func NewFSSink(dir string) (*FSSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &FSSink{dir: dir}, nil
}

// Append writes b to the end of the file identified by key.
func (s *FSSink) Append(key string, b []byte) (int, error) {
	f, err := os.OpenFile(s.Location(key), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open upload file: %w", err)
	}
	defer f.Close()

	n, err := f.Write(b)
	if err != nil {
		return n, fmt.Errorf("append chunk: %w", err)
	}
	return n, nil
}

// Location returns the file path for a session key.
func (s *FSSink) Location(key string) string {
	// Base strips any path separators a client smuggled into the key.
	return filepath.Join(s.dir, filepath.Base(key))
}
