// Package artifact names and writes diagnostic files: screenshots and log
// trails captured for one invocation at one checkpoint.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultDir is where artifacts go when no directory is configured.
const DefaultDir = "screenshots"

// ErrExists reports a second write for the same invocation and checkpoint.
var ErrExists = errors.New("artifact already exists")

// Store hands out write-once artifact paths. The directory is created on the
// first write, not when the Store is built.
type Store struct {
	dir string

	mu   sync.Mutex
	used map[string]bool
}

func NewStore(dir string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{dir: dir, used: make(map[string]bool)}
}

func (s *Store) Dir() string { return s.dir }

// Name returns the file name for an invocation, checkpoint and extension.
// Distinct (invocation, checkpoint) pairs never share a name.
func Name(invocationID, checkpoint, ext string) string {
	return sanitize(invocationID, false) + "_" + sanitize(checkpoint, true) + "." + strings.TrimPrefix(ext, ".")
}

// sanitize keeps [A-Za-z0-9.-] and escapes everything else, so the mapping
// stays injective. Only the checkpoint part may keep "_", which leaves the
// first "_" as an unambiguous separator.
func sanitize(s string, underscore bool) string {
	if s == "" {
		return "unnamed"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_' && underscore:
			b.WriteRune(r)
		case r == '.' && b.Len() > 0:
			b.WriteRune(r)
		default:
			fmt.Fprintf(&b, "%%%02X", r)
		}
	}
	return b.String()
}

// Reserve claims the path for an artifact without writing it. A pair can be
// reserved once per Store, and never over an existing file.
func (s *Store) Reserve(invocationID, checkpoint, ext string) (string, error) {
	path := filepath.Join(s.dir, Name(invocationID, checkpoint, ext))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used[path] {
		return "", fmt.Errorf("%s: %w", path, ErrExists)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s: %w", path, ErrExists)
	}
	s.used[path] = true
	return path, nil
}

// Write fills a path obtained from Reserve. It never replaces a file.
func (s *Store) Write(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", path, ErrExists)
		}
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
