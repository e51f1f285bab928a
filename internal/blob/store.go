package blob

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Store keeps attachment bytes in a flat directory. Writes are best-effort:
// the relay never waits on or consults the outcome.
type Store struct {
	dir string
	log *slog.Logger
}

func NewStore(dir string, log *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &Store{dir: dir, log: log}, nil
}

// WriteAsync persists bytes without blocking the caller. A delivery event
// referencing this blob may reach the recipient before the bytes are on
// disk; that window is part of the relay contract. Failures are logged and
// never surfaced.
func (s *Store) WriteAsync(name string, data []byte) {
	go func() {
		if err := s.write(name, data); err != nil {
			s.log.Error("blob write failed", "name", name, "err", err)
		}
	}()
}

func (s *Store) write(name string, data []byte) error {
	// Base strips any path components a hostile client smuggled into the
	// name.
	path := filepath.Join(s.dir, filepath.Base(name))
	return os.WriteFile(path, data, 0o644)
}

// Read returns a stored blob's bytes.
func (s *Store) Read(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.dir, filepath.Base(name)))
}
