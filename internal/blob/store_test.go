package blob

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	s, err := NewStore(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s, dir
}

// waitForBlob polls until the async write lands or the deadline passes.
func waitForBlob(t *testing.T, s *Store, name string) []byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if data, err := s.Read(name); err == nil {
			return data
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("blob %q never appeared", name)
	return nil
}

func TestStore_WriteAsyncThenRead(t *testing.T) {
	s, _ := newTestStore(t)

	want := []byte("attachment bytes")
	s.WriteAsync("1700000000.png", want)

	got := waitForBlob(t, s, "1700000000.png")
	require.Equal(t, want, got)
}

func TestStore_CreatesDirectory(t *testing.T) {
	_, dir := newTestStore(t)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestStore_StripsPathComponents(t *testing.T) {
	req := require.New(t)
	s, dir := newTestStore(t)

	s.WriteAsync("../escape.txt", []byte("x"))
	waitForBlob(t, s, "escape.txt")

	// The file lands inside the blob directory, not beside it.
	_, err := os.Stat(filepath.Join(dir, "escape.txt"))
	req.NoError(err)
	_, err = os.Stat(filepath.Join(dir, "..", "escape.txt"))
	req.True(os.IsNotExist(err))
}

func TestStore_ReadMissing(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Read("nope.bin")
	require.Error(t, err)
}
