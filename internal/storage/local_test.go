package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	s, err := NewLocal(filepath.Join(t.TempDir(), "nested", "uploads"))
	require.NoError(t, err)
	return s
}

func TestNewLocal_CreatesDirectory(t *testing.T) {
	s := newTestLocal(t)

	info, err := os.Stat(s.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.True(t, filepath.IsAbs(s.Dir()))
	assert.NoError(t, s.Ping(context.Background()))
}

func TestNewLocal_EmptyDir(t *testing.T) {
	_, err := NewLocal("")
	assert.Error(t, err)
}

func TestNewLocal_PathIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := NewLocal(path)
	assert.Error(t, err)
}

func TestLocal_CreateAndOpen(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	n, err := s.Create(ctx, "1700000000000-cat.png", bytes.NewReader(pngHeader), "image/png")
	require.NoError(t, err)
	assert.Equal(t, int64(len(pngHeader)), n)

	obj, err := s.Open(ctx, "1700000000000-cat.png")
	require.NoError(t, err)
	defer obj.Close()

	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, got)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, int64(len(pngHeader)), obj.Size)
}

func TestLocal_CreateNeverOverwrites(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "a.png", strings.NewReader("first"), "image/png")
	require.NoError(t, err)

	_, err = s.Create(ctx, "a.png", strings.NewReader("second"), "image/png")
	assert.ErrorIs(t, err, ErrExist)

	raw, err := os.ReadFile(filepath.Join(s.Dir(), "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(raw))
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestLocal_CreateRemovesPartialFile(t *testing.T) {
	s := newTestLocal(t)
	boom := errors.New("boom")

	r := io.MultiReader(strings.NewReader("partial"), failingReader{err: boom})
	_, err := s.Create(context.Background(), "broken.png", r, "image/png")
	require.ErrorIs(t, err, boom)

	_, statErr := os.Stat(filepath.Join(s.Dir(), "broken.png"))
	assert.True(t, os.IsNotExist(statErr), "partial file must be removed")
}

func TestLocal_CreateCancelled(t *testing.T) {
	s := newTestLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Create(ctx, "gone.png", strings.NewReader("data"), "image/png")
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocal_InvalidNames(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	for _, name := range []string{"", ".", "..", "../escape.png", "a/b.png", `a\b.png`, ".hidden"} {
		_, err := s.Create(ctx, name, strings.NewReader("x"), "image/png")
		assert.ErrorIs(t, err, ErrInvalidName, name)

		_, err = s.Open(ctx, name)
		assert.ErrorIs(t, err, ErrNotFound, name)
	}
}

func TestLocal_OpenMissingAndDirectory(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	_, err := s.Open(ctx, "missing.png")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.Mkdir(filepath.Join(s.Dir(), "sub"), 0o755))
	_, err = s.Open(ctx, "sub")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_OpenSniffsWithoutExtension(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "noext", bytes.NewReader(pngHeader), "")
	require.NoError(t, err)

	obj, err := s.Open(ctx, "noext")
	require.NoError(t, err)
	defer obj.Close()

	assert.Equal(t, "image/png", obj.ContentType)

	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, got, "offset must be rewound after sniffing")
}

func TestLocal_OpenIgnoresExtension(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png.html", pngHeader, "image/png"},
		{"page.html", []byte("<html><body>hi</body></html>"), "text/html"},
		{"page.png", []byte("<html><body>hi</body></html>"), "text/html"},
	}

	for _, tt := range tests {
		_, err := s.Create(ctx, tt.name, bytes.NewReader(tt.data), "image/png")
		require.NoError(t, err)

		obj, err := s.Open(ctx, tt.name)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(obj.ContentType, tt.want), "%s: got %s", tt.name, obj.ContentType)
		require.NoError(t, obj.Close())
	}
}

func TestLocal_PingMissingDir(t *testing.T) {
	s := newTestLocal(t)
	require.NoError(t, os.RemoveAll(s.Dir()))
	assert.Error(t, s.Ping(context.Background()))
}
