package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// Local stores assets as plain files in a single directory.
type Local struct {
	dir string
}

// NewLocal acquires dir for asset storage, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, errors.New("storage.NewLocal: empty directory")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage.NewLocal: failed to resolve %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage.NewLocal: failed to create storage dir at '%s': %w", abs, err)
	}

	return &Local{dir: abs}, nil
}

// Dir is the absolute storage directory.
func (s *Local) Dir() string {
	return s.dir
}

func (s *Local) Create(ctx context.Context, name string, r io.Reader, contentType string) (int64, error) {
	if !ValidName(name) {
		return 0, ErrInvalidName
	}

	path := filepath.Join(s.dir, name)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, ErrExist
		}
		return 0, fmt.Errorf("storage.Create: failed to create %s: %w", name, err)
	}

	written, err := io.Copy(file, ctxReader{ctx: ctx, r: r})
	if err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return 0, fmt.Errorf("storage.Create: failed to write %s: %w", name, err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("storage.Create: failed to close %s: %w", name, err)
	}

	return written, nil
}

func (s *Local) Open(ctx context.Context, name string) (*Object, error) {
	if !ValidName(name) {
		return nil, ErrNotFound
	}

	file, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage.Open: failed to open %s: %w", name, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("storage.Open: failed to stat %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		_ = file.Close()
		return nil, ErrNotFound
	}

	contentType, err := detectContentType(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("storage.Open: failed to detect type of %s: %w", name, err)
	}

	return &Object{
		ReadSeekCloser: file,
		Name:           name,
		ContentType:    contentType,
		Size:           info.Size(),
		ModTime:        info.ModTime(),
	}, nil
}

func (s *Local) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("storage.Ping: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage.Ping: %s is not a directory", s.dir)
	}
	return nil
}

// detectContentType sniffs the stored bytes; the name plays no part. The
// file offset is restored to the start.
func detectContentType(f *os.File) (string, error) {
	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mt.String(), nil
}
