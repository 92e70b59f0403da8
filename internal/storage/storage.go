// Package storage persists uploaded assets under caller-chosen names.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

var (
	// ErrExist is returned by Create when the name is already taken.
	ErrExist = errors.New("storage: asset already exists")
	// ErrNotFound is returned by Open for unknown names.
	ErrNotFound = errors.New("storage: asset not found")
	// ErrInvalidName is returned for names that could address anything
	// other than a single entry in the storage location.
	ErrInvalidName = errors.New("storage: invalid asset name")
)

// Storage is implemented by every asset backend.
type Storage interface {
	// Create writes r under name and returns the number of bytes stored.
	// It never overwrites: an existing name yields ErrExist. If reading r
	// fails or ctx is cancelled, nothing is left behind and the read
	// error is returned wrapped.
	Create(ctx context.Context, name string, r io.Reader, contentType string) (int64, error)

	// Open returns a seekable handle on a stored asset.
	Open(ctx context.Context, name string) (*Object, error)

	// Ping reports whether the backend is reachable and usable.
	Ping(ctx context.Context) error
}

// Object is an open stored asset. Callers must Close it.
type Object struct {
	io.ReadSeekCloser
	Name        string
	ContentType string
	Size        int64
	ModTime     time.Time
}

// ValidName reports whether name is a single, non-hidden path element.
func ValidName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

// ctxReader fails reads once ctx is done so a cancelled request stops
// a copy in progress.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
