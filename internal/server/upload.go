package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"image-drop/internal/logger"
	"image-drop/internal/storage"
)

const (
	// sniffLen matches the amount mimetype inspects by default.
	sniffLen = 3072

	// multipartSlack bounds the request body beyond the file size cap to
	// leave room for boundaries, part headers and small form fields.
	multipartSlack = 1 << 20

	// maxNameAttempts bounds retries when a generated name already exists.
	maxNameAttempts = 5
)

// uploadResp is the JSON response returned after a successful upload.
type uploadResp struct {
	URL string `json:"url"`
}

// handleUpload handles POST /upload with a multipart "file" field. The
// part is streamed straight to storage; nothing is buffered beyond the
// bytes needed to sniff an undeclared content type.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartSlack)

	name, size, err := s.receiveUpload(r.Context(), r)
	if err != nil {
		s.metrics.RecordUploadRejected(codeFor(err))
		writeError(w, r, err)
		return
	}

	s.metrics.RecordUpload(size, time.Since(start))
	logger.FromContext(r.Context()).Info("upload stored", "name", name, "bytes", size)

	writeJSON(w, http.StatusOK, uploadResp{URL: s.assetURL(r, name)})
}

// receiveUpload finds the first "file" part carrying a filename and
// stores it. Other parts are skipped.
func (s *Server) receiveUpload(ctx context.Context, r *http.Request) (string, int64, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return "", 0, errNoFile()
		}
		return "", 0, errBadMultipart(err)
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return "", 0, errNoFile()
		}
		if err != nil {
			return "", 0, classifyMultipartError(err)
		}

		if part.FormName() != "file" || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		name, size, err := s.storePart(ctx, part)
		_ = part.Close()
		return name, size, err
	}
}

func (s *Server) storePart(ctx context.Context, part *multipart.Part) (string, int64, error) {
	br := bufio.NewReaderSize(part, sniffLen)

	contentType := normaliseContentType(part.Header.Get("Content-Type"))
	if needsSniffing(contentType) {
		head, err := br.Peek(sniffLen)
		if err != nil && err != io.EOF {
			return "", 0, classifyReadError(err)
		}
		contentType = normaliseContentType(mimetype.Detect(head).String())
	}

	if err := validateUpload(part.FileName(), contentType); err != nil {
		return "", 0, err
	}

	src := &sizeLimitReader{r: br, remaining: s.cfg.MaxUploadBytes}
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := generateName(s.clock.next(), part.FileName())

		size, err := s.store.Create(ctx, name, src, allowedTypes[contentType])
		if errors.Is(err, storage.ErrExist) {
			continue
		}
		if err != nil {
			return "", 0, classifyReadError(err)
		}
		return name, size, nil
	}

	return "", 0, errInternal(fmt.Errorf("no free name after %d attempts", maxNameAttempts))
}

// classifyMultipartError maps a NextPart failure. The multipart reader only
// fails on the request body, so anything but the size cap is malformed input.
func classifyMultipartError(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return errTooLarge(err)
	}
	return errBadMultipart(err)
}

// classifyReadError maps failures while copying a part to storage. Storage
// faults stay internal; only a truncated body is blamed on the client.
func classifyReadError(err error) error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return errTooLarge(err)
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		return errBadMultipart(err)
	}
	return errInternal(err)
}

// publicBase is the configured base URL or, when unset, the scheme and
// host the request arrived on.
func (s *Server) publicBase(r *http.Request) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/")
	}

	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func (s *Server) assetURL(r *http.Request, name string) string {
	return s.publicBase(r) + "/uploads/" + url.PathEscape(name)
}
