package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"image-drop/internal/logger"
)

// Kind classifies an error for the HTTP layer.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalid
	KindNotFound
	KindRateLimited
)

// Error is the typed error handlers return. Message is safe to show to
// clients; Err carries the cause for logs.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

const (
	msgNoFile       = "No file provided"
	msgInvalidType  = "Invalid file type. Only PNG, JPG, JPEG and WebP are allowed."
	msgTooLarge     = "File too large"
	msgBadMultipart = "Invalid multipart request"
	msgNotFound     = "Not found"
	msgRateLimited  = "Too many requests"
	msgInternal     = "Internal server error"
)

func errNoFile() *Error {
	return &Error{Kind: KindInvalid, Code: "no_file", Message: msgNoFile}
}

func errInvalidType(contentType string) *Error {
	return &Error{Kind: KindInvalid, Code: "invalid_type", Message: msgInvalidType, Err: errors.New("content type " + contentType)}
}

func errTooLarge(cause error) *Error {
	return &Error{Kind: KindInvalid, Code: "too_large", Message: msgTooLarge, Err: cause}
}

func errBadMultipart(cause error) *Error {
	return &Error{Kind: KindInvalid, Code: "bad_multipart", Message: msgBadMultipart, Err: cause}
}

func errNotFound(cause error) *Error {
	return &Error{Kind: KindNotFound, Code: "not_found", Message: msgNotFound, Err: cause}
}

func errInternal(cause error) *Error {
	return &Error{Kind: KindInternal, Code: "internal", Message: msgInternal, Err: cause}
}

// statusFor maps any error to the HTTP status sent to the client.
func statusFor(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindInvalid:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// codeFor returns the short reason recorded in metrics.
func codeFor(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return "internal"
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError renders err as {"error": message}. Server errors are logged
// with the request id and never expose their cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := logger.FromContext(r.Context())

	msg := msgInternal
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", r.URL.Path, "err", err)
	} else {
		var e *Error
		if errors.As(err, &e) {
			msg = e.Message
		}
		log.Debug("request rejected", "path", r.URL.Path, "status", status, "err", err)
	}

	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
