package server

import (
	"context"
	"errors"
	"net/http"
	"path"

	"image-drop/internal/storage"
)

// assetExtensions are tried in order for extensionless lookups.
var assetExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}

const assetCacheControl = "public, max-age=31536000, immutable"

// handleAsset serves GET /uploads/{name}.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	obj, err := s.openAsset(r.Context(), r.PathValue("name"))
	if err != nil {
		if statusFor(err) == http.StatusNotFound {
			s.metrics.RecordAssetMiss()
		}
		writeError(w, r, err)
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", servedType(obj.ContentType))
	w.Header().Set("Cache-Control", assetCacheControl)
	w.Header().Set("X-Content-Type-Options", "nosniff")

	http.ServeContent(w, r, obj.Name, obj.ModTime, obj)
	s.metrics.RecordAssetServed(obj.Size)
}

func (s *Server) openAsset(ctx context.Context, name string) (*storage.Object, error) {
	obj, err := s.store.Open(ctx, name)
	if err == nil {
		return obj, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, errInternal(err)
	}

	if path.Ext(name) == "" {
		for _, ext := range assetExtensions {
			obj, err = s.store.Open(ctx, name+ext)
			if err == nil {
				return obj, nil
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return nil, errInternal(err)
			}
		}
	}

	return nil, errNotFound(err)
}

// servedType passes through image types from the allow-list and downgrades
// anything else to an opaque download.
func servedType(stored string) string {
	if ct, ok := allowedTypes[normaliseContentType(stored)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// handleNotFound answers every unrouted path.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, errNotFound(nil))
}
