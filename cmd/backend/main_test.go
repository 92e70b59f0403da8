package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"image-drop/internal/config"
	"image-drop/internal/storage"
)

func TestOpenStorage(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Storage
		wantErr bool
	}{
		{
			name: "local creates directory",
			cfg:  config.Storage{Driver: config.DriverLocal, Dir: filepath.Join(t.TempDir(), "a", "b")},
		},
		{
			name:    "local with empty dir",
			cfg:     config.Storage{Driver: config.DriverLocal},
			wantErr: true,
		},
		{
			name:    "minio incomplete",
			cfg:     config.Storage{Driver: config.DriverMinio, Endpoint: "minio:9000"},
			wantErr: true,
		},
		{
			name:    "unknown driver",
			cfg:     config.Storage{Driver: "ftp"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := openStorage(context.Background(), tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %+v", tt.cfg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			local, ok := store.(*storage.Local)
			if !ok {
				t.Fatalf("got %T, want *storage.Local", store)
			}
			if info, err := os.Stat(local.Dir()); err != nil || !info.IsDir() {
				t.Fatalf("storage dir not created: %v", err)
			}
		})
	}
}
