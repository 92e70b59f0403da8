//go:build integration

// Runs the MinIO backend against a real MinIO container started with
// dockertest. Requires Docker:
//
//	go test -tags integration ./internal/storage -run TestMinio
//
// IMAGE_DROP_MINIO_TEST_TAG overrides the MinIO image tag.

package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBucket = "image-drop-test"

func startMinio(t *testing.T) string {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("could not connect to docker: %v", err)
	}

	tag := os.Getenv("IMAGE_DROP_MINIO_TEST_TAG")
	if tag == "" {
		tag = "RELEASE.2024-01-31T20-20-33Z"
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "minio/minio",
		Tag:        tag,
		Cmd:        []string{"server", "/data"},
		Env: []string{
			"MINIO_ROOT_USER=minio",
			"MINIO_ROOT_PASSWORD=minio123",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	if err != nil {
		t.Fatalf("could not start minio: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	endpoint := "localhost:" + resource.GetPort("9000/tcp")

	if err := pool.Retry(func() error {
		resp, err := http.Get("http://" + endpoint + "/minio/health/live")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("minio not ready: %d", resp.StatusCode)
		}
		return nil
	}); err != nil {
		t.Fatalf("minio not ready: %v", err)
	}

	mc, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4("minio", "minio123", ""),
	})
	require.NoError(t, err)
	require.NoError(t, mc.MakeBucket(context.Background(), testBucket, minio.MakeBucketOptions{}))

	return endpoint
}

func TestMinio_CreateOpenPing(t *testing.T) {
	endpoint := startMinio(t)
	ctx := context.Background()

	s, err := NewMinio(ctx, MinioOptions{
		Endpoint:  "http://" + endpoint,
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    testBucket,
	})
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))

	n, err := s.Create(ctx, "1700000000000-cat.png", bytes.NewReader(pngHeader), "image/png")
	require.NoError(t, err)
	assert.Equal(t, int64(len(pngHeader)), n)

	_, err = s.Create(ctx, "1700000000000-cat.png", strings.NewReader("again"), "image/png")
	assert.ErrorIs(t, err, ErrExist)

	obj, err := s.Open(ctx, "1700000000000-cat.png")
	require.NoError(t, err)
	defer obj.Close()

	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, got)
	assert.Equal(t, "image/png", obj.ContentType)

	_, err = s.Open(ctx, "missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMinio_MissingBucket(t *testing.T) {
	endpoint := startMinio(t)

	_, err := NewMinio(context.Background(), MinioOptions{
		Endpoint:  endpoint,
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "does-not-exist",
	})
	assert.Error(t, err)
}
