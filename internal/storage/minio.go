package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioOptions configures an S3-compatible backend.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

// Minio stores assets as objects in a single bucket.
type Minio struct {
	client *minio.Client
	bucket string
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	// host:port without a scheme is plain http, as with a local MinIO.
	return raw, false, nil
}

// NewMinio connects to the endpoint and checks that the bucket exists.
func NewMinio(ctx context.Context, opts MinioOptions) (*Minio, error) {
	if opts.Endpoint == "" || opts.AccessKey == "" || opts.SecretKey == "" || opts.Bucket == "" {
		return nil, errors.New("storage.NewMinio: configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("storage.NewMinio: %w", err)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("storage.NewMinio: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage.NewMinio: failed to check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("storage.NewMinio: bucket does not exist: %s", opts.Bucket)
	}

	return &Minio{client: client, bucket: opts.Bucket}, nil
}

// Create refuses names that already exist. The check and the put are not
// atomic on the server; uniqueness across writers relies on the caller's
// name generation.
func (s *Minio) Create(ctx context.Context, name string, r io.Reader, contentType string) (int64, error) {
	if !ValidName(name) {
		return 0, ErrInvalidName
	}

	_, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err == nil {
		return 0, ErrExist
	}
	if !isNoSuchKey(err) {
		return 0, fmt.Errorf("storage.Create: failed to stat %s: %w", name, err)
	}

	info, err := s.client.PutObject(ctx, s.bucket, name, ctxReader{ctx: ctx, r: r}, -1, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return 0, fmt.Errorf("storage.Create: failed to put %s: %w", name, err)
	}

	return info.Size, nil
}

func (s *Minio) Open(ctx context.Context, name string) (*Object, error) {
	if !ValidName(name) {
		return nil, ErrNotFound
	}

	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage.Open: failed to get %s: %w", name, err)
	}

	// GetObject is lazy; Stat performs the request.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage.Open: failed to stat %s: %w", name, err)
	}

	return &Object{
		ReadSeekCloser: obj,
		Name:           name,
		ContentType:    info.ContentType,
		Size:           info.Size,
		ModTime:        info.LastModified,
	}, nil
}

func (s *Minio) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("storage.Ping: %w", err)
	}
	if !exists {
		return fmt.Errorf("storage.Ping: bucket does not exist: %s", s.bucket)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
