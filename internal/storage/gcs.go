package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore keeps blobs in a Google Cloud Storage bucket. Objects are
// expected to be publicly readable; URL returns the public object address.
type GCSStore struct {
	client     *storage.Client
	bucket     string
	publicBase string
}

type GCSOptions struct {
	Bucket string
	// PublicBaseURL overrides https://storage.googleapis.com/<bucket>, for a
	// CDN domain or an emulator.
	PublicBaseURL string
	// EmulatorHost selects an unauthenticated client against a fake server.
	EmulatorHost string
}

func NewGCSStore(ctx context.Context, o GCSOptions) (*GCSStore, error) {
	if o.Bucket == "" {
		return nil, errors.New("gcs: bucket is required")
	}
	var opts []option.ClientOption
	if o.EmulatorHost != "" {
		opts = append(opts, option.WithoutAuthentication(),
			option.WithEndpoint(strings.TrimRight(o.EmulatorHost, "/")+"/storage/v1/"))
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}

	base := strings.TrimRight(o.PublicBaseURL, "/")
	if base == "" {
		base = "https://storage.googleapis.com/" + o.Bucket
	}
	return &GCSStore{client: client, bucket: o.Bucket, publicBase: base}, nil
}

func (s *GCSStore) Put(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	w.CacheControl = "public, max-age=31536000"
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close %s: %w", key, err)
	}
	return key, nil
}

func (s *GCSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	rc, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("gcs read %s: %w", key, err)
	}
	return rc, nil
}

func (s *GCSStore) URL(key string) string {
	return s.publicBase + "/" + strings.TrimLeft(key, "/")
}

func (s *GCSStore) Close() error { return s.client.Close() }
