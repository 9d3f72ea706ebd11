package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
)

var (
	errInvalidBucket = errors.New("storage: bucket name is required")
	errInvalidObject = errors.New("storage: object name is required")
	errNilClient     = errors.New("storage: client is required")
)

// Uploader stores a generated artifact and returns its publicly reachable URL.
type Uploader interface {
	Upload(ctx context.Context, object, contentType string, data []byte) (string, error)
}

// GCSUploader writes artifacts to a Cloud Storage bucket.
type GCSUploader struct {
	client        *storage.Client
	bucket        string
	publicBaseURL string
}

// GCSOption customises the uploader.
type GCSOption func(*GCSUploader)

// WithPublicBaseURL overrides the base URL used to address uploaded objects,
// e.g. a CDN domain in front of the bucket.
func WithPublicBaseURL(base string) GCSOption {
	return func(u *GCSUploader) {
		if base != "" {
			u.publicBaseURL = strings.TrimRight(base, "/")
		}
	}
}

// NewGCSUploader constructs an uploader targeting the given bucket.
func NewGCSUploader(client *storage.Client, bucket string, opts ...GCSOption) (*GCSUploader, error) {
	if client == nil {
		return nil, errNilClient
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}

	uploader := &GCSUploader{
		client:        client,
		bucket:        bucket,
		publicBaseURL: "https://storage.googleapis.com/" + bucket,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(uploader)
		}
	}
	return uploader, nil
}

// Upload writes the object and returns its public URL. Re-uploading the same
// object name overwrites the previous content.
func (u *GCSUploader) Upload(ctx context.Context, object, contentType string, data []byte) (string, error) {
	object = strings.Trim(strings.TrimSpace(object), "/")
	if object == "" {
		return "", errInvalidObject
	}

	writer := u.client.Bucket(u.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "public, max-age=86400"

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("storage: write object %s: %w", object, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("storage: finalize object %s: %w", object, err)
	}

	return u.publicBaseURL + "/" + object, nil
}

// MemoryUploader keeps uploads in memory. It backs tests and local runs where
// no bucket is configured.
type MemoryUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	baseURL string
}

// NewMemoryUploader constructs an empty in-memory uploader.
func NewMemoryUploader(baseURL string) *MemoryUploader {
	if baseURL == "" {
		baseURL = "memory://artifacts"
	}
	return &MemoryUploader{
		objects: make(map[string][]byte),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Upload implements the Uploader interface.
func (u *MemoryUploader) Upload(_ context.Context, object, _ string, data []byte) (string, error) {
	object = strings.Trim(strings.TrimSpace(object), "/")
	if object == "" {
		return "", errInvalidObject
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[object] = append([]byte(nil), data...)
	return u.baseURL + "/" + object, nil
}

// Object returns the stored bytes for the given object name.
func (u *MemoryUploader) Object(object string) ([]byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	data, ok := u.objects[object]
	return data, ok
}

// Len reports how many objects have been stored.
func (u *MemoryUploader) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.objects)
}
