package storage

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	catalogapp "github.com/gamekeys/backend/internal/application/catalog"
)

// MemoryObjectStorage stands in for S3 when storage is disabled. Keys become
// visible as soon as an upload URL was issued for them, so the cover flow can
// be exercised locally without a bucket.
type MemoryObjectStorage struct {
	// BaseURL prefixes generated URLs. Defaults to "http://localhost:8080/storage".
	BaseURL string

	mu      sync.RWMutex
	objects map[string]string // key -> content type
}

// NewMemoryObjectStorage creates an empty MemoryObjectStorage
func NewMemoryObjectStorage(baseURL string) *MemoryObjectStorage {
	if baseURL == "" {
		baseURL = "http://localhost:8080/storage"
	}
	return &MemoryObjectStorage{
		BaseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]string),
	}
}

var _ catalogapp.ObjectStorage = (*MemoryObjectStorage)(nil)

// GenerateUploadURL returns a fake upload URL and registers the key
func (s *MemoryObjectStorage) GenerateUploadURL(
	_ context.Context,
	storageKey, contentType string,
	_ int64,
	expiresIn time.Duration,
) (string, time.Time, error) {
	if storageKey == "" {
		return "", time.Time{}, ErrStorageKeyRequired
	}

	s.mu.Lock()
	s.objects[storageKey] = contentType
	s.mu.Unlock()

	expiresAt := time.Now().Add(expiresIn)
	return s.url("upload", storageKey, expiresAt), expiresAt, nil
}

// GenerateDownloadURL returns a fake download URL
func (s *MemoryObjectStorage) GenerateDownloadURL(
	_ context.Context,
	storageKey string,
	expiresIn time.Duration,
) (string, time.Time, error) {
	if storageKey == "" {
		return "", time.Time{}, ErrStorageKeyRequired
	}
	expiresAt := time.Now().Add(expiresIn)
	return s.url("download", storageKey, expiresAt), expiresAt, nil
}

// DeleteObject forgets the key
func (s *MemoryObjectStorage) DeleteObject(_ context.Context, storageKey string) error {
	if storageKey == "" {
		return ErrStorageKeyRequired
	}
	s.mu.Lock()
	delete(s.objects, storageKey)
	s.mu.Unlock()
	return nil
}

// ObjectExists reports whether an upload URL was issued for the key
func (s *MemoryObjectStorage) ObjectExists(_ context.Context, storageKey string) (bool, error) {
	if storageKey == "" {
		return false, ErrStorageKeyRequired
	}
	s.mu.RLock()
	_, ok := s.objects[storageKey]
	s.mu.RUnlock()
	return ok, nil
}

func (s *MemoryObjectStorage) url(action, storageKey string, expiresAt time.Time) string {
	q := url.Values{"expires": {expiresAt.UTC().Format(time.RFC3339)}}
	return s.BaseURL + "/" + action + "/" + storageKey + "?" + q.Encode()
}
