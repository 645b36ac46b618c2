package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/docregistry/apiserver/config"
)

var (
	// ErrObjectNotFound is returned by Get when the key does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrConfig reports missing backend settings.
	ErrConfig = errors.New("storage: invalid configuration")
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// notFoundReporter is implemented by backends whose client reports a
// missing object with its own error type.
type notFoundReporter interface {
	IsNotFound(err error) bool
}

type setting struct {
	env   string
	value string
}

// requireSettings names every blank setting at once.
func requireSettings(settings ...setting) error {
	var missing []string
	for _, s := range settings {
		if strings.TrimSpace(s.value) == "" {
			missing = append(missing, s.env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrConfig, strings.Join(missing, ", "))
	}
	return nil
}

// Storage wraps an ObjectStorage backend with a stable API.
type Storage struct {
	backend ObjectStorage
}

func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// Open builds the backend selected by cfg.Backend and makes sure its bucket
// exists. It returns a nil Storage and no error for "none".
func Open(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var backend ObjectStorage
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		return nil, nil
	case "minio":
		b, err := newMinioBackend(cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("minio: %w", err)
		}
		backend = b
	case "gcs":
		b, err := newGCSBackend(ctx, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("gcs: %w", err)
		}
		backend = b
	case "memory":
		backend = NewMemoryStorage("memory")
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	if err := backend.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", backend.Bucket(), err)
	}
	return NewStorage(backend), nil
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an object. size may be -1 when unknown.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Get opens a reader for an object. The caller must close it.
func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.backend.Get(ctx, key)
	if err != nil {
		if s.isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, err
	}
	return rc, nil
}

// Delete removes an object. Deleting a missing key is not an error.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil && !s.isNotFound(err) {
		return err
	}
	return nil
}

func (s *Storage) isNotFound(err error) bool {
	if errors.Is(err, ErrObjectNotFound) {
		return true
	}
	r, ok := s.backend.(notFoundReporter)
	return ok && r.IsNotFound(err)
}

func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}
