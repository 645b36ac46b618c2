package storage

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/docregistry/apiserver/config"
)

// gcsBackend keeps scans in a Google Cloud Storage bucket.
type gcsBackend struct {
	bucket    *storage.BucketHandle
	name      string
	projectID string
}

func newGCSBackend(ctx context.Context, cfg config.GCSConfig) (*gcsBackend, error) {
	if err := requireSettings(setting{"GCS_BUCKET", cfg.Bucket}); err != nil {
		return nil, err
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &gcsBackend{bucket: client.Bucket(cfg.Bucket), name: cfg.Bucket, projectID: cfg.ProjectID}, nil
}

// Creating a missing bucket needs GCS_PROJECT_ID.
func (g *gcsBackend) EnsureBucket(ctx context.Context) error {
	_, err := g.bucket.Attrs(ctx)
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return err
	}
	if err := requireSettings(setting{"GCS_PROJECT_ID", g.projectID}); err != nil {
		return err
	}
	return g.bucket.Create(ctx, g.projectID, nil)
}

func (g *gcsBackend) Put(ctx context.Context, key string, r io.Reader, _ int64, contentType string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		// Cancelling before Close discards the partial object.
		cancel()
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (g *gcsBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return g.bucket.Object(key).NewReader(ctx)
}

func (g *gcsBackend) Delete(ctx context.Context, key string) error {
	return g.bucket.Object(key).Delete(ctx)
}

func (g *gcsBackend) Bucket() string { return g.name }

func (g *gcsBackend) IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrObjectNotExist)
}
