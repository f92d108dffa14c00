package storage

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/pkg/errors"
)

// GCSStore keeps objects in a Google Cloud Storage bucket. Credentials come from the environment.
type GCSStore struct {
	client *gcs.Client
	bucket string
}

func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("missing GCS_BUCKET")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "create GCS client")
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (s *GCSStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", errors.Wrap(err, "write data to GCS")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "close GCS writer")
	}
	return key, nil
}

func (s *GCSStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(path).NewReader(ctx)
	if err != nil {
		if stderrors.Is(err, gcs.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "open GCS reader")
	}
	return r, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
