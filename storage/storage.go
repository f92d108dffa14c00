package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"learnhub/config"
	"learnhub/logger"
)

// ErrNotFound is returned by Open when no object exists under the key.
var ErrNotFound = errors.New("storage: object not found")

// Store keeps generated files such as certificate PDFs.
type Store interface {
	// Put writes r under key and returns the path to persist.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	// Open returns a reader for a path previously returned by Put.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// New picks the driver from STORAGE_DRIVER.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (Store, error) {
	switch cfg.StorageDriver {
	case "", "local":
		log.Info("Selecting object storage provider", "driver", "local", "dir", cfg.StorageDir)
		return NewLocalStore(cfg.StorageDir)
	case "gcs":
		log.Info("Selecting object storage provider", "driver", "gcs", "bucket", cfg.GCSBucket)
		return NewGCSStore(ctx, cfg.GCSBucket)
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}
}
