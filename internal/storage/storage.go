// Package storage uploads avatar files to an S3-compatible object store.
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/config"
)

// ObjectStore accepts a local file and returns the durable URL of the stored object.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	Upload(ctx context.Context, key, localPath, contentType string) (string, error)
}

func New(cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Driver {
	case config.StorageMinio:
		return NewMinioStore(cfg)
	case config.StorageS3:
		return NewS3Store(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// endpointURL returns the endpoint with a scheme.
func endpointURL(cfg config.StorageConfig) string {
	if strings.HasPrefix(cfg.Endpoint, "http://") || strings.HasPrefix(cfg.Endpoint, "https://") {
		return strings.TrimRight(cfg.Endpoint, "/")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + strings.TrimRight(cfg.Endpoint, "/")
}

// ObjectURL is where clients fetch key from. PublicBaseURL, when set, already
// addresses the bucket (a CDN or proxy in front of it).
func ObjectURL(cfg config.StorageConfig, key string) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/") + "/" + key
	}
	return endpointURL(cfg) + "/" + cfg.Bucket + "/" + key
}
