// Package storage persists rekeyed/joined/dissolved output tables and
// reads them back for the delineation query API, behind a single Sink
// interface with a local-filesystem and an S3-compatible implementation.
package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/wikiwatershed/tdxmnsi/internal/config"
)

// Sink is the persistence interface for batch output tables. A region's
// run writes its streams_no_basin.arrow and basins_mnsi.arrow blobs here
// keyed by region code; the delineation API reads basins_mnsi.arrow back
// by the same key.
type Sink interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// HealthChecker reports whether a Sink's backend is currently reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// New builds the Sink and HealthChecker configured by cfg.Storage.
func New(ctx context.Context, cfg config.StorageConfig) (Sink, HealthChecker, error) {
	switch cfg.Backend {
	case "local":
		s := NewLocalSink(cfg.LocalDir)
		return s, s, nil
	case "s3":
		s3Cfg := S3Config{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			UseSSL:    os.Getenv("S3_USE_SSL") != "false",
		}
		s, err := NewS3SinkFromConfig(ctx, s3Cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("storage: %w", err)
		}
		return s, NewHealthChecker(s), nil
	default:
		return nil, nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}
