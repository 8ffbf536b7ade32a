package storage

import (
	"context"
	"fmt"
)

// s3HealthChecker checks whether an S3Sink's bucket is reachable.
type s3HealthChecker struct {
	sink *S3Sink
}

// NewHealthChecker creates a health checker for the given S3 sink.
func NewHealthChecker(sink *S3Sink) HealthChecker {
	return &s3HealthChecker{sink: sink}
}

func (h *s3HealthChecker) HealthCheck(ctx context.Context) error {
	exists, err := h.sink.client.BucketExists(ctx, h.sink.bucket)
	if err != nil {
		return fmt.Errorf("s3 bucket check: %w", err)
	}
	if !exists {
		return fmt.Errorf("s3 bucket %q does not exist", h.sink.bucket)
	}
	return nil
}
