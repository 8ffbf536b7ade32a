package storage_test

import (
	"context"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wikiwatershed/tdxmnsi/internal/storage"
)

const testBucket = "tdxmnsi-test"

// testS3Sink returns an S3Sink connected to a test MinIO instance.
// It skips the test if S3_ENDPOINT is not set so the unit test run stays fast.
func testS3Sink(t *testing.T) *storage.S3Sink {
	t.Helper()

	endpoint := os.Getenv("S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("S3_ENDPOINT not set, skipping integration test")
	}
	accessKey := os.Getenv("S3_ACCESS_KEY")
	secretKey := os.Getenv("S3_SECRET_KEY")

	ctx := context.Background()
	sink, err := storage.NewS3Sink(ctx, endpoint, accessKey, secretKey, testBucket, false)
	if err != nil {
		t.Fatalf("create s3 sink: %v", err)
	}

	cleanBucket(t, endpoint, accessKey, secretKey)
	return sink
}

func cleanBucket(t *testing.T, endpoint, accessKey, secretKey string) {
	t.Helper()

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Fatalf("create minio client for cleanup: %v", err)
	}

	ctx := context.Background()
	objects := client.ListObjects(ctx, testBucket, minio.ListObjectsOptions{Recursive: true})
	for obj := range objects {
		if obj.Err != nil {
			t.Fatalf("list objects for cleanup: %v", obj.Err)
		}
		if err := client.RemoveObject(ctx, testBucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			t.Fatalf("remove object %s: %v", obj.Key, err)
		}
	}
}
