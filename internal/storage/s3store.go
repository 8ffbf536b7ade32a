package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Default timeouts for S3 operations.
const (
	DefaultMetadataTimeout = 10 * time.Second // List, Stat, Delete operations
	DefaultDataTimeout     = 60 * time.Second // Get, Put operations (data transfer)
)

// S3Config holds connection settings for S3-compatible object storage.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool

	MetadataTimeout time.Duration
	DataTimeout     time.Duration
}

// S3Sink implements Sink using MinIO / S3-compatible storage. Keys passed
// to Put/Get/List/Delete are joined under cfg.Prefix.
type S3Sink struct {
	client          *minio.Client
	bucket          string
	prefix          string
	metadataTimeout time.Duration
	dataTimeout     time.Duration
}

// NewS3Sink creates an S3Sink connected to the given endpoint, auto-creating
// the bucket if it doesn't exist.
func NewS3Sink(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*S3Sink, error) {
	return NewS3SinkFromConfig(ctx, S3Config{
		Endpoint:  endpoint,
		AccessKey: accessKey,
		SecretKey: secretKey,
		Bucket:    bucket,
		UseSSL:    useSSL,
	})
}

// NewS3SinkFromConfig creates an S3Sink with explicit timeout configuration.
func NewS3SinkFromConfig(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	metadataTimeout := cfg.MetadataTimeout
	if metadataTimeout == 0 {
		metadataTimeout = DefaultMetadataTimeout
	}
	dataTimeout := cfg.DataTimeout
	if dataTimeout == 0 {
		dataTimeout = DefaultDataTimeout
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: metadataTimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	s := &S3Sink{
		client:          client,
		bucket:          cfg.Bucket,
		prefix:          cfg.Prefix,
		metadataTimeout: metadataTimeout,
		dataTimeout:     dataTimeout,
	}

	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *S3Sink) withMetadataTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.metadataTimeout)
}

func (s *S3Sink) withDataTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.dataTimeout)
}

func (s *S3Sink) ensureBucket(ctx context.Context) error {
	ctx, cancel := s.withMetadataTimeout(ctx)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *S3Sink) objectKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return strings.TrimSuffix(s.prefix, "/") + "/" + key
}

// Put writes data to the object named key under the sink's prefix.
func (s *S3Sink) Put(ctx context.Context, key string, data []byte) error {
	ctx, cancel := s.withDataTimeout(ctx)
	defer cancel()

	reader := bytes.NewReader(data)
	_, err := s.client.PutObject(ctx, s.bucket, s.objectKey(key), reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/vnd.apache.arrow.stream",
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Get reads the object named key.
func (s *S3Sink) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.withDataTimeout(ctx)
	defer cancel()

	obj, err := s.client.GetObject(ctx, s.bucket, s.objectKey(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// List returns the keys of all objects whose key starts with prefix,
// with the sink's own prefix stripped back off.
func (s *S3Sink) List(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := s.withMetadataTimeout(ctx)
	defer cancel()

	opts := minio.ListObjectsOptions{
		Prefix:    s.objectKey(prefix),
		Recursive: true,
	}

	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		key := obj.Key
		if s.prefix != "" {
			key = strings.TrimPrefix(key, strings.TrimSuffix(s.prefix, "/")+"/")
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Delete removes an object. S3 delete is idempotent.
func (s *S3Sink) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.withMetadataTimeout(ctx)
	defer cancel()

	if err := s.client.RemoveObject(ctx, s.bucket, s.objectKey(key), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}
