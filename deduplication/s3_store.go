package deduplication

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"listingwatch/common"
)

// objectStore is the subset of common.S3 used by S3Store
type objectStore interface {
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
}

// S3Store keeps the ledger as one object. PutObject replaces it atomically.
type S3Store struct {
	client objectStore
	bucket string
	key    string
}

func NewS3Store(client objectStore, bucket, key string) *S3Store {
	return &S3Store{client: client, bucket: bucket, key: key}
}

func (s *S3Store) Name() string { return "s3" }

func (s *S3Store) Load(ctx context.Context) ([]byte, error) {
	body, err := s.client.Get(ctx, s.bucket, s.key)
	if err != nil {
		if common.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer body.Close()

	b, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return b, nil
}

func (s *S3Store) Save(ctx context.Context, data []byte) error {
	if err := s.client.Put(ctx, s.bucket, s.key, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}
