package deduplication

import (
	"context"
	"errors"
	"fmt"
	"io"

	"listingwatch/common"
	"listingwatch/config"
)

// ErrNotFound is returned by a Store that has never been written
var ErrNotFound = errors.New("ledger document not found")

// Store persists the serialized ledger document. Save must replace the
// document atomically: a reader sees either the old or the new bytes.
type Store interface {
	Name() string
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// OpenStore builds the backend selected by cfg.Ledger.Backend
func OpenStore(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.Ledger.Backend {
	case config.LedgerBackendFile, "":
		return NewFileStore(cfg.Ledger.FilePath), nil
	case config.LedgerBackendS3:
		client, err := common.NewS3(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		return NewS3Store(client, cfg.Ledger.S3Bucket, cfg.Ledger.S3Key), nil
	case config.LedgerBackendRedis:
		return NewRedisStore(RedisConfig{
			Addr:     cfg.Ledger.RedisAddr,
			Password: cfg.Ledger.RedisPassword,
			DB:       cfg.Ledger.RedisDB,
			Key:      cfg.Ledger.RedisKey,
		}), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

// CloseStore closes store if it holds a connection
func CloseStore(store Store) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
