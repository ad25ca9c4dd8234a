package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"listingwatch/config"
	"listingwatch/types"

	"go.uber.org/zap"
)

// objectWriter is the subset of common.S3 used by Archive
type objectWriter interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
	Exists(ctx context.Context, bucket, key string) (bool, error)
}

// Archive stores every event as a JSON object, one object per event ID
type Archive struct {
	client objectWriter
	bucket string
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

func NewArchive(client objectWriter, cfg config.ArchiveConfig, logger *zap.Logger) *Archive {
	return &Archive{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: logger.Named("archive"),
		now:    time.Now,
	}
}

func (a *Archive) Name() string { return "archive" }

// Notify writes the event under <prefix>/YYYY/MM/DD/<id>.json. An event
// already archived is left untouched.
func (a *Archive) Notify(ctx context.Context, event types.Event) error {
	key := a.objectKey(event)

	exists, err := a.client.Exists(ctx, a.bucket, key)
	if err != nil {
		return fmt.Errorf("check s3://%s/%s: %w", a.bucket, key, err)
	}
	if exists {
		a.logger.Debug("Event already archived", zap.String("key", key))
		return nil
	}

	body, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := a.client.Put(ctx, a.bucket, key, bytes.NewReader(body), "application/json"); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err)
	}
	a.logger.Info("Event archived", zap.String("bucket", a.bucket), zap.String("key", key))
	return nil
}

func (a *Archive) objectKey(event types.Event) string {
	return path.Join(a.prefix, a.now().UTC().Format("2006/01/02"), event.ID+".json")
}
