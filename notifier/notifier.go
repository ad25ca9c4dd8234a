// Package notifier delivers confirmed events to the configured channels.
// Every Notify call blocks until the channel confirms delivery or fails.
package notifier

import (
	"context"
	"errors"
	"io"
	"os"

	"listingwatch/common"
	"listingwatch/config"
	"listingwatch/sources"
	"listingwatch/types"

	"go.uber.org/zap"
)

// ErrNotConfigured is returned by a constructor whose channel lacks settings
var ErrNotConfigured = errors.New("channel not configured")

// Notifier is one delivery channel
type Notifier interface {
	// Name returns the channel identifier (e.g. "telegram", "kafka").
	Name() string

	// Notify delivers one event and returns once delivery is confirmed or failed.
	Notify(ctx context.Context, event types.Event) error
}

// Build constructs every configured channel. A channel whose constructor
// fails is logged and left out; the others are still returned.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) []Notifier {
	logger = logger.Named("notifier")
	client := sources.NewHTTPClient(cfg.HTTP.Timeout)

	var out []Notifier
	add := func(name string, n Notifier, err error) {
		switch {
		case errors.Is(err, ErrNotConfigured):
			logger.Debug("Channel disabled", zap.String("channel", name))
		case err != nil:
			logger.Error("Channel setup failed, disabling it", zap.String("channel", name), zap.Error(err))
		default:
			logger.Info("Channel enabled", zap.String("channel", name))
			out = append(out, n)
		}
	}

	tg, err := NewTelegram(cfg.Telegram, client, logger)
	add("telegram", tg, err)

	wh, err := NewWebhook(cfg.Webhook, client, logger)
	add("webhook", wh, err)

	kn, err := NewKafka(cfg.Kafka, logger)
	add("kafka", kn, err)

	if cfg.Archive.Bucket != "" {
		s3Client, err := common.NewS3(ctx, cfg.S3)
		if err != nil {
			add("archive", nil, err)
		} else {
			add("archive", NewArchive(s3Client, cfg.Archive, logger), nil)
		}
	}

	if cfg.ConsoleNotify {
		add("console", NewConsole(os.Stdout), nil)
	}
	return out
}

// CloseAll releases channels that hold connections
func CloseAll(notifiers []Notifier, logger *zap.Logger) {
	for _, n := range notifiers {
		c, ok := n.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			logger.Warn("Failed to close channel", zap.String("channel", n.Name()), zap.Error(err))
		}
	}
}
