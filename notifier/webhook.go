package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"listingwatch/config"
	"listingwatch/types"

	"go.uber.org/zap"
)

const (
	webhookMaxRetries = 2
	webhookUserAgent  = "listingwatch/v1"
	webhookEventType  = "listingwatch.listing.event"
)

// WebhookEnvelope is the JSON payload POSTed to webhook endpoints.
type WebhookEnvelope struct {
	// Type identifies the notification kind.
	Type string `json:"type"`
	// SchemaVersion allows consumers to detect breaking changes.
	SchemaVersion string `json:"schemaVersion"`
	// Timestamp is the RFC3339 time the notification was sent.
	Timestamp string `json:"timestamp"`
	// Message is the rendered alert text.
	Message string `json:"message"`
	// Data is the event itself.
	Data types.Event `json:"data"`
}

// Webhook POSTs each event to a generic HTTP endpoint
type Webhook struct {
	httpClient *http.Client
	logger     *zap.Logger
	url        string
	authToken  string
	backoff    time.Duration
}

// NewWebhook returns ErrNotConfigured when no URL is set and an error when it is invalid
func NewWebhook(cfg config.WebhookConfig, client *http.Client, logger *zap.Logger) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook: %w", ErrNotConfigured)
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("webhook URL must include a host")
	}

	return &Webhook{
		httpClient: client,
		logger:     logger.Named("webhook"),
		url:        cfg.URL,
		authToken:  cfg.AuthToken,
		backoff:    time.Second,
	}, nil
}

func (w *Webhook) Name() string { return "webhook" }

// Notify POSTs the event, retrying transient failures with linear backoff
func (w *Webhook) Notify(ctx context.Context, event types.Event) error {
	body, err := json.Marshal(WebhookEnvelope{
		Type:          webhookEventType,
		SchemaVersion: "1",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Message:       FormatMessage(event),
		Data:          event,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	var lastErr error
	for attempt := range webhookMaxRetries + 1 {
		if attempt > 0 {
			// Linear backoff: 1s, 2s.
			timer := time.NewTimer(time.Duration(attempt) * w.backoff)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
			}
		}

		lastErr = w.doPost(ctx, body)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		w.logger.Debug("Webhook send transient failure, will retry",
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}
	return fmt.Errorf("webhook send failed after %d attempts: %w", webhookMaxRetries+1, lastErr)
}

// doPost executes a single HTTP POST request.
func (w *Webhook) doPost(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)
	if w.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+w.authToken)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return &webhookError{err: err, retryable: true}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &webhookError{
		err:       fmt.Errorf("webhook returned HTTP %d", resp.StatusCode),
		retryable: resp.StatusCode >= 500,
	}
}

// webhookError wraps an error with a retryable flag.
type webhookError struct {
	err       error
	retryable bool
}

func (e *webhookError) Error() string { return e.err.Error() }
func (e *webhookError) Unwrap() error { return e.err }

// isRetryable returns true if the error is a transient failure worth retrying.
func isRetryable(err error) bool {
	var we *webhookError
	if errors.As(err, &we) {
		return we.retryable
	}
	return true
}
