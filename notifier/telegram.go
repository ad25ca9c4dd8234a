package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"listingwatch/config"
	"listingwatch/types"

	"go.uber.org/zap"
)

// Telegram posts alerts through the Bot API sendMessage method
type Telegram struct {
	httpClient *http.Client
	endpoint   string
	chatID     string
	logger     *zap.Logger
}

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// NewTelegram returns ErrNotConfigured unless both token and chat ID are set
func NewTelegram(cfg config.TelegramConfig, client *http.Client, logger *zap.Logger) (*Telegram, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, fmt.Errorf("telegram: %w", ErrNotConfigured)
	}
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = config.DefaultTelegramAPIURL
	}
	return &Telegram{
		httpClient: client,
		endpoint:   fmt.Sprintf("%s/bot%s/sendMessage", apiURL, cfg.BotToken),
		chatID:     cfg.ChatID,
		logger:     logger.Named("telegram"),
	}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Notify(ctx context.Context, event types.Event) error {
	body, err := json.Marshal(telegramMessage{
		ChatID:                t.chatID,
		Text:                  FormatMessage(event),
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("marshal telegram message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// The endpoint embeds the bot token; keep it out of the error.
		return fmt.Errorf("telegram request failed: %w", redactTokenError(err))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var out telegramResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode != http.StatusOK || !out.OK {
		return fmt.Errorf("telegram returned HTTP %d: %s", resp.StatusCode, out.Description)
	}
	t.logger.Info("Alert sent", zap.String("title", truncate(event.Title, 50)))
	return nil
}

// redactTokenError drops the URL from transport errors
func redactTokenError(err error) error {
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok && u.Unwrap() != nil {
		return u.Unwrap()
	}
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
