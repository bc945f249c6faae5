package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/observability"
)

// DefaultTelegramURL is the Bot API base URL.
const DefaultTelegramURL = "https://api.telegram.org"

// Telegram sends HTML messages to one chat through the Bot API. At most one
// message per second is sent; messages over the limit are dropped.
type Telegram struct {
	baseURL string
	token   string
	chatID  string
	client  *retryablehttp.Client
	limiter *rate.Limiter
}

var _ Notifier = (*Telegram)(nil)

// TelegramOption configures the Telegram notifier.
type TelegramOption func(*Telegram)

// WithTelegramURL overrides the Bot API base URL.
func WithTelegramURL(u string) TelegramOption {
	return func(t *Telegram) {
		t.baseURL = strings.TrimRight(u, "/")
	}
}

// WithRetryClient replaces the retrying HTTP client.
func WithRetryClient(c *retryablehttp.Client) TelegramOption {
	return func(t *Telegram) {
		t.client = c
	}
}

// WithSendInterval sets the minimum spacing between messages.
func WithSendInterval(d time.Duration) TelegramOption {
	return func(t *Telegram) {
		t.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewTelegram creates a notifier for the given bot token and chat.
func NewTelegram(token, chatID string, opts ...TelegramOption) *Telegram {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 3 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil

	t := &Telegram{
		baseURL: DefaultTelegramURL,
		token:   token,
		chatID:  chatID,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// SendMessage posts text to the chat. It reports whether the message was
// sent; a message dropped by the rate limit returns false and no error.
func (t *Telegram) SendMessage(ctx context.Context, text string) (bool, error) {
	if !t.limiter.Allow() {
		observability.RecordNotification("dropped")
		return false, nil
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:                t.chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return false, errors.Wrap(err, "marshal message")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token), body)
	if err != nil {
		return false, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		observability.RecordNotification("error")
		return false, errors.Wrap(err, "send message")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		observability.RecordNotification("error")
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, errors.Newf("telegram status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	observability.RecordNotification("sent")
	return true, nil
}

// NotifyVolumeSpike sends the volume spike message for alert.
func (t *Telegram) NotifyVolumeSpike(ctx context.Context, alert domain.VolumeAlert) error {
	_, err := t.SendMessage(ctx, VolumeSpikeMessage(alert.Token))
	return err
}

// VolumeSpikeMessage renders the HTML alert text for a token.
func VolumeSpikeMessage(tok domain.Token) string {
	return strings.Join([]string{
		"🚀 <b>Volume Spike Alert</b>",
		"",
		fmt.Sprintf("<b>%s</b> (%s)", html.EscapeString(tok.Name), html.EscapeString(tok.Symbol)),
		"💰 Market Cap: " + FormatUSD(tok.MarketCap),
		"💧 Liquidity: " + FormatUSD(tok.Liquidity),
		"📊 24h Volume: " + FormatUSD(tok.Volume24h),
		fmt.Sprintf("📈 Buy Ratio: %.1f%%", tok.BuyRatio*100),
		"",
		fmt.Sprintf("🔗 <code>%s</code>", html.EscapeString(tok.MintAddress)),
	}, "\n")
}

// FormatUSD abbreviates a dollar amount with K, M or B suffixes.
func FormatUSD(v float64) string {
	switch {
	case v <= 0:
		return "$0"
	case v >= 1e9:
		return fmt.Sprintf("$%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.2fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("$%.2fK", v/1e3)
	default:
		return fmt.Sprintf("$%.2f", v)
	}
}
