package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mikelady/commitcast/internal/services"
)

// DiscordMessageLimit is the maximum content length Discord accepts
const DiscordMessageLimit = 2000

var _ services.Notifier = (*DiscordWebhook)(nil)

// DiscordWebhook delivers notifications to Discord channels through incoming
// webhooks, one webhook URL per channel ID.
type DiscordWebhook struct {
	webhooks map[string]string
	client   *http.Client
}

// NewDiscordWebhook creates a notifier for the given channel ID to webhook URL map
func NewDiscordWebhook(webhooks map[string]string) *DiscordWebhook {
	copied := make(map[string]string, len(webhooks))
	for k, v := range webhooks {
		copied[k] = v
	}
	return &DiscordWebhook{
		webhooks: copied,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// SendMessage posts text to the webhook registered for target. Text over
// DiscordMessageLimit characters is cut.
func (d *DiscordWebhook) SendMessage(ctx context.Context, target, text string) error {
	url, ok := d.webhooks[target]
	if !ok {
		return fmt.Errorf("%w: no webhook configured for channel %q", services.ErrNotFound, target)
	}

	runes := []rune(text)
	if len(runes) > DiscordMessageLimit {
		text = string(runes[:DiscordMessageLimit])
	}

	jsonData, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to call Discord webhook: %v", services.ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: Discord webhook %d - %s", services.ErrProviderFailed, resp.StatusCode, truncateBody(body))
	}
	return nil
}
