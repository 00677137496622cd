package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// errWebhookStatus is returned for non-2xx webhook answers.
	errWebhookStatus = errors.New("webhook returned error status")
	// errNoWebhookURL is returned when the webhook URL is empty.
	errNoWebhookURL = errors.New("webhook url is empty")
)

// Webhook posts Slack-compatible JSON payloads.
type Webhook struct {
	url    string
	client *http.Client
}

// webhookPayload is the JSON body sent to the hook.
type webhookPayload struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

// NewWebhook creates a webhook notifier posting to url.
func NewWebhook(url string, httpClient *http.Client) *Webhook {
	return &Webhook{
		url:    url,
		client: httpClient,
	}
}

// Deliver implements Notifier.
func (w *Webhook) Deliver(ctx context.Context, channel, text string) error {
	if w.url == "" {
		return deliveryError(errNoWebhookURL)
	}

	body, err := json.Marshal(webhookPayload{Channel: channel, Text: text})
	if err != nil {
		return deliveryError(fmt.Errorf("encode payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return deliveryError(fmt.Errorf("build request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	setUserAgent(req)

	resp, err := w.client.Do(req)
	if err != nil {
		return deliveryError(fmt.Errorf("post: %w", err))
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return deliveryError(fmt.Errorf("%w: %d", errWebhookStatus, resp.StatusCode))
	}

	return nil
}
