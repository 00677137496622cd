package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxTelegramRunes is the Bot API limit for a message text.
const maxTelegramRunes = 4096

// errTelegramRejected is returned when the Bot API answers ok=false.
var errTelegramRejected = errors.New("telegram rejected message")

// Telegram sends messages through the Bot API sendMessage method.
type Telegram struct {
	apiURL string
	token  string
	client *http.Client
}

// telegramResponse is the envelope of every Bot API answer.
type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// NewTelegram creates a Telegram notifier for the bot identified by token.
func NewTelegram(apiURL, token string, httpClient *http.Client) *Telegram {
	return &Telegram{
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  token,
		client: httpClient,
	}
}

// Deliver implements Notifier. channel is the chat id.
func (t *Telegram) Deliver(ctx context.Context, channel, text string) error {
	form := url.Values{
		"chat_id": {channel},
		"text":    {truncateRunes(text, maxTelegramRunes)},
	}

	endpoint := t.apiURL + "/bot" + t.token + "/sendMessage"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return deliveryError(fmt.Errorf("build request: %w", err))
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	setUserAgent(req)

	resp, err := t.client.Do(req)
	if err != nil {
		// The URL carries the token; keep it out of logs.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}

		return deliveryError(fmt.Errorf("send message: %w", err))
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	var answer telegramResponse
	if err = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&answer); err != nil {
		return deliveryError(fmt.Errorf("decode answer (http %d): %w", resp.StatusCode, err))
	}

	if resp.StatusCode != http.StatusOK || !answer.OK {
		return deliveryError(fmt.Errorf("%w: http %d: %s", errTelegramRejected, resp.StatusCode, answer.Description))
	}

	return nil
}

// truncateRunes shortens s to at most limit runes, marking the cut with an ellipsis.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return string(runes[:limit-1]) + "…"
}
