package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/oshokin/alert-relay/internal/config"
	"github.com/oshokin/alert-relay/internal/version"
)

var (
	// ErrDelivery marks any failure to deliver a message.
	ErrDelivery = errors.New("delivery failed")
	// errUnknownKind is returned for an unsupported notifier kind.
	errUnknownKind = errors.New("unknown notifier kind")
)

// Notifier delivers text to a channel.
type Notifier interface {
	Deliver(ctx context.Context, channel, text string) error
}

// FromConfig builds the configured notifier wrapped in a rate limiter.
func FromConfig(cfg config.Notifier, timeout time.Duration) (Notifier, error) {
	httpClient := &http.Client{Timeout: timeout}

	var notifier Notifier

	switch cfg.Kind {
	case "telegram", "":
		notifier = NewTelegram(cfg.APIURL, cfg.Token(), httpClient)
	case "webhook":
		notifier = NewWebhook(cfg.URL(), httpClient)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownKind, cfg.Kind)
	}

	if cfg.PerMinute <= 0 {
		return notifier, nil
	}

	return NewLimited(notifier, rate.Every(time.Minute/time.Duration(cfg.PerMinute)), cfg.Burst), nil
}

// deliveryError wraps err as an ErrDelivery.
func deliveryError(err error) error {
	return fmt.Errorf("%w: %w", ErrDelivery, err)
}

// setUserAgent stamps req with the relay user agent.
func setUserAgent(req *http.Request) {
	req.Header.Set("User-Agent", version.UserAgent())
}
