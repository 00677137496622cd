package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/oshokin/alert-relay/internal/config"
	"github.com/oshokin/alert-relay/internal/version"
)

const testToken = "123456:secret-token"

// recordingNotifier stores every delivered message.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

// Deliver implements Notifier.
func (r *recordingNotifier) Deliver(_ context.Context, channel, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, channel+": "+text)

	return nil
}

// TestTelegram_Deliver posts the chat id and text to sendMessage.
func TestTelegram_Deliver(t *testing.T) {
	t.Parallel()

	var got struct {
		path, chatID, text, userAgent string
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()

		got.path = r.URL.Path
		got.chatID = r.PostForm.Get("chat_id")
		got.text = r.PostForm.Get("text")
		got.userAgent = r.Header.Get("User-Agent")

		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7}}`))
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL+"/", testToken, srv.Client())

	require.NoError(t, tg.Deliver(context.Background(), "-100200", "hello\nworld"))
	require.Equal(t, "/bot"+testToken+"/sendMessage", got.path)
	require.Equal(t, "-100200", got.chatID)
	require.Equal(t, "hello\nworld", got.text)
	require.Equal(t, version.UserAgent(), got.userAgent)
}

// TestTelegram_Rejected surfaces ok=false answers as delivery failures.
func TestTelegram_Rejected(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	err := NewTelegram(srv.URL, testToken, srv.Client()).Deliver(context.Background(), "1", "x")
	require.ErrorIs(t, err, ErrDelivery)
	require.ErrorIs(t, err, errTelegramRejected)
	require.Contains(t, err.Error(), "chat not found")
}

// TestTelegram_TransportErrorHidesToken keeps the bot token out of error text.
func TestTelegram_TransportErrorHidesToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	err := NewTelegram(srv.URL, testToken, &http.Client{Timeout: time.Second}).
		Deliver(context.Background(), "1", "x")
	require.ErrorIs(t, err, ErrDelivery)
	require.NotContains(t, err.Error(), testToken)
}

// TestTruncateRunes cuts long texts on rune boundaries.
func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	require.Equal(t, "short", truncateRunes("short", 10))
	require.Equal(t, "ab…", truncateRunes("abcdef", 3))
	require.Equal(t, "🚨🚨…", truncateRunes("🚨🚨🚨🚨", 3))

	long := strings.Repeat("x", maxTelegramRunes+10)
	require.Len(t, []rune(truncateRunes(long, maxTelegramRunes)), maxTelegramRunes)
}

// TestWebhook_Deliver posts JSON and checks the status code.
func TestWebhook_Deliver(t *testing.T) {
	t.Parallel()

	var payload webhookPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		if r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}

		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewWebhook(srv.URL, srv.Client()).Deliver(context.Background(), "#ops", "disk full"))
	require.Equal(t, webhookPayload{Channel: "#ops", Text: "disk full"}, payload)

	err := NewWebhook(srv.URL+"/fail", srv.Client()).Deliver(context.Background(), "", "x")
	require.ErrorIs(t, err, ErrDelivery)
	require.ErrorIs(t, err, errWebhookStatus)

	err = NewWebhook("", srv.Client()).Deliver(context.Background(), "", "x")
	require.ErrorIs(t, err, errNoWebhookURL)
}

// TestLimited_Deliver fails instead of waiting past the context deadline.
func TestLimited_Deliver(t *testing.T) {
	t.Parallel()

	next := new(recordingNotifier)
	limited := NewLimited(next, rate.Every(time.Hour), 1)

	require.NoError(t, limited.Deliver(context.Background(), "c", "first"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := limited.Deliver(ctx, "c", "second")
	require.ErrorIs(t, err, ErrDelivery)
	require.Equal(t, []string{"c: first"}, next.messages)
}

// TestFromConfig builds each supported kind.
func TestFromConfig(t *testing.T) {
	t.Parallel()

	n, err := FromConfig(config.Notifier{Kind: "telegram", APIURL: config.DefaultTelegramAPIURL}, time.Second)
	require.NoError(t, err)
	require.IsType(t, &Telegram{}, n)

	n, err = FromConfig(config.Notifier{Kind: "webhook", PerMinute: 30, Burst: 2}, time.Second)
	require.NoError(t, err)
	require.IsType(t, &Limited{}, n)

	_, err = FromConfig(config.Notifier{Kind: "pigeon"}, time.Second)
	require.ErrorIs(t, err, errUnknownKind)
}
