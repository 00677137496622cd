package integration

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// reservePort returns a free local address for a test server.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}

// hostPort splits a test server URL into host and port.
func hostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()

	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)

	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)

	return parsed.Hostname(), port
}

// netdataAgent is a fake netdata agent serving /api/v1/alarms.
type netdataAgent struct {
	hostname string
	alarms   atomic.Value
	server   *httptest.Server
}

func newNetdataAgent(t *testing.T, hostname string) *netdataAgent {
	t.Helper()

	agent := &netdataAgent{hostname: hostname}
	agent.alarms.Store(map[string]int64{})

	agent.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/alarms" {
			http.NotFound(w, r)
			return
		}

		raised := make(map[string]map[string]int64)
		for id, changedAt := range agent.alarms.Load().(map[string]int64) { //nolint:forcetypeassert // Only maps are stored.
			raised[id] = map[string]int64{"last_status_change": changedAt}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"hostname": agent.hostname,
			"alarms":   raised,
		})
	}))

	t.Cleanup(agent.server.Close)

	return agent
}

// raise replaces the set of raised alarms, keyed by id with unix status change times.
func (a *netdataAgent) raise(alarms map[string]int64) {
	a.alarms.Store(alarms)
}

// telegramAPI is a fake Bot API recording sendMessage calls.
type telegramAPI struct {
	mu       sync.Mutex
	messages []string
	chats    []string
	server   *httptest.Server
}

func newTelegramAPI(t *testing.T, token string) *telegramAPI {
	t.Helper()

	api := new(telegramAPI)

	api.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bot"+token+"/sendMessage" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"ok":false,"description":"Unauthorized"}`))

			return
		}

		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		api.mu.Lock()
		api.messages = append(api.messages, r.PostForm.Get("text"))
		api.chats = append(api.chats, r.PostForm.Get("chat_id"))
		api.mu.Unlock()

		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))

	t.Cleanup(api.server.Close)

	return api
}

// sent returns a copy of the delivered texts.
func (a *telegramAPI) sent() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]string(nil), a.messages...)
}

// chatIDs returns a copy of the chats messages were delivered to.
func (a *telegramAPI) chatIDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]string(nil), a.chats...)
}
