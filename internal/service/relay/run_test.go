package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alert-relay/internal/config"
	"github.com/oshokin/alert-relay/internal/domain/alarm"
	"github.com/oshokin/alert-relay/internal/source"
)

const (
	startedText = "❤ alert-relay started on test-host"
	stoppedText = "\U0001F494 alert-relay stopped on test-host"
)

func newTestDriver(engine *Engine) *driver {
	return &driver{
		engine:        engine,
		hostname:      "test-host",
		pollInterval:  10 * time.Millisecond,
		shutdownGrace: 200 * time.Millisecond,
		now:           time.Now,
	}
}

func runInBackground(ctx context.Context, d *driver) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)

		d.run(ctx)
	}()

	return done
}

func countText(deliveries []delivery, text string) int {
	var count int

	for _, d := range deliveries {
		if d.text == text {
			count++
		}
	}

	return count
}

func TestDriverAnnouncesStartAndStopOnce(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.set("10.0.0.1", "web-1")

	notifier := new(fakeNotifier)
	d := newTestDriver(NewEngine(src, notifier, testSettings("10.0.0.1")))

	ctx, cancel := context.WithCancel(context.Background())
	done := runInBackground(ctx, d)

	// Several ticks with identical state.
	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()

		return src.calls >= 5
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done

	deliveries := notifier.deliveries()
	require.Len(t, deliveries, 3)
	require.Equal(t, startedText, deliveries[0].text)
	require.Equal(t, testIdentity+"\n✔ No alarms on web-1", deliveries[1].text)
	require.Equal(t, stoppedText, deliveries[2].text)
}

func TestDriverStopIsBoundedByGrace(t *testing.T) {
	t.Parallel()

	settings := testSettings("10.0.0.1")
	settings.NotifyTimeout = time.Minute

	notifier := &fakeNotifier{hang: true}
	d := newTestDriver(NewEngine(newFakeSource(), notifier, settings))
	d.shutdownGrace = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	started := time.Now()
	d.run(ctx)

	require.Less(t, time.Since(started), 2*time.Second)
	// Start, first cycle and stop were all attempted.
	require.Equal(t, 3, notifier.attemptCount())
}

func TestDriverAppliesReload(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.set("10.0.0.1", "web-1")
	src.set("10.0.0.2", "db-1")

	notifier := new(fakeNotifier)
	d := newTestDriver(NewEngine(src, notifier, testSettings("10.0.0.1")))

	reloads := make(chan *config.Config, 1)
	d.reloads = reloads
	d.rebuild = func(cfg *config.Config, _ string) (*components, error) {
		settings := testSettings("10.0.0.1", "10.0.0.2")
		settings.Channel = cfg.Notifier.ChatID

		return &components{client: src, notifier: notifier, settings: settings}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := runInBackground(ctx, d)

	next := config.Default()
	next.PollInterval = 5 * time.Millisecond
	next.Notifier.ChatID = "chat-9"
	reloads <- next

	require.Eventually(t, func() bool {
		for _, delivery := range notifier.deliveries() {
			if delivery.channel == "chat-9" && strings.Contains(delivery.text, "No alarms on db-1") {
				return true
			}
		}

		return false
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done

	require.Equal(t, 5*time.Millisecond, d.pollInterval)

	deliveries := notifier.deliveries()
	require.Equal(t, 1, countText(deliveries, startedText))
	require.Equal(t, 1, countText(deliveries, stoppedText))
}

func TestDriverRejectsBrokenReload(t *testing.T) {
	t.Parallel()

	src := newFakeSource()
	src.set("10.0.0.1", "web-1")

	d := newTestDriver(NewEngine(src, new(fakeNotifier), testSettings("10.0.0.1")))
	d.rebuild = func(*config.Config, string) (*components, error) {
		return nil, errors.New("bad notifier")
	}

	require.False(t, d.reload(context.Background(), config.Default()))
	require.False(t, d.reload(context.Background(), nil))
	require.Equal(t, 10*time.Millisecond, d.pollInterval)
}

func TestAssembleFromSettings(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.GraceDelay = 3 * time.Minute
	cfg.AliveInterval = 6 * time.Hour
	cfg.Notifier.ChatID = "-100200"
	cfg.Sources = []config.Source{
		{Name: "web", Address: "10.0.0.1"},
		{Kind: "prometheus", Address: "prom.internal"},
	}

	parts, err := assemble(cfg, "relay-host")
	require.NoError(t, err)
	require.IsType(t, &source.Breaker{}, parts.client)
	require.NotNil(t, parts.notifier)

	settings := parts.settings
	require.Len(t, settings.Sources, 2)
	require.Equal(t, "web", settings.Sources[0].Label())
	require.Equal(t, "-100200", settings.Channel)
	require.Equal(t, "alert-relay on relay-host", settings.Identity)
	require.Equal(t, 3*time.Minute, settings.GraceDelay)
	require.Equal(t, 6*time.Hour, settings.AliveInterval)
	require.Equal(t, time.Hour, settings.ResendInterval)

	cfg.Notifier.Kind = "pager"
	_, err = assemble(cfg, "relay-host")
	require.Error(t, err)
}

// slowSource takes longer than the poll interval and records overlapping fetches.
type slowSource struct {
	delay time.Duration

	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	calls       int
}

func (s *slowSource) Fetch(ctx context.Context, _ alarm.Source) (*source.Report, error) {
	s.mu.Lock()
	s.calls++
	s.inFlight++
	s.maxInFlight = max(s.maxInFlight, s.inFlight)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
	}

	return &source.Report{Hostname: "web-1"}, nil
}

func (s *slowSource) stats() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls, s.maxInFlight
}

func TestDriverCyclesNeverOverlap(t *testing.T) {
	t.Parallel()

	const (
		pollInterval = 10 * time.Millisecond
		cycleTime    = 3 * pollInterval
	)

	src := &slowSource{delay: cycleTime}

	d := newTestDriver(NewEngine(src, new(fakeNotifier), testSettings("10.0.0.1")))
	d.pollInterval = pollInterval

	ctx, cancel := context.WithCancel(context.Background())

	started := time.Now()
	done := runInBackground(ctx, d)

	require.Eventually(t, func() bool {
		calls, _ := src.stats()
		return calls >= 5
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	<-done

	elapsed := time.Since(started)
	calls, maxInFlight := src.stats()

	require.Equal(t, 1, maxInFlight)
	// Missed ticks collapse into one immediate cycle, so cycles are paced by their own duration.
	require.LessOrEqual(t, calls, int(elapsed/cycleTime)+2)
}
