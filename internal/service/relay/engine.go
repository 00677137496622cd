package relay

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/alert-relay/internal/domain/alarm"
	"github.com/oshokin/alert-relay/internal/logger"
	"github.com/oshokin/alert-relay/internal/notify"
	"github.com/oshokin/alert-relay/internal/service/common"
	"github.com/oshokin/alert-relay/internal/source"
)

// Settings are the tunables an Engine reads on every cycle.
type Settings struct {
	// Sources are polled and rendered in this order.
	Sources []alarm.Source
	// Channel is the notifier channel identity (chat id).
	Channel string
	// Identity is the first line of every combined message.
	Identity string
	// GraceDelay is the minimum alarm age before it is reported.
	GraceDelay time.Duration
	// ResendInterval repeats an unchanged message while something is wrong.
	// Zero repeats it on every cycle.
	ResendInterval time.Duration
	// AliveInterval repeats an unchanged message regardless of alarms.
	// Zero or negative disables heartbeats.
	AliveInterval time.Duration
	// SourceTimeout bounds each fetch.
	SourceTimeout time.Duration
	// NotifyTimeout bounds each delivery.
	NotifyTimeout time.Duration
	// Glyphs decorate rendered blocks.
	Glyphs alarm.Glyphs
}

// State is a copy of the engine's cycle state.
type State struct {
	// CurrentMessage is the text composed by the latest cycle.
	CurrentMessage string
	// LastSentMessage is the text of the latest confirmed delivery.
	LastSentMessage string
	// LastSentAt is when the latest confirmed delivery happened.
	LastSentAt time.Time
	// HasActiveAlarms is true when the latest cycle saw an alarm or a failed source.
	HasActiveAlarms bool
	// DeliveryFailed is true when the latest send attempt failed.
	DeliveryFailed bool
}

// Outcome describes one finished cycle.
type Outcome struct {
	// Message is the combined message composed by the cycle.
	Message string
	// HasActiveAlarms mirrors State.HasActiveAlarms after the cycle.
	HasActiveAlarms bool
	// Triggers are the reasons the message qualified for delivery.
	Triggers Trigger
	// Sent is true when the message was delivered.
	Sent bool
	// Err is the delivery error, if a delivery was attempted and failed.
	Err error
}

// Engine owns the cycle state. It is driven by one goroutine at a time.
type Engine struct {
	client   source.Client
	notifier notify.Notifier
	settings Settings
	state    State
}

// NewEngine creates an engine with empty state, so the first cycle always
// announces the current status.
func NewEngine(client source.Client, notifier notify.Notifier, settings Settings) *Engine {
	return &Engine{
		client:   client,
		notifier: notifier,
		settings: settings,
	}
}

// Reconfigure swaps collaborators and settings while keeping the cycle state.
func (e *Engine) Reconfigure(client source.Client, notifier notify.Notifier, settings Settings) {
	e.client = client
	e.notifier = notifier
	e.settings = settings
}

// State returns a copy of the cycle state.
func (e *Engine) State() State {
	return e.state
}

// RunCycle polls all sources, composes the combined message and delivers it
// when a trigger fires.
func (e *Engine) RunCycle(ctx context.Context, now time.Time) Outcome {
	ctx = logger.WithKV(ctx, "cycle", uuid.NewString()[:8])

	snapshots := e.poll(ctx)

	var (
		blocks = make([]string, 0, len(snapshots))
		active bool
	)

	for _, snapshot := range snapshots {
		snapshot = alarm.FilterSnapshot(snapshot, now, e.settings.GraceDelay)
		if snapshot.Active() {
			active = true
		}

		blocks = append(blocks, alarm.Render(snapshot, e.settings.Glyphs))
	}

	outcome := Outcome{
		Message:         alarm.Compose(e.settings.Identity, blocks),
		HasActiveAlarms: active,
	}

	outcome.Triggers = e.triggers(outcome.Message, active, now)

	if outcome.Triggers != 0 {
		outcome.Err = e.deliver(ctx, outcome.Message)
		if outcome.Err == nil {
			outcome.Sent = true
			e.state.LastSentAt = now
			e.state.LastSentMessage = outcome.Message
			e.state.DeliveryFailed = false
		} else {
			e.state.DeliveryFailed = true
			logger.ErrorKV(ctx, "Message delivery failed", "triggers", outcome.Triggers.String(), "error", outcome.Err)
		}
	}

	e.state.CurrentMessage = outcome.Message
	e.state.HasActiveAlarms = active

	logger.InfoKV(ctx, "Cycle finished",
		"sources", len(snapshots),
		"active", active,
		"triggers", outcome.Triggers.String(),
		"sent", outcome.Sent)

	return outcome
}

// Announce delivers a lifecycle message without touching the cycle state.
func (e *Engine) Announce(ctx context.Context, text string) error {
	return e.deliver(ctx, text)
}

// triggers evaluates every send condition for message at now.
func (e *Engine) triggers(message string, active bool, now time.Time) Trigger {
	var (
		result    Trigger
		sinceSend = now.Sub(e.state.LastSentAt)
	)

	if message != e.state.CurrentMessage {
		result |= TriggerChange
	}

	if active && sinceSend > e.settings.ResendInterval {
		result |= TriggerResend
	}

	if e.settings.AliveInterval > 0 && sinceSend > e.settings.AliveInterval {
		result |= TriggerAlive
	}

	if e.state.DeliveryFailed && message != e.state.LastSentMessage {
		result |= TriggerRetry
	}

	return result
}

// poll fetches every source concurrently and returns the snapshots in source order.
func (e *Engine) poll(ctx context.Context) []alarm.Snapshot {
	var (
		sources   = e.settings.Sources
		snapshots = make([]alarm.Snapshot, len(sources))
		wg        sync.WaitGroup
	)

	for i, src := range sources {
		wg.Add(1)

		go func() {
			defer wg.Done()

			snapshots[i] = e.fetch(ctx, src)
		}()
	}

	wg.Wait()

	return snapshots
}

// fetch polls one source, turning every failure into a failed snapshot.
func (e *Engine) fetch(ctx context.Context, src alarm.Source) alarm.Snapshot {
	callCtx, cancel := common.CallContext(ctx, e.settings.SourceTimeout)
	defer cancel()

	report, err := e.client.Fetch(callCtx, src)
	if err != nil {
		logger.WarnKV(ctx, "Source unreachable", "source", src.Label(), "error", err)

		return alarm.Failed(src, err)
	}

	if report == nil {
		return alarm.Succeeded(src, "", nil)
	}

	return alarm.Succeeded(src, report.Hostname, report.Alarms)
}

// deliver sends text to the configured channel within the notify timeout.
func (e *Engine) deliver(ctx context.Context, text string) error {
	callCtx, cancel := common.CallContext(ctx, e.settings.NotifyTimeout)
	defer cancel()

	return e.notifier.Deliver(callCtx, e.settings.Channel, text)
}

// Trigger is a set of reasons for delivering a message.
type Trigger uint8

const (
	// TriggerChange fires when the composed text differs from the previous cycle.
	TriggerChange Trigger = 1 << iota
	// TriggerResend fires when something is wrong and the resend interval elapsed.
	TriggerResend
	// TriggerAlive fires when the liveness interval elapsed.
	TriggerAlive
	// TriggerRetry fires when the previous attempt failed and the text is still undelivered.
	TriggerRetry
)

// String lists the set triggers, e.g. "change+alive", or "none".
func (t Trigger) String() string {
	if t == 0 {
		return "none"
	}

	names := make([]string, 0, 4)

	for _, candidate := range []struct {
		flag Trigger
		name string
	}{
		{TriggerChange, "change"},
		{TriggerResend, "resend"},
		{TriggerAlive, "alive"},
		{TriggerRetry, "retry"},
	} {
		if t&candidate.flag != 0 {
			names = append(names, candidate.name)
		}
	}

	return strings.Join(names, "+")
}
