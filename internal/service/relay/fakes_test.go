package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/oshokin/alert-relay/internal/domain/alarm"
	"github.com/oshokin/alert-relay/internal/source"
)

var errRefused = errors.New("connection refused")

// fakeSource serves canned reports keyed by source address.
type fakeSource struct {
	mu      sync.Mutex
	reports map[string]*source.Report
	down    map[string]bool
	hang    map[string]bool
	calls   int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		reports: make(map[string]*source.Report),
		down:    make(map[string]bool),
		hang:    make(map[string]bool),
	}
}

func (f *fakeSource) set(address, hostname string, alarms ...alarm.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reports[address] = &source.Report{Hostname: hostname, Alarms: alarms}
	f.down[address] = false
}

func (f *fakeSource) fail(address string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.down[address] = true
}

func (f *fakeSource) block(address string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.hang[address] = true
}

func (f *fakeSource) Fetch(ctx context.Context, src alarm.Source) (*source.Report, error) {
	f.mu.Lock()
	f.calls++
	hang, down, report := f.hang[src.Address], f.down[src.Address], f.reports[src.Address]
	f.mu.Unlock()

	switch {
	case hang:
		<-ctx.Done()
		return nil, ctx.Err()
	case down:
		return nil, errRefused
	case report == nil:
		return &source.Report{}, nil
	}

	copied := *report
	copied.Alarms = append([]alarm.Record(nil), report.Alarms...)

	return &copied, nil
}

// delivery is one message handed to fakeNotifier.
type delivery struct {
	channel string
	text    string
}

// fakeNotifier records deliveries and fails on demand.
type fakeNotifier struct {
	mu       sync.Mutex
	sent     []delivery
	attempts int
	failing  bool
	hang     bool
}

func (f *fakeNotifier) setFailing(failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failing = failing
}

func (f *fakeNotifier) Deliver(ctx context.Context, channel, text string) error {
	f.mu.Lock()
	f.attempts++
	failing, hang := f.failing, f.hang
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}

	if failing {
		return errRefused
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, delivery{channel: channel, text: text})

	return nil
}

func (f *fakeNotifier) deliveries() []delivery {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]delivery(nil), f.sent...)
}

func (f *fakeNotifier) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.attempts
}
