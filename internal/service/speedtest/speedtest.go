package speedtest

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/oshokin/alert-relay/internal/config"
	"github.com/oshokin/alert-relay/internal/logger"
	"github.com/oshokin/alert-relay/internal/notify"
	"github.com/oshokin/alert-relay/internal/service/common"
)

// Options controls the speed report.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// EnvFile is an optional dotenv file loaded before the settings.
	EnvFile string
	// DryRun prints the report instead of delivering it.
	DryRun bool
	// Runner executes the speed test command; nil runs a subprocess.
	Runner Runner
}

// Runner executes command and returns its standard output.
type Runner func(ctx context.Context, command string, args ...string) ([]byte, error)

// progressMarkers identify speed test progress lines that are not part of the result.
var progressMarkers = []string{"Testing", "Selecting best", "Retrieving"}

var (
	// errNoCommand is returned when no speed test command is configured.
	errNoCommand = errors.New("speed test command is not set")
	// errEmptyResult is returned when the command printed nothing useful.
	errEmptyResult = errors.New("speed test produced no result")
)

// Run loads the settings, runs the speed test and delivers the report.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "speed-report")

	if err := config.LoadEnv(opts.EnvFile); err != nil {
		return fmt.Errorf("load environment: %w", err)
	}

	// Sources are irrelevant here, so the full settings validation does not apply.
	cfg, err := config.Read(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	applyLogLevel(cfg.LogLevel)

	channel := channelFor(cfg)

	if !opts.DryRun {
		if err = config.ValidateNotifier(cfg.Notifier, channel); err != nil {
			return err
		}
	}

	hostname, err := common.DetectHostname()
	if err != nil {
		return fmt.Errorf("detect hostname: %w", err)
	}

	run := opts.Runner
	if run == nil {
		run = execRunner
	}

	text, err := Measure(ctx, run, cfg.Speedtest, hostname)
	if err != nil {
		return err
	}

	if opts.DryRun {
		logger.InfoKV(ctx, "Speed report (dry run)", "text", text)
		return nil
	}

	notifier, err := notify.FromConfig(cfg.Notifier, cfg.NotifyTimeout)
	if err != nil {
		return fmt.Errorf("build notifier: %w", err)
	}

	return Deliver(ctx, notifier, channel, cfg.NotifyTimeout, text)
}

// Measure runs the speed test command and builds the report text.
func Measure(ctx context.Context, run Runner, settings config.Speedtest, hostname string) (string, error) {
	if settings.Command == "" {
		return "", errNoCommand
	}

	runCtx, cancel := common.CallContext(ctx, settings.Timeout)
	defer cancel()

	logger.InfoKV(ctx, "Running speed test", "command", settings.Command, "args", settings.Args)

	output, err := run(runCtx, settings.Command, settings.Args...)
	if err != nil {
		return "", fmt.Errorf("run %s: %w", settings.Command, err)
	}

	result := FilterOutput(string(output))
	if result == "" {
		return "", errEmptyResult
	}

	return fmt.Sprintf("Speedtest on %s\n%s", hostname, result), nil
}

// Deliver sends the report to channel within timeout.
func Deliver(ctx context.Context, notifier notify.Notifier, channel string, timeout time.Duration, text string) error {
	callCtx, cancel := common.CallContext(ctx, timeout)
	defer cancel()

	if err := notifier.Deliver(callCtx, channel, text); err != nil {
		return fmt.Errorf("deliver speed report: %w", err)
	}

	logger.InfoKV(ctx, "Speed report delivered", "channel", channel)

	return nil
}

// FilterOutput drops progress lines and surrounding blank lines from the speed test output.
func FilterOutput(output string) string {
	lines := strings.Split(output, "\n")
	kept := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if isProgress(line) {
			continue
		}

		kept = append(kept, line)
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// isProgress reports whether line is a progress message.
func isProgress(line string) bool {
	for _, marker := range progressMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}

	return false
}

// channelFor returns the speed report chat, falling back to the alarm chat.
func channelFor(cfg *config.Config) string {
	if cfg.Speedtest.ChatID != "" {
		return cfg.Speedtest.ChatID
	}

	return cfg.Notifier.ChatID
}

// applyLogLevel sets the shared level from the settings, ignoring unknown values.
func applyLogLevel(value string) {
	if level, ok := logger.ParseLogLevel(value); ok {
		logger.SetLevel(level)
	}
}

// execRunner runs command as a subprocess.
func execRunner(ctx context.Context, command string, args ...string) ([]byte, error) {
	//nolint:gosec // The command comes from the operator's settings file.
	return exec.CommandContext(ctx, command, args...).Output()
}
