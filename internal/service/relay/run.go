package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/oshokin/alert-relay/internal/api/grpc/status"
	"github.com/oshokin/alert-relay/internal/config"
	"github.com/oshokin/alert-relay/internal/domain/alarm"
	"github.com/oshokin/alert-relay/internal/logger"
	"github.com/oshokin/alert-relay/internal/notify"
	"github.com/oshokin/alert-relay/internal/service/common"
	"github.com/oshokin/alert-relay/internal/source"
	"github.com/oshokin/alert-relay/internal/version"
)

// Options controls how the relay starts.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// EnvFile is an optional dotenv file loaded before the settings.
	EnvFile string
	// LogLevel overrides the log level from the settings when set.
	LogLevel string
	// Force skips the single instance guard.
	Force bool
	// NoWatch disables reloading the settings when the file changes.
	NoWatch bool
}

// errBadLogLevel is returned for an unknown log level override.
var errBadLogLevel = errors.New("unknown log level")

// Run loads the settings, announces the start, polls until ctx is canceled
// and announces the stop.
//
//nolint:cyclop,funlen // Startup is a flat sequence of steps; splitting would scatter it.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, version.Name)

	if err := config.LoadEnv(opts.EnvFile); err != nil {
		return fmt.Errorf("load environment: %w", err)
	}

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = config.DefaultConfigFilename
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// The flag wins over the settings file.
	if opts.LogLevel != "" {
		level, ok := logger.ParseLogLevel(opts.LogLevel)
		if !ok {
			return fmt.Errorf("%w: %q", errBadLogLevel, opts.LogLevel)
		}

		logger.SetLevel(level)
	} else {
		applyLogLevel(cfg.LogLevel)
	}

	if !opts.Force {
		if err = common.EnsureSingleInstance(); err != nil {
			return err
		}
	}

	hostname, err := common.DetectHostname()
	if err != nil {
		return fmt.Errorf("detect hostname: %w", err)
	}

	parts, err := assemble(cfg, hostname)
	if err != nil {
		return err
	}

	d := newDriver(NewEngine(parts.client, parts.notifier, parts.settings), hostname, cfg)
	d.keepLogLevel = opts.LogLevel != ""

	// Optional health surface.
	if cfg.StatusAddress != "" {
		lis, listenErr := new(net.ListenConfig).Listen(ctx, "tcp", cfg.StatusAddress)
		if listenErr != nil {
			return fmt.Errorf("listen on %s: %w", cfg.StatusAddress, listenErr)
		}

		d.status = status.NewServer()

		serveCtx, stopServe := context.WithCancel(ctx)
		served := make(chan struct{})

		go func() {
			defer close(served)

			if serveErr := d.status.Serve(serveCtx, lis); serveErr != nil {
				logger.ErrorKV(ctx, "Status server failed", "error", serveErr)
			}
		}()

		// Runs after the stop announcement.
		defer func() {
			stopServe()
			<-served
		}()
	}

	if !opts.NoWatch {
		reloads := make(chan *config.Config, 1)
		d.reloads = reloads

		go func() {
			watchErr := config.Watch(ctx, configPath, func(next *config.Config) {
				select {
				case reloads <- next:
				case <-ctx.Done():
				}
			})
			if watchErr != nil {
				logger.ErrorKV(ctx, "Settings watcher stopped", "error", watchErr)
			}
		}()
	}

	logger.InfoKV(ctx, "Relay starting",
		"version", version.Short(),
		"sources", len(cfg.Sources),
		"poll_interval", cfg.PollInterval.String())

	d.run(ctx)

	return nil
}

// components are the collaborators an engine is built from.
type components struct {
	client   source.Client
	notifier notify.Notifier
	settings Settings
}

// assemble builds the engine collaborators described by cfg.
func assemble(cfg *config.Config, hostname string) (*components, error) {
	notifier, err := notify.FromConfig(cfg.Notifier, cfg.NotifyTimeout)
	if err != nil {
		return nil, fmt.Errorf("build notifier: %w", err)
	}

	client := source.NewBreaker(
		source.NewRouter(cfg.SourceTimeout),
		cfg.Breaker.Failures,
		cfg.Breaker.OpenTimeout,
	)

	return &components{
		client:   client,
		notifier: notifier,
		settings: settingsFrom(cfg, hostname),
	}, nil
}

// settingsFrom maps the settings file onto engine settings.
func settingsFrom(cfg *config.Config, hostname string) Settings {
	return Settings{
		Sources:        cfg.AlarmSources(),
		Channel:        cfg.Notifier.ChatID,
		Identity:       common.Identity(hostname),
		GraceDelay:     cfg.GraceDelay,
		ResendInterval: cfg.ResendInterval,
		AliveInterval:  cfg.AliveInterval,
		SourceTimeout:  cfg.SourceTimeout,
		NotifyTimeout:  cfg.NotifyTimeout,
		Glyphs:         alarm.DefaultGlyphs(),
	}
}

// applyLogLevel sets the shared level from the settings, ignoring unknown values.
func applyLogLevel(value string) {
	if level, ok := logger.ParseLogLevel(value); ok {
		logger.SetLevel(level)
	}
}

// driver runs engine cycles on a ticker between the start and stop announcements.
type driver struct {
	// engine owns the cycle state.
	engine *Engine
	// hostname names this machine in lifecycle messages.
	hostname string
	// pollInterval is the ticker period.
	pollInterval time.Duration
	// shutdownGrace bounds the stop announcement.
	shutdownGrace time.Duration
	// now is the cycle clock.
	now func() time.Time
	// status publishes health when configured.
	status *status.Server
	// reloads delivers validated settings from the file watcher.
	reloads <-chan *config.Config
	// rebuild turns reloaded settings into engine collaborators.
	rebuild func(*config.Config, string) (*components, error)
	// keepLogLevel ignores log_level changes when the flag set the level.
	keepLogLevel bool
}

// newDriver creates a driver configured from cfg.
func newDriver(engine *Engine, hostname string, cfg *config.Config) *driver {
	return &driver{
		engine:        engine,
		hostname:      hostname,
		pollInterval:  cfg.PollInterval,
		shutdownGrace: cfg.ShutdownGrace,
		now:           time.Now,
		rebuild:       assemble,
	}
}

// run announces the start, cycles until ctx is canceled and announces the stop.
func (d *driver) run(ctx context.Context) {
	d.announce(ctx, "started", d.engine.settings.Glyphs.Started)

	defer d.announceStop(ctx)

	if d.status != nil {
		d.status.MarkRunning()
	}

	// First cycle runs right away.
	d.cycle(ctx)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return
		case next := <-d.reloads:
			if d.reload(ctx, next) {
				ticker.Reset(d.pollInterval)
			}
		case <-ticker.C:
			// Select picks randomly among ready cases.
			if ctx.Err() != nil {
				continue
			}

			d.cycle(ctx)
		}
	}
}

// cycle runs one engine cycle and publishes its outcome.
func (d *driver) cycle(ctx context.Context) {
	outcome := d.engine.RunCycle(ctx, d.now())

	if d.status != nil {
		d.status.ReportCycle(outcome.HasActiveAlarms)
	}
}

// reload applies validated settings between cycles. It reports whether they were applied.
func (d *driver) reload(ctx context.Context, cfg *config.Config) bool {
	if cfg == nil {
		return false
	}

	parts, err := d.rebuild(cfg, d.hostname)
	if err != nil {
		logger.ErrorKV(ctx, "Settings reload rejected", "error", err)
		return false
	}

	d.engine.Reconfigure(parts.client, parts.notifier, parts.settings)
	d.pollInterval = cfg.PollInterval
	d.shutdownGrace = cfg.ShutdownGrace

	if !d.keepLogLevel {
		applyLogLevel(cfg.LogLevel)
	}

	logger.InfoKV(ctx, "Settings applied",
		"sources", len(parts.settings.Sources),
		"poll_interval", d.pollInterval.String())

	return true
}

// announceStop delivers the stop message even though ctx is canceled,
// bounded by the shutdown grace period.
func (d *driver) announceStop(ctx context.Context) {
	stopCtx, cancel := common.CallContext(context.WithoutCancel(ctx), d.shutdownGrace)
	defer cancel()

	d.announce(stopCtx, "stopped", d.engine.settings.Glyphs.Stopped)
}

// announce delivers a lifecycle message and logs the result.
func (d *driver) announce(ctx context.Context, event, glyph string) {
	text := fmt.Sprintf("%s %s %s on %s", glyph, version.Name, event, d.hostname)

	if err := d.engine.Announce(ctx, text); err != nil {
		logger.ErrorKV(ctx, "Lifecycle message delivery failed", "event", event, "error", err)
		return
	}

	logger.InfoKV(ctx, "Lifecycle message delivered", "event", event)
}
