package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/alert-relay/internal/domain/alarm"
)

// Config holds everything the relay needs for its whole lifetime.
type Config struct {
	// PollInterval is the period between two poll cycles.
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`
	// ResendInterval is how long an active-alarm message may go unrepeated.
	// Zero repeats it every cycle while something is wrong.
	ResendInterval time.Duration `yaml:"resend_interval" validate:"gte=0"`
	// AliveInterval is the maximum time between heartbeat messages.
	// Zero or negative disables heartbeats.
	AliveInterval time.Duration `yaml:"alive_interval"`
	// GraceDelay is the minimum age of an alarm before it is reported.
	GraceDelay time.Duration `yaml:"grace_delay" validate:"gte=0"`
	// SourceTimeout bounds a single source fetch.
	SourceTimeout time.Duration `yaml:"source_timeout" validate:"gt=0"`
	// NotifyTimeout bounds a single delivery, including rate limiter waits.
	NotifyTimeout time.Duration `yaml:"notify_timeout" validate:"gt=0"`
	// ShutdownGrace bounds the "stopped" delivery on exit.
	ShutdownGrace time.Duration `yaml:"shutdown_grace" validate:"gt=0"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	// StatusAddress enables the gRPC health server when set (e.g. ":9551").
	StatusAddress string `yaml:"status_address" validate:"omitempty,hostname_port"`
	// Sources are polled in this order every cycle.
	Sources []Source `yaml:"sources" validate:"required,min=1,dive"`
	// Breaker tunes the per-source circuit breaker.
	Breaker Breaker `yaml:"breaker"`
	// Notifier describes where messages are delivered.
	Notifier Notifier `yaml:"notifier"`
	// Speedtest configures the speed-report command.
	Speedtest Speedtest `yaml:"speedtest"`
}

// Source is one monitored host as written in the file.
type Source struct {
	Name    string `yaml:"name,omitempty"`
	Kind    string `yaml:"kind,omitempty" validate:"omitempty,oneof=netdata prometheus"`
	Address string `yaml:"address" validate:"required,hostname_rfc1123|ip"`
	Port    int    `yaml:"port,omitempty" validate:"gte=0,lte=65535"`
	Scheme  string `yaml:"scheme,omitempty" validate:"omitempty,oneof=http https"`
}

// Breaker tunes the circuit breaker wrapped around every source.
type Breaker struct {
	// Failures is the number of consecutive failures that opens the breaker.
	Failures uint32 `yaml:"failures" validate:"gte=1"`
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration `yaml:"open_timeout" validate:"gt=0"`
}

// Notifier describes the notification channel.
type Notifier struct {
	// Kind is telegram or webhook.
	Kind string `yaml:"kind" validate:"oneof=telegram webhook"`
	// ChatID is the channel identity messages are addressed to.
	ChatID string `yaml:"chat_id"`
	// TokenEnv names the environment variable holding the telegram bot token.
	TokenEnv string `yaml:"token_env"`
	// URLEnv names the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
	// APIURL is the telegram Bot API base URL.
	APIURL string `yaml:"api_url" validate:"omitempty,url"`
	// PerMinute caps deliveries per minute. Zero disables the limit.
	PerMinute int `yaml:"per_minute" validate:"gte=0"`
	// Burst is the number of deliveries allowed back to back.
	Burst int `yaml:"burst" validate:"gte=0"`
}

// Speedtest configures the one-shot speed report.
type Speedtest struct {
	// ChatID is the channel identity speed reports go to.
	ChatID string `yaml:"chat_id"`
	// Command is the speed test executable.
	Command string `yaml:"command"`
	// Args are passed to Command.
	Args []string `yaml:"args"`
	// Timeout bounds the speed test run.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

const (
	// DefaultConfigFilename is the default filename for relay settings.
	DefaultConfigFilename = "alert-relay.yaml"

	// DefaultEnvFilename is the default dotenv file consulted for secrets.
	DefaultEnvFilename = ".env"

	// DefaultPollInterval is how often sources are polled.
	DefaultPollInterval = time.Minute

	// DefaultResendInterval is how often an unchanged active-alarm message is repeated.
	DefaultResendInterval = time.Hour

	// DefaultTimeout bounds source fetches and deliveries.
	DefaultTimeout = 10 * time.Second

	// DefaultShutdownGrace bounds the final "stopped" delivery.
	DefaultShutdownGrace = 5 * time.Second

	// DefaultTelegramAPIURL is the public Bot API endpoint.
	DefaultTelegramAPIURL = "https://api.telegram.org"

	// DefaultTokenEnv names the variable holding the telegram bot token.
	DefaultTokenEnv = "TELEGRAM_TOKEN"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

// errConfigIsNotSet is returned when a nil configuration is provided.
var errConfigIsNotSet = errors.New("configuration is not set")

// Default returns a Config filled with default values and no sources.
func Default() *Config {
	return &Config{
		PollInterval:   DefaultPollInterval,
		ResendInterval: DefaultResendInterval,
		SourceTimeout:  DefaultTimeout,
		NotifyTimeout:  DefaultTimeout,
		ShutdownGrace:  DefaultShutdownGrace,
		LogLevel:       "info",
		Breaker: Breaker{
			Failures:    3,
			OpenTimeout: time.Minute,
		},
		Notifier: Notifier{
			Kind:      "telegram",
			TokenEnv:  DefaultTokenEnv,
			APIURL:    DefaultTelegramAPIURL,
			PerMinute: 20,
			Burst:     5,
		},
		Speedtest: Speedtest{
			Command: "speedtest-cli",
			Args:    []string{"--secure"},
			Timeout: 2 * time.Minute,
		},
	}
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Read parses the file at path over the defaults without validating it.
func Read(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// AlarmSources converts the configured sources into domain sources, in file order.
func (c *Config) AlarmSources() []alarm.Source {
	sources := make([]alarm.Source, 0, len(c.Sources))

	for _, s := range c.Sources {
		sources = append(sources, s.AlarmSource())
	}

	return sources
}

// AlarmSource converts a configured source into a domain source.
func (s Source) AlarmSource() alarm.Source {
	kind := alarm.Kind(s.Kind)
	if kind == "" {
		kind = alarm.KindNetdata
	}

	return alarm.Source{
		Name:    s.Name,
		Kind:    kind,
		Address: s.Address,
		Port:    s.Port,
		Scheme:  s.Scheme,
	}
}

// Token returns the bot token resolved from the environment.
func (n Notifier) Token() string {
	if n.TokenEnv == "" {
		return ""
	}

	return os.Getenv(n.TokenEnv)
}

// URL returns the webhook URL resolved from the environment.
func (n Notifier) URL() string {
	if n.URLEnv == "" {
		return ""
	}

	return os.Getenv(n.URLEnv)
}
