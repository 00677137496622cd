package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
)

var (
	// errChatIDRequired is returned when telegram delivery has no chat.
	errChatIDRequired = errors.New("notifier.chat_id must be provided for telegram")
	// errTokenMissing is returned when the bot token variable is unset or empty.
	errTokenMissing = errors.New("telegram bot token is not set")
	// errWebhookURLMissing is returned when the webhook URL variable is unset or empty.
	errWebhookURLMissing = errors.New("webhook url is not set")
	// errDuplicateSource is returned when two sources point at the same endpoint.
	errDuplicateSource = errors.New("duplicate source")
)

// Validate checks struct constraints first, then cross-field rules, and
// reports every problem found at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	var result *multierror.Error

	if err := validator.New().Struct(cfg); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return fmt.Errorf("validate settings: %w", err)
		}

		for _, fieldError := range fieldErrors {
			result = multierror.Append(result,
				fmt.Errorf("%s: failed %q check", fieldError.Namespace(), fieldError.Tag()))
		}
	}

	result = multierror.Append(result, notifierErrors(cfg.Notifier, cfg.Notifier.ChatID)...)

	seen := make(map[string]int, len(cfg.Sources))

	for i, s := range cfg.Sources {
		src := s.AlarmSource()
		key := string(src.Kind) + " " + src.BaseURL()

		if first, found := seen[key]; found {
			result = multierror.Append(result,
				fmt.Errorf("%w: sources[%d] and sources[%d] both read %s", errDuplicateSource, first, i, key))

			continue
		}

		seen[key] = i
	}

	return result.ErrorOrNil()
}

// ValidateNotifier checks only what delivering to channel through n needs,
// for commands that never poll sources.
func ValidateNotifier(n Notifier, channel string) error {
	var result *multierror.Error

	if err := validator.New().Struct(n); err != nil {
		result = multierror.Append(result, fmt.Errorf("validate notifier: %w", err))
	}

	result = multierror.Append(result, notifierErrors(n, channel)...)

	return result.ErrorOrNil()
}

// notifierErrors lists missing delivery settings of n for channel.
func notifierErrors(n Notifier, channel string) []error {
	var errs []error

	switch n.Kind {
	case "telegram":
		if channel == "" {
			errs = append(errs, errChatIDRequired)
		}

		if n.Token() == "" {
			errs = append(errs, fmt.Errorf("%w: check $%s", errTokenMissing, n.TokenEnv))
		}
	case "webhook":
		if n.URL() == "" {
			errs = append(errs, fmt.Errorf("%w: check $%s", errWebhookURLMissing, n.URLEnv))
		}
	}

	return errs
}
