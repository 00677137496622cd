package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/alert-relay/internal/config"
	"github.com/oshokin/alert-relay/internal/service/common"
)

var (
	// errAlarmsActive makes the status command exit non-zero while something is wrong.
	errAlarmsActive = errors.New("alarms are active")
	// errNoStatusAddress is returned when neither an argument nor the configuration names an address.
	errNoStatusAddress = errors.New("status_address is not configured")
)

// statusTimeout bounds each health check call.
const statusTimeout = 5 * time.Second

// newStatusCommand builds the `status` subcommand that queries a running relay.
func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status [address]",
		Short: "Query a running relay.",
		Long: `Query the status server of a running relay.

The address defaults to status_address from the configuration file.
Exits with a non-zero status when the relay reports active alarms.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address, err := statusAddress(args)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			client, err := common.Dial(ctx, address, common.WithCallTimeout(statusTimeout))
			if err != nil {
				return fmt.Errorf("dial %s: %w", address, err)
			}

			defer func() {
				_ = client.Close()
			}()

			status, err := client.Status(ctx)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "running: %t\nalarms clear: %t\n", status.Running, status.AlarmsClear)

			if !status.AlarmsClear {
				return errAlarmsActive
			}

			return nil
		},
	}
}

// statusAddress picks the address argument or falls back to the configuration file.
func statusAddress(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	// Secrets are validated along with the rest of the file.
	if err := config.LoadEnv(envFile); err != nil {
		return "", fmt.Errorf("load environment: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return "", fmt.Errorf("load configuration: %w", err)
	}

	if cfg.StatusAddress == "" {
		return "", errNoStatusAddress
	}

	return cfg.StatusAddress, nil
}
