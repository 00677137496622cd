package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alert-relay/internal/config"
	"github.com/oshokin/alert-relay/internal/service/relay"
	"github.com/oshokin/alert-relay/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// envFile stores the path to an optional dotenv file with secrets.
	envFile string
	// logLevel overrides the log level from the configuration file.
	logLevel string
	// force skips the single instance guard.
	force bool
	// noWatch disables reloading the configuration file on change.
	noWatch bool

	// rootCmd represents the base command for the relay.
	rootCmd = &cobra.Command{
		Use:   "alert-relay",
		Short: "Relay monitoring alarms to a chat.",
		Long: `Long-running service that polls alarm state from netdata agents and
Prometheus servers and relays a combined status message to a chat.

A message is sent when the status changes, repeated every resend interval
while any alarm is active or any source is unreachable, and repeated every
alive interval as a heartbeat. Alarms younger than the grace delay are ignored.
A "started" message is sent on startup and a "stopped" message on shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return relay.Run(ctx, &relay.Options{
				ConfigPath: configPath,
				EnvFile:    envFile,
				LogLevel:   logLevel,
				Force:      force,
				NoWatch:    noWatch,
			})
		},
	}
)

// Execute runs the alert-relay CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Shared with the status subcommand.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&envFile, "env-file", "e", config.DefaultEnvFilename, "path to dotenv file with secrets")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn, error (overrides configuration)")
	rootCmd.Flags().BoolVar(&force, "force", false, "start even if another instance is running")
	rootCmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload configuration when the file changes")

	rootCmd.AddCommand(newStatusCommand())
}
