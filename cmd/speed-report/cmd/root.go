package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alert-relay/internal/config"
	"github.com/oshokin/alert-relay/internal/service/speedtest"
	"github.com/oshokin/alert-relay/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// envFile stores the path to an optional dotenv file with secrets.
	envFile string
	// dryRun logs the report instead of sending it.
	dryRun bool

	// rootCmd represents the base command for the speed report.
	rootCmd = &cobra.Command{
		Use:   "speed-report",
		Short: "Measure network speed and report it to a chat.",
		Long: `Runs the configured speed test command once, strips progress lines from
its output and sends the result to the speed test chat.

Uses the notifier and speedtest sections of the relay configuration file.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return speedtest.Run(ctx, &speedtest.Options{
				ConfigPath: configPath,
				EnvFile:    envFile,
				DryRun:     dryRun,
			})
		},
	}
)

// Execute runs the speed-report CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&envFile, "env-file", "e", config.DefaultEnvFilename, "path to dotenv file with secrets")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log the report instead of sending it")
}
