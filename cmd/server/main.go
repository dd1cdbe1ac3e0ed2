package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"globalassist.com/backend/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the CLI. Running it without a subcommand starts the server.
func newRootCmd() *cobra.Command {
	var (
		envFile string
		cfg     *config.Config
	)

	rootCmd := &cobra.Command{
		Use:           "globalassist",
		Short:         "GlobalAssist backend: auth, AI code generation and history",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil {
				fmt.Fprintf(os.Stderr, "No %s file found, relying on environment variables\n", envFile)
			}

			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
			slog.SetDefault(logger)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfg, slog.Default())
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to an optional .env file")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cfg, slog.Default())
			},
		},
		&cobra.Command{
			Use:   "prune-sessions",
			Short: "Delete expired sessions and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runPruneSessions(cfg, slog.Default())
			},
		},
	)
	return rootCmd
}
