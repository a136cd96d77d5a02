package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blockedby/tg-export/internal/config"
	"github.com/blockedby/tg-export/internal/logger"
)

var (
	version = "dev"

	// global flags
	logLevel string
	cfg      *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tg-export",
	Short: "Export public Telegram channel history to JSON, CSV or Excel",
	Long: `tg-export reads the message history of public Telegram channels and
writes one report per run.

Credentials come from the environment (or a .env file):
  TG_API_ID, TG_API_HASH  - from https://my.telegram.org
  TG_SESSION_STRING       - produced by tg-auth, or
  TG_SESSION_FILE         - sqlite file written by tg-auth qr`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = logLevel
		}
		cfg = loaded
		return logger.Init(cfg.LogLevel, cfg.LogFile)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
