package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/okian/painpoint/internal/config"
	"github.com/okian/painpoint/pkg/logger"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "painpoint",
	Short: "Find validated product opportunities in public discussions",
	Long: `Collects posts from Hacker News and Reddit where people describe unmet
needs, groups them by problem signature, looks up competitors and scores each
opportunity 0-100.

Configuration is layered: defaults, then the YAML file named by
PAINPOINT_CONFIG, then PAINPOINT_* environment variables. A .env file in the
working directory is loaded first when present.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// .env is optional
		_ = godotenv.Load()

		c, err := config.Load(cmd.Context())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := logger.InitWithFormat(logger.Format(cfg.LogFormat)); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		if err := logger.SetLevelString(cfg.LogLevel); err != nil {
			logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
				logger.String("log_level", cfg.LogLevel), logger.Error(err))
			_ = logger.SetLevelString("info")
		}
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, scanCmd, rescoreCmd, migrateCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
