// ResumePipe is a chat bot that interviews users over Telegram or WhatsApp and
// sends back a rendered PDF résumé.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree over a Config loaded from the
// environment. Flags write into the same Config, so they take precedence.
func newRootCmd() *cobra.Command {
	cfg := loadEnvironmentConfig()

	rootCmd := &cobra.Command{
		Use:   "ResumePipe",
		Short: "Conversational résumé builder for Telegram and WhatsApp",
		Long: `ResumePipe walks users through building a résumé in a chat,
optionally polishes their text with a language model, and replies with a PDF.

Without a subcommand it runs the bot (same as "serve").`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initializeLogger(cfg.LogLevel)
			cfg.resolve()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), &cfg)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for the database, lock file and generated files")
	pf.StringVar(&cfg.DatabaseURL, "db-dsn", cfg.DatabaseURL, "PostgreSQL DSN or SQLite path (default <state-dir>/"+DefaultDBFileName+")")
	pf.StringVar(&cfg.UsageLog, "usage-log", cfg.UsageLog, "JSON file for the usage log instead of the database")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")

	addServeFlags(rootCmd, &cfg)
	rootCmd.AddCommand(newServeCmd(&cfg))
	rootCmd.AddCommand(newCodesCmd(&cfg))
	rootCmd.AddCommand(newUsersCmd(&cfg))
	return rootCmd
}
