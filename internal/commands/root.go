package commands

import (
	"context"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "taskreminder",
	Short: "Task reminder service",
	Long: `taskreminder keeps tasks with due dates and recurrence, and fires reminders
over push, in-app, email and sms channels. It serves a JSON API and an optional Telegram bot.`,
	SilenceUsage: true,
}

// SetVersion sets the version information
func SetVersion(v, c, d string) {
	rootCmd.Version = v + " (" + c + ", " + d + ")"
}

// ExecuteContext runs the root command with ctx available to every subcommand.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (yaml, json or toml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(recurCmd)
}
