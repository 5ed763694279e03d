// Command adkchat is a terminal chat client for an agent service. It keeps
// a directory of sessions, restores the last active one between runs, and
// streams replies token by token.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lucident-ai/adkchat"
)

var (
	flagServer  string
	flagApp     string
	flagUser    string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "adkchat",
	Short: "Chat with an agent service from the terminal",
	Long: `adkchat talks to an agent service over its session and streaming APIs.

It keeps a directory of your conversations, remembers which one you had
open, and streams replies as they are generated. When the service is
unreachable it degrades instead of crashing: you can keep typing into a
local session and reconnect later.

Configuration comes from flags, environment variables (ADKCHAT_BASE_URL,
ADKCHAT_APP_NAME, ADKCHAT_USER_ID), or a .env file in the working
directory, in that order of precedence.`,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "Agent service base URL (default from ADKCHAT_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&flagApp, "app", "", "Application name (default from ADKCHAT_APP_NAME)")
	rootCmd.PersistentFlags().StringVar(&flagUser, "user", "", "User id (default from ADKCHAT_USER_ID)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
}

// newClient builds the session client from env config plus flag overrides.
func newClient() (*adkchat.Client, error) {
	cfg := adkchat.ConfigFromEnv()
	if flagServer != "" {
		cfg.BaseURL = flagServer
	}
	if flagApp != "" {
		cfg.AppName = flagApp
	}
	if flagUser != "" {
		cfg.UserID = flagUser
	}
	if flagVerbose {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return adkchat.New(cfg)
}

func main() {
	Execute()
}
