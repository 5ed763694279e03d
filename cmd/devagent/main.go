// Command devagent runs a local in-memory agent service compatible with
// the adkchat client, for development and demos. Replies come from a
// selectable responder: a credential-free echo, Anthropic, or OpenAI.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lucident-ai/adkchat"
	"github.com/lucident-ai/adkchat/internal/devagent"
)

var (
	flagAddr      string
	flagApp       string
	flagResponder string
	flagModel     string
	flagSystem    string
)

var rootCmd = &cobra.Command{
	Use:   "devagent",
	Short: "Run a local agent service for development",
	Long: `devagent serves the session and streaming endpoints the adkchat client
expects, keeping everything in memory.

The --responder flag picks how replies are generated:

  echo        repeat the user's message (no credentials needed)
  anthropic   Anthropic Messages API (ANTHROPIC_API_KEY)
  openai      OpenAI chat completions (OPENAI_API_KEY)

API keys are read from the environment or a .env file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&flagAddr, "addr", ":8000", "Listen address")
	rootCmd.Flags().StringVar(&flagApp, "app", adkchat.DefaultAppName, "Application name")
	rootCmd.Flags().StringVar(&flagResponder, "responder", "echo", "Reply generator: echo, anthropic, or openai")
	rootCmd.Flags().StringVar(&flagModel, "model", "", "Model name, responder-specific default when empty")
	rootCmd.Flags().StringVar(&flagSystem, "system", "", "System prompt for model responders")
}

func serve(ctx context.Context) error {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	responder, err := buildResponder()
	if err != nil {
		return err
	}
	server, err := devagent.New(devagent.Config{
		AppName:   flagApp,
		Responder: responder,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:    flagAddr,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("devagent listening", "addr", flagAddr, "responder", flagResponder)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildResponder() (devagent.Responder, error) {
	switch flagResponder {
	case "echo":
		return devagent.EchoResponder{}, nil
	case "anthropic":
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			return nil, errors.New("ANTHROPIC_API_KEY is required for the anthropic responder")
		}
		return devagent.NewAnthropicResponder(flagModel, flagSystem), nil
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, errors.New("OPENAI_API_KEY is required for the openai responder")
		}
		return devagent.NewOpenAIResponder(key, flagModel, flagSystem), nil
	default:
		return nil, fmt.Errorf("unknown responder %q", flagResponder)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
