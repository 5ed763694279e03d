package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucident-ai/adkchat/chatapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the chat as a local HTTP endpoint",
	Long: `Serve POST /api/chat, proxying messages to the agent service and
streaming replies back as server-sent events. Useful for web frontends
that cannot reach the agent service directly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		handler := chatapi.NewHandler(client, logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := &http.Server{
			Addr:    serveAddr,
			Handler: chatapi.NewServeMux(handler),
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("chat API listening", "addr", serveAddr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":3000", "Listen address")
	rootCmd.AddCommand(serveCmd)
}
