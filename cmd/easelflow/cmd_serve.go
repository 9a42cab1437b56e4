package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/atelierhq/easelflow/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the flow HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	logger := logging.New("server")

	backend, err := openBackend(cmd.Context(), settings)
	if err != nil {
		return err
	}
	defer backend.Close()

	srv, err := newServer(backend, settings, logger)
	if err != nil {
		return err
	}
	app := srv.app()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(settings.Addr)
	}()
	logger.Info("listening",
		slog.String("addr", settings.Addr),
		slog.String("driver", settings.DataDriver))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Flush every open session before the listener goes away, so the
	// debounce window cannot swallow the last edits.
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.close(shutdownCtx)
	return app.ShutdownWithContext(shutdownCtx)
}
