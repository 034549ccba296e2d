package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"novacontent/internal/api"
	"novacontent/internal/app"
)

var serveNoWorkers bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the render workers",
	Long: `Serve the trigger endpoint, production lookup and queue dashboard.
Render workers run in the same process unless --no-workers is set, in which
case a separate "work" process is expected to drain the queue.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoWorkers, "no-workers", false, "Do not start render workers in this process")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service, err := loadService(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	pipeline := app.NewPipeline(service)
	if !serveNoWorkers {
		pool := pipeline.NewWorkerPool()
		if err := pool.Start(ctx); err != nil {
			return err
		}
		defer pool.Stop()
	}

	router := api.NewRouter(api.RouterConfig{
		Handler: api.NewHandler(pipeline, service.Store(), service.Queue()),
		Debug:   verbose,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", service.Config().Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("NovaContent Engine listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
