package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"novacontent/internal/app"
)

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Run render workers until interrupted",
	RunE:  runWork,
}

func init() {
	rootCmd.AddCommand(workCmd)
}

func runWork(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service, err := loadService(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	pool := app.NewPipeline(service).NewWorkerPool()
	slog.Info("Render workers running. Press Ctrl+C to stop.", "concurrency", pool.Concurrency())
	return pool.Run(ctx)
}
