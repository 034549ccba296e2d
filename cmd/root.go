package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"novacontent/internal/app"
	"novacontent/pkg/config"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "novacontent",
	Short: "Generate, render and publish short-form videos",
	Long: `NovaContent turns a topic and a content niche into a narrated short video:
it generates a script, synthesizes and caches the voiceover, queues a render
and tracks every production through its lifecycle.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		setupLogger(os.Stdout)
	}
}

func Execute() error {
	return rootCmd.Execute()
}

// setupLogger uses the text handler on a terminal and JSON otherwise, so
// containers and log shippers get structured lines.
func setupLogger(w io.Writer) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewJSONHandler(w, opts)
	if isTerminal(w) {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func loadService(ctx context.Context) (*app.Service, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	return app.BuildService(ctx, cfg)
}
