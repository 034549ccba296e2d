package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var cacheOlderThan time.Duration

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and prune the voiceover cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cached voiceover count and size",
	RunE:  runCacheStats,
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete cached voiceovers not used for a while",
	Long: `Delete cached voiceover files last written before --older-than ago.
Manifests that still reference a pruned file will synthesize it again on the
next trigger of the same text.`,
	RunE: runCachePrune,
}

func init() {
	cachePruneCmd.Flags().DurationVar(&cacheOlderThan, "older-than", 30*24*time.Hour, "Minimum age of files to delete")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	service, err := loadService(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	st, err := service.Cache().Stats()
	if err != nil {
		return err
	}

	rows := [][]string{
		{"Directory", service.Cache().Dir()},
		{"Files", fmt.Sprint(st.Files)},
		{"Size", formatBytes(st.Bytes)},
	}
	if st.Files > 0 {
		rows = append(rows,
			[]string{"Oldest", st.Oldest.Local().Format(time.DateTime)},
			[]string{"Newest", st.Newest.Local().Format(time.DateTime)},
		)
	}
	fmt.Println(renderTable([]string{"Voiceover cache", ""}, rows))
	return nil
}

func runCachePrune(cmd *cobra.Command, args []string) error {
	if cacheOlderThan <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}

	service, err := loadService(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	removed, err := service.Cache().Prune(time.Now().Add(-cacheOlderThan))
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d cached voiceover(s)\n", removed)
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
