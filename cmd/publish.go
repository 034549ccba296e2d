package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"novacontent/internal/app"
)

var publishCmd = &cobra.Command{
	Use:   "publish <productionId>",
	Short: "Post a published production's video to the configured platform",
	Args:  cobra.ExactArgs(1),
	RunE:  runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid production id %q", args[0])
	}

	ctx := cmd.Context()
	service, err := loadService(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	url, err := app.NewPipeline(service).Publish(ctx, id)
	if err != nil {
		return err
	}
	fmt.Println(url)
	return nil
}
