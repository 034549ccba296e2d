package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"novacontent/internal/app"
)

var (
	triggerTopic string
	triggerNiche int64
)

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Generate a script and queue a render",
	Long: `Run the trigger path once: generate a script for the topic, prepare the
render manifest and queue the render. Workers started by "serve" or "work"
pick the job up.`,
	Example: `  novacontent trigger --topic "Future of AI" --niche 1`,
	RunE:    runTrigger,
}

func init() {
	triggerCmd.Flags().StringVarP(&triggerTopic, "topic", "t", "", "Video topic (defaults to the configured fallback topic)")
	triggerCmd.Flags().Int64VarP(&triggerNiche, "niche", "n", 0, "Niche id")
	_ = triggerCmd.MarkFlagRequired("niche")
	rootCmd.AddCommand(triggerCmd)
}

func runTrigger(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	service, err := loadService(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	res, err := app.NewPipeline(service).Trigger(ctx, app.TriggerRequest{Topic: triggerTopic, NicheID: triggerNiche})
	if err != nil {
		return err
	}

	fmt.Printf("Production %d is %s (job %s)\n", res.ProductionID, res.Status, res.JobID)
	return nil
}
