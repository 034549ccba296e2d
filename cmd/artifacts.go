package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "List rendered videos in the artifact store",
	RunE:  runArtifacts,
}

func init() {
	rootCmd.AddCommand(artifactsCmd)
}

func runArtifacts(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	service, err := loadService(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = service.Close() }()

	artifacts, err := service.Artifacts().List(ctx)
	if err != nil {
		return err
	}
	if len(artifacts) == 0 {
		fmt.Println("No rendered videos yet.")
		return nil
	}

	rows := make([][]string, 0, len(artifacts))
	for _, a := range artifacts {
		rows = append(rows, []string{a.Name, formatBytes(a.Size), a.Updated.Local().Format(time.DateTime), a.URL})
	}
	fmt.Println(renderTable([]string{"Name", "Size", "Updated", "URL"}, rows, 2))
	return nil
}
