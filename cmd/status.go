package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"vidhost/internal/hosting"
	"vidhost/pkg/config"
)

var statusCmd = &cobra.Command{
	Use:   "status <platform> <id>",
	Short: "Check the processing status of a hosted video",
	Args:  cobra.ExactArgs(2),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	platform, id := args[0], args[1]

	service := hosting.NewService(config.Load())

	status, err := service.Status(ctx, platform, id)
	if err != nil {
		return err
	}

	switch status {
	case hosting.StatusComplete:
		fmt.Println(successStyle.Render(string(status)))
	case hosting.StatusProcessing:
		fmt.Println(infoStyle.Render(string(status)))
	default:
		fmt.Println(string(status))
	}
	return nil
}
