package cmd

import (
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"vidhost/internal/hosting"
	"vidhost/pkg/config"
)

var openCmd = &cobra.Command{
	Use:   "open <platform> <id>",
	Short: "Open a hosted video page in the browser",
	Args:  cobra.ExactArgs(2),
	RunE:  runOpen,
}

func init() {
	rootCmd.AddCommand(openCmd)
}

func runOpen(cmd *cobra.Command, args []string) error {
	platform, id := args[0], args[1]

	service := hosting.NewService(config.Load())

	url, err := service.PageURL(platform, id)
	if err != nil {
		return err
	}
	return browser.OpenURL(url)
}
