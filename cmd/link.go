package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"vidhost/internal/hosting"
	"vidhost/pkg/config"
)

var linkDirect bool

var linkCmd = &cobra.Command{
	Use:   "link <platform> <id>",
	Short: "Print the page URL of a hosted video",
	Long:  `Print the public page URL of a hosted video, or with --direct the direct video source behind it.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runLink,
}

func init() {
	linkCmd.Flags().BoolVarP(&linkDirect, "direct", "d", false, "Resolve the direct video source URL")
	rootCmd.AddCommand(linkCmd)
}

func runLink(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	platform, id := args[0], args[1]

	service := hosting.NewService(config.Load())

	if linkDirect {
		url, err := service.VideoURL(ctx, platform, id)
		if err != nil {
			return err
		}
		fmt.Println(url)
		return nil
	}

	url, err := service.PageURL(platform, id)
	if err != nil {
		return err
	}
	fmt.Println(url)
	return nil
}
