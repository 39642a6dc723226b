package cmd

import (
	"github.com/spf13/cobra"

	"vidhost/internal/hosting"
	"vidhost/pkg/config"
)

var clipTitle string

var clipCmd = &cobra.Command{
	Use:   "clip <url>",
	Short: "Clip a remote video into Streamable",
	Long:  `Ask Streamable to extract a remote video URL and host a clip of it.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runClip,
}

func init() {
	clipCmd.Flags().StringVarP(&clipTitle, "title", "t", "", "Clip title")
	rootCmd.AddCommand(clipCmd)
}

func runClip(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	srcURL := args[0]

	service := hosting.NewService(config.Load())

	var video *hosting.HostedVideo
	err := runWithSpinner("Clipping into streamable", func() error {
		data, clipErr := service.Streamable.Clip(ctx, srcURL, clipTitle)
		if clipErr != nil {
			return clipErr
		}
		video = &hosting.HostedVideo{
			Platform: hosting.PlatformStreamable,
			ID:       data.Shortcode,
			URL:      service.Streamable.PageURL(data.Shortcode),
		}
		return nil
	})
	if err != nil {
		return err
	}

	printHosted(video)
	return nil
}
