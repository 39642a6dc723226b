package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"vidhost/internal/hosting"
	"vidhost/pkg/config"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).MarginBottom(1)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

var (
	uploadPlatform string
	uploadTitle    string
	uploadAlbum    bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload a video to a hosting platform",
	Long: `Upload a video file and print the hosted page URL. Prompts for a
platform when none is given. Multiple files require --album and are
gathered into an Imgur album.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadPlatform, "platform", "p", "", "Target platform")
	uploadCmd.Flags().StringVarP(&uploadTitle, "title", "t", "", "Video title")
	uploadCmd.Flags().BoolVar(&uploadAlbum, "album", false, "Gather uploads into an Imgur album")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	for _, path := range args {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("video file: %w", err)
		}
	}
	if len(args) > 1 && !uploadAlbum {
		return fmt.Errorf("multiple files require --album")
	}

	cfg := config.Load()
	service := hosting.NewService(cfg)

	title := uploadTitle
	if title == "" {
		title = cfg.Upload.DefaultTitle
	}

	if uploadAlbum {
		return runAlbumUpload(cmd, service, args, title)
	}

	platform := uploadPlatform
	if platform == "" {
		picked, err := pickPlatform(service)
		if err != nil {
			return err
		}
		platform = picked
	}

	var video *hosting.HostedVideo
	err := runWithSpinner(fmt.Sprintf("Uploading to %s", platform), func() error {
		var uploadErr error
		video, uploadErr = service.Upload(ctx, platform, hosting.UploadRequest{
			FilePath: args[0],
			Title:    title,
		})
		return uploadErr
	})
	if err != nil {
		return err
	}

	printHosted(video)
	return nil
}

func runAlbumUpload(cmd *cobra.Command, service *hosting.Service, paths []string, title string) error {
	if uploadPlatform != "" && uploadPlatform != hosting.PlatformImgur {
		return fmt.Errorf("albums are only supported on %s", hosting.PlatformImgur)
	}

	reqs := make([]hosting.UploadRequest, 0, len(paths))
	for _, path := range paths {
		reqs = append(reqs, hosting.UploadRequest{FilePath: path})
	}

	var video *hosting.HostedVideo
	err := runWithSpinner(fmt.Sprintf("Uploading %d videos to imgur", len(paths)), func() error {
		var uploadErr error
		video, uploadErr = service.UploadImgurAlbum(cmd.Context(), title, reqs...)
		return uploadErr
	})
	if err != nil {
		return err
	}

	printHosted(video)
	return nil
}

func printHosted(video *hosting.HostedVideo) {
	fmt.Println(successStyle.Render("✓ Uploaded"))
	fmt.Printf("  %s %s\n", infoStyle.Render("id:"), video.ID)
	fmt.Printf("  %s %s\n", infoStyle.Render("url:"), video.URL)
	if video.EmbedURL != "" {
		fmt.Printf("  %s %s\n", infoStyle.Render("embed:"), video.EmbedURL)
	}
}

func pickPlatform(service *hosting.Service) (string, error) {
	options := make([]huh.Option[string], 0)
	for _, name := range service.Platforms() {
		options = append(options, huh.NewOption(name, name))
	}

	var platform string
	err := huh.NewSelect[string]().
		Title("Platform").
		Options(options...).
		Value(&platform).
		Run()
	if err != nil {
		return "", err
	}
	return platform, nil
}

func runWithSpinner(title string, fn func() error) error {
	var err error
	_ = spinner.New().
		Title(title).
		Action(func() { err = fn() }).
		Run()
	return err
}
