package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vidhost/internal/hosting"
	"vidhost/pkg/config"
)

var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List supported platforms and their operations",
	RunE:  runPlatforms,
}

func init() {
	rootCmd.AddCommand(platformsCmd)
}

func runPlatforms(cmd *cobra.Command, args []string) error {
	service := hosting.NewService(config.Load())

	fmt.Println(titleStyle.Render("Platforms"))
	for _, name := range service.Platforms() {
		capability, err := service.Capability(name)
		if err != nil {
			return err
		}

		ops := []string{"upload"}
		if capability.Status {
			ops = append(ops, "status")
		}
		if capability.VideoURL {
			ops = append(ops, "link --direct")
		}
		fmt.Printf("  %-16s %s\n", name, infoStyle.Render(strings.Join(ops, ", ")))
	}
	return nil
}
