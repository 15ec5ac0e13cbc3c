package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hkuds/warden/internal/tui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Run interactive setup wizard",
	Long:  "Run the interactive setup wizard to configure the sandbox image, data directory, channels and voice transcription.",
	RunE:  runSetup,
}

func runSetup(cmd *cobra.Command, args []string) error {
	cfg, err := tui.RunSetup()
	if err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}

	fmt.Println()
	tui.ShowQuickStatus(cfg, nil)

	fmt.Println()
	fmt.Println("You can now:")
	fmt.Println("  - Create the root group: warden pair --root <name>")
	fmt.Println("  - Start the gateway:     warden gateway")
	fmt.Println("  - View full status:      warden status")

	return nil
}
