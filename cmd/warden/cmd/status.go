package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hkuds/warden/internal/tui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration status",
	Long:  "Display the current warden configuration: sandbox settings, channels and registered groups.",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	groups, cfg, err := openRegistry()
	if err != nil {
		return err
	}
	return tui.ShowStatus(cfg, groups.List())
}
