package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hkuds/warden/internal/config"
	"github.com/hkuds/warden/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch [group-folder]",
	Short: "Watch run logs interactively",
	Long:  "Open an interactive view tailing the newest sandbox run log, across all groups or for one group folder.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig("")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logRoot := cfg.RunnerConfig(verbose).LogRoot()
	folder := ""
	if len(args) == 1 {
		folder = args[0]
		folders := tui.GroupFoldersWithLogs(logRoot)
		found := false
		for _, f := range folders {
			if f == folder {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("no run logs for group %q (have: %v)", folder, folders)
		}
	}

	return tui.WatchRuns(logRoot, folder)
}
