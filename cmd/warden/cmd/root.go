package cmd

import (
	"github.com/spf13/cobra"
)

// verbose switches run logs from summaries to full transcripts.
var verbose bool

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "warden - multi-tenant sandbox host for chat groups",
	Long:  `warden runs agent jobs for chat groups inside short-lived, isolated Docker containers. Each paired group gets its own files, session, schedule and resource limits.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "write full run transcripts to the run log")

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pairCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}
