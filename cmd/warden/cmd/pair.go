package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hkuds/warden/internal/config"
	"github.com/hkuds/warden/internal/group"
)

var pairRoot bool

var pairCmd = &cobra.Command{
	Use:   "pair <group-name>",
	Short: "Issue a pairing code for a new group",
	Long:  "Issue a one-time pairing code binding a chat to a new group. Send the code from the chat that should become the group; the gateway picks the code up on its next start. A running root group can also issue codes through its sandbox without this command.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPair,
}

func init() {
	pairCmd.Flags().BoolVar(&pairRoot, "root", false, "make the paired group the root group")
}

func runPair(cmd *cobra.Command, args []string) error {
	name := args[0]
	if group.SafeFolder(name) == "" {
		return fmt.Errorf("group name %q yields an empty folder name", name)
	}

	cfg, err := config.LoadConfig("")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if pairRoot {
		groups, err := group.NewRegistry(filepath.Join(cfg.DataDirPath(), "groups"))
		if err != nil {
			return fmt.Errorf("failed to open group registry: %w", err)
		}
		if g, ok := groups.Root(); ok {
			return fmt.Errorf("root group already exists (%s)", g.Name)
		}
	}

	pendingPath := filepath.Join(config.GetConfigDir(), group.PendingFile)
	code, err := group.IssueToFile(pendingPath, name, pairRoot, cfg.PairingTTL())
	if err != nil {
		return fmt.Errorf("failed to issue pairing code: %w", err)
	}

	fmt.Printf("Pairing code for %q: %s\n", name, code)
	fmt.Printf("Valid for %s after the gateway starts.\n", cfg.PairingTTL())
	fmt.Println()
	fmt.Println("Send this code as a message from the chat that should become the group.")
	fmt.Println("The gateway reads CLI-issued codes at startup; restart it if it is already running.")
	return nil
}
