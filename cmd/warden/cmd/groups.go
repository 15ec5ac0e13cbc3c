package cmd

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hkuds/warden/internal/config"
	"github.com/hkuds/warden/internal/group"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List registered groups",
	Long:  "List the registered groups with their folder, chat binding and root designation.",
	RunE:  runGroupsList,
}

var groupsRemoveCmd = &cobra.Command{
	Use:   "remove <group-folder>",
	Short: "Remove a registered group",
	Long:  "Remove a group from the registry. The group's files under the data directory are kept; delete them manually if they are no longer needed. The root group cannot be removed.",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupsRemove,
}

func init() {
	groupsCmd.AddCommand(groupsRemoveCmd)
}

func openRegistry() (*group.Registry, *config.Config, error) {
	cfg, err := config.LoadConfig("")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	groups, err := group.NewRegistry(filepath.Join(cfg.DataDirPath(), "groups"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open group registry: %w", err)
	}
	return groups, cfg, nil
}

func runGroupsList(cmd *cobra.Command, args []string) error {
	groups, _, err := openRegistry()
	if err != nil {
		return err
	}

	list := groups.List()
	if len(list) == 0 {
		fmt.Println("No groups registered.")
		fmt.Println("Run 'warden pair --root <name>' to create the root group.")
		return nil
	}

	sort.Slice(list, func(i, j int) bool { return list[i].Folder < list[j].Folder })

	fmt.Printf("%-20s %-20s %-24s %s\n", "FOLDER", "NAME", "CHAT", "ROLE")
	for _, g := range list {
		role := ""
		if g.Root {
			role = "root"
		}
		fmt.Printf("%-20s %-20s %-24s %s\n", g.Folder, g.Name, g.Channel+":"+g.ChatID, role)
	}

	if seen := groups.SeenChats(); len(seen) > 0 {
		fmt.Println()
		fmt.Printf("%d unpaired chat(s) seen:\n", len(seen))
		for _, c := range seen {
			title := c.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("  %s:%s  %s\n", c.Channel, c.ChatID, title)
		}
	}
	return nil
}

func runGroupsRemove(cmd *cobra.Command, args []string) error {
	groups, cfg, err := openRegistry()
	if err != nil {
		return err
	}

	folder := args[0]
	if err := groups.Remove(folder); err != nil {
		return err
	}

	fmt.Printf("Group %q removed.\n", folder)
	fmt.Printf("Its files under %s are kept; delete them manually if no longer needed.\n",
		filepath.Join(cfg.DataDirPath(), "groups", folder))
	return nil
}
