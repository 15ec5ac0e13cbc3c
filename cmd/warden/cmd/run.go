package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hkuds/warden/internal/bus"
	"github.com/hkuds/warden/internal/config"
	"github.com/hkuds/warden/internal/group"
	"github.com/hkuds/warden/internal/host"
	"github.com/hkuds/warden/internal/sandbox"
	"github.com/hkuds/warden/internal/tasks"
)

var runCmd = &cobra.Command{
	Use:   "run <group-folder> <prompt...>",
	Short: "Run a one-off prompt in a group's sandbox",
	Long:  "Submit a prompt to a registered group's sandbox from the command line and print the result. Useful for testing a group without going through a channel.",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	folder := args[0]
	prompt := strings.Join(args[1:], " ")

	cfg, err := config.LoadConfig("")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	dataDir := cfg.DataDirPath()

	groups, err := group.NewRegistry(filepath.Join(dataDir, "groups"))
	if err != nil {
		return fmt.Errorf("failed to open group registry: %w", err)
	}
	if _, ok := groups.Get(folder); !ok {
		return fmt.Errorf("group %q not found; see 'warden groups'", folder)
	}

	allowlist, err := sandbox.LoadAllowlist(cfg.AllowlistFilePath())
	if err != nil {
		return fmt.Errorf("failed to load mount allowlist: %w", err)
	}
	validator := sandbox.NewValidator(allowlist,
		config.GetConfigDir(),
		cfg.SecretsFilePath(),
		cfg.AllowlistFilePath(),
	)

	runnerCfg := cfg.RunnerConfig(verbose)
	runner, err := sandbox.NewRunner(runnerCfg, validator)
	if err != nil {
		return fmt.Errorf("failed to create sandbox runner: %w", err)
	}
	defer runner.Close()

	msgBus := bus.NewMessageBus(1)
	defer msgBus.Close()

	taskStore := tasks.NewStore(filepath.Join(dataDir, "tasks.json"), func(context.Context, tasks.Task) {})

	h := host.New(
		runner,
		groups,
		taskStore,
		&sandbox.SnapshotWriter{DataDir: dataDir},
		&sandbox.Projector{
			SourcePath: cfg.SecretsFilePath(),
			ExportDir:  filepath.Join(dataDir, "env"),
			Allowed:    cfg.Secrets.Allowed,
			Timezone:   runnerCfg.Timezone,
		},
		msgBus,
	)

	res := h.Submit(context.Background(), folder, prompt, false)
	if !res.IsSuccess() {
		return fmt.Errorf("run failed: %s", res.Error)
	}

	fmt.Println(res.Result)
	return nil
}
