package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hkuds/warden/internal/bus"
	"github.com/hkuds/warden/internal/channels"
	"github.com/hkuds/warden/internal/config"
	"github.com/hkuds/warden/internal/group"
	"github.com/hkuds/warden/internal/host"
	"github.com/hkuds/warden/internal/ipc"
	"github.com/hkuds/warden/internal/sandbox"
	"github.com/hkuds/warden/internal/tasks"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the warden gateway",
	Long:  "Start the gateway: connect to configured channels, watch the sandbox IPC tree, fire scheduled tasks and run submissions in per-group sandboxes.",
	RunE:  runGateway,
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig("")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.Channels.Telegram.Enabled {
		fmt.Println("No channels configured; only scheduled tasks and the IPC tree will be served.")
		fmt.Println("Run 'warden setup' to configure Telegram.")
	}

	dataDir := cfg.DataDirPath()

	// Resolve the runner configuration once. Nothing downstream reads
	// the config file or the environment again.
	runnerCfg := cfg.RunnerConfig(verbose)

	allowlist, err := sandbox.LoadAllowlist(cfg.AllowlistFilePath())
	if err != nil {
		return fmt.Errorf("failed to load mount allowlist: %w", err)
	}
	validator := sandbox.NewValidator(allowlist,
		config.GetConfigDir(),
		cfg.SecretsFilePath(),
		cfg.AllowlistFilePath(),
	)

	runner, err := sandbox.NewRunner(runnerCfg, validator)
	if err != nil {
		return fmt.Errorf("failed to create sandbox runner: %w", err)
	}
	defer runner.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := runner.Ping(ctx); err != nil {
		log.Printf("[gateway] action=docker_unreachable error=%q", err)
		fmt.Println("Warning: Docker is not reachable; runs will fail until it is.")
	}

	groups, err := group.NewRegistry(filepath.Join(dataDir, "groups"))
	if err != nil {
		return fmt.Errorf("failed to open group registry: %w", err)
	}

	pairing := group.NewPairingStore(cfg.PairingTTL())
	pendingPath := filepath.Join(config.GetConfigDir(), group.PendingFile)
	if loaded, err := pairing.LoadPending(pendingPath); err != nil {
		log.Printf("[gateway] action=pending_codes_failed error=%q", err)
	} else if loaded > 0 {
		log.Printf("[gateway] action=pending_codes_loaded count=%d", loaded)
	}

	msgBus := bus.NewMessageBus(100)
	defer msgBus.Close()

	// The task store fires into the host, which also owns the store for
	// snapshots; break the cycle with a late-bound reference.
	var h *host.Host
	taskStore := tasks.NewStore(filepath.Join(dataDir, "tasks.json"), func(ctx context.Context, task tasks.Task) {
		h.SubmitTask(ctx, task)
	})

	h = host.New(
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

	dispatcher := host.NewDispatcher(h, groups, pairing, msgBus)

	watcher := ipc.NewWatcher(dataDir, msgBus, taskStore, groups, pairing)
	watcher.SetInterval(cfg.ScanInterval())
	watcher.SetOnChange(h.RefreshSnapshots)

	chanMgr := channels.NewManager(cfg, msgBus)
	if err := chanMgr.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize channels: %w", err)
	}

	if err := taskStore.Start(ctx); err != nil {
		return fmt.Errorf("failed to start task store: %w", err)
	}
	defer taskStore.Stop()

	// Seed the per-group snapshots so a sandbox started right away sees
	// current state.
	h.RefreshSnapshots()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go msgBus.DispatchOutbound(ctx)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		dispatcher.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		watcher.Run(ctx)
	}()

	if err := chanMgr.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start channels: %w", err)
	}

	fmt.Printf("Sandbox image: %s\n", runnerCfg.Image)
	fmt.Printf("Data dir: %s\n", dataDir)
	fmt.Printf("Groups: %d registered\n", len(groups.List()))
	fmt.Println()
	fmt.Println("Gateway is running. Press Ctrl+C to stop.")

	<-sigChan
	fmt.Println("\nShutting down gateway...")

	if err := chanMgr.StopAll(); err != nil {
		log.Printf("[gateway] action=channel_stop_failed error=%q", err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		fmt.Println("Gateway stopped gracefully.")
	case <-time.After(10 * time.Second):
		fmt.Println("Gateway shutdown timed out.")
	}

	return nil
}
