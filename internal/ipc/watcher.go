package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hkuds/warden/internal/bus"
	"github.com/hkuds/warden/internal/group"
	"github.com/hkuds/warden/internal/tasks"
)

// DefaultScanInterval is how often the watcher polls the ipc tree.
const DefaultScanInterval = 2 * time.Second

// Watcher polls ipc/<folder>/{messages,tasks}/ for files written by
// sandboxed workloads. Every file is attributed to the group owning the
// directory it was found in; the file path is the authority, not the
// file contents.
type Watcher struct {
	dataDir  string
	bus      *bus.MessageBus
	tasks    *tasks.Store
	groups   *group.Registry
	pairing  *group.PairingStore
	interval time.Duration
	onChange func()
}

// NewWatcher creates a Watcher over dataDir/ipc.
func NewWatcher(dataDir string, b *bus.MessageBus, ts *tasks.Store, gr *group.Registry, ps *group.PairingStore) *Watcher {
	return &Watcher{
		dataDir:  dataDir,
		bus:      b,
		tasks:    ts,
		groups:   gr,
		pairing:  ps,
		interval: DefaultScanInterval,
	}
}

// SetInterval overrides the poll interval. Non-positive values keep
// the default.
func (w *Watcher) SetInterval(d time.Duration) {
	if d > 0 {
		w.interval = d
	}
}

// SetOnChange registers a hook invoked after any task or group mutation
// so the host can refresh the sandbox snapshots.
func (w *Watcher) SetOnChange(fn func()) {
	w.onChange = fn
}

// Run polls until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Scan()
		}
	}
}

// Scan performs a single pass over the ipc tree.
func (w *Watcher) Scan() {
	root := filepath.Join(w.dataDir, "ipc")
	entries, err := os.ReadDir(root)
	if err != nil {
		return // nothing written yet
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		folder := entry.Name()
		if _, ok := w.groups.Get(folder); !ok {
			// Directory without a registered group; leave it alone.
			continue
		}
		w.processMessages(folder)
		w.processTaskCommands(folder)
	}
}

// processMessages delivers ipc/<folder>/messages/*.json to the bus.
func (w *Watcher) processMessages(folder string) {
	g, ok := w.groups.Get(folder)
	if !ok {
		return
	}

	for _, path := range w.listJSON(filepath.Join(w.dataDir, "ipc", folder, "messages")) {
		var msg OutboundFile
		if !w.readAndRemove(path, folder, &msg) {
			continue
		}
		if strings.TrimSpace(msg.Content) == "" {
			log.Printf("[ipc] group=%s action=skip_empty file=%s", folder, filepath.Base(path))
			continue
		}

		channel, chatID := msg.Channel, msg.ChatID
		if channel == "" {
			channel = g.Channel
		}
		if chatID == "" {
			chatID = g.ChatID
		}
		// Non-root groups may only message their own chat.
		if !g.Root && (channel != g.Channel || chatID != g.ChatID) {
			log.Printf("[security] group=%s action=message_rejected target=%s:%s reason=foreign_chat",
				folder, channel, chatID)
			continue
		}

		w.bus.PublishOutbound(bus.OutboundMessage{
			Channel:     channel,
			ChatID:      chatID,
			Content:     msg.Content,
			Media:       msg.Media,
			GroupFolder: folder,
		})
		log.Printf("[ipc] group=%s action=message_delivered target=%s:%s", folder, channel, chatID)
	}
}

// processTaskCommands applies ipc/<folder>/tasks/*.json.
func (w *Watcher) processTaskCommands(folder string) {
	g, ok := w.groups.Get(folder)
	if !ok {
		return
	}

	changed := false
	for _, path := range w.listJSON(filepath.Join(w.dataDir, "ipc", folder, "tasks")) {
		var cmd TaskCommand
		if !w.readAndRemove(path, folder, &cmd) {
			continue
		}
		if err := w.applyCommand(g, cmd); err != nil {
			log.Printf("[ipc] group=%s action=%s error=%q", folder, cmd.Action, err)
			continue
		}
		changed = true
		log.Printf("[ipc] group=%s action=%s applied", folder, cmd.Action)
	}

	if changed && w.onChange != nil {
		w.onChange()
	}
}

func (w *Watcher) applyCommand(g group.Group, cmd TaskCommand) error {
	switch cmd.Action {
	case ActionAddTask:
		_, err := w.tasks.Add(g.Folder, cmd.Schedule, cmd.Prompt)
		return err

	case ActionRemoveTask:
		if g.Root {
			return w.tasks.Remove(cmd.TaskID)
		}
		return w.tasks.RemoveScoped(cmd.TaskID, g.Folder)

	case ActionRegisterGroup:
		if !g.Root {
			log.Printf("[security] group=%s action=register_denied name=%q", g.Folder, cmd.GroupName)
			return fmt.Errorf("only the root group can register groups")
		}
		if strings.TrimSpace(cmd.GroupName) == "" {
			return fmt.Errorf("register_group needs a group name")
		}
		code, err := w.pairing.Issue(cmd.GroupName, false)
		if err != nil {
			return err
		}
		w.bus.PublishOutbound(bus.OutboundMessage{
			Channel:     g.Channel,
			ChatID:      g.ChatID,
			Content:     fmt.Sprintf("Pairing code for %q: %s\nSend it from the new chat within %s.", cmd.GroupName, code, w.pairing.TTL()),
			GroupFolder: g.Folder,
		})
		return nil

	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
}

// listJSON returns the .json files in dir, oldest name first.
func (w *Watcher) listJSON(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out
}

// readAndRemove reads and unmarshals path into v, then deletes the
// file. Malformed files are logged and deleted so they cannot wedge the
// scan loop.
func (w *Watcher) readAndRemove(path, folder string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[ipc] group=%s action=read_failed file=%s error=%q", folder, filepath.Base(path), err)
		return false
	}
	if err := os.Remove(path); err != nil {
		log.Printf("[ipc] group=%s action=remove_failed file=%s error=%q", folder, filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("[ipc] group=%s action=skip_malformed file=%s error=%q", folder, filepath.Base(path), err)
		return false
	}
	return true
}
