// Package host orchestrates sandbox invocations for registered groups:
// it serializes runs per group, projects the environment export,
// refreshes the snapshot files and persists the session identifier the
// workload reports back.
package host

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/hkuds/warden/internal/bus"
	"github.com/hkuds/warden/internal/group"
	"github.com/hkuds/warden/internal/sandbox"
	"github.com/hkuds/warden/internal/tasks"
)

// runner is what the host needs from the sandbox runner.
type runner interface {
	Run(ctx context.Context, g sandbox.GroupInfo, job sandbox.Job) sandbox.Result
}

// Host submits jobs to the sandbox runner on behalf of groups.
type Host struct {
	runner    runner
	groups    *group.Registry
	tasks     *tasks.Store
	snapshots *sandbox.SnapshotWriter
	projector *sandbox.Projector
	bus       *bus.MessageBus

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Host. The bus may be nil when no channels are attached
// (one-shot CLI runs).
func New(r runner, groups *group.Registry, ts *tasks.Store, snapshots *sandbox.SnapshotWriter, projector *sandbox.Projector, b *bus.MessageBus) *Host {
	return &Host{
		runner:    r,
		groups:    groups,
		tasks:     ts,
		snapshots: snapshots,
		projector: projector,
		bus:       b,
		locks:     make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing runs for one group folder.
func (h *Host) lockFor(folder string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.locks[folder]
	if !ok {
		l = &sync.Mutex{}
		h.locks[folder] = l
	}
	return l
}

// Submit runs one prompt for a group and returns the workload's result.
// Runs for the same group are serialized; different groups proceed
// concurrently. The group record is re-read under the lock so the job
// carries the latest session identifier.
func (h *Host) Submit(ctx context.Context, folder, prompt string, scheduled bool) sandbox.Result {
	lock := h.lockFor(folder)
	lock.Lock()
	defer lock.Unlock()

	g, ok := h.groups.Get(folder)
	if !ok {
		return sandbox.ErrorResult("group %q is not registered", folder)
	}

	if _, err := h.projector.Write(); err != nil {
		return sandbox.ErrorResult("failed to project environment: %v", err)
	}
	h.refreshGroup(g)

	job := sandbox.Job{
		Prompt:      prompt,
		SessionID:   g.SessionID,
		GroupFolder: g.Folder,
		ChatID:      g.ChatID,
		Timestamp:   time.Now().Format(time.RFC3339),
		IsRoot:      g.Root,
		IsScheduled: scheduled,
	}

	res := h.runner.Run(ctx, g.Sandbox(), job)

	if res.NewSessionID != "" && res.NewSessionID != g.SessionID {
		if err := h.groups.SetSessionID(g.Folder, res.NewSessionID); err != nil {
			log.Printf("[host] group=%s action=session_persist_failed error=%q", g.Folder, err)
		}
	}

	return res
}

// SubmitTask is the adapter the task store fires into. The task's
// result is delivered to the owning group's chat.
func (h *Host) SubmitTask(ctx context.Context, task tasks.Task) {
	res := h.Submit(ctx, task.GroupFolder, task.Prompt, true)

	g, ok := h.groups.Get(task.GroupFolder)
	if !ok || h.bus == nil {
		return
	}

	content := res.Result
	if !res.IsSuccess() {
		content = "Scheduled task failed: " + res.Error
	}
	if content == "" {
		return
	}
	h.bus.PublishOutbound(bus.OutboundMessage{
		Channel:     g.Channel,
		ChatID:      g.ChatID,
		Content:     content,
		GroupFolder: g.Folder,
	})
}

// RefreshSnapshots rewrites the snapshot files of every group. It is
// called when tasks or groups change outside a run.
func (h *Host) RefreshSnapshots() {
	for _, g := range h.groups.List() {
		h.refreshGroup(g)
	}
}

// refreshGroup rewrites one group's snapshots. Failures are logged, not
// fatal: a stale snapshot only degrades what the workload can see.
func (h *Host) refreshGroup(g group.Group) {
	if err := h.snapshots.WriteTaskSnapshot(g.Folder, g.Root, h.tasks.Views()); err != nil {
		log.Printf("[host] group=%s action=task_snapshot_failed error=%q", g.Folder, err)
	}

	var chats []sandbox.ChatView
	if g.Root {
		for _, c := range h.groups.SeenChats() {
			chats = append(chats, sandbox.ChatView{Channel: c.Channel, ChatID: c.ChatID, Title: c.Title})
		}
	}
	if err := h.snapshots.WriteGroupSnapshot(g.Folder, g.Root, chats); err != nil {
		log.Printf("[host] group=%s action=group_snapshot_failed error=%q", g.Folder, err)
	}
}
