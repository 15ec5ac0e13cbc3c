package sandbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Snapshot file names inside each group's IPC directory.
const (
	TaskSnapshotFile  = "current_tasks.json"
	GroupSnapshotFile = "available_groups.json"
)

// TaskView is the projection of one scheduled task shared with a sandbox.
type TaskView struct {
	ID          string `json:"id"`
	GroupFolder string `json:"group_folder"`
	Schedule    string `json:"schedule"`
	Prompt      string `json:"prompt"`
}

// ChatView is one discoverable chat identity. Only the root group ever
// receives a non-empty list, so only it can register new groups.
type ChatView struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	Title   string `json:"title,omitempty"`
}

// SnapshotWriter rewrites the one-way state projections a sandbox may
// read. The core writes them before each run and never reads them back;
// the sandbox reads them and never writes them (the files sit inside
// the group's own IPC mount, so another group can never see them).
type SnapshotWriter struct {
	// DataDir is the warden data root; snapshots land under
	// DataDir/ipc/<folder>/.
	DataDir string
}

// WriteTaskSnapshot rewrites the task snapshot for the given group. The
// root group sees every task; any other group sees only tasks belonging
// to its own folder.
func (w *SnapshotWriter) WriteTaskSnapshot(folder string, root bool, all []TaskView) error {
	visible := make([]TaskView, 0, len(all))
	for _, t := range all {
		if root || t.GroupFolder == folder {
			visible = append(visible, t)
		}
	}
	return w.writeSnapshot(folder, TaskSnapshotFile, visible)
}

// WriteGroupSnapshot rewrites the available-chat snapshot for the given
// group. Non-root groups always receive an empty list; they can never
// enumerate or activate other groups.
func (w *SnapshotWriter) WriteGroupSnapshot(folder string, root bool, chats []ChatView) error {
	visible := []ChatView{}
	if root {
		visible = append(visible, chats...)
	}
	return w.writeSnapshot(folder, GroupSnapshotFile, visible)
}

// writeSnapshot idempotently rewrites one snapshot file.
func (w *SnapshotWriter) writeSnapshot(folder, name string, v interface{}) error {
	dir := filepath.Join(w.DataDir, "ipc", folder)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create ipc dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot %s: %w", name, err)
	}

	if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", name, err)
	}
	return nil
}
