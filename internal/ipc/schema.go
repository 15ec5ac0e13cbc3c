// Package ipc implements the host side of the file-based contract with
// sandboxed workloads. A workload drops JSON files under its own
// ipc/<folder>/ tree; the watcher picks them up, validates them against
// the group's authority and deletes them once handled.
package ipc

// OutboundFile is a message the workload asks the host to deliver.
// Channel and ChatID default to the writing group's own chat; only the
// root group may address other chats.
type OutboundFile struct {
	Channel string   `json:"channel,omitempty"`
	ChatID  string   `json:"chat_id,omitempty"`
	Content string   `json:"content"`
	Media   []string `json:"media,omitempty"`
}

// Task command actions accepted under ipc/<folder>/tasks/.
const (
	ActionAddTask       = "add_task"
	ActionRemoveTask    = "remove_task"
	ActionRegisterGroup = "register_group"
)

// TaskCommand is a control request from the workload. Which fields are
// required depends on Action; RegisterGroup is honored only when the
// file comes from the root group's directory.
type TaskCommand struct {
	Action    string `json:"action"`
	Schedule  string `json:"schedule,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
	GroupName string `json:"group_name,omitempty"`
}
