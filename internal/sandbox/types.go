package sandbox

import (
	"fmt"
	"time"
)

// Job is the single input blob a sandbox reads on stdin. It is serialized
// once per invocation; there is no streaming input protocol.
type Job struct {
	Prompt      string `json:"prompt"`
	SessionID   string `json:"session_id,omitempty"`
	GroupFolder string `json:"group_folder"`
	ChatID      string `json:"chat_id"`
	Timestamp   string `json:"timestamp"` // host-local time, RFC 3339
	IsRoot      bool   `json:"is_root"`
	IsScheduled bool   `json:"is_scheduled,omitempty"`
}

// Result statuses emitted by the sandboxed workload.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the single structured object a sandbox emits on stdout.
// Exactly one of Result or Error is meaningful depending on Status.
type Result struct {
	Status       string `json:"status"`
	Result       string `json:"result,omitempty"`
	NewSessionID string `json:"new_session_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

// IsSuccess reports whether the result carries a usable payload.
func (r Result) IsSuccess() bool {
	return r.Status == StatusSuccess
}

// ErrorResult builds an error-shaped Result. Every failure inside the
// invocation boundary is reported this way rather than as a raised error.
func ErrorResult(format string, args ...interface{}) Result {
	return Result{
		Status: StatusError,
		Error:  fmt.Sprintf(format, args...),
	}
}

// GroupInfo is the subset of a group record the sandbox layer needs.
// It is read-only here; groups are created and updated by the registry.
type GroupInfo struct {
	Name   string
	Folder string
	Root   bool

	// Timeout overrides the configured run timeout when positive.
	Timeout time.Duration

	// ExtraMounts are group-requested mounts; they are only honored
	// after passing the Validator.
	ExtraMounts []MountRequest
}

// MountRequest is a group-requested extra mount before validation.
type MountRequest struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	ReadOnly bool   `json:"read_only"`
}

// RunRecord is the write-once diagnostic record of a single invocation.
type RunRecord struct {
	Timestamp       time.Time
	GroupFolder     string
	Duration        time.Duration
	ExitCode        int
	TimedOut        bool
	StdoutTruncated bool
	StderrTruncated bool

	Job    Job
	Mounts []MountPath
	Stdout string
	Stderr string
}
