package sandbox

import (
	"path/filepath"
	"time"
)

// Default runner configuration values.
const (
	DefaultImage          = "warden-agent:latest"
	DefaultMemoryMB       = 2048
	DefaultCPUPercent     = 1.0
	DefaultMaxProcesses   = 256
	DefaultTimeout        = 10 * time.Minute
	DefaultMaxOutputBytes = 1 << 20 // 1MB per stream
	DefaultWorkDir        = "/workspace/group"

	// Container-side paths every group sees.
	TargetProject = "/workspace/project"
	TargetGroup   = "/workspace/group"
	TargetGlobal  = "/workspace/global"
	TargetSession = "/workspace/.session"
	TargetIPC     = "/workspace/ipc"
	TargetSecrets = "/workspace/secrets"
)

// RunnerConfig holds the resolved configuration for sandbox runs. It is
// built once at startup; the runner never consults the host environment.
type RunnerConfig struct {
	// Image is the container image holding the agent workload.
	Image string

	// DataDir is the warden data root holding the per-group session,
	// IPC, env-export and log trees.
	DataDir string

	// ProjectRoot is mounted read-write for the root group only.
	// Empty disables the project mount.
	ProjectRoot string

	// GlobalDir is mounted read-only for non-root groups when it
	// exists on the host. Empty disables the global mount.
	GlobalDir string

	// Timeout is the wall-clock ceiling for one invocation. A group
	// configuration may override it per group.
	Timeout time.Duration

	// MaxOutputBytes caps each captured output stream. Bytes past the
	// cap are drained and discarded.
	MaxOutputBytes int

	// MemoryMB, CPUPercent and MaxProcesses bound container resources.
	MemoryMB     int64
	CPUPercent   float64
	MaxProcesses int64

	// NetworkEnabled allows the workload to reach the network. The
	// agent calls its model API from inside the sandbox, so this
	// defaults to true.
	NetworkEnabled bool

	// User overrides the container user. Empty keeps the image default
	// so the workload can write the bind-mounted group directories.
	User string

	// Verbose switches run logs from summaries to full transcripts.
	Verbose bool

	// Timezone is exported to the sandbox as TZ.
	Timezone string
}

// LogRoot returns the directory holding per-group run logs, or empty
// when no data dir is configured.
func (c RunnerConfig) LogRoot() string {
	if c.DataDir == "" {
		return ""
	}
	return filepath.Join(c.DataDir, "logs")
}

// MountPath is one host-to-container bind mount in a computed plan.
type MountPath struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	ReadOnly bool   `json:"read_only"`
}

// DefaultRunnerConfig returns a RunnerConfig with sensible defaults.
// DataDir must still be set by the caller.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Image:          DefaultImage,
		Timeout:        DefaultTimeout,
		MaxOutputBytes: DefaultMaxOutputBytes,
		MemoryMB:       DefaultMemoryMB,
		CPUPercent:     DefaultCPUPercent,
		MaxProcesses:   DefaultMaxProcesses,
		NetworkEnabled: true,
		Timezone:       "UTC",
	}
}

// Validate applies defaults to unset or out-of-range fields.
func (c *RunnerConfig) Validate() {
	if c.Image == "" {
		c.Image = DefaultImage
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if c.MemoryMB <= 0 {
		c.MemoryMB = DefaultMemoryMB
	}
	if c.CPUPercent <= 0 {
		c.CPUPercent = DefaultCPUPercent
	}
	if c.MaxProcesses <= 0 {
		c.MaxProcesses = DefaultMaxProcesses
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
}
