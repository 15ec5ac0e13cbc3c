package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
)

// Planner computes the full bind-mount plan for one invocation. All
// per-group directories are created on demand; creation is idempotent.
type Planner struct {
	cfg       RunnerConfig
	validator *Validator
}

// NewPlanner creates a Planner using the given validator for extra mounts.
func NewPlanner(cfg RunnerConfig, validator *Validator) *Planner {
	cfg.Validate()
	return &Planner{cfg: cfg, validator: validator}
}

// GroupDir returns the host path of a group's exclusive folder.
func (p *Planner) GroupDir(folder string) string {
	return filepath.Join(p.cfg.DataDir, "groups", folder)
}

// SessionDir returns the host path of a group's session-state directory.
func (p *Planner) SessionDir(folder string) string {
	return filepath.Join(p.cfg.DataDir, "sessions", folder)
}

// IPCDir returns the host path of a group's IPC directory.
func (p *Planner) IPCDir(folder string) string {
	return filepath.Join(p.cfg.DataDir, "ipc", folder)
}

// EnvDir returns the host directory holding the environment export.
func (p *Planner) EnvDir() string {
	return filepath.Join(p.cfg.DataDir, "env")
}

// Plan builds the ordered mount list for the given group:
//
//   - root group: project root rw, group folder rw
//   - other groups: group folder rw, shared global dir ro if present
//   - always: session dir rw, IPC dir rw (messages/ and tasks/
//     pre-created), env-export dir ro
//   - validated extra mounts last
//
// The session and IPC directories are keyed by the group folder, so no
// two groups ever share session state or IPC traffic. Duplicate
// container targets are a configuration error, not a silent overwrite.
func (p *Planner) Plan(g GroupInfo) ([]MountPath, error) {
	if g.Folder == "" {
		return nil, fmt.Errorf("group %q has no folder", g.Name)
	}

	var mounts []MountPath

	if g.Root && p.cfg.ProjectRoot != "" {
		mounts = append(mounts, MountPath{Source: p.cfg.ProjectRoot, Target: TargetProject})
	}

	groupDir := p.GroupDir(g.Folder)
	if err := os.MkdirAll(groupDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create group dir: %w", err)
	}
	mounts = append(mounts, MountPath{Source: groupDir, Target: TargetGroup})

	if !g.Root && p.cfg.GlobalDir != "" {
		if _, err := os.Stat(p.cfg.GlobalDir); err == nil {
			mounts = append(mounts, MountPath{Source: p.cfg.GlobalDir, Target: TargetGlobal, ReadOnly: true})
		}
	}

	sessionDir := p.SessionDir(g.Folder)
	if err := os.MkdirAll(sessionDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}
	mounts = append(mounts, MountPath{Source: sessionDir, Target: TargetSession})

	ipcDir := p.IPCDir(g.Folder)
	for _, sub := range []string{"messages", "tasks"} {
		if err := os.MkdirAll(filepath.Join(ipcDir, sub), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create ipc dir: %w", err)
		}
	}
	mounts = append(mounts, MountPath{Source: ipcDir, Target: TargetIPC})

	envDir := p.EnvDir()
	if err := os.MkdirAll(envDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create env dir: %w", err)
	}
	mounts = append(mounts, MountPath{Source: envDir, Target: TargetSecrets, ReadOnly: true})

	if p.validator != nil {
		mounts = append(mounts, p.validator.Filter(g.ExtraMounts, g.Name, g.Root)...)
	}

	seen := make(map[string]string, len(mounts))
	for _, m := range mounts {
		if prev, ok := seen[m.Target]; ok {
			return nil, fmt.Errorf("sandbox path %s is mapped twice (%s and %s)", m.Target, prev, m.Source)
		}
		seen[m.Target] = m.Source
	}

	return mounts, nil
}
