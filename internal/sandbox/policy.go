package sandbox

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// AllowlistEntry names one host path eligible for group-requested extra
// mounts. The allowlist file is operator-edited and lives in the warden
// config directory, which itself can never appear in a mount plan.
type AllowlistEntry struct {
	// Path is the host path covered by this entry. A request matches
	// when it equals the path or is nested under it.
	Path string `json:"path"`

	// ReadOnly forces matching mounts to read-only. A read-only entry
	// is never upgraded by a request asking for read-write.
	ReadOnly bool `json:"read_only"`

	// Groups optionally scopes the entry to specific group names.
	// Empty means any group may use it.
	Groups []string `json:"groups,omitempty"`
}

// sensitiveDirectories are home-relative prefixes that can never be mounted.
var sensitiveDirectories = []string{
	".ssh",
	".gnupg",
	".aws",
	".azure",
	".gcloud",
	".config/gh",
	".kube",
	".docker",
}

// sensitiveAbsolutePaths are absolute paths that can never be mounted.
var sensitiveAbsolutePaths = []string{
	"/etc/shadow",
	"/etc/sudoers",
	"/etc/ssl/private",
	"/var/run/docker.sock",
}

// Validator filters group-requested extra mounts against the sensitive
// path set and the operator allowlist. It drops and logs offending
// requests; it never raises past this boundary.
type Validator struct {
	entries []AllowlistEntry
	blocked []string
}

// NewValidator creates a Validator for the given allowlist entries.
// protect lists additional host paths to block unconditionally; the
// caller passes the warden config directory here so the allowlist,
// config and secret source can never be mounted into any sandbox.
func NewValidator(entries []AllowlistEntry, protect ...string) *Validator {
	return &Validator{
		entries: entries,
		blocked: buildBlockedPaths(protect),
	}
}

// LoadAllowlist reads the operator allowlist file. A missing file means
// an empty allowlist: every extra mount request is rejected.
func LoadAllowlist(path string) ([]AllowlistEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read allowlist %s: %w", path, err)
	}

	var entries []AllowlistEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse allowlist %s: %w", path, err)
	}
	return entries, nil
}

// buildBlockedPaths constructs the blocked prefix list, expanding
// home-relative entries and adding symlink-resolved variants so checks
// work on systems where paths like /etc are symlinked (e.g. macOS).
func buildBlockedPaths(protect []string) []string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}

	var paths []string
	if home != "" {
		for _, dir := range sensitiveDirectories {
			paths = append(paths, filepath.Join(home, dir))
		}
	}

	for _, p := range append(append([]string{}, sensitiveAbsolutePaths...), protect...) {
		if p == "" {
			continue
		}
		paths = append(paths, filepath.Clean(p))
		if resolved, err := filepath.EvalSymlinks(filepath.Dir(p)); err == nil {
			resolvedPath := filepath.Join(resolved, filepath.Base(p))
			if resolvedPath != filepath.Clean(p) {
				paths = append(paths, resolvedPath)
			}
		}
	}

	return paths
}

// Filter returns the subset of requests that passes policy, in request
// order, with read-only downgrades applied. Rejected requests are
// logged and omitted; the invocation proceeds without them.
func (v *Validator) Filter(requests []MountRequest, groupName string, root bool) []MountPath {
	var accepted []MountPath
	for _, req := range requests {
		mp, reason := v.check(req, groupName)
		if reason != "" {
			log.Printf("[security] group=%s action=mount_rejected source=%s reason=%s",
				groupName, req.Source, reason)
			continue
		}
		accepted = append(accepted, mp)
	}
	return accepted
}

// check validates a single request. It returns the mount to apply, or a
// non-empty rejection reason.
func (v *Validator) check(req MountRequest, groupName string) (MountPath, string) {
	if req.Source == "" || req.Target == "" {
		return MountPath{}, "empty source or target"
	}
	if !filepath.IsAbs(req.Target) {
		return MountPath{}, "target is not absolute"
	}

	source, err := resolveHostPath(req.Source)
	if err != nil {
		return MountPath{}, fmt.Sprintf("unresolvable source: %v", err)
	}

	// Sensitive paths are rejected before the allowlist is consulted,
	// regardless of its content.
	for _, blocked := range v.blocked {
		if source == blocked || isUnder(source, blocked) || isUnder(blocked, source) {
			return MountPath{}, "sensitive path"
		}
	}

	// A scope mismatch does not end the scan: a later entry may cover
	// the same path for this group.
	scopedOut := false
	for _, entry := range v.entries {
		entryPath, err := resolveHostPath(entry.Path)
		if err != nil {
			continue
		}
		if source != entryPath && !isUnder(source, entryPath) {
			continue
		}
		if len(entry.Groups) > 0 && !containsString(entry.Groups, groupName) {
			scopedOut = true
			continue
		}
		return MountPath{
			Source:   source,
			Target:   filepath.Clean(req.Target),
			ReadOnly: req.ReadOnly || entry.ReadOnly,
		}, ""
	}

	if scopedOut {
		return MountPath{}, "allowlist entries are scoped to other groups"
	}
	return MountPath{}, "not covered by allowlist"
}

// resolveHostPath expands ~, makes the path absolute and resolves
// symlinks so containment checks compare real paths. A path that does
// not exist yet resolves through its parent directory.
func resolveHostPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}

	path = filepath.Clean(path)
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", err
		}
		path = abs
	}

	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		parent := filepath.Dir(path)
		resolvedParent, parentErr := filepath.EvalSymlinks(parent)
		if parentErr != nil {
			return path, nil
		}
		return filepath.Join(resolvedParent, filepath.Base(path)), nil
	}
	return resolved, nil
}

// isUnder reports whether path is strictly nested under prefix.
func isUnder(path, prefix string) bool {
	return strings.HasPrefix(path, prefix+string(filepath.Separator))
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
