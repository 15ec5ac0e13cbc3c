package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExportFileName is the env-export file the sandbox reads from the
// read-only secrets mount.
const ExportFileName = "sandbox.env"

// DefaultAllowedSecrets are the secret names exported when the
// configuration does not name its own set.
var DefaultAllowedSecrets = []string{
	"ANTHROPIC_API_KEY",
	"OPENAI_API_KEY",
	"GROQ_API_KEY",
	"GITHUB_TOKEN",
}

// Projector derives the minimal environment export visible to every
// sandbox. Only secrets whose names are in the allowed set make it
// through; the host's full environment is never projected.
type Projector struct {
	// SourcePath is the operator-maintained secret file with
	// NAME=VALUE lines. It lives outside every mount plan.
	SourcePath string

	// ExportDir is the directory mounted read-only into sandboxes.
	ExportDir string

	// Allowed is the set of secret names permitted to cross over.
	Allowed []string

	// Timezone is written as TZ.
	Timezone string
}

// Write rewrites the export file and returns its path. It is called
// before every invocation so operator edits take effect immediately.
func (p *Projector) Write() (string, error) {
	allowed := p.Allowed
	if len(allowed) == 0 {
		allowed = DefaultAllowedSecrets
	}

	var lines []string
	data, err := os.ReadFile(p.SourcePath)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read secret source %s: %w", p.SourcePath, err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, _, ok := strings.Cut(line, "=")
		if !ok || !containsString(allowed, strings.TrimSpace(name)) {
			continue
		}
		lines = append(lines, line)
	}

	tz := p.Timezone
	if tz == "" {
		tz = "UTC"
	}
	lines = append(lines, "TZ="+tz)

	if err := os.MkdirAll(p.ExportDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}

	path := filepath.Join(p.ExportDir, ExportFileName)
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("failed to write env export: %w", err)
	}
	return path, nil
}
