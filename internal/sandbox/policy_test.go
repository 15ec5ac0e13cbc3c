package sandbox

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFilterRejectsSensitivePaths(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}

	sshDir := filepath.Join(home, ".ssh")
	// Even an explicit allowlist entry must not admit a sensitive path.
	v := NewValidator([]AllowlistEntry{{Path: sshDir}})

	tests := []struct {
		name   string
		source string
	}{
		{"ssh dir itself", sshDir},
		{"nested under ssh", filepath.Join(sshDir, "id_ed25519")},
		{"shadow file", "/etc/shadow"},
		{"docker socket", "/var/run/docker.sock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Filter([]MountRequest{{Source: tt.source, Target: "/workspace/extra"}}, "dev", false)
			if len(got) != 0 {
				t.Errorf("sensitive path %s was accepted: %+v", tt.source, got)
			}
		})
	}
}

func TestFilterRejectsAncestorOfSensitivePath(t *testing.T) {
	// Mounting /etc would expose /etc/shadow underneath it.
	v := NewValidator([]AllowlistEntry{{Path: "/etc"}})

	got := v.Filter([]MountRequest{{Source: "/etc", Target: "/workspace/etc"}}, "dev", false)
	if len(got) != 0 {
		t.Errorf("ancestor of sensitive path was accepted: %+v", got)
	}
}

func TestFilterProtectedConfigDir(t *testing.T) {
	configDir := t.TempDir()
	allowlistPath := filepath.Join(configDir, "mounts.json")
	if err := os.WriteFile(allowlistPath, []byte("[]"), 0o600); err != nil {
		t.Fatal(err)
	}

	// The config dir is protected even when an entry covers it, so the
	// allowlist source can never end up inside a sandbox.
	v := NewValidator([]AllowlistEntry{{Path: configDir}}, configDir)

	got := v.Filter([]MountRequest{{Source: allowlistPath, Target: "/workspace/x"}}, "dev", true)
	if len(got) != 0 {
		t.Errorf("allowlist source was accepted for mounting: %+v", got)
	}
}

func TestFilterAllowlistMatching(t *testing.T) {
	shared := t.TempDir()
	other := t.TempDir()
	nested := filepath.Join(shared, "docs")
	if err := os.MkdirAll(nested, 0o700); err != nil {
		t.Fatal(err)
	}

	v := NewValidator([]AllowlistEntry{{Path: shared}})

	tests := []struct {
		name     string
		source   string
		accepted bool
	}{
		{"exact match", shared, true},
		{"nested under entry", nested, true},
		{"outside allowlist", other, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Filter([]MountRequest{{Source: tt.source, Target: "/workspace/extra"}}, "dev", false)
			if (len(got) == 1) != tt.accepted {
				t.Errorf("source %s: accepted=%v, want %v", tt.source, len(got) == 1, tt.accepted)
			}
		})
	}
}

func TestFilterReadOnlyDowngrade(t *testing.T) {
	dir := t.TempDir()
	v := NewValidator([]AllowlistEntry{{Path: dir, ReadOnly: true}})

	// Request asks for read-write; the entry's policy wins.
	got := v.Filter([]MountRequest{{Source: dir, Target: "/workspace/extra", ReadOnly: false}}, "dev", false)
	if len(got) != 1 {
		t.Fatalf("expected 1 accepted mount, got %d", len(got))
	}
	if !got[0].ReadOnly {
		t.Error("read-only entry was upgraded to read-write")
	}
}

func TestFilterKeepsRequestedReadOnly(t *testing.T) {
	dir := t.TempDir()
	v := NewValidator([]AllowlistEntry{{Path: dir, ReadOnly: false}})

	got := v.Filter([]MountRequest{{Source: dir, Target: "/workspace/extra", ReadOnly: true}}, "dev", false)
	if len(got) != 1 {
		t.Fatalf("expected 1 accepted mount, got %d", len(got))
	}
	if !got[0].ReadOnly {
		t.Error("a request asking for read-only must stay read-only")
	}
}

func TestFilterGroupScoping(t *testing.T) {
	dir := t.TempDir()
	v := NewValidator([]AllowlistEntry{{Path: dir, Groups: []string{"research"}}})

	if got := v.Filter([]MountRequest{{Source: dir, Target: "/workspace/extra"}}, "research", false); len(got) != 1 {
		t.Errorf("scoped entry should admit its own group, got %d mounts", len(got))
	}
	if got := v.Filter([]MountRequest{{Source: dir, Target: "/workspace/extra"}}, "dev", false); len(got) != 0 {
		t.Errorf("scoped entry admitted a foreign group: %+v", got)
	}
	// Root does not bypass scoping.
	if got := v.Filter([]MountRequest{{Source: dir, Target: "/workspace/extra"}}, "admin", true); len(got) != 0 {
		t.Errorf("scoped entry admitted the root group: %+v", got)
	}
}

func TestFilterScopedEntryDoesNotShadowLaterEntry(t *testing.T) {
	dir := t.TempDir()
	// A foreign-scoped entry listed first must not block a later entry
	// that covers the same tree for everyone.
	v := NewValidator([]AllowlistEntry{
		{Path: dir, Groups: []string{"research"}},
		{Path: dir, ReadOnly: true},
	})

	got := v.Filter([]MountRequest{{Source: dir, Target: "/workspace/extra"}}, "dev", false)
	if len(got) != 1 {
		t.Fatalf("unscoped entry after a foreign-scoped one was ignored, got %d mounts", len(got))
	}
	if !got[0].ReadOnly {
		t.Error("accepting entry's read-only policy not applied")
	}
}

func TestFilterMalformedRequests(t *testing.T) {
	dir := t.TempDir()
	v := NewValidator([]AllowlistEntry{{Path: dir}})

	tests := []struct {
		name string
		req  MountRequest
	}{
		{"empty source", MountRequest{Target: "/workspace/x"}},
		{"empty target", MountRequest{Source: dir}},
		{"relative target", MountRequest{Source: dir, Target: "workspace/x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.Filter([]MountRequest{tt.req}, "dev", false); len(got) != 0 {
				t.Errorf("malformed request accepted: %+v", got)
			}
		})
	}
}

func TestLoadAllowlist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mounts.json")

	content := `[
  {"path": "/srv/shared", "read_only": true},
  {"path": "/srv/research", "groups": ["research"]}
]`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	entries, err := LoadAllowlist(path)
	if err != nil {
		t.Fatalf("LoadAllowlist: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].ReadOnly {
		t.Error("first entry should be read-only")
	}
	if len(entries[1].Groups) != 1 || entries[1].Groups[0] != "research" {
		t.Errorf("second entry groups = %v", entries[1].Groups)
	}
}

func TestLoadAllowlistMissingFile(t *testing.T) {
	entries, err := LoadAllowlist(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("missing allowlist should not error, got %v", err)
	}
	if entries != nil {
		t.Errorf("missing allowlist should be empty, got %+v", entries)
	}
}

func TestLoadAllowlistMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mounts.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadAllowlist(path); err == nil {
		t.Error("malformed allowlist should error")
	}
}
