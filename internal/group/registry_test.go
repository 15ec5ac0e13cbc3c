package group

import (
	"testing"
	"time"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestAddAndLookup(t *testing.T) {
	r := newTestRegistry(t)

	g, err := r.Add("Research Team", "telegram", "-100123", false)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if g.Folder != "research-team" {
		t.Errorf("folder = %q, want %q", g.Folder, "research-team")
	}

	byFolder, ok := r.Get("research-team")
	if !ok || byFolder.Name != "Research Team" {
		t.Errorf("Get returned %+v, %v", byFolder, ok)
	}

	byChat, ok := r.GetByChat("telegram", "-100123")
	if !ok || byChat.Folder != "research-team" {
		t.Errorf("GetByChat returned %+v, %v", byChat, ok)
	}
}

func TestSingleRootInvariant(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.Add("Admin", "telegram", "-1", true); err != nil {
		t.Fatalf("Add root: %v", err)
	}
	if _, err := r.Add("Second Admin", "telegram", "-2", true); err == nil {
		t.Fatal("a second root group must be rejected")
	}

	root, ok := r.Root()
	if !ok || root.Name != "Admin" {
		t.Errorf("Root() = %+v, %v", root, ok)
	}
}

func TestDuplicateChatRejected(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.Add("One", "telegram", "-5", false); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Add("Two", "telegram", "-5", false); err == nil {
		t.Fatal("a chat may only back one group")
	}
}

func TestRemoveProtectsRoot(t *testing.T) {
	r := newTestRegistry(t)

	root, err := r.Add("Admin", "telegram", "-1", true)
	if err != nil {
		t.Fatal(err)
	}
	dev, err := r.Add("Dev", "telegram", "-2", false)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Remove(root.Folder); err == nil {
		t.Error("removing the root group must fail")
	}
	if err := r.Remove(dev.Folder); err != nil {
		t.Errorf("Remove: %v", err)
	}
	if _, ok := r.Get(dev.Folder); ok {
		t.Error("removed group still present")
	}
}

func TestPersistenceAcrossReload(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRegistry(dir)
	if err != nil {
		t.Fatal(err)
	}

	g, err := r.Add("Dev", "telegram", "-2", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SetSessionID(g.Folder, "sess-9"); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewRegistry(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := reloaded.Get("dev")
	if !ok {
		t.Fatal("group lost across reload")
	}
	if got.SessionID != "sess-9" {
		t.Errorf("session id = %q, want %q", got.SessionID, "sess-9")
	}
}

func TestSeenChats(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.Add("Dev", "telegram", "-2", false); err != nil {
		t.Fatal(err)
	}

	r.NoteSeenChat("telegram", "-2", "Dev")    // registered, ignored
	r.NoteSeenChat("telegram", "-7", "Random") // unregistered, kept

	seen := r.SeenChats()
	if len(seen) != 1 || seen[0].ChatID != "-7" {
		t.Errorf("SeenChats = %+v, want only the unregistered chat", seen)
	}

	// Registering the chat clears it from the seen list.
	if _, err := r.Add("Random", "telegram", "-7", false); err != nil {
		t.Fatal(err)
	}
	if seen := r.SeenChats(); len(seen) != 0 {
		t.Errorf("SeenChats after registration = %+v, want empty", seen)
	}
}

func TestSandboxView(t *testing.T) {
	g := Group{
		Name:   "Dev",
		Folder: "dev",
		Root:   true,
		Config: Config{TimeoutSec: 120},
	}

	info := g.Sandbox()
	if info.Timeout != 2*time.Minute {
		t.Errorf("timeout = %s, want 2m", info.Timeout)
	}
	if !info.Root || info.Folder != "dev" {
		t.Errorf("sandbox view = %+v", info)
	}
}

func TestSafeFolder(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Research Team", "research-team"},
		{"  Ops  ", "ops"},
		{"weird/../name", "weirdname"},
		{"___", ""},
		{"Café", "caf"},
	}
	for _, tt := range tests {
		if got := SafeFolder(tt.in); got != tt.want {
			t.Errorf("SafeFolder(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
