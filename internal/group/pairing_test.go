package group

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPairingIssueAndVerify(t *testing.T) {
	s := NewPairingStore(time.Minute)

	code, err := s.Issue("Research", false)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(code) != 9 {
		t.Errorf("code %q has unexpected length", code)
	}

	name, root, ok := s.Verify(code)
	if !ok {
		t.Fatal("freshly issued code should verify")
	}
	if name != "Research" || root {
		t.Errorf("Verify = (%q, %v)", name, root)
	}

	// One-shot: a second verify fails.
	if _, _, ok := s.Verify(code); ok {
		t.Error("a code must verify at most once")
	}
}

func TestPairingUnknownCode(t *testing.T) {
	s := NewPairingStore(time.Minute)
	if _, _, ok := s.Verify("NOPE-NOPE"); ok {
		t.Error("unknown code verified")
	}
}

func TestPairingExpiry(t *testing.T) {
	s := NewPairingStore(time.Minute)
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return current }

	code, err := s.Issue("Ops", true)
	if err != nil {
		t.Fatal(err)
	}
	if s.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", s.Pending())
	}

	current = current.Add(2 * time.Minute)

	if _, _, ok := s.Verify(code); ok {
		t.Error("expired code verified")
	}
	if s.Pending() != 0 {
		t.Errorf("pending = %d after expiry, want 0", s.Pending())
	}
}

func TestPairingPendingFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), PendingFile)

	code, err := IssueToFile(path, "Admin", true, time.Minute)
	if err != nil {
		t.Fatalf("IssueToFile: %v", err)
	}
	code2, err := IssueToFile(path, "Research", false, time.Minute)
	if err != nil {
		t.Fatalf("IssueToFile second: %v", err)
	}

	s := NewPairingStore(time.Minute)
	loaded, err := s.LoadPending(path)
	if err != nil {
		t.Fatalf("LoadPending: %v", err)
	}
	if loaded != 2 {
		t.Errorf("loaded = %d, want 2", loaded)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("pending file should be removed after loading")
	}

	name, root, ok := s.Verify(code)
	if !ok || name != "Admin" || !root {
		t.Errorf("Verify = (%q, %v, %v)", name, root, ok)
	}
	name, root, ok = s.Verify(code2)
	if !ok || name != "Research" || root {
		t.Errorf("Verify second = (%q, %v, %v)", name, root, ok)
	}
}

func TestPairingPendingFileExpired(t *testing.T) {
	path := filepath.Join(t.TempDir(), PendingFile)
	if _, err := IssueToFile(path, "Stale", false, time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)

	s := NewPairingStore(time.Minute)
	loaded, err := s.LoadPending(path)
	if err != nil {
		t.Fatalf("LoadPending: %v", err)
	}
	if loaded != 0 {
		t.Errorf("loaded = %d, want 0", loaded)
	}
}

func TestPairingLoadPendingMissingFile(t *testing.T) {
	s := NewPairingStore(time.Minute)
	loaded, err := s.LoadPending(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil || loaded != 0 {
		t.Errorf("LoadPending on missing file = (%d, %v)", loaded, err)
	}
}

func TestPairingRootFlag(t *testing.T) {
	s := NewPairingStore(0)

	code, err := s.Issue("Admin", true)
	if err != nil {
		t.Fatal(err)
	}
	_, root, ok := s.Verify(code)
	if !ok || !root {
		t.Errorf("Verify root = (%v, %v), want (true, true)", root, ok)
	}
}
