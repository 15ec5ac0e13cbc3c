package sandbox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testRecord() RunRecord {
	return RunRecord{
		Timestamp:   time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		GroupFolder: "dev",
		Duration:    3 * time.Second,
		ExitCode:    0,
		Job: Job{
			Prompt:    "write a haiku about pipes",
			ChatID:    "-100123",
			SessionID: "sess-1",
		},
		Mounts: []MountPath{{Source: "/data/groups/dev", Target: TargetGroup}},
		Stdout: "{\"status\":\"success\",\"result\":\"ok\"}",
		Stderr: "model warning: deprecated flag",
	}
}

func readOnlyLogFile(t *testing.T, root string) string {
	t.Helper()
	var content string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		content = string(data)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if content == "" {
		t.Fatal("no run log written")
	}
	return content
}

func TestRunLogNormalModeOmitsContent(t *testing.T) {
	root := t.TempDir()
	l := &RunLogger{LogRoot: root}

	l.Write(testRecord())

	got := readOnlyLogFile(t, root)
	if strings.Contains(got, "haiku") {
		t.Error("normal mode must not record raw prompt content")
	}
	if !strings.Contains(got, "prompt_len: 25") {
		t.Errorf("summary should carry the prompt length, got:\n%s", got)
	}
	// A clean run records no stderr tail.
	if strings.Contains(got, "stderr tail") {
		t.Error("successful run should not include the stderr tail")
	}
}

func TestRunLogNormalModeFailureTail(t *testing.T) {
	root := t.TempDir()
	l := &RunLogger{LogRoot: root}

	rec := testRecord()
	rec.ExitCode = 2
	rec.Stderr = "boom: " + strings.Repeat("x", 5000)
	l.Write(rec)

	got := readOnlyLogFile(t, root)
	if !strings.Contains(got, "stderr tail") {
		t.Fatal("failed run should include the stderr tail")
	}
	if strings.Contains(got, "boom") {
		t.Error("tail should be bounded to the end of the stream")
	}
}

func TestRunLogVerboseMode(t *testing.T) {
	root := t.TempDir()
	l := &RunLogger{LogRoot: root, Verbose: true}

	l.Write(testRecord())

	got := readOnlyLogFile(t, root)
	for _, want := range []string{"haiku", "/data/groups/dev", "--- stdout ---", "--- stderr ---"} {
		if !strings.Contains(got, want) {
			t.Errorf("verbose log missing %q", want)
		}
	}
}

func TestRunLogWriteFailureIsSwallowed(t *testing.T) {
	// Pointing the log root at a file makes MkdirAll fail.
	root := filepath.Join(t.TempDir(), "notadir")
	if err := os.WriteFile(root, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	l := &RunLogger{LogRoot: root}
	l.Write(testRecord()) // must not panic or error out
}
