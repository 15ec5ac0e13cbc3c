package sandbox

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// stderrTailBytes bounds the error-stream tail recorded in normal mode.
const stderrTailBytes = 2000

// RunLogger persists one diagnostic artifact per invocation under the
// group's log directory. A failure to log is reported and swallowed; it
// never fails the invocation.
type RunLogger struct {
	// LogRoot is the directory holding per-group log subdirectories.
	LogRoot string

	// Verbose records full input, mounts and streams instead of a
	// summary.
	Verbose bool
}

// Write records the run. The file is named by the run timestamp and is
// never mutated afterwards.
func (l *RunLogger) Write(rec RunRecord) {
	if l == nil || l.LogRoot == "" {
		return
	}
	if err := l.write(rec); err != nil {
		log.Printf("[runlog] group=%s action=write_failed err=%v", rec.GroupFolder, err)
	}
}

func (l *RunLogger) write(rec RunRecord) error {
	dir := filepath.Join(l.LogRoot, rec.GroupFolder)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}

	name := "run-" + rec.Timestamp.Format("20060102-150405.000") + ".log"
	path := filepath.Join(dir, name)

	var sb strings.Builder
	fmt.Fprintf(&sb, "time: %s\n", rec.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "group: %s\n", rec.GroupFolder)
	fmt.Fprintf(&sb, "duration: %s\n", rec.Duration.Round(0))
	fmt.Fprintf(&sb, "exit_code: %d\n", rec.ExitCode)
	fmt.Fprintf(&sb, "timed_out: %t\n", rec.TimedOut)
	fmt.Fprintf(&sb, "stdout_truncated: %t\n", rec.StdoutTruncated)
	fmt.Fprintf(&sb, "stderr_truncated: %t\n", rec.StderrTruncated)

	if l.Verbose {
		jobJSON, err := json.MarshalIndent(rec.Job, "", "  ")
		if err == nil {
			fmt.Fprintf(&sb, "\n--- job ---\n%s\n", jobJSON)
		}
		fmt.Fprintf(&sb, "\n--- mounts ---\n")
		for _, m := range rec.Mounts {
			mode := "rw"
			if m.ReadOnly {
				mode = "ro"
			}
			fmt.Fprintf(&sb, "%s -> %s (%s)\n", m.Source, m.Target, mode)
		}
		fmt.Fprintf(&sb, "\n--- stdout ---\n%s\n", rec.Stdout)
		fmt.Fprintf(&sb, "\n--- stderr ---\n%s\n", rec.Stderr)
	} else {
		// Summary only: lengths and identifiers, never raw content.
		fmt.Fprintf(&sb, "prompt_len: %d\n", len(rec.Job.Prompt))
		fmt.Fprintf(&sb, "chat_id: %s\n", rec.Job.ChatID)
		fmt.Fprintf(&sb, "session_id: %s\n", rec.Job.SessionID)
		fmt.Fprintf(&sb, "scheduled: %t\n", rec.Job.IsScheduled)
		if rec.ExitCode != 0 || rec.TimedOut {
			fmt.Fprintf(&sb, "\n--- stderr tail ---\n%s\n", tailString(rec.Stderr, stderrTailBytes))
		}
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write run log: %w", err)
	}
	return nil
}
