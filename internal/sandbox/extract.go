package sandbox

import (
	"encoding/json"
	"strings"
)

// Sentinel markers bracketing the structured result inside otherwise
// free-form sandbox output. Agreed with the agent workload.
const (
	resultStartMarker = "---START---"
	resultEndMarker   = "---END---"
)

// maxErrorTail bounds how much raw output is quoted in diagnostics.
const maxErrorTail = 500

// ExtractResult recovers the structured Result from the raw captured
// stdout. Library banners and progress text may precede or follow the
// payload, so the marker-delimited form is preferred; workloads that
// only print a trailing result line are handled by the legacy fallback.
// A candidate that does not parse yields an error Result, never a
// raised error.
func ExtractResult(output string) Result {
	candidate := extractCandidate(output)
	if candidate == "" {
		return ErrorResult("sandbox produced no result (output tail: %q)", tailString(output, maxErrorTail))
	}

	var res Result
	if err := json.Unmarshal([]byte(candidate), &res); err != nil {
		return ErrorResult("failed to parse sandbox result: %v (output tail: %q)", err, tailString(output, maxErrorTail))
	}
	if res.Status != StatusSuccess && res.Status != StatusError {
		return ErrorResult("sandbox result has invalid status %q (output tail: %q)", res.Status, tailString(output, maxErrorTail))
	}
	return res
}

// extractCandidate returns the text between the first start marker and
// the first end marker after it, or the last non-blank line when the
// markers are absent.
func extractCandidate(output string) string {
	if start := strings.Index(output, resultStartMarker); start >= 0 {
		rest := output[start+len(resultStartMarker):]
		if end := strings.Index(rest, resultEndMarker); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// tailString returns the last n bytes of s.
func tailString(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
