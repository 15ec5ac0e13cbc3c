package sandbox

import "bytes"

// capWriter retains at most limit bytes of what is written to it. Bytes
// past the cap are counted as written but dropped, so the producing
// pipe keeps draining instead of blocking the container.
type capWriter struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newCapWriter(limit int) *capWriter {
	if limit <= 0 {
		limit = DefaultMaxOutputBytes
	}
	return &capWriter{limit: limit}
}

// Write never fails; the stream must drain to EOF regardless of the cap.
func (w *capWriter) Write(p []byte) (int, error) {
	n := len(p)
	remain := w.limit - w.buf.Len()
	if remain <= 0 {
		if n > 0 {
			w.truncated = true
		}
		return n, nil
	}
	if n > remain {
		p = p[:remain]
		w.truncated = true
	}
	w.buf.Write(p)
	return n, nil
}

// String returns the retained bytes.
func (w *capWriter) String() string { return w.buf.String() }

// Truncated reports whether any bytes were dropped.
func (w *capWriter) Truncated() bool { return w.truncated }
