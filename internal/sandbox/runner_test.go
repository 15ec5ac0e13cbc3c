package sandbox

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// fakeDocker scripts one container lifecycle. Output is served through
// the attach stream in the daemon's multiplexed framing; hangWait keeps
// the container "running" until it is killed.
type fakeDocker struct {
	createErr error
	startErr  error
	attachErr error
	waitErr   error
	waitCode  int64
	hangWait  bool
	stdout    string
	stderr    string

	mu      sync.Mutex
	killed  bool
	removed bool
	stdin   bytes.Buffer
	outW    *io.PipeWriter
}

func (f *fakeDocker) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	if f.createErr != nil {
		return container.CreateResponse{}, f.createErr
	}
	return container.CreateResponse{ID: "fake-container-id"}, nil
}

func (f *fakeDocker) ContainerAttach(ctx context.Context, containerID string, options container.AttachOptions) (types.HijackedResponse, error) {
	if f.attachErr != nil {
		return types.HijackedResponse{}, f.attachErr
	}

	pr, pw := io.Pipe()
	f.mu.Lock()
	f.outW = pw
	f.mu.Unlock()

	go func() {
		if f.stdout != "" {
			_, _ = stdcopy.NewStdWriter(pw, stdcopy.Stdout).Write([]byte(f.stdout))
		}
		if f.stderr != "" {
			_, _ = stdcopy.NewStdWriter(pw, stdcopy.Stderr).Write([]byte(f.stderr))
		}
		if !f.hangWait {
			_ = pw.Close()
		}
	}()

	return types.HijackedResponse{Conn: &fakeConn{docker: f}, Reader: bufio.NewReader(pr)}, nil
}

func (f *fakeDocker) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	return f.startErr
}

func (f *fakeDocker) ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	statusCh := make(chan container.WaitResponse, 1)
	errCh := make(chan error, 1)
	switch {
	case f.hangWait:
		// Neither channel fires; the run must hit its timeout.
	case f.waitErr != nil:
		errCh <- f.waitErr
	default:
		statusCh <- container.WaitResponse{StatusCode: f.waitCode}
	}
	return statusCh, errCh
}

func (f *fakeDocker) ContainerKill(ctx context.Context, containerID, signal string) error {
	f.mu.Lock()
	f.killed = true
	w := f.outW
	f.mu.Unlock()
	if w != nil {
		_ = w.Close()
	}
	return nil
}

func (f *fakeDocker) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	f.mu.Lock()
	f.removed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeDocker) ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error) {
	return types.ImageInspect{}, nil, nil
}

func (f *fakeDocker) ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *fakeDocker) Ping(ctx context.Context) (types.Ping, error) {
	return types.Ping{}, nil
}

func (f *fakeDocker) Close() error { return nil }

func (f *fakeDocker) state() (killed, removed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.killed, f.removed
}

// fakeConn is the attach socket: stdin writes are recorded, reads come
// from the multiplexed Reader instead.
type fakeConn struct {
	docker *fakeDocker
}

func (c *fakeConn) Read([]byte) (int, error) { return 0, io.EOF }

func (c *fakeConn) Write(p []byte) (int, error) {
	c.docker.mu.Lock()
	defer c.docker.mu.Unlock()
	return c.docker.stdin.Write(p)
}

func (c *fakeConn) Close() error                     { return nil }
func (c *fakeConn) LocalAddr() net.Addr              { return &net.UnixAddr{Name: "fake", Net: "unix"} }
func (c *fakeConn) RemoteAddr() net.Addr             { return &net.UnixAddr{Name: "fake", Net: "unix"} }
func (c *fakeConn) SetDeadline(time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func newTestRunner(t *testing.T, fd *fakeDocker, timeout time.Duration) *Runner {
	t.Helper()
	r, err := NewRunnerWithClient(RunnerConfig{DataDir: t.TempDir(), Timeout: timeout}, nil, fd)
	if err != nil {
		t.Fatalf("NewRunnerWithClient: %v", err)
	}
	return r
}

func testGroup() GroupInfo {
	return GroupInfo{Name: "Research", Folder: "research"}
}

func TestRunTimeoutKillsContainer(t *testing.T) {
	fd := &fakeDocker{hangWait: true}
	r := newTestRunner(t, fd, 50*time.Millisecond)

	res := r.Run(context.Background(), testGroup(), Job{Prompt: "hi"})

	if res.IsSuccess() {
		t.Fatal("expected an error result for a hung sandbox")
	}
	if !strings.Contains(res.Error, "timed out after 50ms") {
		t.Errorf("Error = %q, want the configured timeout named", res.Error)
	}
	killed, removed := fd.state()
	if !killed {
		t.Error("hung container was not killed")
	}
	if !removed {
		t.Error("container was not removed after the run")
	}
}

func TestRunNonZeroExitReportsStderrTail(t *testing.T) {
	fd := &fakeDocker{waitCode: 3, stderr: "agent crashed: no api key\n"}
	r := newTestRunner(t, fd, time.Second)

	res := r.Run(context.Background(), testGroup(), Job{Prompt: "hi"})

	if res.IsSuccess() {
		t.Fatal("expected an error result for a non-zero exit")
	}
	if !strings.Contains(res.Error, "exited with code 3") {
		t.Errorf("Error = %q, want the exit code named", res.Error)
	}
	if !strings.Contains(res.Error, "no api key") {
		t.Errorf("Error = %q, want the stderr tail quoted", res.Error)
	}
}

func TestRunCreateFailure(t *testing.T) {
	fd := &fakeDocker{createErr: errors.New("no such image")}
	r := newTestRunner(t, fd, time.Second)

	res := r.Run(context.Background(), testGroup(), Job{Prompt: "hi"})

	if res.IsSuccess() {
		t.Fatal("expected an error result when the container cannot be created")
	}
	if !strings.Contains(res.Error, "failed to create sandbox container") {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestRunWaitErrorKillsContainer(t *testing.T) {
	fd := &fakeDocker{waitErr: errors.New("daemon went away")}
	r := newTestRunner(t, fd, time.Second)

	res := r.Run(context.Background(), testGroup(), Job{Prompt: "hi"})

	if res.IsSuccess() {
		t.Fatal("expected an error result when waiting fails")
	}
	if !strings.Contains(res.Error, "failed waiting for sandbox") {
		t.Errorf("Error = %q", res.Error)
	}
	if killed, _ := fd.state(); !killed {
		t.Error("container was not killed after a wait failure")
	}
}

func TestRunSuccessExtractsResultAndWritesJob(t *testing.T) {
	out := "booting agent\n---START---\n" +
		`{"status":"success","result":"done","new_session_id":"s-2"}` +
		"\n---END---\n"
	fd := &fakeDocker{stdout: out}
	r := newTestRunner(t, fd, time.Second)

	res := r.Run(context.Background(), testGroup(), Job{Prompt: "summarize", SessionID: "s-1"})

	if !res.IsSuccess() {
		t.Fatalf("Run failed: %s", res.Error)
	}
	if res.Result != "done" {
		t.Errorf("Result = %q, want done", res.Result)
	}
	if res.NewSessionID != "s-2" {
		t.Errorf("NewSessionID = %q, want s-2", res.NewSessionID)
	}

	// The stdin writer runs concurrently with the fast exit.
	deadline := time.After(time.Second)
	for {
		fd.mu.Lock()
		blob := strings.TrimSpace(fd.stdin.String())
		fd.mu.Unlock()
		if blob != "" {
			var sent Job
			if err := json.Unmarshal([]byte(blob), &sent); err != nil {
				t.Fatalf("stdin payload is not a job blob: %v", err)
			}
			if sent.Prompt != "summarize" || sent.SessionID != "s-1" {
				t.Errorf("sent job = %+v", sent)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("job blob never written to stdin")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRunGroupTimeoutOverride(t *testing.T) {
	fd := &fakeDocker{hangWait: true}
	r := newTestRunner(t, fd, time.Minute)

	g := testGroup()
	g.Timeout = 50 * time.Millisecond
	res := r.Run(context.Background(), g, Job{Prompt: "hi"})

	if res.IsSuccess() {
		t.Fatal("expected an error result for a hung sandbox")
	}
	if !strings.Contains(res.Error, "timed out after 50ms") {
		t.Errorf("Error = %q, want the group override named", res.Error)
	}
}
