package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// drainGrace is how long the runner keeps collecting buffered output
// after the container has exited or been killed.
const drainGrace = 2 * time.Second

// dockerAPI is the slice of the Docker client the runner uses.
// *client.Client satisfies it; tests drive the lifecycle with a fake.
type dockerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerAttach(ctx context.Context, containerID string, options container.AttachOptions) (types.HijackedResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerKill(ctx context.Context, containerID, signal string) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	Ping(ctx context.Context) (types.Ping, error)
	Close() error
}

// Runner owns the per-invocation container lifecycle: create, stream
// the job in, drain output under the byte caps, enforce the timeout and
// interpret the exit. One Runner serves all groups; invocations for
// different groups may run concurrently.
type Runner struct {
	cfg     RunnerConfig
	cli     dockerAPI
	planner *Planner
	logger  *RunLogger
}

// NewRunner creates a Runner with a Docker client from the environment.
func NewRunner(cfg RunnerConfig, validator *Validator) (*Runner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return NewRunnerWithClient(cfg, validator, cli)
}

// NewRunnerWithClient creates a Runner with an existing Docker client.
// Useful for testing or sharing a client across components.
func NewRunnerWithClient(cfg RunnerConfig, validator *Validator, cli dockerAPI) (*Runner, error) {
	if cli == nil {
		return nil, fmt.Errorf("Docker client cannot be nil")
	}
	cfg.Validate()
	return &Runner{
		cfg:     cfg,
		cli:     cli,
		planner: NewPlanner(cfg, validator),
		logger:  &RunLogger{LogRoot: cfg.LogRoot(), Verbose: cfg.Verbose},
	}, nil
}

// Planner returns the mount planner used by this runner.
func (r *Runner) Planner() *Planner { return r.planner }

// Ping checks that the Docker daemon is reachable.
func (r *Runner) Ping(ctx context.Context) error {
	_, err := r.cli.Ping(ctx)
	return err
}

// Close releases the Docker client.
func (r *Runner) Close() error {
	if r.cli != nil {
		return r.cli.Close()
	}
	return nil
}

// Run executes one job for one group and returns its Result. Every
// failure mode — spawn failure, timeout, non-zero exit, malformed
// output — is reported as an error-shaped Result; the caller never sees
// a raised error from inside the invocation.
func (r *Runner) Run(ctx context.Context, g GroupInfo, job Job) Result {
	start := time.Now()

	timeout := r.cfg.Timeout
	if g.Timeout > 0 {
		timeout = g.Timeout
	}

	mounts, err := r.planner.Plan(g)
	if err != nil {
		return ErrorResult("failed to plan mounts for group %s: %v", g.Name, err)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return ErrorResult("failed to serialize job: %v", err)
	}

	if err := r.ensureImage(ctx); err != nil {
		return ErrorResult("failed to ensure sandbox image: %v", err)
	}

	containerCfg, hostCfg := r.buildContainerConfig(mounts)
	resp, err := r.cli.ContainerCreate(ctx, containerCfg, hostCfg, &network.NetworkingConfig{}, nil,
		fmt.Sprintf("warden-run-%s-%d", g.Folder, start.UnixNano()))
	if err != nil {
		return ErrorResult("failed to create sandbox container: %v", err)
	}
	containerID := resp.ID
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = r.cli.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true})
	}()

	attach, err := r.cli.ContainerAttach(ctx, containerID, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return ErrorResult("failed to attach to sandbox: %v", err)
	}
	defer attach.Close()

	// Wait registration happens before start so a fast exit is not missed.
	waitCh, waitErrCh := r.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)

	if err := r.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return ErrorResult("failed to start sandbox: %v", err)
	}

	// The sandbox reads exactly one job blob; close the write side so
	// it sees EOF immediately.
	go func() {
		if _, err := attach.Conn.Write(append(payload, '\n')); err != nil {
			log.Printf("[sandbox] group=%s action=stdin_write_failed err=%v", g.Folder, err)
		}
		_ = attach.CloseWrite()
	}()

	stdout := newCapWriter(r.cfg.MaxOutputBytes)
	stderr := newCapWriter(r.cfg.MaxOutputBytes)
	drainDone := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(stdout, stderr, attach.Reader)
		drainDone <- err
	}()

	// One deadline covers the drains and the exit wait; whichever of
	// exit, wait error or timer fires first decides the outcome.
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var (
		exitCode int
		timedOut bool
		waitErr  error
	)
	select {
	case status := <-waitCh:
		exitCode = int(status.StatusCode)
	case err := <-waitErrCh:
		waitErr = err
		r.kill(containerID)
	case <-timer.C:
		timedOut = true
		r.kill(containerID)
	case <-ctx.Done():
		waitErr = ctx.Err()
		r.kill(containerID)
	}

	// Collect whatever output is still buffered in the pipes.
	select {
	case err := <-drainDone:
		if err != nil && err != io.EOF {
			log.Printf("[sandbox] group=%s action=drain_failed err=%v", g.Folder, err)
		}
	case <-time.After(drainGrace):
	}

	rec := RunRecord{
		Timestamp:       start,
		GroupFolder:     g.Folder,
		Duration:        time.Since(start),
		ExitCode:        exitCode,
		TimedOut:        timedOut,
		StdoutTruncated: stdout.Truncated(),
		StderrTruncated: stderr.Truncated(),
		Job:             job,
		Mounts:          mounts,
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
	}
	r.logger.Write(rec)

	log.Printf("[sandbox] group=%s duration=%s exit=%d timed_out=%t truncated=%t/%t",
		g.Folder, rec.Duration.Round(time.Millisecond), exitCode, timedOut,
		rec.StdoutTruncated, rec.StderrTruncated)

	switch {
	case timedOut:
		// Output from a killed run is not trusted; skip extraction.
		return ErrorResult("sandbox timed out after %s", timeout)
	case waitErr != nil:
		return ErrorResult("failed waiting for sandbox: %v", waitErr)
	case exitCode != 0:
		return ErrorResult("sandbox exited with code %d: %s", exitCode, tailString(rec.Stderr, maxErrorTail))
	default:
		return ExtractResult(rec.Stdout)
	}
}

// kill forcibly terminates the container. It uses a fresh context so
// the kill still goes through when the run context is already expired.
func (r *Runner) kill(containerID string) {
	killCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.cli.ContainerKill(killCtx, containerID, "KILL"); err != nil {
		log.Printf("[sandbox] container=%s action=kill_failed err=%v", containerID[:12], err)
	}
}

// ensureImage pulls the sandbox image when it is missing locally.
func (r *Runner) ensureImage(ctx context.Context) error {
	if _, _, err := r.cli.ImageInspectWithRaw(ctx, r.cfg.Image); err == nil {
		return nil
	}

	reader, err := r.cli.ImagePull(ctx, r.cfg.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", r.cfg.Image, err)
	}
	defer reader.Close()

	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", r.cfg.Image, err)
	}
	return nil
}

// buildContainerConfig creates the hardened container and host configs
// with the computed bind mounts.
func (r *Runner) buildContainerConfig(mounts []MountPath) (*container.Config, *container.HostConfig) {
	containerCfg := &container.Config{
		Image:        r.cfg.Image,
		WorkingDir:   DefaultWorkDir,
		User:         r.cfg.User,
		Tty:          false,
		OpenStdin:    true,
		StdinOnce:    true,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
	}

	hostCfg := &container.HostConfig{
		ReadonlyRootfs: true,
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges:true"},
		Resources: container.Resources{
			Memory:     r.cfg.MemoryMB * 1024 * 1024,
			MemorySwap: r.cfg.MemoryMB * 1024 * 1024,
			CPUQuota:   int64(r.cfg.CPUPercent * 100000),
			CPUPeriod:  100000,
			PidsLimit:  &r.cfg.MaxProcesses,
		},
		Tmpfs: map[string]string{
			"/tmp": "rw,nosuid,size=256m",
		},
	}

	if !r.cfg.NetworkEnabled {
		hostCfg.NetworkMode = "none"
	}

	for _, mp := range mounts {
		hostCfg.Mounts = append(hostCfg.Mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   mp.Source,
			Target:   mp.Target,
			ReadOnly: mp.ReadOnly,
		})
	}

	return containerCfg, hostCfg
}
