// Package sandbox runs one agent job per isolated Docker container on
// behalf of a registered group.
//
// Every invocation follows the same path:
//
//	Planner      computes the bind mounts the group may see
//	Validator    gatekeeps group-requested extra mounts against the allowlist
//	Projector    rewrites the filtered environment export the sandbox reads
//	SnapshotWriter  rewrites the read-only task/group state snapshots
//	Runner       creates the container, streams the job in, drains output
//	ExtractResult   recovers the structured result from the raw stream
//	RunLogger    writes the per-run diagnostic artifact
//
// # Isolation model
//
// Each group owns an exclusive group folder, session directory and IPC
// directory on the host; no mount computed for one group may overlap
// another group's directories. The root group additionally sees the
// project root. Extra mounts requested in a group's configuration pass
// through the Validator, which unconditionally rejects sensitive host
// paths (credential stores, the warden config directory) and only
// admits paths covered by the operator allowlist.
//
// # Container hardening
//
// Containers are created with:
//   - ReadonlyRootfs: only the bind mounts and /tmp are writable
//   - CapDrop ALL and no-new-privileges
//   - Memory, CPU and PID limits
//   - A single wall-clock deadline; the container is killed when it fires
//
// # Result protocol
//
// The sandbox receives one JSON Job object on stdin and must emit one
// JSON Result object on stdout, either wrapped between the ---START---
// and ---END--- markers or as the sole trailing non-blank line. Both
// output streams are captured up to MaxOutputBytes each; beyond the cap
// bytes are drained but discarded and the run is flagged truncated.
package sandbox
