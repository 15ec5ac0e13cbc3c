// Package tasks provides the scheduled-task store: per-group prompts
// that fire on cron or interval schedules and are submitted to the
// sandbox host. Tasks are persisted to JSON and survive restarts.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/hkuds/warden/internal/sandbox"
)

// Task is one scheduled prompt belonging to a group.
type Task struct {
	ID          string    `json:"id"`
	GroupFolder string    `json:"group_folder"`
	Schedule    string    `json:"schedule"` // cron expression or "@every 5m"
	Prompt      string    `json:"prompt"`
	CreatedAt   time.Time `json:"created_at"`
}

// SubmitFunc is called when a task fires. The store never blocks on it
// longer than the run itself; submission errors are the host's problem.
type SubmitFunc func(ctx context.Context, task Task)

// taskEntry wraps a Task with its runtime state.
type taskEntry struct {
	task   Task
	cancel context.CancelFunc
}

// Store owns the task set and their timers.
type Store struct {
	submit SubmitFunc

	mu      sync.RWMutex
	entries map[string]*taskEntry
	nextID  int

	persistPath string
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewStore creates a Store persisting to persistPath.
func NewStore(persistPath string, submit SubmitFunc) *Store {
	return &Store{
		submit:      submit,
		entries:     make(map[string]*taskEntry),
		nextID:      1,
		persistPath: persistPath,
	}
}

// Start loads persisted tasks and begins all timers.
func (s *Store) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.load(); err != nil {
		// Non-fatal: file might not exist yet.
		_ = err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.entries {
		s.startTaskLocked(entry)
	}
	return nil
}

// Stop cancels all running timers.
func (s *Store) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Add registers and starts a new task for a group.
func (s *Store) Add(folder, schedule, prompt string) (Task, error) {
	if _, err := ParseSchedule(schedule); err != nil {
		return Task{}, err
	}
	if folder == "" {
		return Task{}, fmt.Errorf("task needs a group folder")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := strconv.Itoa(s.nextID)
	s.nextID++

	entry := &taskEntry{
		task: Task{
			ID:          id,
			GroupFolder: folder,
			Schedule:    schedule,
			Prompt:      prompt,
			CreatedAt:   time.Now(),
		},
	}
	s.entries[id] = entry

	if s.ctx != nil {
		s.startTaskLocked(entry)
	}

	if err := s.saveLocked(); err != nil {
		return entry.task, fmt.Errorf("task added but failed to persist: %w", err)
	}
	return entry.task, nil
}

// Remove stops and removes a task by ID, unscoped. The caller is
// responsible for authorization.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(id)
}

// RemoveScoped removes a task only when it belongs to the given group.
// Non-root groups go through this path.
func (s *Store) RemoveScoped(id, folder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok || entry.task.GroupFolder != folder {
		return fmt.Errorf("task %q not found for group %s", id, folder)
	}
	return s.removeLocked(id)
}

func (s *Store) removeLocked(id string) error {
	entry, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("task %q not found", id)
	}
	if entry.cancel != nil {
		entry.cancel()
	}
	delete(s.entries, id)
	return s.saveLocked()
}

// List returns all tasks.
func (s *Store) List() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Task, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.task)
	}
	return out
}

// ListForGroup returns the tasks belonging to one group folder.
func (s *Store) ListForGroup(folder string) []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Task
	for _, e := range s.entries {
		if e.task.GroupFolder == folder {
			out = append(out, e.task)
		}
	}
	return out
}

// Views projects all tasks into the snapshot form; the snapshot writer
// applies per-group filtering.
func (s *Store) Views() []sandbox.TaskView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]sandbox.TaskView, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, sandbox.TaskView{
			ID:          e.task.ID,
			GroupFolder: e.task.GroupFolder,
			Schedule:    e.task.Schedule,
			Prompt:      e.task.Prompt,
		})
	}
	return out
}

// startTaskLocked launches the goroutine for a single task entry. It
// writes entry.cancel, so the caller must hold the write lock on s.mu.
func (s *Store) startTaskLocked(entry *taskEntry) {
	taskCtx, taskCancel := context.WithCancel(s.ctx)
	entry.cancel = taskCancel
	go s.runTask(taskCtx, entry.task)
}

// runTask sleeps until each fire time and submits the task.
func (s *Store) runTask(ctx context.Context, task Task) {
	sched, err := ParseSchedule(task.Schedule)
	if err != nil {
		return // validated in Add; persisted garbage is skipped
	}

	if sched.IsInterval() {
		ticker := time.NewTicker(sched.Interval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.submit(ctx, task)
			}
		}
	}

	for {
		now := time.Now()
		delay := sched.NextAfter(now).Sub(now)
		if delay < 0 {
			delay = time.Second
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.submit(ctx, task)
		}
	}
}

// --- persistence ---

type persistedState struct {
	Tasks  []Task `json:"tasks"`
	NextID int    `json:"next_id"`
}

func (s *Store) saveLocked() error {
	state := persistedState{
		Tasks:  make([]Task, 0, len(s.entries)),
		NextID: s.nextID,
	}
	for _, e := range s.entries {
		state.Tasks = append(state.Tasks, e.task)
	}

	if err := os.MkdirAll(filepath.Dir(s.persistPath), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.persistPath, data, 0o600)
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.persistPath)
	if err != nil {
		return err
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	for _, task := range state.Tasks {
		s.entries[task.ID] = &taskEntry{task: task}
	}
	if state.NextID > s.nextID {
		s.nextID = state.NextID
	}
	return nil
}
