// Package group manages the registry of tenant groups: identity,
// storage folder, the single root designation and per-group sandbox
// overrides. Groups are created by the pairing flow and read-only to
// the sandbox layer.
package group

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hkuds/warden/internal/sandbox"
)

// Config holds optional per-group overrides.
type Config struct {
	// TimeoutSec overrides the run timeout when positive.
	TimeoutSec int `json:"timeout_sec,omitempty"`

	// ExtraMounts are requested additional mounts; they are subject to
	// the mount allowlist and may be dropped at run time.
	ExtraMounts []sandbox.MountRequest `json:"extra_mounts,omitempty"`
}

// Group is one registered tenant.
type Group struct {
	ID      string `json:"id"` // "<channel>:<chat id>"
	Name    string `json:"name"`
	Folder  string `json:"folder"`
	Root    bool   `json:"root,omitempty"`
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`

	// SessionID is the workload's last reported session identifier,
	// handed back on the next run for continuity.
	SessionID string `json:"session_id,omitempty"`

	Config    Config    `json:"config,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Sandbox converts the record into the read-only view the runner takes.
func (g *Group) Sandbox() sandbox.GroupInfo {
	return sandbox.GroupInfo{
		Name:        g.Name,
		Folder:      g.Folder,
		Root:        g.Root,
		Timeout:     time.Duration(g.Config.TimeoutSec) * time.Second,
		ExtraMounts: g.Config.ExtraMounts,
	}
}

// SeenChat is a chat the bot can observe but that has no group yet.
// The root group's snapshot lists these for registration.
type SeenChat struct {
	Channel  string    `json:"channel"`
	ChatID   string    `json:"chat_id"`
	Title    string    `json:"title,omitempty"`
	LastSeen time.Time `json:"last_seen"`
}

const registryFile = "groups.json"

// Registry is the JSON-file-backed group store with an in-memory cache.
type Registry struct {
	path string

	mu        sync.RWMutex
	groups    map[string]*Group // keyed by folder
	seenChats map[string]SeenChat
}

// NewRegistry creates a Registry persisting under dir and loads any
// existing state. A missing file starts an empty registry.
func NewRegistry(dir string) (*Registry, error) {
	r := &Registry{
		path:      filepath.Join(dir, registryFile),
		groups:    make(map[string]*Group),
		seenChats: make(map[string]SeenChat),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

type persistedState struct {
	Groups    []*Group   `json:"groups"`
	SeenChats []SeenChat `json:"seen_chats,omitempty"`
}

func (r *Registry) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read group registry: %w", err)
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse group registry: %w", err)
	}
	for _, g := range state.Groups {
		r.groups[g.Folder] = g
	}
	for _, c := range state.SeenChats {
		r.seenChats[c.Channel+":"+c.ChatID] = c
	}
	return nil
}

func (r *Registry) saveLocked() error {
	state := persistedState{Groups: make([]*Group, 0, len(r.groups))}
	for _, g := range r.groups {
		state.Groups = append(state.Groups, g)
	}
	for _, c := range r.seenChats {
		state.SeenChats = append(state.SeenChats, c)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("failed to create registry dir: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal group registry: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write group registry: %w", err)
	}
	return nil
}

// Add registers a new group. The folder is derived from the name; a
// root group may only be added when none exists yet.
func (r *Registry) Add(name, channel, chatID string, root bool) (*Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if root {
		for _, g := range r.groups {
			if g.Root {
				return nil, fmt.Errorf("root group already exists (%s)", g.Name)
			}
		}
	}
	for _, g := range r.groups {
		if g.Channel == channel && g.ChatID == chatID {
			return nil, fmt.Errorf("chat %s:%s is already registered as %s", channel, chatID, g.Name)
		}
	}

	folder := SafeFolder(name)
	if folder == "" {
		return nil, fmt.Errorf("group name %q yields an empty folder", name)
	}
	if _, exists := r.groups[folder]; exists {
		return nil, fmt.Errorf("group folder %q already in use", folder)
	}

	g := &Group{
		ID:        channel + ":" + chatID,
		Name:      name,
		Folder:    folder,
		Root:      root,
		Channel:   channel,
		ChatID:    chatID,
		CreatedAt: time.Now(),
	}
	r.groups[folder] = g
	delete(r.seenChats, g.ID)

	if err := r.saveLocked(); err != nil {
		return nil, err
	}
	return g, nil
}

// Remove deletes a group by folder. The root group cannot be removed.
func (r *Registry) Remove(folder string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[folder]
	if !ok {
		return fmt.Errorf("group %q not found", folder)
	}
	if g.Root {
		return fmt.Errorf("the root group cannot be removed")
	}
	delete(r.groups, folder)
	return r.saveLocked()
}

// Get returns a copy of the group with the given folder.
func (r *Registry) Get(folder string) (Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[folder]
	if !ok {
		return Group{}, false
	}
	return *g, true
}

// GetByChat returns a copy of the group registered for a chat.
func (r *Registry) GetByChat(channel, chatID string) (Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.groups {
		if g.Channel == channel && g.ChatID == chatID {
			return *g, true
		}
	}
	return Group{}, false
}

// Root returns a copy of the root group, if designated.
func (r *Registry) Root() (Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, g := range r.groups {
		if g.Root {
			return *g, true
		}
	}
	return Group{}, false
}

// List returns copies of all groups.
func (r *Registry) List() []Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, *g)
	}
	return out
}

// SetSessionID records the workload's session identifier for a group.
func (r *Registry) SetSessionID(folder, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[folder]
	if !ok {
		return fmt.Errorf("group %q not found", folder)
	}
	g.SessionID = sessionID
	return r.saveLocked()
}

// SetConfig replaces a group's override configuration.
func (r *Registry) SetConfig(folder string, cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[folder]
	if !ok {
		return fmt.Errorf("group %q not found", folder)
	}
	g.Config = cfg
	return r.saveLocked()
}

// NoteSeenChat records an unregistered chat the bot observed so the
// root group can later register it. Registered chats are not recorded.
func (r *Registry) NoteSeenChat(channel, chatID, title string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, g := range r.groups {
		if g.Channel == channel && g.ChatID == chatID {
			return
		}
	}
	r.seenChats[channel+":"+chatID] = SeenChat{
		Channel:  channel,
		ChatID:   chatID,
		Title:    title,
		LastSeen: time.Now(),
	}
	// Seen chats are advisory; a persist failure only loses hints.
	_ = r.saveLocked()
}

// SeenChats returns the currently known unregistered chats.
func (r *Registry) SeenChats() []SeenChat {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SeenChat, 0, len(r.seenChats))
	for _, c := range r.seenChats {
		out = append(out, c)
	}
	return out
}

// SafeFolder converts a group name into a filesystem-safe folder name.
func SafeFolder(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			sb.WriteRune('-')
		}
	}
	return strings.Trim(sb.String(), "-")
}
