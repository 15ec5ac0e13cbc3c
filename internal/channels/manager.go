package channels

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/hkuds/warden/internal/bus"
	"github.com/hkuds/warden/internal/config"
	"github.com/hkuds/warden/internal/voice"
)

// Manager manages the lifecycle of communication channels.
type Manager struct {
	config   *config.Config
	bus      *bus.MessageBus
	channels map[string]Channel
	mu       sync.RWMutex
}

// NewManager creates a new channel manager.
func NewManager(cfg *config.Config, msgBus *bus.MessageBus) *Manager {
	return &Manager{
		config:   cfg,
		bus:      msgBus,
		channels: make(map[string]Channel),
	}
}

// Initialize creates enabled channels based on configuration.
// This must be called before StartAll.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.Channels.Telegram.Enabled {
		if m.config.Channels.Telegram.Token == "" {
			return fmt.Errorf("telegram channel enabled but token not configured")
		}

		telegram := NewTelegramChannel(
			m.config.Channels.Telegram,
			m.bus,
			m.buildTranscriber(),
		)
		m.channels["telegram"] = telegram
		log.Printf("[channels] action=initialized channel=telegram")
	}

	if len(m.channels) == 0 {
		log.Printf("[channels] action=warn reason=no_channels_enabled")
	}

	return nil
}

// StartAll starts all initialized channels.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to start channel %s: %w", name, err))
			continue
		}
		log.Printf("[channels] action=started channel=%s", name)
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors starting channels: %v", errs)
	}
	return nil
}

// StopAll gracefully stops all running channels.
func (m *Manager) StopAll() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for name, ch := range m.channels {
		if !ch.IsRunning() {
			continue
		}
		if err := ch.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop channel %s: %w", name, err))
			continue
		}
		log.Printf("[channels] action=stopped channel=%s", name)
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors stopping channels: %v", errs)
	}
	return nil
}

// GetChannel returns a channel by name, or nil if not found.
func (m *Manager) GetChannel(name string) Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.channels[name]
}

// RegisterChannel adds a custom channel to the manager, for channels
// built outside config-based initialization.
func (m *Manager) RegisterChannel(ch Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch == nil {
		return fmt.Errorf("cannot register nil channel")
	}
	name := ch.Name()
	if _, exists := m.channels[name]; exists {
		return fmt.Errorf("channel %s already registered", name)
	}
	m.channels[name] = ch
	return nil
}

// RunningChannels returns a sorted list of currently running channel names.
func (m *Manager) RunningChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var running []string
	for name, ch := range m.channels {
		if ch.IsRunning() {
			running = append(running, name)
		}
	}
	sort.Strings(running)
	return running
}

// ChannelCount returns the total number of registered channels.
func (m *Manager) ChannelCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels)
}

// buildTranscriber creates a voice Transcriber from the voice config.
// Returns nil (voice notes disabled) when no API key is configured.
func (m *Manager) buildTranscriber() *voice.Transcriber {
	voiceCfg := m.config.Voice
	if voiceCfg.APIKey == "" {
		log.Printf("[channels] action=voice_disabled reason=no_api_key")
		return nil
	}

	backend := voice.Backend(voiceCfg.Backend)
	if backend == "" {
		backend = voice.BackendGroq
	}

	var opts []voice.Option
	if voiceCfg.Model != "" {
		opts = append(opts, voice.WithModel(voiceCfg.Model))
	}

	t, err := voice.NewTranscriber(backend, voiceCfg.APIKey, opts...)
	if err != nil {
		log.Printf("[channels] action=voice_disabled error=%q", err)
		return nil
	}
	log.Printf("[channels] action=voice_enabled backend=%s", backend)
	return t
}
