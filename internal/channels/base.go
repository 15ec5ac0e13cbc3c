// Package channels connects chat services to the message bus. Adapters
// publish inbound chat messages and subscribe for outbound deliveries;
// group resolution and sandbox dispatch happen elsewhere.
package channels

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/hkuds/warden/internal/bus"
)

// Channel is one chat-service adapter.
type Channel interface {
	// Name returns the unique identifier for this channel.
	Name() string

	// Start begins listening for messages on this channel.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop() error

	// Send delivers an outbound message through this channel.
	Send(msg bus.OutboundMessage) error

	// IsRunning reports whether the channel is currently active.
	IsRunning() bool
}

// BaseChannel carries the state every adapter shares: identity, bus
// access, the sender allow list and the running flag.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowList []string

	mu      sync.RWMutex
	running bool
}

// NewBaseChannel creates the shared adapter state.
func NewBaseChannel(name string, msgBus *bus.MessageBus, allowList []string) BaseChannel {
	return BaseChannel{
		name:      name,
		bus:       msgBus,
		allowList: allowList,
	}
}

// Name returns the channel's unique identifier.
func (c *BaseChannel) Name() string {
	return c.name
}

// IsRunning reports whether the channel is currently active.
func (c *BaseChannel) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

func (c *BaseChannel) setRunning(running bool) {
	c.mu.Lock()
	c.running = running
	c.mu.Unlock()
}

// IsAllowed reports whether a sender may use this channel. Compound
// IDs like "123456|username" match the allow list on either part. An
// empty allow list denies everyone: access is opt-in.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		log.Printf("[security] channel=%s action=denied reason=no_allowed_users sender=%s", c.name, senderID)
		return false
	}

	candidates := []string{senderID}
	for _, part := range strings.Split(senderID, "|") {
		if part = strings.TrimSpace(part); part != "" {
			candidates = append(candidates, part)
		}
	}

	for _, allowed := range c.allowList {
		for _, candidate := range candidates {
			if candidate == allowed {
				return true
			}
		}
	}
	return false
}

// publishInbound forwards a received chat message onto the bus.
func (c *BaseChannel) publishInbound(senderID, chatID, chatTitle, content string, media []string) {
	c.bus.PublishInbound(bus.InboundMessage{
		Channel:   c.name,
		SenderID:  senderID,
		ChatID:    chatID,
		ChatTitle: chatTitle,
		Content:   content,
		Timestamp: time.Now(),
		Media:     media,
	})
}

func (c *BaseChannel) getBus() *bus.MessageBus {
	return c.bus
}
