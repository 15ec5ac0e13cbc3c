// Package bus is the in-process message queue between channel adapters
// and the sandbox host: inbound chat messages flow one way, outbound
// replies and workload-initiated messages flow the other.
package bus

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrTimeout is returned when waiting for a message runs out of time.
var ErrTimeout = errors.New("timeout waiting for message")

// MessageBus carries inbound and outbound messages over buffered
// channels. Outbound delivery fans out to per-channel subscribers via
// DispatchOutbound; inbound consumption is single-reader (the
// dispatcher owns it).
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage
	done     chan struct{}

	mu          sync.RWMutex
	subscribers map[string][]func(OutboundMessage)
}

// NewMessageBus creates a bus whose inbound and outbound queues each
// hold bufferSize messages.
func NewMessageBus(bufferSize int) *MessageBus {
	return &MessageBus{
		inbound:     make(chan InboundMessage, bufferSize),
		outbound:    make(chan OutboundMessage, bufferSize),
		done:        make(chan struct{}),
		subscribers: make(map[string][]func(OutboundMessage)),
	}
}

// Close shuts the bus down. Publishes after Close are dropped rather
// than blocking the caller.
func (b *MessageBus) Close() {
	close(b.done)
}

// PublishInbound queues a message from a channel adapter.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	select {
	case b.inbound <- msg:
	case <-b.done:
	}
}

// ConsumeInbound blocks until an inbound message is available.
func (b *MessageBus) ConsumeInbound() InboundMessage {
	return <-b.inbound
}

// ConsumeInboundWithTimeout waits up to timeout for an inbound message,
// returning ErrTimeout when none arrives and the context error when the
// context ends first.
func (b *MessageBus) ConsumeInboundWithTimeout(ctx context.Context, timeout time.Duration) (InboundMessage, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-b.inbound:
		return msg, nil
	case <-timer.C:
		return InboundMessage{}, ErrTimeout
	case <-ctx.Done():
		return InboundMessage{}, ctx.Err()
	}
}

// PublishOutbound queues a message for delivery to a chat.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	select {
	case b.outbound <- msg:
	case <-b.done:
	}
}

// ConsumeOutbound blocks until an outbound message is available. Only
// used when no dispatch loop is running (tests, one-shot runs).
func (b *MessageBus) ConsumeOutbound() OutboundMessage {
	return <-b.outbound
}

// SubscribeOutbound registers a callback for outbound messages routed
// to the named channel.
func (b *MessageBus) SubscribeOutbound(channel string, callback func(OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[channel] = append(b.subscribers[channel], callback)
}

// DispatchOutbound delivers outbound messages to their channel's
// subscribers until the context ends or the bus closes. Call it once,
// in its own goroutine.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case msg := <-b.outbound:
			b.fanOut(msg)
		}
	}
}

// fanOut invokes every subscriber for the message's channel. Each
// callback runs in its own goroutine so a slow send (Telegram rate
// limiting) never stalls the dispatch loop, and a panicking subscriber
// is contained.
func (b *MessageBus) fanOut(msg OutboundMessage) {
	b.mu.RLock()
	callbacks := b.subscribers[msg.Channel]
	b.mu.RUnlock()

	if len(callbacks) == 0 {
		log.Printf("[bus] channel=%s action=drop reason=no_subscriber", msg.Channel)
		return
	}

	for _, cb := range callbacks {
		go func(callback func(OutboundMessage)) {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[bus] channel=%s action=subscriber_panic error=%v", msg.Channel, r)
				}
			}()
			callback(msg)
		}(cb)
	}
}

// InboundSize reports how many inbound messages are queued.
func (b *MessageBus) InboundSize() int {
	return len(b.inbound)
}

// OutboundSize reports how many outbound messages are queued.
func (b *MessageBus) OutboundSize() int {
	return len(b.outbound)
}
