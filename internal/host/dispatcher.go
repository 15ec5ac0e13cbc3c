package host

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/hkuds/warden/internal/bus"
	"github.com/hkuds/warden/internal/group"
)

// pairingCodeRe matches the code format the pairing store issues.
var pairingCodeRe = regexp.MustCompile(`^[A-Z2-9]{4}-[A-Z2-9]{4}$`)

// Dispatcher consumes inbound chat messages, binds unpaired chats via
// pairing codes and submits everything else to the host.
type Dispatcher struct {
	host    *Host
	groups  *group.Registry
	pairing *group.PairingStore
	bus     *bus.MessageBus
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(h *Host, groups *group.Registry, pairing *group.PairingStore, b *bus.MessageBus) *Dispatcher {
	return &Dispatcher{host: h, groups: groups, pairing: pairing, bus: b}
}

// Run consumes inbound messages until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		msg, err := d.bus.ConsumeInboundWithTimeout(ctx, time.Second)
		if err == bus.ErrTimeout {
			continue
		}
		if err != nil {
			return
		}
		d.Handle(ctx, msg)
	}
}

// Handle routes one inbound message. Unpaired chats are only ever
// answered when they present a valid pairing code; everything else from
// them is recorded and dropped.
func (d *Dispatcher) Handle(ctx context.Context, msg bus.InboundMessage) {
	g, ok := d.groups.GetByChat(msg.Channel, msg.ChatID)
	if !ok {
		d.handleUnpaired(msg)
		return
	}

	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return
	}

	// Runs can take minutes; the host serializes per group, so a slow
	// group never blocks the dispatch loop or other groups.
	go func() {
		res := d.host.Submit(ctx, g.Folder, content, false)

		reply := res.Result
		if !res.IsSuccess() {
			reply = "Something went wrong: " + res.Error
		}
		if reply == "" {
			return
		}
		d.bus.PublishOutbound(bus.OutboundMessage{
			Channel:     msg.Channel,
			ChatID:      msg.ChatID,
			Content:     reply,
			GroupFolder: g.Folder,
		})
	}()
}

// handleUnpaired checks for a pairing code and otherwise records the
// chat so the root group can discover it.
func (d *Dispatcher) handleUnpaired(msg bus.InboundMessage) {
	code := strings.ToUpper(strings.TrimSpace(msg.Content))
	if !pairingCodeRe.MatchString(code) {
		d.groups.NoteSeenChat(msg.Channel, msg.ChatID, msg.ChatTitle)
		return
	}

	name, root, ok := d.pairing.Verify(code)
	if !ok {
		log.Printf("[security] channel=%s chat=%s action=pairing_rejected", msg.Channel, msg.ChatID)
		d.reply(msg, "That pairing code is not valid. Codes expire and can only be used once.")
		return
	}

	g, err := d.groups.Add(name, msg.Channel, msg.ChatID, root)
	if err != nil {
		log.Printf("[host] channel=%s chat=%s action=pairing_failed error=%q", msg.Channel, msg.ChatID, err)
		d.reply(msg, fmt.Sprintf("Pairing failed: %v", err))
		return
	}

	log.Printf("[host] group=%s action=paired chat=%s:%s root=%v", g.Folder, msg.Channel, msg.ChatID, g.Root)
	d.host.RefreshSnapshots()
	d.reply(msg, fmt.Sprintf("This chat is now the %q group.", g.Name))
}

func (d *Dispatcher) reply(msg bus.InboundMessage, content string) {
	d.bus.PublishOutbound(bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: content,
	})
}
