package host

import (
	"context"
	"testing"
	"time"

	"github.com/hkuds/warden/internal/bus"
	"github.com/hkuds/warden/internal/group"
	"github.com/hkuds/warden/internal/sandbox"
)

func newDispatcherFixture(t *testing.T) (*hostFixture, *Dispatcher, *group.PairingStore) {
	t.Helper()
	f := newHostFixture(t)
	pairing := group.NewPairingStore(time.Minute)
	d := NewDispatcher(f.host, f.groups, pairing, f.bus)
	return f, d, pairing
}

func waitOutbound(t *testing.T, b *bus.MessageBus) bus.OutboundMessage {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		if b.OutboundSize() > 0 {
			return b.ConsumeOutbound()
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for outbound message")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHandlePairedChatSubmits(t *testing.T) {
	f, d, _ := newDispatcherFixture(t)

	d.Handle(context.Background(), bus.InboundMessage{
		Channel: "telegram", ChatID: "200", Content: "what's new?",
	})

	msg := waitOutbound(t, f.bus)
	if msg.ChatID != "200" || msg.Content != "ok" {
		t.Errorf("reply = %+v", msg)
	}
	if job := f.runner.lastJob(t); job.Prompt != "what's new?" {
		t.Errorf("prompt = %q", job.Prompt)
	}
}

func TestHandleErrorResultReported(t *testing.T) {
	f, d, _ := newDispatcherFixture(t)
	f.runner.result = sandbox.ErrorResult("sandbox timed out after 10m0s")

	d.Handle(context.Background(), bus.InboundMessage{
		Channel: "telegram", ChatID: "200", Content: "hi",
	})

	msg := waitOutbound(t, f.bus)
	if msg.Content != "Something went wrong: sandbox timed out after 10m0s" {
		t.Errorf("reply = %q", msg.Content)
	}
}

func TestHandleUnknownChatRecorded(t *testing.T) {
	f, d, _ := newDispatcherFixture(t)

	d.Handle(context.Background(), bus.InboundMessage{
		Channel: "telegram", ChatID: "999", ChatTitle: "Family", Content: "hello?",
	})

	// No reply, no run.
	time.Sleep(50 * time.Millisecond)
	if f.bus.OutboundSize() != 0 {
		t.Error("unpaired chat received a reply")
	}
	if len(f.runner.jobs) != 0 {
		t.Error("unpaired chat triggered a run")
	}

	seen := f.groups.SeenChats()
	if len(seen) != 1 || seen[0].ChatID != "999" || seen[0].Title != "Family" {
		t.Errorf("seen chats = %+v", seen)
	}
}

func TestHandlePairingCode(t *testing.T) {
	f, d, pairing := newDispatcherFixture(t)
	code, err := pairing.Issue("Ops", false)
	if err != nil {
		t.Fatal(err)
	}

	d.Handle(context.Background(), bus.InboundMessage{
		Channel: "telegram", ChatID: "300", Content: code,
	})

	g, ok := f.groups.GetByChat("telegram", "300")
	if !ok {
		t.Fatal("pairing did not register the group")
	}
	if g.Name != "Ops" || g.Root {
		t.Errorf("group = %+v", g)
	}

	msg := waitOutbound(t, f.bus)
	if msg.ChatID != "300" {
		t.Errorf("confirmation sent to %q", msg.ChatID)
	}
}

func TestHandleInvalidPairingCode(t *testing.T) {
	f, d, _ := newDispatcherFixture(t)

	// Right shape, never issued.
	d.Handle(context.Background(), bus.InboundMessage{
		Channel: "telegram", ChatID: "300", Content: "AAAA-BBBB",
	})

	if _, ok := f.groups.GetByChat("telegram", "300"); ok {
		t.Fatal("invalid code registered a group")
	}
	msg := waitOutbound(t, f.bus)
	if msg.ChatID != "300" {
		t.Errorf("rejection sent to %q", msg.ChatID)
	}
}

func TestHandlePairingCodeCaseInsensitive(t *testing.T) {
	f, d, pairing := newDispatcherFixture(t)
	code, err := pairing.Issue("Ops", false)
	if err != nil {
		t.Fatal(err)
	}

	d.Handle(context.Background(), bus.InboundMessage{
		Channel: "telegram", ChatID: "300", Content: "  " + lower(code) + "  ",
	})

	if _, ok := f.groups.GetByChat("telegram", "300"); !ok {
		t.Fatal("lowercased code should still pair")
	}
}

func TestHandleEmptyContentIgnored(t *testing.T) {
	f, d, _ := newDispatcherFixture(t)

	d.Handle(context.Background(), bus.InboundMessage{
		Channel: "telegram", ChatID: "200", Content: "   ",
	})

	time.Sleep(50 * time.Millisecond)
	if len(f.runner.jobs) != 0 {
		t.Error("blank message triggered a run")
	}
}

func lower(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'A' && c <= 'Z' {
			out[i] = c + 'a' - 'A'
		}
	}
	return string(out)
}
