package bus

import "time"

// InboundMessage is a message received from a channel adapter.
type InboundMessage struct {
	Channel   string    `json:"channel"` // telegram, cli
	SenderID  string    `json:"sender_id"`
	ChatID    string    `json:"chat_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Media     []string  `json:"media,omitempty"`
	ChatTitle string    `json:"chat_title,omitempty"`
}

// ChatKey identifies the chat the message came from across channels.
func (m *InboundMessage) ChatKey() string {
	return m.Channel + ":" + m.ChatID
}

// OutboundMessage is a message to be delivered to a channel adapter.
// GroupFolder records which group produced it, for logging only; the
// adapters route on Channel and ChatID.
type OutboundMessage struct {
	Channel     string   `json:"channel"`
	ChatID      string   `json:"chat_id"`
	Content     string   `json:"content"`
	Media       []string `json:"media,omitempty"`
	GroupFolder string   `json:"group_folder,omitempty"`
}
