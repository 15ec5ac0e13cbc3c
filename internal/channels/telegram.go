package channels

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hkuds/warden/internal/bus"
	"github.com/hkuds/warden/internal/config"
	"github.com/hkuds/warden/internal/voice"
)

// TelegramChannel implements the Channel interface for Telegram. Every
// chat it can see is a potential group; binding a chat to a group is
// the gateway's job, the channel only moves messages.
type TelegramChannel struct {
	BaseChannel
	token       string
	bot         *tgbotapi.BotAPI
	transcriber *voice.Transcriber // nil when voice is not configured

	// chatIDs maps string chat IDs to int64 for message sending
	chatIDs map[string]int64
	chatMu  sync.RWMutex

	cancel context.CancelFunc
}

// NewTelegramChannel creates a new Telegram channel instance.
func NewTelegramChannel(cfg config.TelegramConfig, msgBus *bus.MessageBus, transcriber *voice.Transcriber) *TelegramChannel {
	return &TelegramChannel{
		BaseChannel: NewBaseChannel("telegram", msgBus, cfg.AllowFrom),
		token:       cfg.Token,
		transcriber: transcriber,
		chatIDs:     make(map[string]int64),
	}
}

// Start begins listening for Telegram updates.
func (c *TelegramChannel) Start(ctx context.Context) error {
	if c.IsRunning() {
		return fmt.Errorf("telegram channel is already running")
	}

	bot, err := tgbotapi.NewBotAPI(c.token)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	c.bot = bot

	log.Printf("[telegram] action=authorized bot=@%s", bot.Self.UserName)

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60 // long polling

	updates := bot.GetUpdatesChan(u)

	c.setRunning(true)

	c.getBus().SubscribeOutbound("telegram", func(msg bus.OutboundMessage) {
		if err := c.Send(msg); err != nil {
			log.Printf("[telegram] action=send_failed chat=%s error=%q", msg.ChatID, err)
		}
	})

	go c.processUpdates(ctx, updates)

	return nil
}

// processUpdates handles incoming Telegram updates.
func (c *TelegramChannel) processUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			log.Printf("[telegram] action=update_loop_stopped")
			return
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			c.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage processes an individual Telegram message.
func (c *TelegramChannel) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	senderID := strconv.FormatInt(msg.From.ID, 10)
	if msg.From.UserName != "" {
		senderID = senderID + "|" + msg.From.UserName
	}

	if !c.IsAllowed(senderID) {
		log.Printf("[security] channel=telegram action=denied sender=%s", senderID)
		return
	}

	chatIDStr := strconv.FormatInt(msg.Chat.ID, 10)
	c.chatMu.Lock()
	c.chatIDs[chatIDStr] = msg.Chat.ID
	c.chatMu.Unlock()

	var content string
	var media []string

	switch {
	case msg.Voice != nil:
		transcription, err := c.transcribeVoice(ctx, msg.Voice)
		if err != nil {
			log.Printf("[telegram] action=transcribe_failed chat=%s error=%q", chatIDStr, err)
			content = "[Voice message - transcription failed]"
		} else {
			content = transcription
		}

	case len(msg.Photo) > 0:
		// Highest resolution variant is last.
		photo := msg.Photo[len(msg.Photo)-1]
		media = append(media, photo.FileID)
		content = msg.Caption

	case msg.Document != nil:
		media = append(media, msg.Document.FileID)
		content = msg.Caption

	case msg.Text != "":
		content = msg.Text

	default:
		content = msg.Caption
	}

	c.publishInbound(senderID, chatIDStr, chatTitle(msg.Chat), content, media)
}

// chatTitle returns a human-readable label for a chat: the group title,
// or the counterpart's name for private chats.
func chatTitle(chat *tgbotapi.Chat) string {
	if chat == nil {
		return ""
	}
	if chat.Title != "" {
		return chat.Title
	}
	name := strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	if name != "" {
		return name
	}
	return chat.UserName
}

// transcribeVoice fetches a voice note and runs it through the transcriber.
func (c *TelegramChannel) transcribeVoice(ctx context.Context, v *tgbotapi.Voice) (string, error) {
	if c.transcriber == nil {
		return "", fmt.Errorf("voice transcription not configured")
	}

	file, err := c.bot.GetFile(tgbotapi.FileConfig{FileID: v.FileID})
	if err != nil {
		return "", fmt.Errorf("failed to get voice file: %w", err)
	}

	resp, err := http.Get(file.Link(c.token))
	if err != nil {
		return "", fmt.Errorf("failed to download voice file: %w", err)
	}
	defer resp.Body.Close()

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read voice data: %w", err)
	}

	return c.transcriber.Transcribe(ctx, audioData, "audio.ogg")
}

// Stop gracefully shuts down the Telegram channel.
func (c *TelegramChannel) Stop() error {
	if !c.IsRunning() {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}
	if c.bot != nil {
		c.bot.StopReceivingUpdates()
	}

	c.setRunning(false)
	log.Printf("[telegram] action=stopped")
	return nil
}

// Send delivers an outbound message through Telegram.
func (c *TelegramChannel) Send(msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("telegram channel is not running")
	}

	chatID, err := c.getChatID(msg.ChatID)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}

	// The workload writes markdown; Telegram takes a restricted HTML
	// dialect, so convert and then strip anything it would reject.
	htmlContent := SanitizeTelegramHTML(MarkdownToTelegramHTML(msg.Content))

	telegramMsg := tgbotapi.NewMessage(chatID, htmlContent)
	telegramMsg.ParseMode = tgbotapi.ModeHTML

	if _, err = c.bot.Send(telegramMsg); err != nil {
		// Fallback to plain text if HTML still fails.
		log.Printf("[telegram] action=html_fallback chat=%s error=%q", msg.ChatID, err)
		telegramMsg.ParseMode = ""
		telegramMsg.Text = StripMarkdown(msg.Content)
		_, err = c.bot.Send(telegramMsg)
	}

	return err
}

// getChatID retrieves the int64 chat ID from a string ID.
func (c *TelegramChannel) getChatID(chatIDStr string) (int64, error) {
	c.chatMu.RLock()
	if chatID, ok := c.chatIDs[chatIDStr]; ok {
		c.chatMu.RUnlock()
		return chatID, nil
	}
	c.chatMu.RUnlock()

	chatIDStr = strings.TrimSpace(chatIDStr)
	chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse chat ID '%s': %w", chatIDStr, err)
	}

	c.chatMu.Lock()
	c.chatIDs[chatIDStr] = chatID
	c.chatMu.Unlock()

	return chatID, nil
}
