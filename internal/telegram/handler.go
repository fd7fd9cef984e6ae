package telegram

import (
	"context"
	"strings"
	"time"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/harun/relay/internal/logger"
	"github.com/rs/zerolog"
)

// Handler implements message handling for Telegram
type Handler struct {
	bot    *Bot
	logger zerolog.Logger

	// Callback for processing messages
	onMessage func(context.Context, MessageContext) error
}

// MessageContext contains message metadata
type MessageContext struct {
	ChatID    int64
	MessageID int
	UserID    int64
	Username  string
	Text      string
	Timestamp time.Time
	IsGroup   bool
	IsMention bool
	ReplyToID int
}

// NewHandler creates a new message handler
func NewHandler(bot *Bot) *Handler {
	return &Handler{
		bot:    bot,
		logger: logger.Module(bot.logger, "handler"),
	}
}

// HandleMessage processes incoming text messages. Blank messages are dropped;
// the text of the rest is forwarded as the participant wrote it.
func (h *Handler) HandleMessage(ctx context.Context, update tgbotapi.Update) error {
	if update.Message == nil {
		return nil
	}

	msg := update.Message
	if strings.TrimSpace(msg.Text) == "" {
		return nil
	}

	mc := MessageContext{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Text:      msg.Text,
		Timestamp: time.Unix(int64(msg.Date), 0),
		IsGroup:   msg.Chat.IsGroup() || msg.Chat.IsSuperGroup(),
	}
	if msg.From != nil {
		mc.UserID = msg.From.ID
		mc.Username = msg.From.UserName
	}

	if mc.IsGroup {
		mc.IsMention = h.isMentioned(msg)
	}

	if msg.ReplyToMessage != nil {
		mc.ReplyToID = msg.ReplyToMessage.MessageID
	}

	h.logger.Debug().
		Int64("chat_id", mc.ChatID).
		Int64("user_id", mc.UserID).
		Str("username", mc.Username).
		Bool("is_group", mc.IsGroup).
		Bool("is_mention", mc.IsMention).
		Msg("Message received")

	if h.onMessage != nil {
		return h.onMessage(ctx, mc)
	}

	return nil
}

// isMentioned checks if the bot is mentioned in a message
func (h *Handler) isMentioned(msg *tgbotapi.Message) bool {
	// Entity offsets count UTF-16 code units.
	text := utf16.Encode([]rune(msg.Text))
	for _, entity := range msg.Entities {
		if entity.Type != "mention" {
			continue
		}
		end := entity.Offset + entity.Length
		if entity.Offset < 0 || end > len(text) {
			continue
		}
		if strings.EqualFold(string(utf16.Decode(text[entity.Offset:end])), "@"+h.bot.Username()) {
			return true
		}
	}

	return false
}

// SetOnMessage sets the message callback
func (h *Handler) SetOnMessage(callback func(context.Context, MessageContext) error) {
	h.onMessage = callback
}

// SendResponse sends a response to a message
func (h *Handler) SendResponse(mc MessageContext, text string) error {
	_, err := h.bot.SendReply(mc.ChatID, text, mc.MessageID)
	return err
}
