package telegram

import (
	"fmt"
	"time"

	"github.com/harun/relay/internal/logger"
	"github.com/rs/zerolog"
)

// DefaultStatusText is shown while a turn is in flight
const DefaultStatusText = "💭 Thinking..."

// Sender is the part of the bot a status message needs
type Sender interface {
	SendReply(chatID int64, text string, replyTo int) (int, error)
	EditMessage(chatID int64, messageID int, text string) error
}

// Status is a placeholder message that is later edited into the final answer
type Status struct {
	ChatID    int64
	MessageID int
	ReplyTo   int
	Started   time.Time
}

// StatusMessages posts and finalizes status placeholders
type StatusMessages struct {
	sender Sender
	text   string
	logger zerolog.Logger
}

// NewStatusMessages creates a status helper. An empty text uses DefaultStatusText.
func NewStatusMessages(sender Sender, text string, zl zerolog.Logger) *StatusMessages {
	if text == "" {
		text = DefaultStatusText
	}
	return &StatusMessages{
		sender: sender,
		text:   text,
		logger: logger.Module(zl, "status"),
	}
}

// Begin posts the placeholder as a reply to the triggering message
func (s *StatusMessages) Begin(chatID int64, replyTo int) (*Status, error) {
	id, err := s.sender.SendReply(chatID, s.text, replyTo)
	if err != nil {
		return nil, fmt.Errorf("failed to post status message: %w", err)
	}

	s.logger.Debug().
		Int64("chat_id", chatID).
		Int("message_id", id).
		Msg("Status message posted")

	return &Status{ChatID: chatID, MessageID: id, ReplyTo: replyTo, Started: time.Now()}, nil
}

// Finish edits the placeholder into text. When there is no placeholder or the
// edit is rejected, text is sent as a new reply instead.
func (s *StatusMessages) Finish(st *Status, chatID int64, replyTo int, text string) error {
	if st != nil {
		err := s.sender.EditMessage(st.ChatID, st.MessageID, text)
		if err == nil {
			s.logger.Debug().
				Int64("chat_id", st.ChatID).
				Int("message_id", st.MessageID).
				Dur("elapsed", time.Since(st.Started)).
				Msg("Status message finalized")
			return nil
		}
		s.logger.Warn().
			Err(err).
			Int64("chat_id", st.ChatID).
			Int("message_id", st.MessageID).
			Msg("Failed to edit status message, sending a new reply")
	}

	if _, err := s.sender.SendReply(chatID, text, replyTo); err != nil {
		return err
	}
	return nil
}
