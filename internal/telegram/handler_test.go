package telegram

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHandler(t *testing.T) {
	bot := createTestBot(t)
	handler := NewHandler(bot)

	assert.NotNil(t, handler)
	assert.Equal(t, bot, handler.bot)
}

func TestHandleMessage_TextMessage(t *testing.T) {
	handler := NewHandler(createTestBot(t))

	var got MessageContext
	handler.SetOnMessage(func(_ context.Context, mc MessageContext) error {
		got = mc
		return nil
	})

	update := textUpdate(1, 67890, 12345, "  Hello, bot!  ")
	require.NoError(t, handler.HandleMessage(context.Background(), update))

	assert.Equal(t, int64(67890), got.ChatID)
	assert.Equal(t, 1, got.MessageID)
	assert.Equal(t, int64(12345), got.UserID)
	assert.Equal(t, "user12345", got.Username)
	assert.Equal(t, "  Hello, bot!  ", got.Text)
	assert.False(t, got.IsGroup)
}

func TestHandleMessage_EmptyTextDropped(t *testing.T) {
	handler := NewHandler(createTestBot(t))

	called := false
	handler.SetOnMessage(func(context.Context, MessageContext) error {
		called = true
		return nil
	})

	update := textUpdate(1, 1, 1, "   ")
	update.Message.Photo = []tgbotapi.PhotoSize{{FileID: "photo"}}
	require.NoError(t, handler.HandleMessage(context.Background(), update))
	require.NoError(t, handler.HandleMessage(context.Background(), tgbotapi.Update{}))

	assert.False(t, called)
}

func TestHandleMessage_GroupMention(t *testing.T) {
	handler := NewHandler(createTestBot(t))

	var got MessageContext
	handler.SetOnMessage(func(_ context.Context, mc MessageContext) error {
		got = mc
		return nil
	})

	update := textUpdate(3, -100123, 7, "héllo @TestBot what's up")
	update.Message.Chat.Type = "supergroup"
	// "héllo " is six UTF-16 units
	update.Message.Entities = []tgbotapi.MessageEntity{{Type: "mention", Offset: 6, Length: 8}}

	require.NoError(t, handler.HandleMessage(context.Background(), update))
	assert.True(t, got.IsGroup)
	assert.True(t, got.IsMention)
}

func TestHandleMessage_WithReply(t *testing.T) {
	handler := NewHandler(createTestBot(t))

	var got MessageContext
	handler.SetOnMessage(func(_ context.Context, mc MessageContext) error {
		got = mc
		return nil
	})

	update := textUpdate(4, 1, 1, "following up")
	update.Message.ReplyToMessage = &tgbotapi.Message{MessageID: 3}

	require.NoError(t, handler.HandleMessage(context.Background(), update))
	assert.Equal(t, 3, got.ReplyToID)
}

func TestHandleMessage_CallbackError(t *testing.T) {
	handler := NewHandler(createTestBot(t))
	handler.SetOnMessage(func(context.Context, MessageContext) error {
		return assert.AnError
	})

	err := handler.HandleMessage(context.Background(), textUpdate(1, 1, 1, "hi"))
	assert.ErrorIs(t, err, assert.AnError)
}
