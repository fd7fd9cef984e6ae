package telegram

import (
	"context"
	"testing"

	"github.com/harun/relay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCommands(t *testing.T) {
	bot := createTestBot(t)
	commands := NewCommands(bot)

	assert.NotNil(t, commands)
	assert.Equal(t, bot, commands.bot)
	assert.Empty(t, commands.GetRegisteredCommands())
}

func TestHandleCommand_WithArgs(t *testing.T) {
	bot := createTestBot(t)
	commands := NewCommands(bot)

	var got CommandContext
	commands.Register("Echo", "echo arguments", func(_ context.Context, cmd CommandContext) error {
		got = cmd
		return nil
	})

	update := textUpdate(5, 67890, 12345, "/echo@testbot  hello   world ")
	require.NoError(t, commands.HandleCommand(context.Background(), update))

	assert.Equal(t, "echo", got.Command)
	assert.Equal(t, []string{"hello", "world"}, got.Args)
	assert.Equal(t, "hello   world", got.RawArgs)
	assert.Equal(t, int64(67890), got.ChatID)
	assert.Equal(t, int64(12345), got.UserID)
	assert.Equal(t, 5, got.MessageID)
}

func TestHandleCommand_Unknown(t *testing.T) {
	fake := newFakeTelegram(t)
	bot := fake.newBot(t, config.TelegramConfig{}, Options{})
	commands := NewCommands(bot)

	require.NoError(t, commands.HandleCommand(context.Background(), textUpdate(9, 555, 1, "/nope")))

	sent := fake.callsTo("sendMessage")
	require.Len(t, sent, 1)
	assert.Equal(t, "Unknown command: /nope\nSend /help for the list of commands.", sent[0].Text)
	assert.Equal(t, 9, sent[0].ReplyTo)
}

func TestUnregisterCommand(t *testing.T) {
	bot := createTestBot(t)
	commands := NewCommands(bot)

	commands.Register("ping", "", func(context.Context, CommandContext) error { return nil })
	commands.Register("help", "", func(context.Context, CommandContext) error { return nil })
	assert.Equal(t, []string{"help", "ping"}, commands.GetRegisteredCommands())

	commands.Unregister("PING")
	assert.Equal(t, []string{"help"}, commands.GetRegisteredCommands())
}

func TestPublish(t *testing.T) {
	t.Run("slash prefix sets menu", func(t *testing.T) {
		fake := newFakeTelegram(t)
		commands := NewCommands(fake.newBot(t, config.TelegramConfig{}, Options{}))
		commands.Register("help", "show help", func(context.Context, CommandContext) error { return nil })
		commands.Register("start", "", func(context.Context, CommandContext) error { return nil })

		require.NoError(t, commands.Publish())
		assert.Len(t, fake.callsTo("setMyCommands"), 1)
	})

	t.Run("custom prefix has no menu", func(t *testing.T) {
		fake := newFakeTelegram(t)
		commands := NewCommands(fake.newBot(t, config.TelegramConfig{CommandPrefix: "!"}, Options{}))
		commands.Register("help", "show help", func(context.Context, CommandContext) error { return nil })

		require.NoError(t, commands.Publish())
		assert.Empty(t, fake.callsTo("setMyCommands"))
	})
}

func TestParseCommandText(t *testing.T) {
	tests := []struct {
		text   string
		prefix string
		name   string
		args   string
		ok     bool
	}{
		{text: "/help", prefix: "/", name: "help", ok: true},
		{text: "  /Session  ", prefix: "/", name: "session", ok: true},
		{text: "/ask what is go", prefix: "/", name: "ask", args: "what is go", ok: true},
		{text: "/ping@testbot", prefix: "/", name: "ping", ok: true},
		{text: "/ping@otherbot", prefix: "/", ok: false},
		{text: "!newsession", prefix: "!", name: "newsession", ok: true},
		{text: "/help", prefix: "!", ok: false},
		{text: "/", prefix: "/", ok: false},
		{text: "hello /help", prefix: "/", ok: false},
		{text: "/multi\nline", prefix: "/", name: "multi", args: "line", ok: true},
		{text: "/help", prefix: "", name: "help", ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			name, args, ok := ParseCommandText(tt.text, tt.prefix, "testbot")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.args, args)
		})
	}
}
