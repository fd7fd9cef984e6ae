package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/harun/relay/internal/logger"
	"github.com/rs/zerolog"
)

// Commands dispatches prefixed commands to registered handlers
type Commands struct {
	bot    *Bot
	logger zerolog.Logger

	mu           sync.RWMutex
	handlers     map[string]CommandFunc
	descriptions map[string]string
}

// CommandFunc is a function that handles a command
type CommandFunc func(ctx context.Context, cmd CommandContext) error

// CommandContext contains command metadata
type CommandContext struct {
	ChatID    int64
	MessageID int
	UserID    int64
	Username  string
	Command   string
	Args      []string
	RawArgs   string
}

// NewCommands creates a new command handler
func NewCommands(bot *Bot) *Commands {
	return &Commands{
		bot:          bot,
		logger:       logger.Module(bot.logger, "commands"),
		handlers:     make(map[string]CommandFunc),
		descriptions: make(map[string]string),
	}
}

// HandleCommand processes incoming commands
func (c *Commands) HandleCommand(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil {
		return nil
	}

	name, rawArgs, ok := ParseCommandText(msg.Text, c.bot.config.CommandPrefix, c.bot.Username())
	if !ok {
		c.logger.Debug().
			Int64("chat_id", msg.Chat.ID).
			Int("message_id", msg.MessageID).
			Msg("Dropping prefixed text that is not a command for this bot")
		return nil
	}

	cmd := CommandContext{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Command:   name,
		Args:      strings.Fields(rawArgs),
		RawArgs:   rawArgs,
	}
	if msg.From != nil {
		cmd.UserID = msg.From.ID
		cmd.Username = msg.From.UserName
	}

	c.logger.Debug().
		Int64("chat_id", cmd.ChatID).
		Str("command", name).
		Strs("args", cmd.Args).
		Msg("Command received")

	c.mu.RLock()
	handler, exists := c.handlers[name]
	c.mu.RUnlock()
	if !exists {
		return c.sendUnknownCommand(cmd)
	}

	return handler(ctx, cmd)
}

// Register registers a command handler
func (c *Commands) Register(command, description string, handler CommandFunc) {
	command = strings.ToLower(command)

	c.mu.Lock()
	c.handlers[command] = handler
	c.descriptions[command] = description
	c.mu.Unlock()

	c.logger.Debug().Str("command", command).Msg("Command registered")
}

// Unregister removes a command handler
func (c *Commands) Unregister(command string) {
	command = strings.ToLower(command)

	c.mu.Lock()
	delete(c.handlers, command)
	delete(c.descriptions, command)
	c.mu.Unlock()

	c.logger.Debug().Str("command", command).Msg("Command unregistered")
}

// Publish sets the bot's command menu in Telegram from the registered
// commands that have a description. The menu only exists for "/" commands.
func (c *Commands) Publish() error {
	if c.bot.config.CommandPrefix != "/" {
		return nil
	}

	c.mu.RLock()
	menu := make([]tgbotapi.BotCommand, 0, len(c.descriptions))
	for _, name := range c.registeredLocked() {
		if desc := c.descriptions[name]; desc != "" {
			menu = append(menu, tgbotapi.BotCommand{Command: name, Description: desc})
		}
	}
	c.mu.RUnlock()

	if _, err := c.bot.api.Request(tgbotapi.NewSetMyCommands(menu...)); err != nil {
		return fmt.Errorf("failed to set commands: %w", err)
	}

	c.logger.Info().Int("count", len(menu)).Msg("Bot commands updated")
	return nil
}

// SendResponse sends a response to a command
func (c *Commands) SendResponse(cmd CommandContext, text string) error {
	_, err := c.bot.SendReply(cmd.ChatID, text, cmd.MessageID)
	return err
}

// GetRegisteredCommands returns all registered commands, sorted
func (c *Commands) GetRegisteredCommands() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registeredLocked()
}

func (c *Commands) registeredLocked() []string {
	commands := make([]string, 0, len(c.handlers))
	for cmd := range c.handlers {
		commands = append(commands, cmd)
	}
	sort.Strings(commands)
	return commands
}

func (c *Commands) sendUnknownCommand(cmd CommandContext) error {
	prefix := c.bot.config.CommandPrefix
	text := fmt.Sprintf("Unknown command: %s%s\nSend %shelp for the list of commands.", prefix, cmd.Command, prefix)
	return c.SendResponse(cmd, text)
}

// HasCommandPrefix reports whether text, ignoring leading whitespace, starts
// with prefix ("/" when empty).
func HasCommandPrefix(text, prefix string) bool {
	if prefix == "" {
		prefix = "/"
	}
	return strings.HasPrefix(strings.TrimSpace(text), prefix)
}

// ParseCommandText splits "<prefix>name[@bot] args" into a lower-cased name and
// its raw arguments. A command addressed to a different bot is not a command.
func ParseCommandText(text, prefix, botName string) (name, args string, ok bool) {
	if prefix == "" {
		prefix = "/"
	}

	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, prefix) {
		return "", "", false
	}

	rest := text[len(prefix):]
	name = rest
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		name, args = rest[:i], strings.TrimSpace(rest[i:])
	}

	if at := strings.IndexByte(name, '@'); at >= 0 {
		if botName != "" && !strings.EqualFold(name[at+1:], botName) {
			return "", "", false
		}
		name = name[:at]
	}
	if name == "" {
		return "", "", false
	}

	return strings.ToLower(name), args, true
}
