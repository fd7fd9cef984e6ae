package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/harun/relay/internal/config"
	"github.com/harun/relay/internal/logger"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// DefaultMaxInFlight bounds concurrently handled updates when Options leaves it unset
const DefaultMaxInFlight = 16

// Bot represents a Telegram bot instance
type Bot struct {
	api    *tgbotapi.BotAPI
	config config.TelegramConfig
	opts   Options
	logger zerolog.Logger

	// Handlers
	mu             sync.RWMutex
	messageHandler MessageHandler
	commandHandler CommandHandler

	// State
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Options tunes update processing
type Options struct {
	MaxInFlight int
	Observer    Observer
}

// Observer receives Telegram traffic events (metrics)
type Observer interface {
	ObserveTelegramReceived()
	ObserveTelegramSent()
	ObserveTelegramError()
}

// MessageHandler handles incoming messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, update tgbotapi.Update) error
}

// CommandHandler handles bot commands
type CommandHandler interface {
	HandleCommand(ctx context.Context, update tgbotapi.Update) error
}

// New authenticates against the Bot API and creates a bot instance
func New(cfg config.TelegramConfig, zl zerolog.Logger, opts Options) (*Bot, error) {
	token := strings.TrimSpace(cfg.BotToken)
	if token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot := NewWithAPI(api, cfg, zl, opts)

	bot.logger.Info().
		Str("username", api.Self.UserName).
		Int64("id", api.Self.ID).
		Msg("Telegram bot authenticated")

	return bot, nil
}

// NewWithAPI wraps an already authenticated API client
func NewWithAPI(api *tgbotapi.BotAPI, cfg config.TelegramConfig, zl zerolog.Logger, opts Options) *Bot {
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = DefaultMaxInFlight
	}
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "/"
	}

	return &Bot{
		api:    api,
		config: cfg,
		opts:   opts,
		logger: logger.Component(zl, "telegram"),
	}
}

// Start begins long polling and dispatches updates in the background
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return fmt.Errorf("bot is already running")
	}

	b.logger.Info().Msg("Starting Telegram bot")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	b.running = true

	go func(done chan struct{}) {
		defer close(done)
		b.Serve(ctx, updates)
	}(b.done)

	b.logger.Info().Int("max_in_flight", b.opts.MaxInFlight).Msg("Telegram bot started")

	return nil
}

// Stop ends polling and waits for in-flight updates until ctx expires
func (b *Bot) Stop(ctx context.Context) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return fmt.Errorf("bot is not running")
	}
	b.running = false
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	b.logger.Info().Msg("Stopping Telegram bot")

	b.api.StopReceivingUpdates()
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for in-flight updates: %w", ctx.Err())
	}

	b.logger.Info().Msg("Telegram bot stopped")

	return nil
}

// Serve dispatches updates until the channel closes or ctx is cancelled.
// At most MaxInFlight updates are handled at once; in-flight handlers run to
// completion and are not cancelled with ctx.
func (b *Bot) Serve(ctx context.Context, updates <-chan tgbotapi.Update) {
	p := pool.New().WithMaxGoroutines(b.opts.MaxInFlight)
	defer p.Wait()

	handlerCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			p.Go(func() {
				if err := b.HandleUpdate(handlerCtx, update); err != nil {
					b.observeError()
					b.logger.Error().
						Err(err).
						Int("update_id", update.UpdateID).
						Msg("Failed to handle update")
				}
			})
		}
	}
}

// HandleUpdate routes an update to the command or message handler.
// Updates without a message and messages authored by bots are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil {
		return nil
	}
	if msg.From != nil && msg.From.IsBot {
		b.logger.Debug().Int64("from", msg.From.ID).Msg("Ignoring message from bot")
		return nil
	}

	if b.opts.Observer != nil {
		b.opts.Observer.ObserveTelegramReceived()
	}

	b.mu.RLock()
	commands, messages := b.commandHandler, b.messageHandler
	b.mu.RUnlock()

	// Prefixed text never becomes a turn, even when it names no command.
	if b.IsCommand(msg) {
		if commands != nil {
			return commands.HandleCommand(ctx, update)
		}
		return nil
	}
	if messages != nil {
		return messages.HandleMessage(ctx, update)
	}

	return nil
}

// IsCommand reports whether a message starts with the configured command prefix
func (b *Bot) IsCommand(msg *tgbotapi.Message) bool {
	if msg == nil {
		return false
	}
	return HasCommandPrefix(msg.Text, b.config.CommandPrefix)
}

// SendMessage sends a text message and returns its message ID
func (b *Bot) SendMessage(chatID int64, text string) (int, error) {
	return b.SendReply(chatID, text, 0)
}

// SendReply sends a text message as a reply; replyTo 0 sends a plain message
func (b *Bot) SendReply(chatID int64, text string, replyTo int) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo

	sent, err := b.api.Send(msg)
	if err != nil {
		b.observeError()
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	b.observeSent()

	b.logger.Debug().
		Int64("chat_id", chatID).
		Int("message_id", sent.MessageID).
		Int("reply_to", replyTo).
		Msg("Message sent")

	return sent.MessageID, nil
}

// EditMessage replaces the text of a message the bot sent earlier
func (b *Bot) EditMessage(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)

	if _, err := b.api.Send(edit); err != nil {
		if IsNotModified(err) {
			return nil
		}
		b.observeError()
		return fmt.Errorf("failed to edit message: %w", err)
	}
	b.observeSent()

	b.logger.Debug().
		Int64("chat_id", chatID).
		Int("message_id", messageID).
		Msg("Message edited")

	return nil
}

// SendTyping sends the typing chat action
func (b *Bot) SendTyping(chatID int64) error {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := b.api.Request(action); err != nil {
		return fmt.Errorf("failed to send typing action: %w", err)
	}
	return nil
}

// Latency measures one round trip to the Bot API
func (b *Bot) Latency() (time.Duration, error) {
	start := time.Now()
	if _, err := b.api.GetMe(); err != nil {
		b.observeError()
		return 0, fmt.Errorf("failed to reach telegram: %w", err)
	}
	return time.Since(start), nil
}

// Username returns the bot's username
func (b *Bot) Username() string {
	if b.api == nil {
		return ""
	}
	return b.api.Self.UserName
}

// SetMessageHandler sets the message handler
func (b *Bot) SetMessageHandler(handler MessageHandler) {
	b.mu.Lock()
	b.messageHandler = handler
	b.mu.Unlock()
}

// SetCommandHandler sets the command handler
func (b *Bot) SetCommandHandler(handler CommandHandler) {
	b.mu.Lock()
	b.commandHandler = handler
	b.mu.Unlock()
}

// IsRunning returns whether the bot is running
func (b *Bot) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// IsNotModified reports the Bot API error returned when an edit changes nothing
func IsNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

func (b *Bot) observeSent() {
	if b.opts.Observer != nil {
		b.opts.Observer.ObserveTelegramSent()
	}
}

func (b *Bot) observeError() {
	if b.opts.Observer != nil {
		b.opts.Observer.ObserveTelegramError()
	}
}
