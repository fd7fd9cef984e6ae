package daemon

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/harun/relay/internal/config"
	"github.com/harun/relay/internal/logger"
	"github.com/harun/relay/internal/telegram"
	"github.com/harun/relay/pkg/channels"
	"github.com/harun/relay/pkg/relay"
	"github.com/rs/zerolog"
)

const telegramChannelName = "telegram"

// Messenger is the Telegram surface the ingress adapter talks to
type Messenger interface {
	telegram.Sender
	SendTyping(chatID int64) error
	Latency() (time.Duration, error)
}

type duplicateObserver interface {
	ObserveTelegramDuplicate()
}

// telegramIngress is one inbound Telegram message reduced to what the relay needs
type telegramIngress struct {
	ChatID    int64
	MessageID int
	UserID    int64
	Username  string
	Text      string
	IsGroup   bool
}

// Participant identifies the author; the chat stands in when the author is hidden
func (in telegramIngress) Participant() string {
	if in.UserID != 0 {
		return strconv.FormatInt(in.UserID, 10)
	}
	return strconv.FormatInt(in.ChatID, 10)
}

func (in telegramIngress) key() string {
	return fmt.Sprintf("telegram:%d:%d", in.ChatID, in.MessageID)
}

type telegramIngressChannel struct {
	bot       *telegram.Bot
	commands  *telegram.Commands
	messenger Messenger
	status    *telegram.StatusMessages
	dedupe    *messageDedupeCache
	observer  duplicateObserver
	logger    zerolog.Logger

	mu       sync.RWMutex
	dispatch channels.DispatchFunc
}

var commandDescriptions = map[relay.Command]string{
	relay.CommandHelp:       "Show help",
	relay.CommandSession:    "Show your current session ID",
	relay.CommandNewSession: "Start a new session",
	relay.CommandPing:       "Check backend and Telegram latency",
}

// newTelegramIngressChannel adapts Telegram traffic to the relay. bot and
// commands may be nil when the adapter is driven directly.
func newTelegramIngressChannel(
	bot *telegram.Bot,
	commands *telegram.Commands,
	messenger Messenger,
	cfg config.TelegramConfig,
	observer duplicateObserver,
	zl zerolog.Logger,
) *telegramIngressChannel {
	zl = logger.Component(zl, "channels.telegram")

	return &telegramIngressChannel{
		bot:       bot,
		commands:  commands,
		messenger: messenger,
		status:    telegram.NewStatusMessages(messenger, cfg.StatusMessage, zl),
		dedupe:    newMessageDedupeCache(time.Duration(cfg.DedupeTTLSeconds) * time.Second),
		observer:  observer,
		logger:    zl,
	}
}

func (c *telegramIngressChannel) Name() string {
	return telegramChannelName
}

func (c *telegramIngressChannel) Start(_ context.Context, dispatch channels.DispatchFunc) error {
	if c.messenger == nil {
		return fmt.Errorf("telegram messenger is required")
	}
	if dispatch == nil {
		return fmt.Errorf("dispatch function is required")
	}

	c.mu.Lock()
	c.dispatch = dispatch
	c.mu.Unlock()

	c.dedupe.Start()

	if c.commands != nil {
		for _, name := range commandNames() {
			c.commands.Register(name, commandDescriptions[relay.Command(name)], c.onCommand)
		}
	}

	if c.bot != nil {
		handler := telegram.NewHandler(c.bot)
		handler.SetOnMessage(func(ctx context.Context, mc telegram.MessageContext) error {
			return c.handleMessage(ctx, telegramIngress{
				ChatID:    mc.ChatID,
				MessageID: mc.MessageID,
				UserID:    mc.UserID,
				Username:  mc.Username,
				Text:      mc.Text,
				IsGroup:   mc.IsGroup,
			})
		})
		c.bot.SetMessageHandler(handler)
		if c.commands != nil {
			c.bot.SetCommandHandler(c.commands)
		}
	}

	return nil
}

func (c *telegramIngressChannel) Stop(_ context.Context) error {
	if c.bot != nil {
		c.bot.SetMessageHandler(nil)
		c.bot.SetCommandHandler(nil)
	}
	if c.commands != nil {
		for _, name := range commandNames() {
			c.commands.Unregister(name)
		}
	}
	c.dedupe.Stop()

	c.mu.Lock()
	c.dispatch = nil
	c.mu.Unlock()
	return nil
}

// commandNames lists the Telegram commands the adapter answers; "start" is
// the alias Telegram clients send when a chat is opened.
func commandNames() []string {
	names := make([]string, 0, len(relay.Commands())+1)
	for _, cmd := range relay.Commands() {
		names = append(names, string(cmd))
	}
	return append(names, "start")
}

func (c *telegramIngressChannel) onCommand(ctx context.Context, cc telegram.CommandContext) error {
	cmd, ok := relay.ParseCommand(cc.Command)
	if !ok {
		return nil
	}
	return c.handleCommand(ctx, telegramIngress{
		ChatID:    cc.ChatID,
		MessageID: cc.MessageID,
		UserID:    cc.UserID,
		Username:  cc.Username,
	}, cmd)
}

// handleMessage runs one turn: the session is resolved first, the status
// message is posted once the turn reaches submission, and the status message
// is then edited into the rendered result.
func (c *telegramIngressChannel) handleMessage(ctx context.Context, in telegramIngress) error {
	if c.duplicate(in) {
		return nil
	}

	// Typing covers the gap until the status message is posted.
	if err := c.messenger.SendTyping(in.ChatID); err != nil {
		c.logger.Debug().Err(err).Int64("chat_id", in.ChatID).Msg("Failed to send typing action")
	}

	var status *telegram.Status
	hook := relay.WithStateHook(func(turn *relay.Turn) {
		if turn.State() != relay.StateSubmitting {
			return
		}
		st, err := c.status.Begin(in.ChatID, in.MessageID)
		if err != nil {
			c.logger.Warn().Err(err).Int64("chat_id", in.ChatID).Msg("Failed to post status message")
			return
		}
		status = st
	})

	res, err := c.send(ctx, channels.InboundMessage{
		Participant: in.Participant(),
		Text:        in.Text,
		Metadata:    in.metadata(),
		TurnOptions: []relay.TurnOption{hook},
	})

	text := renderTurn(res)
	if err != nil {
		c.logger.Error().Err(err).Int64("chat_id", in.ChatID).Msg("Telegram ingress dispatch failed")
		text = unavailableText
	}

	return c.status.Finish(status, in.ChatID, in.MessageID, text)
}

func (c *telegramIngressChannel) handleCommand(ctx context.Context, in telegramIngress, cmd relay.Command) error {
	if c.duplicate(in) {
		return nil
	}

	res, err := c.send(ctx, channels.InboundMessage{
		Participant: in.Participant(),
		Command:     cmd,
		Metadata:    in.metadata(),
	})

	text := renderCommand(res)
	if err != nil {
		c.logger.Error().Err(err).Int64("chat_id", in.ChatID).Str("command", string(cmd)).Msg("Telegram command dispatch failed")
		text = unavailableText
	} else if cmd == relay.CommandPing {
		latency, latencyErr := c.messenger.Latency()
		text = withTelegramLatency(text, latency, latencyErr)
	}

	_, err = c.messenger.SendReply(in.ChatID, text, in.MessageID)
	return err
}

func (c *telegramIngressChannel) send(ctx context.Context, msg channels.InboundMessage) (relay.Result, error) {
	c.mu.RLock()
	dispatch := c.dispatch
	c.mu.RUnlock()

	if dispatch == nil {
		return relay.Result{}, fmt.Errorf("telegram channel is not started")
	}

	msg.Channel = telegramChannelName
	return dispatch(ctx, msg)
}

func (c *telegramIngressChannel) duplicate(in telegramIngress) bool {
	if !c.dedupe.Seen(in.key()) {
		return false
	}

	c.logger.Debug().
		Str("message_key", in.key()).
		Msg("Skipping duplicate Telegram ingress message")
	if c.observer != nil {
		c.observer.ObserveTelegramDuplicate()
	}
	return true
}

func (in telegramIngress) metadata() map[string]interface{} {
	return map[string]interface{}{
		"chat_id":    strconv.FormatInt(in.ChatID, 10),
		"message_id": in.MessageID,
		"user_id":    strconv.FormatInt(in.UserID, 10),
		"username":   in.Username,
		"is_group":   in.IsGroup,
	}
}
