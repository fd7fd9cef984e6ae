package daemon

import (
	"fmt"
	"strings"
	"time"

	"github.com/harun/relay/pkg/relay"
)

const (
	sessionErrorText   = "❌ Failed to create or retrieve session with the backend."
	malformedReplyText = "❌ Received unexpected response from the backend."
	unreachableText    = "❌ Backend unreachable. Please try again later."
	unavailableText    = "❌ The relay is shutting down. Please try again shortly."
	emptyReplyText     = "(the backend replied without any text)"

	sessionFooterChars = 8
)

// RenderResult renders a turn or command result the way the chat shows it
func RenderResult(res relay.Result) string {
	if res.Command != "" {
		return renderCommand(res)
	}
	return renderTurn(res)
}

// renderTurn renders a message turn for the chat
func renderTurn(res relay.Result) string {
	switch res.Outcome {
	case relay.OutcomeSuccess:
		text := res.Text
		if strings.TrimSpace(text) == "" {
			text = emptyReplyText
		}
		return text + "\n\n" + sessionFooter(res.SessionID)
	case relay.OutcomeSessionError:
		return sessionErrorText
	default:
		return failureText(res.Failure)
	}
}

// renderCommand renders a command result for the chat
func renderCommand(res relay.Result) string {
	if !res.OK() {
		switch res.Command {
		case relay.CommandSession:
			return "❌ Failed to retrieve session."
		case relay.CommandNewSession:
			return "❌ Failed to create new session."
		case relay.CommandPing:
			return "🏓 Pong! Backend unreachable."
		default:
			return failureText(res.Failure)
		}
	}

	switch res.Command {
	case relay.CommandHelp:
		return "🤖 " + res.Text
	case relay.CommandSession:
		return "📋 " + res.Text
	case relay.CommandNewSession:
		return "✨ " + res.Text
	case relay.CommandPing:
		return "🏓 " + res.Text
	default:
		return res.Text
	}
}

// withTelegramLatency appends the Bot API round trip to a ping reply
func withTelegramLatency(text string, latency time.Duration, err error) string {
	if err != nil {
		return text + "\nTelegram latency: unavailable"
	}
	return fmt.Sprintf("%s\nTelegram latency: %dms", text, latency.Milliseconds())
}

func failureText(f relay.Failure) string {
	if f == relay.FailureTransport {
		return unreachableText
	}
	return malformedReplyText
}

func sessionFooter(sessionID string) string {
	short := []rune(sessionID)
	if len(short) > sessionFooterChars {
		short = short[:sessionFooterChars]
	}
	return "Session: " + string(short) + "..."
}
