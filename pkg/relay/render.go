package relay

import (
	"strings"
	"unicode/utf8"

	"github.com/harun/relay/pkg/backend"
)

const (
	// DefaultMaxDisplayChars bounds the rendered reply
	DefaultMaxDisplayChars = 4000

	// TruncationMarker is appended to a reply cut at the bound
	TruncationMarker = "\n\n... (truncated)"
)

// RenderReply joins the textual parts of a reply with newlines, trims the
// result and bounds it to limit characters.
func RenderReply(reply backend.Reply, limit int) string {
	texts := make([]string, 0, len(reply.Parts))
	for _, part := range reply.Parts {
		if !part.IsText() || *part.Text == "" {
			continue
		}
		texts = append(texts, *part.Text)
	}

	return Bound(strings.TrimSpace(strings.Join(texts, "\n")), limit)
}

// Bound truncates text to limit characters and appends TruncationMarker.
// Text within the limit is returned unchanged. A limit <= 0 uses the default.
func Bound(text string, limit int) string {
	if limit <= 0 {
		limit = DefaultMaxDisplayChars
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}

	cut := 0
	for i := range text {
		if limit == 0 {
			cut = i
			break
		}
		limit--
	}

	return text[:cut] + TruncationMarker
}
