package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// PartTypeText tags a textual message part
const PartTypeText = "text"

// Session is a backend conversation
type Session struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Usable reports whether the entry carries a session id
func (s Session) Usable() bool {
	return s.ID != ""
}

// Part is one typed piece of a message. Text is nil for non-textual parts.
type Part struct {
	Type string  `json:"type"`
	Text *string `json:"text,omitempty"`
}

// TextPart builds a textual part
func TextPart(text string) Part {
	return Part{Type: PartTypeText, Text: &text}
}

// IsText reports whether the part carries text
func (p Part) IsText() bool {
	return p.Type == PartTypeText && p.Text != nil
}

// Reply is the backend's structured answer to a submitted message
type Reply struct {
	Parts []Part `json:"parts"`
}

type createSessionRequest struct {
	Title string `json:"title"`
}

type messageRequest struct {
	Parts []Part `json:"parts"`
}

// ListSessions returns the sessions known to the backend, in backend order.
// Entries without a usable id keep their position as a zero Session.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/session", nil, nil)
	if err != nil {
		return nil, err
	}
	if err := sessionListShape.expect(resp); err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := resp.Decode(&items); err != nil {
		return nil, err
	}

	sessions := make([]Session, len(items))
	for i, item := range items {
		if err := sessionShape.validate(item); err != nil {
			c.logger.Debug().Err(err).Int("index", i).Msg("Unusable session entry")
			continue
		}
		var s Session
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		sessions[i] = s
	}

	return sessions, nil
}

// CreateSession creates a new backend session with the given title
func (c *Client) CreateSession(ctx context.Context, title string) (Session, error) {
	resp, err := c.Do(ctx, http.MethodPost, "/session", createSessionRequest{Title: title}, nil)
	if err != nil {
		return Session{}, err
	}
	return decodeSession(resp)
}

// GetSession fetches a single session
func (c *Client) GetSession(ctx context.Context, id string) (Session, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/session/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return Session{}, err
	}
	return decodeSession(resp)
}

// DeleteSession removes a session on the backend
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	resp, err := c.Do(ctx, http.MethodDelete, "/session/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: delete session returned status %d", ErrUnexpectedResponse, resp.StatusCode)
	}
	return nil
}

// SendMessage submits text as a single textual part and returns the structured reply
func (c *Client) SendMessage(ctx context.Context, sessionID, text string) (*Reply, error) {
	path := "/session/" + url.PathEscape(sessionID) + "/message"
	resp, err := c.Do(ctx, http.MethodPost, path, messageRequest{Parts: []Part{TextPart(text)}}, nil)
	if err != nil {
		return nil, err
	}
	if err := replyShape.expect(resp); err != nil {
		return nil, err
	}

	var raw struct {
		Parts []json.RawMessage `json:"parts"`
	}
	if err := resp.Decode(&raw); err != nil {
		return nil, err
	}

	reply := &Reply{Parts: make([]Part, 0, len(raw.Parts))}
	for _, item := range raw.Parts {
		if part, ok := decodePart(item); ok {
			reply.Parts = append(reply.Parts, part)
		}
	}

	return reply, nil
}

// Health checks the liveness endpoint. Any JSON or text body is accepted,
// but a non-2xx status is ErrUnavailable.
func (c *Client) Health(ctx context.Context) (*Response, error) {
	resp, err := c.Do(ctx, http.MethodGet, "/global/health", nil, nil)
	if err != nil {
		return nil, err
	}
	if !resp.Success() {
		return resp, fmt.Errorf("%w: health check returned status %d", ErrUnavailable, resp.StatusCode)
	}
	return resp, nil
}

func decodeSession(resp *Response) (Session, error) {
	if err := sessionShape.expect(resp); err != nil {
		return Session{}, err
	}
	var s Session
	if err := resp.Decode(&s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// decodePart reads one part leniently: non-objects are dropped, and a text
// field that is not a string is treated as absent.
func decodePart(data json.RawMessage) (Part, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return Part{}, false
	}

	var part Part
	if raw, ok := fields["type"]; ok {
		_ = json.Unmarshal(raw, &part.Type)
	}
	if raw, ok := fields["text"]; ok && string(raw) != "null" {
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			part.Text = &text
		}
	}

	return part, true
}
