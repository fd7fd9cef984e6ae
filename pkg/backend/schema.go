package backend

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const sessionSchema = `{
	"type": "object",
	"required": ["id"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"title": {"type": "string"}
	}
}`

const sessionListSchema = `{
	"type": "array"
}`

const replySchema = `{
	"type": "object",
	"required": ["parts"],
	"properties": {
		"parts": {"type": "array"}
	}
}`

var (
	sessionShape     = mustShape("session", sessionSchema)
	sessionListShape = mustShape("session list", sessionListSchema)
	replyShape       = mustShape("message reply", replySchema)
)

// shape validates a JSON document against a compiled schema
type shape struct {
	name   string
	schema *gojsonschema.Schema
}

func mustShape(name, src string) *shape {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid %s schema: %v", name, err))
	}
	return &shape{name: name, schema: schema}
}

// validate returns an error wrapping ErrUnexpectedResponse when data does not match
func (s *shape) validate(data []byte) error {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnexpectedResponse, s.name, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("%w: %s: %s", ErrUnexpectedResponse, s.name, strings.Join(msgs, "; "))
	}

	return nil
}

// expect checks that resp is JSON and matches the shape
func (s *shape) expect(resp *Response) error {
	if resp == nil {
		return fmt.Errorf("%w: %s: empty response", ErrUnexpectedResponse, s.name)
	}
	if !resp.IsJSON() {
		return fmt.Errorf("%w: %s: expected JSON, got %q (status %d)", ErrUnexpectedResponse, s.name, resp.ContentType, resp.StatusCode)
	}
	return s.validate(resp.Body)
}
