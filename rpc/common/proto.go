package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode"
)

// --------------------------------------------------------------------------
// Command Structure
// --------------------------------------------------------------------------

// Command is a single request for the Theater server.
//
// On the wire a command is an externally tagged JSON value: a command without
// fields is encoded as its name ("ListActors"), any other command as an object
// with the name as the only key ({"StopActor":{"id":"..."}}). If Raw is set it is
// sent verbatim and Name/Fields are ignored.
type Command struct {
	Name   string
	Fields map[string]any
	Raw    json.RawMessage
}

// NewCommand creates a new command with the given name and fields
func NewCommand(name string, fields map[string]any) Command {
	return Command{Name: name, Fields: fields}
}

// NewRawCommand creates a command from an already encoded JSON value
func NewRawCommand(raw []byte) (Command, error) {
	if !json.Valid(raw) {
		return Command{}, fmt.Errorf("invalid json command: %s", raw)
	}
	var cmd Command
	if err := cmd.UnmarshalJSON(raw); err != nil {
		return Command{}, err
	}
	cmd.Raw = append(json.RawMessage(nil), raw...)
	return cmd, nil
}

// String returns the command name, used for logging
func (c Command) String() string {
	if c.Name == "" {
		return "raw"
	}
	return c.Name
}

// MarshalJSON implements the json.Marshaler interface for Command
func (c Command) MarshalJSON() ([]byte, error) {
	if c.Raw != nil {
		return c.Raw, nil
	}
	if c.Name == "" {
		return nil, fmt.Errorf("command has no name")
	}
	if c.Fields == nil {
		return json.Marshal(c.Name)
	}
	return json.Marshal(map[string]any{c.Name: c.Fields})
}

// UnmarshalJSON implements the json.Unmarshaler interface for Command
func (c *Command) UnmarshalJSON(data []byte) error {
	kind, body, ok := splitTagged(data)
	if !ok {
		return fmt.Errorf("command is not an externally tagged value: %s", data)
	}
	c.Name = kind
	c.Fields = nil
	c.Raw = nil
	if body == nil || bytes.Equal(body, []byte("null")) {
		return nil
	}
	c.Fields = map[string]any{}
	return json.Unmarshal(body, &c.Fields)
}

// Decode unmarshals the command fields into v
func (c Command) Decode(v any) error {
	if c.Fields == nil {
		return nil
	}
	b, err := json.Marshal(c.Fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// --------------------------------------------------------------------------
// Response Structure
// --------------------------------------------------------------------------

// Response is a single response of the Theater server.
//
// Kind is the variant name if the response is externally tagged and empty
// otherwise. Body holds the variant payload, or the complete value for
// untagged responses.
type Response struct {
	Kind string
	Body json.RawMessage
}

// NewResponse creates a tagged response, body is encoded as JSON (nil for no payload)
func NewResponse(kind string, body any) (*Response, error) {
	if body == nil {
		return &Response{Kind: kind}, nil
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return &Response{Kind: kind, Body: b}, nil
}

// NewErrorResponse creates a response with the reserved error shape
func NewErrorResponse(message string) *Response {
	b, _ := json.Marshal(map[string]string{"message": message})
	return &Response{Kind: "Error", Body: b}
}

// MarshalJSON implements the json.Marshaler interface for Response
func (r Response) MarshalJSON() ([]byte, error) {
	switch {
	case r.Kind == "" && r.Body == nil:
		return []byte("null"), nil
	case r.Kind == "":
		return r.Body, nil
	case r.Body == nil:
		return json.Marshal(r.Kind)
	default:
		return json.Marshal(map[string]json.RawMessage{r.Kind: r.Body})
	}
}

// UnmarshalJSON implements the json.Unmarshaler interface for Response
func (r *Response) UnmarshalJSON(data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid json response")
	}
	if kind, body, ok := splitTagged(data); ok {
		r.Kind = kind
		r.Body = body
		return nil
	}
	r.Kind = ""
	r.Body = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
	return nil
}

// Decode unmarshals the response body into v
func (r *Response) Decode(v any) error {
	if r.Body == nil {
		return fmt.Errorf("response %q has no body", r.Kind)
	}
	return json.Unmarshal(r.Body, v)
}

// ServerError checks the response for the reserved error shape. A response is an
// error if it is tagged "Error" or if it is an object with an "error" key. The
// message is taken from the "message" field (or the value itself if it is a string).
func (r *Response) ServerError() (message string, isError bool) {
	var payload json.RawMessage
	switch {
	case r.Kind == "Error":
		payload = r.Body
	case r.Kind == "":
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(r.Body, &obj); err != nil {
			return "", false
		}
		p, ok := obj["error"]
		if !ok {
			return "", false
		}
		payload = p
	default:
		return "", false
	}
	return errorMessage(payload), true
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// errorMessage extracts the message of an error payload
func errorMessage(payload json.RawMessage) string {
	var s string
	if err := json.Unmarshal(payload, &s); err == nil && s != "" {
		return s
	}
	var withMessage struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &withMessage); err == nil && withMessage.Message != "" {
		return withMessage.Message
	}
	return "unknown error"
}

// splitTagged splits an externally tagged value into its variant name and payload.
// A bare string is a variant without payload, an object with a single capitalized
// key is a variant with payload. Everything else is not tagged.
func splitTagged(data []byte) (kind string, body json.RawMessage, ok bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "", nil, false
	}
	switch trimmed[0] {
	case '"':
		if err := json.Unmarshal(trimmed, &kind); err != nil || !isVariantName(kind) {
			return "", nil, false
		}
		return kind, nil, true
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil || len(obj) != 1 {
			return "", nil, false
		}
		for k, v := range obj {
			if !isVariantName(k) {
				return "", nil, false
			}
			return k, v, true
		}
	}
	return "", nil, false
}

// isVariantName reports whether s looks like a variant name (starts upper case)
func isVariantName(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}
