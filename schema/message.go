package schema

import (
	"time"

	"github.com/google/uuid"
)

// Role defines message roles.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleFunction  Role = "function"
)

// MessageID uniquely identifies a Message for ephemeral/promotion
// bookkeeping. The source tracks messages by object identity; Go values
// are copied across slice/map boundaries, so a Message instead carries an
// assigned ID at creation time (spec.md §9's design note).
type MessageID string

// NewMessageID mints a fresh message identity.
func NewMessageID() MessageID {
	return MessageID(uuid.NewString())
}

// Message is a typed conversational unit.
type Message struct {
	ID        MessageID              `json:"id"`
	Role      Role                   `json:"role"`
	Content   []ContentItem          `json:"content"`
	Name      string                 `json:"name,omitempty"` // tool name for Role == RoleFunction
	Extra     map[string]interface{} `json:"extra,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewTextMessage builds a single-content-item text message with a fresh ID.
func NewTextMessage(role Role, text string) Message {
	return Message{
		ID:        NewMessageID(),
		Role:      role,
		Content:   []ContentItem{Text(text)},
		Timestamp: time.Now(),
	}
}

// NewFunctionMessage builds a function-role reply, optionally paired to an
// assistant tool call via Extra["function_id"].
func NewFunctionMessage(name, functionID, text string) Message {
	msg := NewTextMessage(RoleFunction, text)
	msg.Name = name
	if functionID != "" {
		msg.SetExtra("function_id", functionID)
	}
	return msg
}

// Text concatenates all text content items, ignoring images.
func (m Message) Text() string {
	var out string
	for _, item := range m.Content {
		if item.Text != nil {
			out += *item.Text
		}
	}
	return out
}

// FunctionID returns Extra["function_id"] if present.
func (m Message) FunctionID() (string, bool) {
	if m.Extra == nil {
		return "", false
	}
	id, ok := m.Extra["function_id"].(string)
	return id, ok
}

// SetExtra sets an Extra metadata entry, allocating the map if needed.
func (m *Message) SetExtra(key string, value interface{}) {
	if m.Extra == nil {
		m.Extra = make(map[string]interface{})
	}
	m.Extra[key] = value
}

// Clone deep-copies a message so mutating the copy never touches the
// working context's original.
func (m Message) Clone() Message {
	clone := m
	clone.Content = append([]ContentItem(nil), m.Content...)
	if m.Extra != nil {
		clone.Extra = make(map[string]interface{}, len(m.Extra))
		for k, v := range m.Extra {
			clone.Extra[k] = v
		}
	}
	return clone
}

// ContentItem is a tagged union of text or image content (spec.md §9).
// Exactly one of Text/Image is set.
type ContentItem struct {
	Text  *string `json:"text,omitempty"`
	Image *string `json:"image,omitempty"` // filesystem path
}

// Text builds a text content item.
func Text(s string) ContentItem {
	return ContentItem{Text: &s}
}

// Image builds an image content item referencing a local file path.
func Image(path string) ContentItem {
	return ContentItem{Image: &path}
}

// IsImage reports whether this item carries an image reference.
func (c ContentItem) IsImage() bool {
	return c.Image != nil
}

// ToolCall represents a requested tool invocation parsed from an assistant
// message (produced by the external transport's DetectTool).
type ToolCall struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Args string `json:"args"` // raw JSON or string args, as DetectTool returns
}
