// Package message defines the conversation data model shared by the
// compaction and pruning engines: an ordered list of role-tagged messages,
// each carrying a sequence of typed content parts.
package message

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a message. Unknown roles are permitted
// structurally; consumers treat them as opaque.
type Role string

const (
	User      Role = "user"
	Assistant Role = "assistant"
	Tool      Role = "tool"
)

// Part is a single typed content block inside a message.
type Part interface {
	isPart()
}

// TextPart is plain text content.
type TextPart struct {
	Text string
}

// ImagePart references image content. Images are budgeted at a fixed cost
// and never physically measured or altered.
type ImagePart struct {
	URL       string
	MediaType string
}

// ThinkingPart is assistant reasoning content.
type ThinkingPart struct {
	Thinking string
}

// ToolCallPart is an assistant's request to invoke a tool. Input is the
// raw arguments payload; it is immutable once created.
type ToolCallPart struct {
	ID    string
	Name  string
	Input any
}

func (TextPart) isPart()     {}
func (ImagePart) isPart()    {}
func (ThinkingPart) isPart() {}
func (ToolCallPart) isPart() {}

// Message is one entry of a conversation transcript. The order of a
// []Message is conversation order; engines preserve the relative order of
// every message they retain.
type Message struct {
	ID        string
	Role      Role
	ToolName  string // originating tool, set on Tool role messages
	Parts     []Part
	CreatedAt int64 // unix milliseconds
}

// New returns a message with a fresh ID and timestamp.
func New(role Role, parts ...Part) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Parts:     parts,
		CreatedAt: time.Now().UnixMilli(),
	}
}

// NewUserText returns a user message holding a single text part.
func NewUserText(text string) Message {
	return New(User, TextPart{Text: text})
}

// NewAssistantText returns an assistant message holding a single text part.
func NewAssistantText(text string) Message {
	return New(Assistant, TextPart{Text: text})
}

// NewToolResult returns a tool result message for the named tool.
func NewToolResult(toolName string, parts ...Part) Message {
	m := New(Tool, parts...)
	m.ToolName = toolName
	return m
}

// Text returns the concatenation of all text parts, newline separated.
// Thinking, image, and tool call parts do not contribute.
func (m Message) Text() string {
	var sb strings.Builder
	first := true
	for _, p := range m.Parts {
		t, ok := p.(TextPart)
		if !ok {
			continue
		}
		if !first {
			sb.WriteByte('\n')
		}
		sb.WriteString(t.Text)
		first = false
	}
	return sb.String()
}

// HasImage reports whether any part is an image.
func (m Message) HasImage() bool {
	for _, p := range m.Parts {
		if _, ok := p.(ImagePart); ok {
			return true
		}
	}
	return false
}

// WithText returns a copy of the message whose parts are replaced by a
// single text part. The receiver is not modified.
func (m Message) WithText(text string) Message {
	out := m
	out.Parts = []Part{TextPart{Text: text}}
	return out
}
