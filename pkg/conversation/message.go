package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
	RoleTool      Role = "tool"
)

// ToolCall is a request by the assistant to execute a named tool.
// IDs are unique within one assistant turn.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is a single entry in the conversation history. A message carries
// either chat text, a batch of tool calls (assistant), or a tool result
// (role tool, with ToolCallID/ToolName identifying the originating call).
type Message struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
	Text string    `json:"text,omitempty"`

	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallID,omitempty"`
	ToolName   string     `json:"toolName,omitempty"`

	Time time.Time `json:"time"`
}

type MessageOption func(*Message)

func WithID(id uuid.UUID) MessageOption {
	return func(m *Message) {
		m.ID = id
	}
}

func WithTime(t time.Time) MessageOption {
	return func(m *Message) {
		m.Time = t
	}
}

func newMessage(role Role, options ...MessageOption) *Message {
	m := &Message{
		ID:   uuid.New(),
		Role: role,
		Time: time.Now(),
	}
	for _, option := range options {
		option(m)
	}
	return m
}

func NewChatMessage(role Role, text string, options ...MessageOption) *Message {
	m := newMessage(role, options...)
	m.Text = text
	return m
}

// NewToolCallsMessage builds the assistant message carrying a batch of tool
// calls. Text may be empty; some providers attach commentary alongside calls.
func NewToolCallsMessage(text string, calls []ToolCall, options ...MessageOption) *Message {
	m := newMessage(RoleAssistant, options...)
	m.Text = text
	m.ToolCalls = append([]ToolCall{}, calls...)
	return m
}

func NewToolResultMessage(callID, toolName, content string, options ...MessageOption) *Message {
	m := newMessage(RoleTool, options...)
	m.Text = content
	m.ToolCallID = callID
	m.ToolName = toolName
	return m
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := *m
	if len(m.ToolCalls) > 0 {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, c := range m.ToolCalls {
			out.ToolCalls[i] = c
			if c.Arguments != nil {
				out.ToolCalls[i].Arguments = append(json.RawMessage{}, c.Arguments...)
			}
		}
	}
	return &out
}

func (m *Message) View() string {
	if len(m.ToolCalls) > 0 {
		names := make([]string, len(m.ToolCalls))
		for i, c := range m.ToolCalls {
			names[i] = c.Name
		}
		return fmt.Sprintf("[%s] tool calls: %s", m.Role, strings.Join(names, ", "))
	}
	return fmt.Sprintf("[%s]: %s", m.Role, strings.TrimRight(m.Text, "\n"))
}

type Conversation []*Message

func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	for i, m := range c {
		out[i] = m.Clone()
	}
	return out
}

// LastMessage returns the final message in the history, or nil when empty.
func (c Conversation) LastMessage() *Message {
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1]
}

// PendingToolCalls returns the tool calls of the last message when it is an
// assistant message carrying calls that have not been answered yet.
func (c Conversation) PendingToolCalls() []ToolCall {
	last := c.LastMessage()
	if last == nil || last.Role != RoleAssistant || len(last.ToolCalls) == 0 {
		return nil
	}
	return last.ToolCalls
}

// GetSinglePrompt concatenates chat messages into one prompt string, used by
// collaborators that want a flat textual view of the history.
func (c Conversation) GetSinglePrompt() string {
	if len(c) == 0 {
		return ""
	}
	if len(c) == 1 && len(c[0].ToolCalls) == 0 {
		return c[0].Text
	}
	prompt := ""
	for _, m := range c {
		if len(m.ToolCalls) > 0 || m.Text == "" {
			continue
		}
		prompt += fmt.Sprintf("[%s]: %s\n", m.Role, m.Text)
	}
	return prompt
}
