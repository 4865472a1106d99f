package conversation

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ToolResult is the envelope a tool is expected (but not required) to return
// as its serialized string content. Payload shape is determined by
// MessageType and must validate against the registered schema before it is
// merged into state.
type ToolResult struct {
	MessageType MessageType     `json:"messageType"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	TextContent string          `json:"textContent"`
}

// ParseToolResult decodes a tool's string content into a ToolResult. Parse
// failure is a recoverable condition: callers fall back to plain text.
func ParseToolResult(content string) (*ToolResult, error) {
	var tr ToolResult
	if err := json.Unmarshal([]byte(content), &tr); err != nil {
		return nil, errors.Wrap(err, "tool content is not a result envelope")
	}
	if tr.MessageType == "" {
		return nil, errors.New("tool result has no message type")
	}
	if !tr.MessageType.Valid() {
		return nil, errors.Errorf("unknown message type %q", tr.MessageType)
	}
	return &tr, nil
}

// Serialize renders the envelope as the string a tool handler returns.
func (tr *ToolResult) Serialize() (string, error) {
	b, err := json.Marshal(tr)
	if err != nil {
		return "", errors.Wrap(err, "serialize tool result")
	}
	return string(b), nil
}
