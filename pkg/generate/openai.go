package generate

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/mindwell/pkg/conversation"
	"github.com/go-go-golems/mindwell/pkg/tools"
)

const systemPrompt = `You are a supportive mental-wellness companion. You listen, answer
briefly and warmly, and when the user wants material or a session you use the available
tools (content search, booking) instead of inventing results. Never give medical advice.`

// OpenAIGenerator implements Generator on the OpenAI chat completion API.
type OpenAIGenerator struct {
	client *go_openai.Client
	model  string
}

type OpenAIOption func(*OpenAIGenerator)

func WithModel(model string) OpenAIOption {
	return func(g *OpenAIGenerator) { g.model = model }
}

func NewOpenAIGenerator(client *go_openai.Client, opts ...OpenAIOption) *OpenAIGenerator {
	g := &OpenAIGenerator{
		client: client,
		model:  go_openai.GPT4o,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func (g *OpenAIGenerator) Generate(ctx context.Context, history conversation.Conversation, defs []tools.Definition) (*Reply, error) {
	if g.client == nil {
		return nil, errors.New("generator has no client")
	}

	req := go_openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: makeCompletionMessages(history),
		Tools:    makeToolDeclarations(defs),
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		calls := make([]conversation.ToolCall, 0, len(msg.ToolCalls))
		for _, tc := range msg.ToolCalls {
			calls = append(calls, conversation.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			})
		}
		log.Debug().Int("tool_calls", len(calls)).Msg("generator requested tool calls")
		return &Reply{Text: msg.Content, ToolCalls: calls}, nil
	}

	return &Reply{Text: msg.Content}, nil
}

// makeCompletionMessages converts the conversation history into OpenAI chat
// messages, placing assistant tool_calls messages and their tool results in
// the order the history records them.
func makeCompletionMessages(history conversation.Conversation) []go_openai.ChatCompletionMessage {
	msgs := make([]go_openai.ChatCompletionMessage, 0, len(history)+1)
	msgs = append(msgs, go_openai.ChatCompletionMessage{
		Role:    go_openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})

	for _, m := range history {
		switch {
		case len(m.ToolCalls) > 0:
			calls := make([]go_openai.ToolCall, 0, len(m.ToolCalls))
			for _, c := range m.ToolCalls {
				calls = append(calls, go_openai.ToolCall{
					ID:   c.ID,
					Type: go_openai.ToolTypeFunction,
					Function: go_openai.FunctionCall{
						Name:      c.Name,
						Arguments: string(c.Arguments),
					},
				})
			}
			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:      go_openai.ChatMessageRoleAssistant,
				Content:   m.Text,
				ToolCalls: calls,
			})
		case m.Role == conversation.RoleTool:
			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:       go_openai.ChatMessageRoleTool,
				Content:    m.Text,
				ToolCallID: m.ToolCallID,
			})
		default:
			msgs = append(msgs, go_openai.ChatCompletionMessage{
				Role:    string(m.Role),
				Content: m.Text,
			})
		}
	}
	return msgs
}

func makeToolDeclarations(defs []tools.Definition) []go_openai.Tool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]go_openai.Tool, 0, len(defs))
	for _, def := range defs {
		out = append(out, go_openai.Tool{
			Type: go_openai.ToolTypeFunction,
			Function: &go_openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return out
}

var _ Generator = (*OpenAIGenerator)(nil)
