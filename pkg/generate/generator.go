package generate

import (
	"context"

	"github.com/go-go-golems/mindwell/pkg/conversation"
	"github.com/go-go-golems/mindwell/pkg/tools"
)

// Reply is what a response generator produces for one orchestration pass:
// either a batch of tool calls or a final text answer, never both.
type Reply struct {
	Text      string
	ToolCalls []conversation.ToolCall
}

func (r *Reply) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// Generator is the response-generation collaborator boundary. Given the
// full ordered message history and the available tool definitions, it
// returns a Reply. Implementations are swappable without changing
// orchestration logic.
type Generator interface {
	Generate(ctx context.Context, history conversation.Conversation, defs []tools.Definition) (*Reply, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, history conversation.Conversation, defs []tools.Definition) (*Reply, error)

func (f GeneratorFunc) Generate(ctx context.Context, history conversation.Conversation, defs []tools.Definition) (*Reply, error) {
	return f(ctx, history, defs)
}

// FollowupInput summarizes what the current structured response contains so
// a follow-up generator can phrase a short natural continuation.
type FollowupInput struct {
	MessageType conversation.MessageType
	ItemCount   int
	Topic       string
	BookingRef  string
	Language    string
}

// FollowupGenerator builds the short continuation asked after structured
// output: summarize what happened and request one next step.
type FollowupGenerator interface {
	Followup(ctx context.Context, input FollowupInput) (string, error)
}
