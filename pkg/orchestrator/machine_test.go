package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/mindwell/pkg/conversation"
	"github.com/go-go-golems/mindwell/pkg/generate"
	"github.com/go-go-golems/mindwell/pkg/safety"
	"github.com/go-go-golems/mindwell/pkg/schema"
	"github.com/go-go-golems/mindwell/pkg/tools"
)

type scriptedGenerator struct {
	replies []*generate.Reply
	errs    []error
	calls   int
}

func (g *scriptedGenerator) Generate(ctx context.Context, history conversation.Conversation, defs []tools.Definition) (*generate.Reply, error) {
	i := g.calls
	g.calls++
	if i < len(g.errs) && g.errs[i] != nil {
		return nil, g.errs[i]
	}
	if i >= len(g.replies) {
		return &generate.Reply{Text: "nothing more to say"}, nil
	}
	return g.replies[i], nil
}

type failingFollowup struct{}

func (failingFollowup) Followup(ctx context.Context, input generate.FollowupInput) (string, error) {
	return "", fmt.Errorf("followup model unavailable")
}

func contentListEnvelope(t *testing.T, topic string, items []conversation.ContentItem) string {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"items": items, "topic": topic})
	require.NoError(t, err)
	s, err := (&conversation.ToolResult{
		MessageType: conversation.MessageTypeContentList,
		Payload:     payload,
		TextContent: fmt.Sprintf("Found %d items about %s", len(items), topic),
	}).Serialize()
	require.NoError(t, err)
	return s
}

func newTestMachine(t *testing.T, gen generate.Generator, classifier safety.Classifier, reg tools.Registry) *Machine {
	t.Helper()
	followup, err := generate.NewTemplateFollowupGenerator()
	require.NoError(t, err)
	return New(
		WithGenerator(gen),
		WithFollowupGenerator(followup),
		WithClassifier(classifier),
		WithRegistry(reg),
		WithValidator(schema.MustDefaultRegistry()),
	)
}

func TestDirectAnswerTerminatesAfterOnePass(t *testing.T) {
	gen := &scriptedGenerator{replies: []*generate.Reply{{Text: "you're welcome"}}}
	m := newTestMachine(t, gen, safety.NewKeywordScreener(), tools.NewInMemoryRegistry())

	s, err := m.RunTurn(context.Background(), nil, "thanks for earlier")
	require.NoError(t, err)

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, conversation.NodeEnd, s.Node)
	assert.Equal(t, "you're welcome", s.ResponseMessage)
	assert.Equal(t, conversation.MessageTypeText, s.ResponseMessageType)
	assert.Empty(t, s.ResponsePayload)
	assert.False(t, s.Emergency)
	require.Len(t, s.Messages, 2)
}

func TestEmergencyShortCircuitBypassesGeneratorAndTools(t *testing.T) {
	gen := &scriptedGenerator{replies: []*generate.Reply{{
		ToolCalls: []conversation.ToolCall{{ID: "call-1", Name: "search_content"}},
	}}}
	m := newTestMachine(t, gen, safety.NewKeywordScreener(), tools.NewInMemoryRegistry())

	s, err := m.RunTurn(context.Background(), nil, "I can't go on, I want to end my life")
	require.NoError(t, err)

	assert.Equal(t, 0, gen.calls, "generator must not run on the emergency path")
	assert.True(t, s.Emergency)
	assert.Equal(t, conversation.MessageTypeSafety, s.ResponseMessageType)
	assert.Equal(t, safety.FixedResponseText(), s.ResponseMessage)
	assert.NotEmpty(t, s.ResponsePayload)
	assert.Empty(t, s.FollowupQuestion)
}

func TestInlineClassifierErrorFailsClosed(t *testing.T) {
	gen := &scriptedGenerator{replies: []*generate.Reply{{Text: "normal answer"}}}
	classifier := safety.ClassifierFunc(func(ctx context.Context, input safety.Input) (safety.Verdict, error) {
		return safety.Verdict{}, fmt.Errorf("classifier backend down")
	})
	m := newTestMachine(t, gen, classifier, tools.NewInMemoryRegistry())

	s, err := m.RunTurn(context.Background(), nil, "hello")
	require.NoError(t, err)

	assert.True(t, s.Emergency)
	assert.Equal(t, conversation.MessageTypeSafety, s.ResponseMessageType)
	assert.Equal(t, 0, gen.calls)
}

func TestToolRoundTripProjectsAndAsksFollowup(t *testing.T) {
	items := []conversation.ContentItem{
		{ID: "c1", Title: "Body scan", Kind: "meditation"},
		{ID: "c2", Title: "Sleep hygiene basics", Kind: "article"},
	}
	reg := tools.NewInMemoryRegistry()
	envelope := contentListEnvelope(t, "sleep", items)
	require.NoError(t, reg.Register(tools.Definition{
		Name:        "search_content",
		Description: "Search the content catalog",
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			return envelope, nil
		},
	}))

	gen := &scriptedGenerator{replies: []*generate.Reply{
		{ToolCalls: []conversation.ToolCall{
			{ID: "call-1", Name: "search_content", Arguments: json.RawMessage(`{"topic":"sleep"}`)},
		}},
		{Text: "Here are a couple of things that could help you wind down."},
	}}
	m := newTestMachine(t, gen, safety.NewKeywordScreener(), reg)

	s, err := m.RunTurn(context.Background(), nil, "I have trouble sleeping, any material?")
	require.NoError(t, err)

	assert.Equal(t, 2, gen.calls)
	assert.Equal(t, conversation.MessageTypeContentList, s.ResponseMessageType)
	assert.Equal(t, "Here are a couple of things that could help you wind down.", s.ResponseMessage)
	assert.Equal(t, items, s.ContentItems)
	assert.Equal(t, "sleep", s.ContentTopic)
	assert.Contains(t, s.FollowupQuestion, "2 items")

	// user, assistant(tool calls), tool result, assistant commentary
	require.Len(t, s.Messages, 4)
	assert.Equal(t, conversation.RoleTool, s.Messages[2].Role)
}

func TestToolResultOrderingMatchesRequestOrder(t *testing.T) {
	reg := tools.NewInMemoryRegistry()
	delays := map[string]time.Duration{"tool_a": 50 * time.Millisecond, "tool_b": 25 * time.Millisecond, "tool_c": 0}
	for name, delay := range delays {
		name, delay := name, delay
		require.NoError(t, reg.Register(tools.Definition{
			Name:        name,
			Description: "test tool",
			Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
				time.Sleep(delay)
				return "result of " + name, nil
			},
		}))
	}

	gen := &scriptedGenerator{replies: []*generate.Reply{
		{ToolCalls: []conversation.ToolCall{
			{ID: "call-a", Name: "tool_a"},
			{ID: "call-b", Name: "tool_b"},
			{ID: "call-c", Name: "tool_c"},
		}},
		{Text: "done"},
	}}
	m := New(
		WithGenerator(gen),
		WithClassifier(safety.NewKeywordScreener()),
		WithRegistry(reg),
		WithValidator(schema.MustDefaultRegistry()),
		WithInvoker(tools.NewInvoker(reg, tools.WithMaxParallel(3))),
	)

	s, err := m.RunTurn(context.Background(), nil, "run them all")
	require.NoError(t, err)

	// user, assistant(calls), tool x3, assistant text
	require.Len(t, s.Messages, 6)
	assert.Equal(t, "call-a", s.Messages[2].ToolCallID)
	assert.Equal(t, "call-b", s.Messages[3].ToolCallID)
	assert.Equal(t, "call-c", s.Messages[4].ToolCallID)
	assert.Equal(t, "result of tool_a", s.Messages[2].Text)
}

func TestUnknownToolContinuesWithoutThrowing(t *testing.T) {
	gen := &scriptedGenerator{replies: []*generate.Reply{
		{ToolCalls: []conversation.ToolCall{{ID: "call-1", Name: "fetch_x"}}},
		{Text: "I couldn't look that up, sorry."},
	}}
	m := newTestMachine(t, gen, safety.NewKeywordScreener(), tools.NewInMemoryRegistry())

	s, err := m.RunTurn(context.Background(), nil, "fetch it")
	require.NoError(t, err)

	assert.Equal(t, 2, gen.calls, "turn must re-enter orchestrate after the failed tool")
	require.Len(t, s.Messages, 4)
	assert.Equal(t, conversation.RoleTool, s.Messages[2].Role)
	assert.Contains(t, s.Messages[2].Text, "not found")
	assert.Equal(t, conversation.MessageTypeText, s.ResponseMessageType)
}

func TestInvalidPayloadLeavesPriorResponseUntouched(t *testing.T) {
	prior := conversation.NewState()
	priorPayload := json.RawMessage(`{"items":[{"id":"c1","title":"Old","kind":"article"}],"topic":"stress"}`)
	prior.Apply(conversation.Delta{
		ResponseMessage:     conversation.Ptr("previous good response"),
		ResponseMessageType: conversation.Ptr(conversation.MessageTypeContentList),
		ResponsePayload:     &priorPayload,
	})

	reg := tools.NewInMemoryRegistry()
	// Envelope whose payload is missing the required topic field.
	broken, err := (&conversation.ToolResult{
		MessageType: conversation.MessageTypeContentList,
		Payload:     json.RawMessage(`{"items":[{"id":"c2","title":"New","kind":"article"}]}`),
		TextContent: "should never be merged",
	}).Serialize()
	require.NoError(t, err)
	require.NoError(t, reg.Register(tools.Definition{
		Name:        "search_content",
		Description: "returns an invalid payload",
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			return broken, nil
		},
	}))

	gen := &scriptedGenerator{replies: []*generate.Reply{
		{ToolCalls: []conversation.ToolCall{{ID: "call-1", Name: "search_content"}}},
		{Text: "hmm, let me think"},
	}}
	m := newTestMachine(t, gen, safety.NewKeywordScreener(), reg)

	s, err := m.RunTurn(context.Background(), prior, "search again")
	require.NoError(t, err)

	assert.Equal(t, conversation.MessageTypeContentList, s.ResponseMessageType)
	assert.JSONEq(t, string(priorPayload), string(s.ResponsePayload))
	assert.NotEqual(t, "should never be merged", s.ResponseMessage)
	assert.Contains(t, s.LastError, "invalid payload")
}

func TestGeneratorFailureSubstitutesFallback(t *testing.T) {
	gen := &scriptedGenerator{errs: []error{fmt.Errorf("model overloaded")}}
	m := newTestMachine(t, gen, safety.NewKeywordScreener(), tools.NewInMemoryRegistry())

	s, err := m.RunTurn(context.Background(), nil, "hello")
	require.NoError(t, err)

	assert.Equal(t, conversation.MessageTypeText, s.ResponseMessageType)
	assert.NotEmpty(t, s.ResponseMessage)
	assert.Contains(t, s.LastError, "model overloaded")
	assert.Equal(t, conversation.NodeEnd, s.Node)
}

func TestFollowupFailureClearsQuestionAndTerminates(t *testing.T) {
	items := []conversation.ContentItem{{ID: "c1", Title: "Body scan", Kind: "meditation"}}
	reg := tools.NewInMemoryRegistry()
	envelope := contentListEnvelope(t, "sleep", items)
	require.NoError(t, reg.Register(tools.Definition{
		Name:        "search_content",
		Description: "search",
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			return envelope, nil
		},
	}))

	gen := &scriptedGenerator{replies: []*generate.Reply{
		{ToolCalls: []conversation.ToolCall{{ID: "call-1", Name: "search_content"}}},
		{Text: "commentary"},
	}}
	m := New(
		WithGenerator(gen),
		WithFollowupGenerator(failingFollowup{}),
		WithClassifier(safety.NewKeywordScreener()),
		WithRegistry(reg),
		WithValidator(schema.MustDefaultRegistry()),
	)

	s, err := m.RunTurn(context.Background(), nil, "material please")
	require.NoError(t, err)

	assert.Empty(t, s.FollowupQuestion)
	assert.Equal(t, conversation.NodeEnd, s.Node)
	assert.Equal(t, conversation.MessageTypeContentList, s.ResponseMessageType)
}

func TestMaxPassesCapStopsToolLoops(t *testing.T) {
	reg := tools.NewInMemoryRegistry()
	require.NoError(t, reg.Register(tools.Definition{
		Name:        "noop",
		Description: "does nothing",
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			return "ok", nil
		},
	}))

	// A generator that always wants another round of tools.
	gen := generate.GeneratorFunc(func(ctx context.Context, history conversation.Conversation, defs []tools.Definition) (*generate.Reply, error) {
		return &generate.Reply{ToolCalls: []conversation.ToolCall{{ID: "call-x", Name: "noop"}}}, nil
	})
	m := New(
		WithGenerator(gen),
		WithClassifier(safety.NewKeywordScreener()),
		WithRegistry(reg),
		WithValidator(schema.MustDefaultRegistry()),
		WithMaxPasses(3),
	)

	s, err := m.RunTurn(context.Background(), nil, "loop forever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max orchestrate passes")
	assert.Equal(t, conversation.NodeEnd, s.Node)
}

func TestPriorStateIsNotMutated(t *testing.T) {
	prior := conversation.NewState()
	prior.Apply(conversation.Delta{
		AppendMessages: []*conversation.Message{conversation.NewChatMessage(conversation.RoleUser, "earlier turn")},
	})

	gen := &scriptedGenerator{replies: []*generate.Reply{{Text: "fine"}}}
	m := newTestMachine(t, gen, safety.NewKeywordScreener(), tools.NewInMemoryRegistry())

	_, err := m.RunTurn(context.Background(), prior, "new turn")
	require.NoError(t, err)

	require.Len(t, prior.Messages, 1)
	assert.Equal(t, "earlier turn", prior.Messages[0].Text)
}
