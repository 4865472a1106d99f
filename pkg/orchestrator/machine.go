package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/mindwell/pkg/conversation"
	"github.com/go-go-golems/mindwell/pkg/events"
	"github.com/go-go-golems/mindwell/pkg/generate"
	"github.com/go-go-golems/mindwell/pkg/safety"
	"github.com/go-go-golems/mindwell/pkg/schema"
	"github.com/go-go-golems/mindwell/pkg/tools"
)

const generatorFallbackText = "I'm having a little trouble answering right now. Could you rephrase, or try again in a moment?"

// Machine drives one conversation turn through the deterministic state
// machine: Orchestrate -> (ExecuteTools | GenerateFollowup | End),
// re-entering Orchestrate after tools. Steps are pure functions of a state
// snapshot; their deltas are merged sequentially, one step in flight per
// turn.
type Machine struct {
	generator  generate.Generator
	followup   generate.FollowupGenerator
	classifier safety.Classifier
	registry   tools.Registry
	invoker    *tools.Invoker
	validator  *schema.Registry

	// maxPasses caps Orchestrate entries per turn, guarding against a
	// generator that keeps requesting tools.
	maxPasses int
}

type Option func(*Machine)

func WithGenerator(g generate.Generator) Option {
	return func(m *Machine) { m.generator = g }
}

func WithFollowupGenerator(g generate.FollowupGenerator) Option {
	return func(m *Machine) { m.followup = g }
}

// WithClassifier sets the inline safety gate used on new user turns. In
// graph-embedded deployments this is the only gate; standalone deployments
// additionally wrap the turn in the circuit breaker.
func WithClassifier(c safety.Classifier) Option {
	return func(m *Machine) { m.classifier = c }
}

func WithRegistry(r tools.Registry) Option {
	return func(m *Machine) { m.registry = r }
}

func WithInvoker(i *tools.Invoker) Option {
	return func(m *Machine) { m.invoker = i }
}

func WithValidator(v *schema.Registry) Option {
	return func(m *Machine) { m.validator = v }
}

func WithMaxPasses(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.maxPasses = n
		}
	}
}

func New(opts ...Option) *Machine {
	m := &Machine{
		maxPasses: 5,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// RunTurn processes one user message to a terminal state. The prior state
// (or nil for a fresh conversation) is never mutated; the returned state is
// the accumulated result of the turn's deltas.
func (m *Machine) RunTurn(ctx context.Context, prior *conversation.State, userText string) (*conversation.State, error) {
	if m.generator == nil {
		return nil, errors.New("machine has no generator")
	}
	if m.registry == nil {
		return nil, errors.New("machine has no tool registry")
	}
	if m.validator == nil {
		return nil, errors.New("machine has no payload validator")
	}
	if m.invoker == nil {
		m.invoker = tools.NewInvoker(m.registry)
	}

	s := prior.Clone()
	if s == nil {
		s = conversation.NewState()
	}
	turnID := uuid.New().String()
	s.Apply(conversation.Delta{
		AppendMessages:   []*conversation.Message{conversation.NewChatMessage(conversation.RoleUser, userText)},
		FollowupQuestion: conversation.Ptr(""),
		LastError:        conversation.Ptr(""),
		Node:             conversation.Ptr(conversation.NodeOrchestrate),
	})

	events.PublishEventToContext(ctx, events.NewTurnStartedEvent(m.meta(turnID), userText))

	passes := 0
	for s.Node != conversation.NodeEnd {
		var (
			delta conversation.Delta
			err   error
		)
		switch s.Node {
		case conversation.NodeOrchestrate:
			passes++
			if passes > m.maxPasses {
				log.Warn().Int("max_passes", m.maxPasses).Msg("orchestrate pass cap reached")
				err := errors.Errorf("max orchestrate passes (%d) reached", m.maxPasses)
				events.PublishEventToContext(ctx, events.NewErrorEvent(m.meta(turnID), err))
				s.Apply(conversation.Delta{Node: conversation.Ptr(conversation.NodeEnd)})
				return s, err
			}
			delta, err = m.stepOrchestrate(ctx, s.Clone(), turnID)
		case conversation.NodeExecuteTools:
			delta, err = m.stepExecuteTools(ctx, s.Clone(), turnID)
		case conversation.NodeGenerateFollowup:
			delta, err = m.stepGenerateFollowup(ctx, s.Clone(), turnID)
		default:
			return s, errors.Errorf("unknown state machine node %q", s.Node)
		}
		if err != nil {
			// Steps handle collaborator failures internally; an error here
			// is a programming or context failure.
			events.PublishEventToContext(ctx, events.NewErrorEvent(m.meta(turnID), err))
			s.Apply(conversation.Delta{Node: conversation.Ptr(conversation.NodeEnd)})
			return s, err
		}
		s.Apply(delta)
	}

	events.PublishEventToContext(ctx, events.NewFinalEvent(m.meta(turnID), s.ResponseMessage, string(s.ResponseMessageType)))
	return s, nil
}

func (m *Machine) meta(turnID string) events.EventMetadata {
	return events.EventMetadata{ID: uuid.New(), TurnID: turnID}
}

// stepOrchestrate is both the entry and the resumption point of a turn.
func (m *Machine) stepOrchestrate(ctx context.Context, snap *conversation.State, turnID string) (conversation.Delta, error) {
	last := snap.Messages.LastMessage()

	// Inline safety gate: evaluated on new user turns before anything else,
	// so an emergency beats any queued tool calls.
	if m.classifier != nil && last != nil && last.Role == conversation.RoleUser {
		verdict, err := m.classifier.Classify(ctx, safety.Input{
			CurrentText:         last.Text,
			PriorHistorySummary: historySummary(snap.Messages),
		})
		if err != nil {
			// Ambiguity on the crisis path resolves to the strictest outcome.
			log.Error().Err(err).Msg("inline safety check failed, failing closed")
			events.PublishEventToContext(ctx, events.NewSafetyClassifierFailEvent(m.meta(turnID), err))
			verdict.IsEmergency = true
		}
		if verdict.IsEmergency {
			events.PublishEventToContext(ctx, events.NewSafetyTriggeredEvent(m.meta(turnID), "orchestrate"))
			return m.emergencyDelta(), nil
		}
	}

	reply, err := m.generator.Generate(ctx, snap.Messages, m.registry.List())
	if err != nil {
		log.Error().Err(err).Msg("response generator failed, substituting fallback")
		return conversation.Delta{
			AppendMessages:      []*conversation.Message{conversation.NewChatMessage(conversation.RoleAssistant, generatorFallbackText)},
			ResponseMessage:     conversation.Ptr(generatorFallbackText),
			ResponseMessageType: conversation.Ptr(conversation.MessageTypeText),
			ResponsePayload:     nilPayload(),
			LastError:           conversation.Ptr(err.Error()),
			Node:                conversation.Ptr(conversation.NodeEnd),
		}, nil
	}

	if reply.HasToolCalls() {
		return conversation.Delta{
			AppendMessages: []*conversation.Message{conversation.NewToolCallsMessage(reply.Text, reply.ToolCalls)},
			Node:           conversation.Ptr(conversation.NodeExecuteTools),
		}, nil
	}

	// Direct answer. When the immediately preceding message is a tool
	// result and a structured payload is already set, the generator's text
	// is commentary on that output: preserve the prior type/payload and ask
	// a follow-up.
	if last != nil && last.Role == conversation.RoleTool &&
		snap.ResponseMessageType.IsStructured() && len(snap.ResponsePayload) > 0 {
		return conversation.Delta{
			AppendMessages:  []*conversation.Message{conversation.NewChatMessage(conversation.RoleAssistant, reply.Text)},
			ResponseMessage: conversation.Ptr(reply.Text),
			Node:            conversation.Ptr(conversation.NodeGenerateFollowup),
		}, nil
	}

	return conversation.Delta{
		AppendMessages:      []*conversation.Message{conversation.NewChatMessage(conversation.RoleAssistant, reply.Text)},
		ResponseMessage:     conversation.Ptr(reply.Text),
		ResponseMessageType: conversation.Ptr(conversation.MessageTypeText),
		ResponsePayload:     nilPayload(),
		Node:                conversation.Ptr(conversation.NodeEnd),
	}, nil
}

func (m *Machine) emergencyDelta() conversation.Delta {
	payload := safety.FixedResponsePayload()
	return conversation.Delta{
		AppendMessages:      []*conversation.Message{conversation.NewChatMessage(conversation.RoleAssistant, safety.FixedResponseText())},
		Emergency:           conversation.Ptr(true),
		ResponseMessage:     conversation.Ptr(safety.FixedResponseText()),
		ResponseMessageType: conversation.Ptr(conversation.MessageTypeSafety),
		ResponsePayload:     conversation.Ptr(payload),
		Node:                conversation.Ptr(conversation.NodeEnd),
	}
}

// stepExecuteTools dispatches every pending call, appends results in
// request order, and merges the last successful result's validated
// projection into state. It always routes back to Orchestrate.
func (m *Machine) stepExecuteTools(ctx context.Context, snap *conversation.State, turnID string) (conversation.Delta, error) {
	calls := snap.Messages.PendingToolCalls()
	if len(calls) == 0 {
		log.Warn().Msg("execute-tools entered without pending tool calls")
		return conversation.Delta{Node: conversation.Ptr(conversation.NodeOrchestrate)}, nil
	}

	for _, call := range calls {
		events.PublishEventToContext(ctx, events.NewToolCallExecuteEvent(m.meta(turnID), events.ToolCall{
			ID: call.ID, Name: call.Name, Input: string(call.Arguments),
		}))
	}

	results := m.invoker.InvokeAll(ctx, calls)

	delta := conversation.Delta{Node: conversation.Ptr(conversation.NodeOrchestrate)}
	for i, res := range results {
		content := res.Content
		if !res.OK() {
			content = "Error: " + res.Error
		}
		delta.AppendMessages = append(delta.AppendMessages,
			conversation.NewToolResultMessage(res.ID, calls[i].Name, content))
		events.PublishEventToContext(ctx, events.NewToolCallExecutionResultEvent(m.meta(turnID), events.ToolResult{
			ID: res.ID, Result: content,
		}))
	}

	if last := lastSuccessful(results); last != nil {
		m.mergeToolResult(&delta, *last)
	}
	return delta, nil
}

func lastSuccessful(results []tools.Result) *tools.Result {
	for i := len(results) - 1; i >= 0; i-- {
		if results[i].OK() {
			return &results[i]
		}
	}
	return nil
}

// stepGenerateFollowup phrases a short continuation over the structured
// response. Failure clears the follow-up rather than failing the turn.
func (m *Machine) stepGenerateFollowup(ctx context.Context, snap *conversation.State, turnID string) (conversation.Delta, error) {
	delta := conversation.Delta{
		FollowupQuestion: conversation.Ptr(""),
		Node:             conversation.Ptr(conversation.NodeEnd),
	}
	if m.followup == nil {
		return delta, nil
	}

	question, err := m.followup.Followup(ctx, followupInput(snap))
	if err != nil {
		log.Warn().Err(err).Msg("followup generation failed, leaving followup empty")
		return delta, nil
	}
	delta.FollowupQuestion = conversation.Ptr(question)
	events.PublishEventToContext(ctx, events.NewFollowupEvent(m.meta(turnID), question))
	return delta, nil
}

func historySummary(messages conversation.Conversation) string {
	// The classifier only needs a short textual view of recent chat.
	const window = 6
	start := 0
	if len(messages) > window {
		start = len(messages) - window
	}
	return messages[start : len(messages)-1].GetSinglePrompt()
}

func nilPayload() *json.RawMessage {
	var empty json.RawMessage
	return &empty
}
