package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/mindwell/pkg/breaker"
	"github.com/go-go-golems/mindwell/pkg/conversation"
	"github.com/go-go-golems/mindwell/pkg/events"
	"github.com/go-go-golems/mindwell/pkg/generate"
	"github.com/go-go-golems/mindwell/pkg/orchestrator"
	"github.com/go-go-golems/mindwell/pkg/safety"
	"github.com/go-go-golems/mindwell/pkg/schema"
	"github.com/go-go-golems/mindwell/pkg/settings"
	"github.com/go-go-golems/mindwell/pkg/toolbox"
	"github.com/go-go-golems/mindwell/pkg/tools"
)

// logSink mirrors turn events onto the structured log so a chat session can
// be debugged with --log-level debug.
type logSink struct{}

func (logSink) PublishEvent(e events.Event) error {
	log.Debug().Str("event_type", string(e.Type())).Msg("turn event")
	return nil
}

func newChatCommand() *cobra.Command {
	var screenerOnly bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session on the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}
			machine, gate, err := buildEngine(cfg, screenerOnly)
			if err != nil {
				return err
			}
			return runChatLoop(cmd.Context(), machine, gate)
		},
	}
	cmd.Flags().BoolVar(&screenerOnly, "screener-only", false, "Use the offline keyword screener instead of the LLM classifier")
	return cmd
}

func buildEngine(cfg *settings.Settings, screenerOnly bool) (*orchestrator.Machine, *breaker.CircuitBreaker, error) {
	registry := tools.NewInMemoryRegistry()
	if err := toolbox.New().Register(registry); err != nil {
		return nil, nil, err
	}
	validator, err := schema.DefaultRegistry()
	if err != nil {
		return nil, nil, err
	}
	if err := safety.CheckFixedResponse(validator); err != nil {
		return nil, nil, err
	}

	var classifier safety.Classifier = safety.NewKeywordScreener()
	var generator generate.Generator
	var followup generate.FollowupGenerator

	if screenerOnly || cfg.OpenAI.APIKey == "" {
		if !screenerOnly {
			log.Warn().Msg("no OpenAI API key configured, using the offline screener and echo generator")
		}
		generator = echoGenerator()
		followup, err = generate.NewTemplateFollowupGenerator()
		if err != nil {
			return nil, nil, err
		}
	} else {
		clientCfg := go_openai.DefaultConfig(cfg.OpenAI.APIKey)
		if cfg.OpenAI.BaseURL != "" {
			clientCfg.BaseURL = cfg.OpenAI.BaseURL
		}
		client := go_openai.NewClientWithConfig(clientCfg)
		classifier = safety.NewLLMClassifier(client, safety.WithModel(cfg.OpenAI.ClassifierModel))
		generator = generate.NewOpenAIGenerator(client, generate.WithModel(cfg.OpenAI.Model))
		followup, err = generate.NewOpenAIFollowupGenerator(client, generate.WithModel(cfg.OpenAI.ClassifierModel))
		if err != nil {
			return nil, nil, err
		}
	}

	machine := orchestrator.New(
		orchestrator.WithGenerator(generator),
		orchestrator.WithFollowupGenerator(followup),
		orchestrator.WithClassifier(classifier),
		orchestrator.WithRegistry(registry),
		orchestrator.WithValidator(validator),
	)
	gate := breaker.New(classifier,
		breaker.WithDeadline(cfg.Breaker.Deadline),
		breaker.WithGrace(cfg.Breaker.Grace),
	)
	return machine, gate, nil
}

// echoGenerator keeps the chat loop usable without credentials.
func echoGenerator() generate.Generator {
	return generate.GeneratorFunc(func(ctx context.Context, history conversation.Conversation, defs []tools.Definition) (*generate.Reply, error) {
		last := history.LastMessage()
		if last == nil {
			return nil, errors.New("empty conversation")
		}
		return &generate.Reply{Text: "I hear you: " + last.Text}, nil
	})
}

func runChatLoop(ctx context.Context, machine *orchestrator.Machine, gate *breaker.CircuitBreaker) error {
	ctx = events.WithEventSinks(ctx, logSink{})
	scanner := bufio.NewScanner(os.Stdin)
	var state *conversation.State

	fmt.Println("mindwell chat. Type your message, or /quit to exit.")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		var next *conversation.State
		outcome := gate.Resolve(ctx, line, func(ctx context.Context) (string, error) {
			s, err := machine.RunTurn(ctx, state, line)
			if err != nil {
				return "", err
			}
			next = s
			return s.ResponseMessage, nil
		})

		if outcome.Emergency {
			// The gated turn result, if any, is discarded.
			state = applyEmergency(state, line)
			fmt.Println(outcome.Text)
			continue
		}
		if next != nil {
			state = next
		}
		fmt.Println(outcome.Text)
		if next != nil && next.FollowupQuestion != "" {
			fmt.Println(next.FollowupQuestion)
		}
	}
	return scanner.Err()
}

// applyEmergency records the safety turn on the conversation state so later
// turns carry the context.
func applyEmergency(prior *conversation.State, userText string) *conversation.State {
	s := prior.Clone()
	if s == nil {
		s = conversation.NewState()
	}
	payload := safety.FixedResponsePayload()
	s.Apply(conversation.Delta{
		AppendMessages: []*conversation.Message{
			conversation.NewChatMessage(conversation.RoleUser, userText),
			conversation.NewChatMessage(conversation.RoleAssistant, safety.FixedResponseText()),
		},
		Emergency:           conversation.Ptr(true),
		ResponseMessage:     conversation.Ptr(safety.FixedResponseText()),
		ResponseMessageType: conversation.Ptr(conversation.MessageTypeSafety),
		ResponsePayload:     &payload,
		Node:                conversation.Ptr(conversation.NodeEnd),
	})
	return s
}
