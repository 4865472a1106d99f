package safety

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

const classifierSystemPrompt = `You are a crisis detection classifier for a mental-wellness companion.
Given the user's latest message (and optionally a summary of recent conversation),
decide whether the user may be in crisis: expressing intent to harm themselves or
others, suicidal ideation, or acute distress requiring immediate human help.

Answer with exactly one word: YES or NO.`

// LLMClassifier asks a chat model for a one-word crisis verdict. Anything
// other than a clean YES/NO answer is an error; the breaker converts
// classifier errors into a positive verdict.
type LLMClassifier struct {
	client  *go_openai.Client
	model   string
	timeout time.Duration
}

type LLMClassifierOption func(*LLMClassifier)

func WithModel(model string) LLMClassifierOption {
	return func(c *LLMClassifier) { c.model = model }
}

func WithTimeout(d time.Duration) LLMClassifierOption {
	return func(c *LLMClassifier) { c.timeout = d }
}

func NewLLMClassifier(client *go_openai.Client, opts ...LLMClassifierOption) *LLMClassifier {
	c := &LLMClassifier{
		client:  client,
		model:   go_openai.GPT4oMini,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *LLMClassifier) Classify(ctx context.Context, input Input) (Verdict, error) {
	if c.client == nil {
		return Verdict{}, errors.New("classifier has no client")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	userContent := input.CurrentText
	if input.PriorHistorySummary != "" {
		userContent = "Recent conversation:\n" + input.PriorHistorySummary + "\n\nLatest message:\n" + input.CurrentText
	}

	resp, err := c.client.CreateChatCompletion(ctx, go_openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		MaxTokens:   4,
		Messages: []go_openai.ChatCompletionMessage{
			{Role: go_openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: go_openai.ChatMessageRoleUser, Content: userContent},
		},
	})
	if err != nil {
		return Verdict{}, errors.Wrap(err, "crisis classification request failed")
	}
	if len(resp.Choices) == 0 {
		return Verdict{}, errors.New("crisis classification returned no choices")
	}

	answer := strings.ToUpper(strings.TrimSpace(resp.Choices[0].Message.Content))
	answer = strings.Trim(answer, ".!")
	switch answer {
	case "YES":
		return Verdict{IsEmergency: true}, nil
	case "NO":
		return Verdict{}, nil
	default:
		log.Warn().Str("answer", resp.Choices[0].Message.Content).Msg("crisis classifier returned malformed output")
		return Verdict{}, errors.Errorf("malformed classifier output: %q", answer)
	}
}

var _ Classifier = (*LLMClassifier)(nil)
