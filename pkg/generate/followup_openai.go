package generate

import (
	"bytes"
	"context"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

const followupPromptTemplate = `You are phrasing one short follow-up question for a mental-wellness chat.
The assistant just returned a structured response of type {{ .MessageType }}.
{{- if gt .ItemCount 0 }}
It contains {{ .ItemCount }} {{ if eq .ItemCount 1 }}item{{ else }}items{{ end }}{{ if .Topic }} about {{ .Topic }}{{ end }}.
{{- else if .Topic }}
Nothing was found about {{ .Topic }}.
{{- end }}
{{- if .BookingRef }}
A session was booked with reference {{ .BookingRef }}.
{{- end }}
{{- if .Language }}
Answer in language: {{ .Language }}.
{{- end }}
Write exactly one warm sentence that summarizes this and asks the user for one next step.`

// OpenAIFollowupGenerator phrases the follow-up with a chat model, with the
// deterministic template generator as its failure fallback so a followup is
// still produced when the model call fails.
type OpenAIFollowupGenerator struct {
	client   *go_openai.Client
	model    string
	prompt   *template.Template
	fallback *TemplateFollowupGenerator
}

func NewOpenAIFollowupGenerator(client *go_openai.Client, opts ...OpenAIOption) (*OpenAIFollowupGenerator, error) {
	prompt, err := template.New("followup").Funcs(sprig.TxtFuncMap()).Parse(followupPromptTemplate)
	if err != nil {
		return nil, errors.Wrap(err, "parse followup prompt template")
	}
	fallback, err := NewTemplateFollowupGenerator()
	if err != nil {
		return nil, err
	}

	inner := &OpenAIGenerator{model: go_openai.GPT4oMini}
	for _, opt := range opts {
		if opt != nil {
			opt(inner)
		}
	}
	return &OpenAIFollowupGenerator{
		client:   client,
		model:    inner.model,
		prompt:   prompt,
		fallback: fallback,
	}, nil
}

func (g *OpenAIFollowupGenerator) Followup(ctx context.Context, input FollowupInput) (string, error) {
	question, err := g.generate(ctx, input)
	if err != nil {
		log.Warn().Err(err).Msg("llm followup failed, using template fallback")
		return g.fallback.Followup(ctx, input)
	}
	return question, nil
}

func (g *OpenAIFollowupGenerator) generate(ctx context.Context, input FollowupInput) (string, error) {
	if g.client == nil {
		return "", errors.New("followup generator has no client")
	}

	var buf bytes.Buffer
	if err := g.prompt.Execute(&buf, input); err != nil {
		return "", errors.Wrap(err, "render followup prompt")
	}

	resp, err := g.client.CreateChatCompletion(ctx, go_openai.ChatCompletionRequest{
		Model:     g.model,
		MaxTokens: 80,
		Messages: []go_openai.ChatCompletionMessage{
			{Role: go_openai.ChatMessageRoleUser, Content: buf.String()},
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "followup completion failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("followup completion returned no choices")
	}
	question := strings.TrimSpace(resp.Choices[0].Message.Content)
	if question == "" {
		return "", errors.New("followup completion returned empty text")
	}
	return question, nil
}

var _ FollowupGenerator = (*OpenAIFollowupGenerator)(nil)
