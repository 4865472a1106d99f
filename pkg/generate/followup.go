package generate

import (
	"bytes"
	"context"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"

	"github.com/go-go-golems/mindwell/pkg/conversation"
)

// Follow-up templates per structured message type. These phrase a short
// summary of what the structured payload holds and ask for one next step.
var followupTemplates = map[conversation.MessageType]string{
	conversation.MessageTypeContentList: `{{ if gt .ItemCount 0 -}}
I found {{ .ItemCount }} {{ if eq .ItemCount 1 }}item{{ else }}items{{ end }}{{ if .Topic }} about {{ .Topic }}{{ end }}. Would you like to try one of them?
{{- else -}}
I couldn't find anything{{ if .Topic }} about {{ .Topic }}{{ end }}. Would you like me to look for a different topic?
{{- end }}`,
	conversation.MessageTypeContentDetail: `Here it is. Would you like me to find something similar?`,
	conversation.MessageTypeBookingOptions: `{{ if gt .ItemCount 0 -}}
I found {{ .ItemCount }} available {{ if eq .ItemCount 1 }}option{{ else }}options{{ end }}. Which one should I book for you?
{{- else -}}
There are no open slots right now. Should I check different times?
{{- end }}`,
	conversation.MessageTypeBookingConfirmation: `Your session is booked{{ if .BookingRef }} (reference {{ .BookingRef }}){{ end }}. Is there anything you'd like to prepare before it?`,
}

// TemplateFollowupGenerator renders a deterministic follow-up question from
// the structured response summary. It is both the fallback behind LLM-based
// generation and the default in tests.
type TemplateFollowupGenerator struct {
	templates map[conversation.MessageType]*template.Template
}

func NewTemplateFollowupGenerator() (*TemplateFollowupGenerator, error) {
	g := &TemplateFollowupGenerator{
		templates: make(map[conversation.MessageType]*template.Template, len(followupTemplates)),
	}
	for mt, text := range followupTemplates {
		tmpl, err := template.New(string(mt)).Funcs(sprig.TxtFuncMap()).Parse(text)
		if err != nil {
			return nil, errors.Wrapf(err, "parse followup template for %q", mt)
		}
		g.templates[mt] = tmpl
	}
	return g, nil
}

func (g *TemplateFollowupGenerator) Followup(ctx context.Context, input FollowupInput) (string, error) {
	tmpl, ok := g.templates[input.MessageType]
	if !ok {
		return "", errors.Errorf("no followup template for message type %q", input.MessageType)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, input); err != nil {
		return "", errors.Wrap(err, "render followup")
	}
	return buf.String(), nil
}

var _ FollowupGenerator = (*TemplateFollowupGenerator)(nil)
