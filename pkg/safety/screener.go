package safety

import (
	"context"
	"strings"
)

// crisisMarkers is a deliberately broad list of phrases that trigger the
// emergency path on substring match. The screener is a deterministic first
// gate; the LLM classifier covers phrasing the list cannot.
var crisisMarkers = []string{
	"kill myself",
	"end my life",
	"suicide",
	"suicidal",
	"want to die",
	"don't want to live",
	"hurt myself",
	"harm myself",
	"self harm",
	"self-harm",
	"no reason to live",
	"better off dead",
}

// KeywordScreener classifies by substring match against a fixed marker
// list. It never errors and resolves immediately, which also makes it the
// classifier of choice in tests.
type KeywordScreener struct {
	markers []string
}

func NewKeywordScreener() *KeywordScreener {
	return &KeywordScreener{markers: crisisMarkers}
}

// NewKeywordScreenerWithMarkers overrides the marker list, e.g. for
// language-specific deployments.
func NewKeywordScreenerWithMarkers(markers []string) *KeywordScreener {
	return &KeywordScreener{markers: markers}
}

func (s *KeywordScreener) Classify(ctx context.Context, input Input) (Verdict, error) {
	text := strings.ToLower(input.CurrentText)
	for _, marker := range s.markers {
		if strings.Contains(text, marker) {
			return Verdict{IsEmergency: true}, nil
		}
	}
	return Verdict{}, nil
}

var _ Classifier = (*KeywordScreener)(nil)
