package breaker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/mindwell/pkg/events"
	"github.com/go-go-golems/mindwell/pkg/safety"
)

type capturingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *capturingSink) PublishEvent(e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *capturingSink) byType(t events.EventType) []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Event
	for _, e := range s.events {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

func delayedClassifier(verdict bool, err error, delay time.Duration) safety.Classifier {
	return safety.ClassifierFunc(func(ctx context.Context, input safety.Input) (safety.Verdict, error) {
		time.Sleep(delay)
		return safety.Verdict{IsEmergency: verdict}, err
	})
}

func delayedCompute(text string, delay time.Duration) ComputeFunc {
	return func(ctx context.Context) (string, error) {
		time.Sleep(delay)
		return text, nil
	}
}

func TestSafeVerdictFirstAwaitsGenerator(t *testing.T) {
	// Classifier resolves safe quickly; generator is slower. The breaker
	// must wait for the generator and return its output untouched.
	cb := New(delayedClassifier(false, nil, 5*time.Millisecond),
		WithDeadline(2*time.Second), WithGrace(50*time.Millisecond))

	out := cb.Resolve(context.Background(), "any plans this weekend?", delayedCompute("generator output", 60*time.Millisecond))

	assert.Equal(t, OutcomeResponse, out.Kind)
	assert.Equal(t, "generator output", out.Text)
	assert.False(t, out.Emergency)
	assert.NoError(t, out.Err)
}

func TestPositiveVerdictFirstShortCircuits(t *testing.T) {
	// Classifier resolves positive before the generator; the generator's
	// later output must never appear.
	cb := New(delayedClassifier(true, nil, 5*time.Millisecond),
		WithDeadline(2*time.Second), WithGrace(50*time.Millisecond))

	out := cb.Resolve(context.Background(), "i want to end my life", delayedCompute("should be discarded", 80*time.Millisecond))

	assert.Equal(t, OutcomeSafety, out.Kind)
	assert.True(t, out.Emergency)
	assert.Equal(t, safety.FixedResponseText(), out.Text)
	assert.NotContains(t, out.Text, "should be discarded")
}

func TestClassifierErrorFailsClosed(t *testing.T) {
	cb := New(delayedClassifier(false, assert.AnError, 5*time.Millisecond),
		WithDeadline(2*time.Second), WithGrace(50*time.Millisecond))

	out := cb.Resolve(context.Background(), "hello", delayedCompute("normal answer", 60*time.Millisecond))

	assert.Equal(t, OutcomeSafety, out.Kind)
	assert.True(t, out.Emergency)
	assert.Equal(t, safety.FixedResponseText(), out.Text)
}

func TestClassifierPanicFailsClosed(t *testing.T) {
	classifier := safety.ClassifierFunc(func(ctx context.Context, input safety.Input) (safety.Verdict, error) {
		panic("classifier blew up")
	})
	cb := New(classifier, WithDeadline(2*time.Second), WithGrace(50*time.Millisecond))

	out := cb.Resolve(context.Background(), "hello", delayedCompute("normal answer", 60*time.Millisecond))

	assert.True(t, out.Emergency)
	assert.Equal(t, OutcomeSafety, out.Kind)
}

func TestResponseFirstGraceWindowDiscardsOnLatePositive(t *testing.T) {
	// Generator finishes first; classifier resolves positive within the
	// grace window. The response is discarded.
	cb := New(delayedClassifier(true, nil, 40*time.Millisecond),
		WithDeadline(2*time.Second), WithGrace(200*time.Millisecond))

	out := cb.Resolve(context.Background(), "text", delayedCompute("too eager", 5*time.Millisecond))

	assert.Equal(t, OutcomeSafety, out.Kind)
	assert.True(t, out.Emergency)
}

func TestResponseFirstGraceExpiryReturnsResponse(t *testing.T) {
	// Scenario: classifier never resolves within the grace window after the
	// generator finishes; the generator's text is returned.
	cb := New(delayedClassifier(false, nil, 500*time.Millisecond),
		WithDeadline(2*time.Second), WithGrace(60*time.Millisecond))

	start := time.Now()
	out := cb.Resolve(context.Background(), "text", delayedCompute("I'm here to help", 5*time.Millisecond))

	assert.Equal(t, OutcomeResponse, out.Kind)
	assert.Equal(t, "I'm here to help", out.Text)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestDeadlineFirstProceedsAndRaisesLateDetection(t *testing.T) {
	sink := &capturingSink{}
	ctx := events.WithEventSinks(context.Background(), sink)

	// Classifier resolves positive only after the deadline; the already
	// returned response must stand, and a late-detection event must fire.
	cb := New(delayedClassifier(true, nil, 150*time.Millisecond),
		WithDeadline(40*time.Millisecond), WithGrace(10*time.Millisecond))

	out := cb.Resolve(ctx, "text", delayedCompute("answer after deadline", 80*time.Millisecond))

	assert.Equal(t, OutcomeDeadline, out.Kind)
	assert.Equal(t, "answer after deadline", out.Text)
	assert.False(t, out.Emergency)

	require.Eventually(t, func() bool {
		return len(sink.byType(events.EventTypeSafetyLateDetection)) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestComputeFailureYieldsFallbackText(t *testing.T) {
	cb := New(delayedClassifier(false, nil, 5*time.Millisecond),
		WithDeadline(2*time.Second), WithGrace(20*time.Millisecond))

	out := cb.Resolve(context.Background(), "text", func(ctx context.Context) (string, error) {
		return "", assert.AnError
	})

	assert.Equal(t, OutcomeResponse, out.Kind)
	assert.Error(t, out.Err)
	assert.NotEmpty(t, out.Text)
	assert.False(t, out.Emergency)
}

func TestDefaultsPreserveObservedConstants(t *testing.T) {
	cb := New(delayedClassifier(false, nil, 0))
	assert.Equal(t, 2000*time.Millisecond, cb.deadline)
	assert.Equal(t, 500*time.Millisecond, cb.grace)
}
