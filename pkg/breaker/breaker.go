package breaker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/mindwell/pkg/events"
	"github.com/go-go-golems/mindwell/pkg/safety"
)

// RaceOutcome tags which branch of the race settled the turn. It drives a
// one-time branching decision and is never persisted.
type RaceOutcome string

const (
	OutcomeSafety   RaceOutcome = "safety-verdict-first"
	OutcomeResponse RaceOutcome = "response-first"
	OutcomeDeadline RaceOutcome = "deadline-first"
)

// Outcome is the breaker's final result for one turn.
type Outcome struct {
	Kind      RaceOutcome
	Text      string
	Emergency bool
	// Err records a non-fatal compute failure; Text still carries a usable
	// fallback when it is set.
	Err error
}

// ComputeFunc produces the turn's answer text. It is launched concurrently
// with the safety classification and runs to completion independently of
// the race's outcome.
type ComputeFunc func(ctx context.Context) (string, error)

const (
	DefaultDeadline = 2000 * time.Millisecond
	DefaultGrace    = 500 * time.Millisecond
)

const computeFallbackText = "I'm sorry, I wasn't able to put together a reply just now. Could you try saying that again?"

// CircuitBreaker races an independent safety classification against the
// turn's response computation under a deadline. A crisis verdict always
// wins the race; classifier failure is treated as a positive verdict (the
// safety path fails closed, never open).
type CircuitBreaker struct {
	classifier safety.Classifier
	deadline   time.Duration
	grace      time.Duration
}

type Option func(*CircuitBreaker)

func WithDeadline(d time.Duration) Option {
	return func(cb *CircuitBreaker) {
		if d > 0 {
			cb.deadline = d
		}
	}
}

// WithGrace sets the window granted to the classifier after the response
// computation finishes first.
func WithGrace(d time.Duration) Option {
	return func(cb *CircuitBreaker) {
		if d > 0 {
			cb.grace = d
		}
	}
}

func New(classifier safety.Classifier, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		classifier: classifier,
		deadline:   DefaultDeadline,
		grace:      DefaultGrace,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cb)
		}
	}
	return cb
}

type classification struct {
	verdict safety.Verdict
	err     error
}

type response struct {
	text string
	err  error
}

// Resolve runs the race for one user turn. Both branches are always
// launched; losing branches are logically abandoned (their results are
// dropped, never merged into the turn), and the classifier branch keeps
// running past the deadline to feed the late-detection continuation.
func (cb *CircuitBreaker) Resolve(ctx context.Context, userText string, compute ComputeFunc) Outcome {
	start := time.Now()

	classCh := make(chan classification, 1)
	// Detach the classifier from the turn's cancellation so a late verdict
	// can still be observed for out-of-band alerting.
	classCtx := context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				classCh <- classification{err: fmt.Errorf("classifier panicked: %v", r)}
			}
		}()
		v, err := cb.classifier.Classify(classCtx, safety.Input{CurrentText: userText})
		classCh <- classification{verdict: v, err: err}
	}()

	respCh := make(chan response, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				respCh <- response{err: fmt.Errorf("response computation panicked: %v", r)}
			}
		}()
		text, err := compute(ctx)
		respCh <- response{text: text, err: err}
	}()

	deadline := time.NewTimer(cb.deadline)
	defer deadline.Stop()

	select {
	case c := <-classCh:
		if cb.failsClosed(ctx, c, "breaker") {
			go drainResponse(respCh)
			return cb.safetyOutcome(OutcomeSafety)
		}
		// Safe verdict: the turn is the response's, whenever it lands.
		return cb.awaitResponse(ctx, respCh, OutcomeResponse)

	case r := <-respCh:
		// Grant the classifier one grace window before accepting the answer.
		graceTimer := time.NewTimer(cb.grace)
		defer graceTimer.Stop()
		select {
		case c := <-classCh:
			if cb.failsClosed(ctx, c, "breaker") {
				log.Info().Dur("elapsed", time.Since(start)).Msg("response discarded: classifier verdict within grace window")
				return cb.safetyOutcome(OutcomeSafety)
			}
			return responseOutcome(r, OutcomeResponse)
		case <-graceTimer.C:
			cb.watchForLateDetection(ctx, classCh, userText, start)
			return responseOutcome(r, OutcomeResponse)
		}

	case <-deadline.C:
		// Classifier too slow: proceed with the response's eventual result
		// and keep watching the classifier out of band.
		log.Warn().Dur("deadline", cb.deadline).Msg("safety classifier missed the deadline")
		cb.watchForLateDetection(ctx, classCh, userText, start)
		return cb.awaitResponse(ctx, respCh, OutcomeDeadline)
	}
}

// failsClosed maps a classification to the emergency decision: a positive
// verdict or any classifier failure triggers the safety path. This is a
// hard invariant, not a tunable default.
func (cb *CircuitBreaker) failsClosed(ctx context.Context, c classification, source string) bool {
	if c.err != nil {
		log.Error().Err(c.err).Msg("safety classifier failed, failing closed")
		events.PublishEventToContext(ctx, events.NewSafetyClassifierFailEvent(events.EventMetadata{ID: uuid.New()}, c.err))
		return true
	}
	if c.verdict.IsEmergency {
		events.PublishEventToContext(ctx, events.NewSafetyTriggeredEvent(events.EventMetadata{ID: uuid.New()}, source))
		return true
	}
	return false
}

func (cb *CircuitBreaker) safetyOutcome(kind RaceOutcome) Outcome {
	return Outcome{
		Kind:      kind,
		Text:      safety.FixedResponseText(),
		Emergency: true,
	}
}

func (cb *CircuitBreaker) awaitResponse(ctx context.Context, respCh <-chan response, kind RaceOutcome) Outcome {
	select {
	case r := <-respCh:
		return responseOutcome(r, kind)
	case <-ctx.Done():
		return Outcome{Kind: kind, Text: computeFallbackText, Err: ctx.Err()}
	}
}

func responseOutcome(r response, kind RaceOutcome) Outcome {
	if r.err != nil {
		log.Error().Err(r.err).Msg("response computation failed")
		return Outcome{Kind: kind, Text: computeFallbackText, Err: r.err}
	}
	return Outcome{Kind: kind, Text: r.text}
}

// watchForLateDetection attaches a fire-and-forget continuation: if the
// classifier later resolves positive, a late-detection signal is raised for
// out-of-band handling. The already-returned response is never altered.
func (cb *CircuitBreaker) watchForLateDetection(ctx context.Context, classCh <-chan classification, userText string, start time.Time) {
	bgCtx := context.WithoutCancel(ctx)
	go func() {
		c := <-classCh
		if c.err != nil {
			log.Warn().Err(c.err).Msg("safety classifier failed after the turn resolved")
			return
		}
		if !c.verdict.IsEmergency {
			return
		}
		delay := time.Since(start)
		log.Error().Dur("delay", delay).Msg("late crisis detection after response was returned")
		events.PublishEventToContext(bgCtx, events.NewSafetyLateDetectionEvent(
			events.EventMetadata{ID: uuid.New()}, userText, delay.Milliseconds(),
		))
	}()
}

// drainResponse drops the abandoned branch's eventual result, logging it
// for observability only.
func drainResponse(respCh <-chan response) {
	r := <-respCh
	if r.err != nil {
		log.Debug().Err(r.err).Msg("abandoned response computation failed")
		return
	}
	log.Debug().Int("len", len(r.text)).Msg("abandoned response computation finished after safety short-circuit")
}
