package safety

import (
	"context"
)

// Input is what the classifier sees: the latest user utterance plus an
// optional summary of recent history.
type Input struct {
	CurrentText         string
	PriorHistorySummary string
}

// Verdict is the classifier's boolean safety decision.
type Verdict struct {
	IsEmergency bool
}

// Classifier decides whether a user turn signals a crisis. Implementations
// must resolve or explicitly fail within a bounded time for the breaker's
// deadline logic to be meaningful. Callers treat any error as a positive
// verdict: the safety path fails closed, never open.
type Classifier interface {
	Classify(ctx context.Context, input Input) (Verdict, error)
}

// ClassifierFunc adapts a plain function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, input Input) (Verdict, error)

func (f ClassifierFunc) Classify(ctx context.Context, input Input) (Verdict, error) {
	return f(ctx, input)
}
