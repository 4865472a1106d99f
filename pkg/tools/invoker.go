package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/mindwell/pkg/conversation"
)

// Result is the normalized outcome of one tool invocation. Failures are
// carried in Error rather than returned as Go errors so that one failing
// call never aborts its siblings.
type Result struct {
	ID       string
	ToolName string
	Content  string
	Error    string
	Duration time.Duration
}

// OK reports whether the invocation produced usable content.
func (r Result) OK() bool {
	return r.Error == ""
}

// Invoker dispatches tool calls against a registry.
type Invoker struct {
	registry    Registry
	maxParallel int
	timeout     time.Duration
}

type InvokerOption func(*Invoker)

// WithMaxParallel allows up to n calls of one batch to run concurrently.
// Results are still returned in request order.
func WithMaxParallel(n int) InvokerOption {
	return func(i *Invoker) { i.maxParallel = n }
}

// WithExecutionTimeout bounds each individual handler invocation.
func WithExecutionTimeout(d time.Duration) InvokerOption {
	return func(i *Invoker) { i.timeout = d }
}

func NewInvoker(registry Registry, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		registry:    registry,
		maxParallel: 1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(inv)
		}
	}
	return inv
}

// Invoke executes a single tool call. An unknown name is a recoverable
// condition and produces a descriptive error result, not a failure.
func (inv *Invoker) Invoke(ctx context.Context, call conversation.ToolCall) Result {
	start := time.Now()

	def, err := inv.registry.Get(call.Name)
	if err != nil {
		log.Warn().Str("tool", call.Name).Str("call_id", call.ID).Msg("tool not found")
		return Result{
			ID:       call.ID,
			ToolName: call.Name,
			Error:    fmt.Sprintf("tool not found: %s", call.Name),
			Duration: time.Since(start),
		}
	}

	execCtx := ctx
	if inv.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, inv.timeout)
		defer cancel()
	}

	content, err := inv.safeExecute(execCtx, def, call)
	res := Result{
		ID:       call.ID,
		ToolName: call.Name,
		Content:  content,
		Duration: time.Since(start),
	}
	if err != nil {
		res.Error = err.Error()
		log.Warn().Err(err).Str("tool", call.Name).Str("call_id", call.ID).Msg("tool execution failed")
	}
	return res
}

// safeExecute converts handler panics into errors so a misbehaving tool
// cannot take down the turn.
func (inv *Invoker) safeExecute(ctx context.Context, def *Definition, call conversation.ToolCall) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", call.Name, r)
		}
	}()
	return def.Handler(ctx, call.Arguments)
}

// InvokeAll executes a batch of tool calls. The results slice is indexed by
// request position, so ordering matches call-request ordering even when
// calls run concurrently and finish out of order.
func (inv *Invoker) InvokeAll(ctx context.Context, calls []conversation.ToolCall) []Result {
	if len(calls) == 0 {
		return nil
	}

	results := make([]Result, len(calls))

	if inv.maxParallel <= 1 || len(calls) == 1 {
		for i, call := range calls {
			results[i] = inv.Invoke(ctx, call)
		}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(inv.maxParallel)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = inv.Invoke(gctx, call)
			return nil
		})
	}
	// Workers never return errors; failures live in the result slots.
	_ = g.Wait()
	return results
}
