package interpreter

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/louisbranch/agicosmic/internal/services/cosmic/country"
)

var tracer = otel.Tracer("github.com/louisbranch/agicosmic/internal/services/cosmic/interpreter")

// Policy bounds how an interpreter is called.
type Policy struct {
	// Timeout bounds one Interpret call including retries. Zero disables it.
	Timeout time.Duration
	// MaxAttempts is the number of tries for retryable failures; below 1 means 1.
	MaxAttempts int
	// RatePerMinute caps calls across all users; zero means unlimited.
	RatePerMinute int
	// InitialBackoff is the first retry delay.
	InitialBackoff time.Duration
}

// Guarded applies a Policy around another interpreter.
type Guarded struct {
	inner   Interpreter
	policy  Policy
	limiter *rate.Limiter
	logger  *zap.Logger
}

// WithPolicy wraps inner with timeout, retry, and rate limiting.
func WithPolicy(inner Interpreter, policy Policy, logger *zap.Logger) *Guarded {
	if inner == nil {
		inner = Unavailable{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = 250 * time.Millisecond
	}
	g := &Guarded{inner: inner, policy: policy, logger: logger}
	if policy.RatePerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(policy.RatePerMinute)), policy.RatePerMinute)
	}
	return g
}

// Status reports the wrapped interpreter's status when it has one.
func (g *Guarded) Status() Status {
	if reporter, ok := g.inner.(interface{ Status() Status }); ok {
		return reporter.Status()
	}
	return Status{Mode: ModeInterpreter}
}

// Interpret calls the wrapped interpreter under the policy.
func (g *Guarded) Interpret(ctx context.Context, req Request) Outcome {
	ctx, span := tracer.Start(ctx, "interpreter.interpret")
	defer span.End()

	outcome := g.interpret(ctx, req)
	if outcome.Failure != nil {
		span.SetAttributes(attribute.String("interpreter.failure", string(outcome.Failure.Kind)))
		span.SetStatus(codes.Error, string(outcome.Failure.Kind))
	}
	return outcome
}

func (g *Guarded) interpret(ctx context.Context, req Request) Outcome {
	if g.limiter != nil && !g.limiter.Allow() {
		return Failed(FailureRateLimited, "interpreter call budget exhausted")
	}
	if g.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.policy.Timeout)
		defer cancel()
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.policy.InitialBackoff

	attempt := 0
	var last Outcome
	_, err := backoff.Retry(ctx, func() (Outcome, error) {
		attempt++
		outcome, ok := await(ctx, func() Outcome { return g.inner.Interpret(ctx, req) })
		if !ok {
			last = Failed(FailureTimeout, "interpreter deadline exceeded")
			return last, backoff.Permanent(last.Failure)
		}
		last = outcome
		if last.OK() {
			return last, nil
		}
		if last.Failure == nil {
			last = Failed(FailureMalformed, "interpreter returned an empty outcome")
		}
		if !last.Failure.Kind.Retryable() {
			return last, backoff.Permanent(last.Failure)
		}
		if attempt < g.policy.MaxAttempts {
			g.logger.Debug("retrying interpreter",
				zap.Int("attempt", attempt),
				zap.String("failure", string(last.Failure.Kind)))
		}
		return last, last.Failure
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(g.policy.MaxAttempts)),
	)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Failed(FailureTimeout, "interpreter deadline exceeded")
	}
	if err == nil {
		return last
	}
	if last.Failure == nil {
		return Failed(FailureTransport, err.Error())
	}
	return last
}

// Describe delegates to the wrapped interpreter when it can narrate, under
// the same timeout and rate budget.
func (g *Guarded) Describe(ctx context.Context, state country.State) (string, error) {
	narrator, ok := g.inner.(Narrator)
	if !ok {
		return "", &Failure{Kind: FailureUnavailable, Detail: "interpreter cannot describe"}
	}
	if g.limiter != nil && !g.limiter.Allow() {
		return "", &Failure{Kind: FailureRateLimited, Detail: "interpreter call budget exhausted"}
	}
	if g.policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.policy.Timeout)
		defer cancel()
	}
	type described struct {
		text string
		err  error
	}
	out, ok := await(ctx, func() described {
		text, err := narrator.Describe(ctx, state)
		return described{text: text, err: err}
	})
	if !ok {
		return "", &Failure{Kind: FailureTimeout, Detail: "interpreter deadline exceeded"}
	}
	return out.text, out.err
}

// await runs call and waits for it or for ctx to end, whichever is first.
// An abandoned call keeps running until it returns; its result is dropped.
func await[T any](ctx context.Context, call func() T) (T, bool) {
	done := make(chan T, 1)
	go func() { done <- call() }()
	select {
	case out := <-done:
		return out, true
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}
