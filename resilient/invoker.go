package resilient

import (
	"context"
	"fmt"
	"time"

	"github.com/aschepis/backscratcher/slots/llm"
	"github.com/aschepis/backscratcher/slots/model"
	"github.com/rs/zerolog"
)

// State is a step of a single invocation.
type State int

const (
	StatePrimaryActive State = iota
	StateFallbackActive
	StateSucceeded
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StatePrimaryActive:
		return "primary_active"
	case StateFallbackActive:
		return "fallback_active"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	outcomeSuccess = "success"
	outcomeRetry   = "retry"
	outcomeFailure = "failure"

	resultSuccess  = "success"
	resultFallback = "fallback_success"
	resultFailure  = "exhausted"
	resultCanceled = "canceled"
)

// InvocationError is returned when every permitted attempt has failed.
type InvocationError struct {
	// Slot is the invoker name.
	Slot string
	// Endpoint is the last endpoint attempted.
	Endpoint string
	// Attempts is the number of attempts made against Endpoint.
	Attempts int
	// Err is the last underlying failure.
	Err error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("slot %s: %s failed after %d attempt(s): %v", e.Slot, e.Endpoint, e.Attempts, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// Invoker calls a primary endpoint under a retry policy and switches to a
// fallback endpoint when the fallback rule says so.
type Invoker struct {
	name    string
	primary *model.Endpoint
	policy  RetryPolicy
	rule    FallbackRule
	logger  zerolog.Logger
	metrics *Metrics
	costs   *model.CostTracker
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithName sets the name used in logs, metrics and errors. Defaults to the primary endpoint name.
func WithName(name string) Option {
	return func(i *Invoker) {
		i.name = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(i *Invoker) {
		i.logger = logger
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(i *Invoker) {
		i.metrics = m
	}
}

// WithCostTracker records token usage of successful calls against the endpoint that served them.
func WithCostTracker(t *model.CostTracker) Option {
	return func(i *Invoker) {
		i.costs = t
	}
}

// New creates an Invoker for primary.
func New(primary *model.Endpoint, policy RetryPolicy, rule FallbackRule, opts ...Option) (*Invoker, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary endpoint is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if policy.Retryable == nil {
		policy.Retryable = llm.IsTransient
	}
	if rule.keywords == nil {
		rule = NewFallbackRule(rule.fallback)
	}

	i := &Invoker{
		name:    primary.Name(),
		primary: primary,
		policy:  policy,
		rule:    rule,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With().Str("component", "invoker").Str("slot", i.name).Logger()
	return i, nil
}

// Name returns the invoker name.
func (i *Invoker) Name() string { return i.name }

// Primary returns the primary endpoint.
func (i *Invoker) Primary() *model.Endpoint { return i.primary }

// Fallback returns the fallback endpoint, or nil.
func (i *Invoker) Fallback() *model.Endpoint { return i.rule.Fallback() }

// Synchronous implements llm.Client.
func (i *Invoker) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	return i.Invoke(ctx, req)
}

// Invoke sends req to the primary endpoint, retrying and falling back as configured.
// The response does not reveal which endpoint produced it.
func (i *Invoker) Invoke(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	start := time.Now()
	state := StatePrimaryActive
	endpoint := i.primary

	var (
		resp     *llm.Response
		err      error
		attempts int
	)

	for {
		switch state {
		case StatePrimaryActive, StateFallbackActive:
			resp, attempts, err = i.run(ctx, endpoint, req)
			next := i.next(ctx, state, endpoint, err)
			if next == StateFallbackActive {
				fallback := i.rule.Fallback()
				i.logger.Warn().
					Err(err).
					Str("from", endpoint.Name()).
					Str("to", fallback.Name()).
					Int("attempts", attempts).
					Msg("Switching to fallback endpoint")
				i.metrics.recordFallback(i.name, endpoint.Name(), fallback.Name())
				endpoint = fallback
			}
			state = next

		case StateSucceeded:
			elapsed := time.Since(start)
			result := resultSuccess
			if endpoint != i.primary {
				result = resultFallback
			}
			if i.costs != nil && resp != nil {
				i.costs.Record(endpoint, resp.Usage)
			}
			i.metrics.recordInvocation(i.name, result, elapsed)
			i.logger.Debug().
				Str("endpoint", endpoint.Name()).
				Int("attempt", attempts).
				Dur("elapsed", elapsed).
				Msg("Invocation succeeded")
			return resp, nil

		case StateExhausted:
			elapsed := time.Since(start)
			result, level := resultFailure, zerolog.ErrorLevel
			if llm.IsCanceled(err) {
				result, level = resultCanceled, zerolog.InfoLevel
			}
			i.metrics.recordInvocation(i.name, result, elapsed)
			i.logger.WithLevel(level).
				Err(err).
				Str("endpoint", endpoint.Name()).
				Int("attempt", attempts).
				Dur("elapsed", elapsed).
				Msg("Invocation failed")
			return nil, &InvocationError{
				Slot:     i.name,
				Endpoint: endpoint.Name(),
				Attempts: attempts,
				Err:      err,
			}

		default:
			return nil, fmt.Errorf("slot %s: invalid invoker state %v", i.name, state)
		}
	}
}

// next decides the state that follows an attempt sequence against endpoint.
func (i *Invoker) next(ctx context.Context, current State, endpoint *model.Endpoint, err error) State {
	if err == nil {
		return StateSucceeded
	}
	if llm.IsCanceled(err) || ctx.Err() != nil {
		return StateExhausted
	}
	if Classify(err) == ClassUnclassified {
		i.logger.Warn().Err(err).Str("endpoint", endpoint.Name()).Msg("Unexpected error type from endpoint")
	}
	if current != StatePrimaryActive || !i.rule.ShouldFallback(err) {
		return StateExhausted
	}
	if i.rule.Fallback() == nil {
		i.logger.Debug().Err(err).Str("endpoint", endpoint.Name()).Msg("No fallback configured")
		return StateExhausted
	}
	return StateFallbackActive
}

// run performs one attempt sequence against endpoint with a fresh attempt counter.
func (i *Invoker) run(ctx context.Context, endpoint *model.Endpoint, req *llm.Request) (*llm.Response, int, error) {
	policy := i.policy
	userNotify := i.policy.Notify
	policy.Notify = func(attempt int, err error, next time.Duration) {
		i.logger.Warn().
			Err(err).
			Str("endpoint", endpoint.Name()).
			Int("attempt", attempt).
			Dur("next_delay", next).
			Msg("Endpoint attempt failed, retrying")
		i.metrics.recordAttempt(i.name, endpoint.Name(), outcomeRetry)
		if userNotify != nil {
			userNotify(attempt, err, next)
		}
	}

	resp, attempts, err := Retry(ctx, policy, func(ctx context.Context) (*llm.Response, error) {
		return endpoint.Invoke(ctx, req)
	})
	switch {
	case err == nil:
		i.metrics.recordAttempt(i.name, endpoint.Name(), outcomeSuccess)
	case attempts > 0:
		i.metrics.recordAttempt(i.name, endpoint.Name(), outcomeFailure)
	}
	return resp, attempts, err
}

// Ensure Invoker implements llm.Client
var _ llm.Client = (*Invoker)(nil)
