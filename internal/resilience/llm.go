package resilience

import (
	"context"
	"errors"

	"github.com/lumisage/chatscribe/pkg/claude"
	"github.com/lumisage/chatscribe/pkg/types"
)

// LLM is the completion client surface GuardedLLM wraps. *claude.Client
// satisfies it.
type LLM interface {
	CreateSummary(ctx context.Context, system, user string, opts types.SummaryOptions) (*claude.Response, error)
	EstimateCost(inputTokens, messageCount int, opts types.SummaryOptions) (types.CostEstimate, error)
	HealthCheck(ctx context.Context) error
	Usage() types.UsageStats
}

// GuardedLLM decorates an LLM with a circuit breaker. Only transient
// failures trip the breaker; caller mistakes like invalid options pass
// through without counting, since they say nothing about backend health.
// While the breaker is open, requests fail immediately with
// SERVICE_UNAVAILABLE.
type GuardedLLM struct {
	llm     LLM
	breaker *CircuitBreaker
}

// NewGuardedLLM wraps llm with a breaker built from cfg. Zero-value config
// fields get the breaker defaults.
func NewGuardedLLM(llm LLM, cfg CircuitBreakerConfig) *GuardedLLM {
	if cfg.Name == "" {
		cfg.Name = "llm"
	}
	return &GuardedLLM{
		llm:     llm,
		breaker: NewCircuitBreaker(cfg),
	}
}

// tripsBreaker reports whether err indicates backend trouble rather than a
// caller mistake.
func tripsBreaker(err error) bool {
	serr, ok := types.AsError(err)
	if !ok {
		// Unknown error shapes are treated as backend trouble.
		return true
	}
	switch serr.Code {
	case types.CodeNetworkError, types.CodeAPITimeout,
		types.CodeServiceUnavailable, types.CodeModelUnavailable,
		types.CodeAuthenticationFailed:
		return true
	default:
		return false
	}
}

// CreateSummary forwards to the wrapped client under breaker control.
func (g *GuardedLLM) CreateSummary(ctx context.Context, system, user string, opts types.SummaryOptions) (*claude.Response, error) {
	var (
		resp    *claude.Response
		callErr error
	)
	err := g.breaker.Execute(func() error {
		resp, callErr = g.llm.CreateSummary(ctx, system, user, opts)
		if callErr != nil && tripsBreaker(callErr) {
			return callErr
		}
		// Success, or a caller mistake the breaker must not count.
		return nil
	})
	if errors.Is(err, ErrCircuitOpen) {
		return nil, types.NewServiceUnavailable("anthropic", err)
	}
	if callErr != nil {
		return nil, callErr
	}
	return resp, nil
}

// EstimateCost is a local computation and bypasses the breaker.
func (g *GuardedLLM) EstimateCost(inputTokens, messageCount int, opts types.SummaryOptions) (types.CostEstimate, error) {
	return g.llm.EstimateCost(inputTokens, messageCount, opts)
}

// HealthCheck reports the breaker state before probing the backend, so an
// open breaker surfaces as unhealthy without spending a request.
func (g *GuardedLLM) HealthCheck(ctx context.Context) error {
	if g.breaker.State() == StateOpen {
		return ErrCircuitOpen
	}
	return g.llm.HealthCheck(ctx)
}

// Usage forwards to the wrapped client.
func (g *GuardedLLM) Usage() types.UsageStats {
	return g.llm.Usage()
}

// BreakerState exposes the current breaker state for diagnostics.
func (g *GuardedLLM) BreakerState() State {
	return g.breaker.State()
}
