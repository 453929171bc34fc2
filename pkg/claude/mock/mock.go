// Package mock provides a test double for the engine's LLM client
// dependency.
//
// Use Client in unit tests to verify the prompts the engine sends and to
// feed controlled responses without a live API. All fields are safe to set
// before calling any method; mutating them during a concurrent call is the
// caller's responsibility.
//
// Example:
//
//	c := &mock.Client{
//	    Response: &claude.Response{Content: `{"summary_text": "..."}`},
//	}
//	resp, err := c.CreateSummary(ctx, system, user, opts)
package mock

import (
	"context"
	"sync"

	"github.com/lumisage/chatscribe/pkg/claude"
	"github.com/lumisage/chatscribe/pkg/types"
)

// CreateSummaryCall records a single invocation of CreateSummary.
type CreateSummaryCall struct {
	// Ctx is the context passed to CreateSummary.
	Ctx context.Context
	// System is the system prompt passed to CreateSummary.
	System string
	// User is the user prompt passed to CreateSummary.
	User string
	// Opts is the options value passed to CreateSummary.
	Opts types.SummaryOptions
}

// EstimateCostCall records a single invocation of EstimateCost.
type EstimateCostCall struct {
	InputTokens  int
	MessageCount int
	Opts         types.SummaryOptions
}

// Client is a mock LLM client. Zero values for response fields cause
// methods to return zero values and nil errors. Set Err fields to inject
// errors.
type Client struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Response is returned by CreateSummary. May be nil (returns nil, nil).
	Response *claude.Response

	// Err, if non-nil, is returned as the error from CreateSummary.
	Err error

	// CreateSummaryFunc, if non-nil, overrides Response/Err entirely and is
	// called once per invocation. Useful for per-call behavior such as
	// failing the first request and succeeding the second.
	CreateSummaryFunc func(ctx context.Context, system, user string, opts types.SummaryOptions) (*claude.Response, error)

	// Estimate is returned by EstimateCost.
	Estimate types.CostEstimate

	// EstimateErr, if non-nil, is returned as the error from EstimateCost.
	EstimateErr error

	// HealthErr, if non-nil, is returned from HealthCheck.
	HealthErr error

	// Stats is returned by Usage.
	Stats types.UsageStats

	// --- Call records (read after test) ---

	// CreateSummaryCalls records every invocation of CreateSummary in order.
	CreateSummaryCalls []CreateSummaryCall

	// EstimateCostCalls records every invocation of EstimateCost in order.
	EstimateCostCalls []EstimateCostCall

	// HealthCheckCallCount is the number of times HealthCheck was called.
	HealthCheckCallCount int
}

// CreateSummary records the call and returns the configured response.
func (c *Client) CreateSummary(ctx context.Context, system, user string, opts types.SummaryOptions) (*claude.Response, error) {
	c.mu.Lock()
	c.CreateSummaryCalls = append(c.CreateSummaryCalls, CreateSummaryCall{
		Ctx: ctx, System: system, User: user, Opts: opts,
	})
	fn := c.CreateSummaryFunc
	resp, err := c.Response, c.Err
	c.mu.Unlock()

	if fn != nil {
		return fn(ctx, system, user, opts)
	}
	return resp, err
}

// EstimateCost records the call and returns the configured estimate.
func (c *Client) EstimateCost(inputTokens, messageCount int, opts types.SummaryOptions) (types.CostEstimate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.EstimateCostCalls = append(c.EstimateCostCalls, EstimateCostCall{
		InputTokens: inputTokens, MessageCount: messageCount, Opts: opts,
	})
	return c.Estimate, c.EstimateErr
}

// HealthCheck records the call and returns HealthErr.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.HealthCheckCallCount++
	return c.HealthErr
}

// Usage returns the configured stats snapshot.
func (c *Client) Usage() types.UsageStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Stats
}
