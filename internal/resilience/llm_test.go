package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/lumisage/chatscribe/pkg/claude"
	"github.com/lumisage/chatscribe/pkg/types"
)

type fakeLLM struct {
	resp      *claude.Response
	err       error
	healthErr error
	calls     int
}

func (f *fakeLLM) CreateSummary(context.Context, string, string, types.SummaryOptions) (*claude.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeLLM) EstimateCost(inputTokens, messageCount int, _ types.SummaryOptions) (types.CostEstimate, error) {
	return types.CostEstimate{InputTokens: inputTokens, MessageCount: messageCount}, nil
}

func (f *fakeLLM) HealthCheck(context.Context) error { return f.healthErr }

func (f *fakeLLM) Usage() types.UsageStats {
	return types.UsageStats{TotalRequests: int64(f.calls)}
}

func testBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         "llm-test",
		MaxFailures:  3,
		ResetTimeout: time.Hour,
	}
}

func TestGuardedLLM_PassesThroughSuccess(t *testing.T) {
	llm := &fakeLLM{resp: &claude.Response{Content: "summary", Model: "m"}}
	g := NewGuardedLLM(llm, testBreakerConfig())

	resp, err := g.CreateSummary(context.Background(), "sys", "user", types.DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "summary" {
		t.Errorf("content = %q, want summary", resp.Content)
	}
	if g.BreakerState() != StateClosed {
		t.Errorf("state = %v, want closed", g.BreakerState())
	}
}

func TestGuardedLLM_TransientFailuresOpenBreaker(t *testing.T) {
	llm := &fakeLLM{err: types.NewNetworkError("anthropic", errBackend)}
	g := NewGuardedLLM(llm, testBreakerConfig())

	for i := 0; i < 3; i++ {
		if _, err := g.CreateSummary(context.Background(), "", "", types.DefaultOptions()); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if g.BreakerState() != StateOpen {
		t.Fatalf("state = %v, want open after 3 failures", g.BreakerState())
	}

	// The next call must not reach the client.
	before := llm.calls
	_, err := g.CreateSummary(context.Background(), "", "", types.DefaultOptions())
	if !types.IsCode(err, types.CodeServiceUnavailable) {
		t.Errorf("open-breaker error = %v, want SERVICE_UNAVAILABLE", err)
	}
	if llm.calls != before {
		t.Errorf("client called %d times while breaker open", llm.calls-before)
	}
}

func TestGuardedLLM_CallerErrorsDoNotTrip(t *testing.T) {
	llm := &fakeLLM{err: types.NewInvalidOptions("temperature out of range")}
	g := NewGuardedLLM(llm, testBreakerConfig())

	for i := 0; i < 10; i++ {
		_, err := g.CreateSummary(context.Background(), "", "", types.DefaultOptions())
		if !types.IsCode(err, types.CodeInvalidOptions) {
			t.Fatalf("call %d: error = %v, want INVALID_OPTIONS", i, err)
		}
	}
	if g.BreakerState() != StateClosed {
		t.Errorf("state = %v, want closed after caller errors", g.BreakerState())
	}
}

func TestGuardedLLM_RateLimitDoesNotTrip(t *testing.T) {
	llm := &fakeLLM{err: types.NewRateLimit("anthropic", 30*time.Second)}
	g := NewGuardedLLM(llm, testBreakerConfig())

	for i := 0; i < 5; i++ {
		g.CreateSummary(context.Background(), "", "", types.DefaultOptions())
	}
	if g.BreakerState() != StateClosed {
		t.Errorf("state = %v, want closed; rate limits carry their own backoff", g.BreakerState())
	}
}

func TestGuardedLLM_HealthCheckReportsOpenBreaker(t *testing.T) {
	llm := &fakeLLM{err: types.NewTimeout("anthropic", time.Minute)}
	g := NewGuardedLLM(llm, testBreakerConfig())

	if err := g.HealthCheck(context.Background()); err != nil {
		t.Fatalf("healthy client reported unhealthy: %v", err)
	}

	for i := 0; i < 3; i++ {
		g.CreateSummary(context.Background(), "", "", types.DefaultOptions())
	}
	if err := g.HealthCheck(context.Background()); err == nil {
		t.Error("open breaker not reported by health check")
	}
}

func TestGuardedLLM_EstimateCostBypassesBreaker(t *testing.T) {
	llm := &fakeLLM{err: types.NewNetworkError("anthropic", errBackend)}
	g := NewGuardedLLM(llm, testBreakerConfig())

	for i := 0; i < 3; i++ {
		g.CreateSummary(context.Background(), "", "", types.DefaultOptions())
	}

	est, err := g.EstimateCost(1000, 20, types.DefaultOptions())
	if err != nil {
		t.Fatalf("estimate failed with open breaker: %v", err)
	}
	if est.InputTokens != 1000 || est.MessageCount != 20 {
		t.Errorf("estimate = %+v", est)
	}
}
