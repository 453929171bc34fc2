package summarize

import "context"

// Health statuses, ordered by severity. The LLM API is load-bearing; the
// cache only accelerates, so its loss degrades rather than breaks.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Health is the engine's aggregated health snapshot.
type Health struct {
	Status    string `json:"status"`
	ClaudeAPI bool   `json:"claude_api"`
	Cache     bool   `json:"cache"`
}

// HealthCheck probes the engine's collaborators. An engine without a cache
// reports the cache flag as healthy.
func (e *Engine) HealthCheck(ctx context.Context) Health {
	h := Health{ClaudeAPI: true, Cache: true}

	if err := e.llm.HealthCheck(ctx); err != nil {
		e.log.Warn("LLM health check failed", "err", err)
		h.ClaudeAPI = false
	}
	if e.cache != nil {
		if err := e.cache.HealthCheck(ctx); err != nil {
			e.log.Warn("cache health check failed", "err", err)
			h.Cache = false
		}
	}

	switch {
	case !h.ClaudeAPI:
		h.Status = StatusUnhealthy
	case !h.Cache:
		h.Status = StatusDegraded
	default:
		h.Status = StatusHealthy
	}
	return h
}
