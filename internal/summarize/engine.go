// Package summarize orchestrates the summarization pipeline. The Engine is
// the sole entry point the outside surfaces (commands, HTTP, scheduler) use:
// it validates requests, consults the cache, drives the optimizer, prompt
// builder, LLM client, and parser, and assembles the final result.
package summarize

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lumisage/chatscribe/internal/cache"
	"github.com/lumisage/chatscribe/internal/observe"
	"github.com/lumisage/chatscribe/internal/optimize"
	"github.com/lumisage/chatscribe/internal/parse"
	"github.com/lumisage/chatscribe/internal/prompt"
	"github.com/lumisage/chatscribe/pkg/claude"
	"github.com/lumisage/chatscribe/pkg/types"
)

const (
	// DefaultMaxPromptTokens bounds the combined prompt estimate; prompts
	// beyond it are truncated and, failing that, rejected.
	DefaultMaxPromptTokens = 100_000

	// DefaultBatchConcurrency bounds concurrent pipelines in BatchSummarize.
	DefaultBatchConcurrency = 3
)

// LLM is the completion client the Engine drives. *claude.Client satisfies
// it; tests substitute the claude/mock package.
type LLM interface {
	CreateSummary(ctx context.Context, system, user string, opts types.SummaryOptions) (*claude.Response, error)
	EstimateCost(inputTokens, messageCount int, opts types.SummaryOptions) (types.CostEstimate, error)
	HealthCheck(ctx context.Context) error
	Usage() types.UsageStats
}

// Engine runs the summarization pipeline. Safe for concurrent use; all
// mutable state lives in the injected collaborators.
type Engine struct {
	llm     LLM
	cache   *cache.SummaryCache
	builder *prompt.Builder
	metrics *observe.Metrics
	log     *slog.Logger

	defaultModel     string
	maxPromptTokens  int
	batchConcurrency int
}

// Option is a functional option for Engine.
type Option func(*Engine)

// WithCache enables summary memoization. Without it every request reaches
// the LLM.
func WithCache(c *cache.SummaryCache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithBuilder substitutes the prompt builder, mainly to override the system
// template.
func WithBuilder(b *prompt.Builder) Option {
	return func(e *Engine) {
		e.builder = b
	}
}

// WithMetrics sets the metrics instance. Defaults to observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithDefaultModel sets the model used when a request leaves Options.Model
// empty. Without it the client's own default applies.
func WithDefaultModel(model string) Option {
	return func(e *Engine) {
		e.defaultModel = model
	}
}

// WithMaxPromptTokens overrides the prompt budget.
func WithMaxPromptTokens(n int) Option {
	return func(e *Engine) {
		e.maxPromptTokens = n
	}
}

// WithBatchConcurrency overrides the batch fan-out bound.
func WithBatchConcurrency(n int) Option {
	return func(e *Engine) {
		e.batchConcurrency = n
	}
}

// New constructs an Engine around the given LLM client.
func New(llm LLM, opts ...Option) *Engine {
	e := &Engine{
		llm:              llm,
		builder:          prompt.NewBuilder(),
		log:              slog.Default(),
		maxPromptTokens:  DefaultMaxPromptTokens,
		batchConcurrency: DefaultBatchConcurrency,
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// Summarize runs the full pipeline for one request. Errors carry the
// taxonomy from [types.Error]; unexpected sub-component failures are wrapped
// as retryable SUMMARIZATION_FAILED.
func (e *Engine) Summarize(ctx context.Context, req types.SummarizeRequest) (*types.SummaryResult, error) {
	start := time.Now()
	result, err := e.summarize(ctx, req, start)
	e.metrics.SummarizeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		if serr, ok := types.AsError(err); ok {
			e.metrics.RecordSummarizeError(ctx, string(serr.Code))
		}
		e.metrics.RecordSummary(ctx, string(req.Options.Length), "error")
		return nil, err
	}
	e.metrics.RecordSummary(ctx, string(req.Options.Length), "ok")
	return result, nil
}

func (e *Engine) summarize(ctx context.Context, req types.SummarizeRequest, started time.Time) (*types.SummaryResult, error) {
	opts := req.Options
	if opts.Model == "" {
		opts.Model = e.defaultModel
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(req.Messages) < opts.MinMessages {
		return nil, types.NewInsufficientContent(len(req.Messages), opts.MinMessages)
	}

	messages := optimize.Deduplicate(optimize.FilterMessages(req.Messages, opts))
	if len(messages) < opts.MinMessages {
		return nil, types.NewInsufficientContent(len(messages), opts.MinMessages)
	}

	windowStart, windowEnd := timeWindow(messages)
	key := cache.Key(req.ChannelID, windowStart, windowEnd, opts)

	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			e.metrics.RecordCacheLookup(ctx, "summary", true)
			e.log.Debug("summary served from cache", "channel_id", req.ChannelID, "key", key)
			return cached, nil
		}
		e.metrics.RecordCacheLookup(ctx, "summary", false)
	}

	built := e.builder.Build(messages, opts, req.Context)
	user := built.User
	estimated := built.EstimatedTokens
	if estimated > e.maxPromptTokens {
		systemTokens := prompt.EstimateTokens(built.System)
		truncated, fit := prompt.OptimizePromptLength(user, e.maxPromptTokens-systemTokens, 0)
		if !fit {
			// The framing alone busts the budget; no cut can produce a
			// sendable prompt.
			return nil, types.NewPromptTooLong(estimated, e.maxPromptTokens)
		}
		user = truncated
		estimated = systemTokens + prompt.EstimateTokens(user)
		if estimated > e.maxPromptTokens {
			return nil, types.NewPromptTooLong(estimated, e.maxPromptTokens)
		}
		e.log.Info("prompt truncated to fit budget",
			"channel_id", req.ChannelID, "estimated_tokens", estimated, "budget", e.maxPromptTokens)
	}

	llmStart := time.Now()
	resp, err := e.llm.CreateSummary(ctx, built.System, user, opts)
	e.metrics.LLMDuration.Record(ctx, time.Since(llmStart).Seconds())
	if err != nil {
		e.metrics.RecordLLMRequest(ctx, opts.Model, "error")
		return nil, types.WrapSummarizationFailed(err)
	}
	e.metrics.RecordLLMRequest(ctx, resp.Model, "ok")
	e.metrics.RecordTokens(ctx, resp.InputTokens, resp.OutputTokens)

	parsed, err := parse.Parse(resp.Content, messages)
	if err != nil {
		return nil, err
	}

	result := &types.SummaryResult{
		ID:             uuid.NewString(),
		ChannelID:      req.ChannelID,
		GuildID:        req.GuildID,
		StartTime:      windowStart,
		EndTime:        windowEnd,
		MessageCount:   len(messages),
		SummaryText:    parsed.SummaryText,
		KeyPoints:      parsed.KeyPoints,
		ActionItems:    parsed.ActionItems,
		TechnicalTerms: parsed.TechnicalTerms,
		Participants:   parsed.Participants,
		Metadata: types.SummaryMetadata{
			Model:             resp.Model,
			InputTokens:       resp.InputTokens,
			OutputTokens:      resp.OutputTokens,
			ResponseID:        resp.ResponseID,
			ProcessingSeconds: time.Since(started).Seconds(),
			Parsing:           parsed.Parsing,
			Incomplete:        resp.Incomplete(),
		},
		CreatedAt: time.Now().UTC(),
		Context:   req.Context,
	}

	if e.cache != nil {
		// Store failures are logged, never surfaced: the summary is valid
		// regardless of whether it was memoized.
		if err := e.cache.Set(key, result); err != nil {
			e.log.Warn("failed to cache summary", "key", key, "err", err)
		}
	}
	return result, nil
}

// EstimateCost projects the USD cost of summarizing messages without any
// network I/O. The projection assumes output hits the full length budget.
func (e *Engine) EstimateCost(messages []types.Message, opts types.SummaryOptions) (types.CostEstimate, error) {
	if err := opts.Validate(); err != nil {
		return types.CostEstimate{}, err
	}
	filtered := optimize.Deduplicate(optimize.FilterMessages(messages, opts))
	built := e.builder.Build(filtered, opts, nil)
	return e.llm.EstimateCost(built.EstimatedTokens, len(filtered), opts)
}

// Usage returns the LLM client's usage counters.
func (e *Engine) Usage() types.UsageStats {
	return e.llm.Usage()
}

// timeWindow returns the min and max timestamps across messages. Messages
// are not assumed to be sorted.
func timeWindow(messages []types.Message) (start, end time.Time) {
	start, end = messages[0].Timestamp, messages[0].Timestamp
	for _, m := range messages[1:] {
		if m.Timestamp.Before(start) {
			start = m.Timestamp
		}
		if m.Timestamp.After(end) {
			end = m.Timestamp
		}
	}
	return start, end
}
