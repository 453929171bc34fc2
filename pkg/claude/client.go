// Package claude provides the LLM client used by the summarization engine:
// a thin adapter over the Anthropic Messages API with process-wide request
// pacing, a bounded retry policy, taxonomy error mapping, and usage
// accounting.
//
// The SDK's built-in retries are disabled; the client owns all retry and
// backoff decisions so that usage counters and error classification stay
// consistent.
package claude

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"github.com/lumisage/chatscribe/pkg/types"
)

// apiName tags taxonomy errors originating from this client.
const apiName = "anthropic"

const (
	// DefaultMaxRetries bounds retry attempts after the initial request.
	DefaultMaxRetries = 3

	// DefaultRequestTimeout bounds a single outbound request, including
	// connection setup and the full response read.
	DefaultRequestTimeout = 120 * time.Second

	// DefaultMinRequestInterval is the advisory process-wide pacing floor
	// between outbound requests.
	DefaultMinRequestInterval = 100 * time.Millisecond
)

// Response is the whole-value result of one completion call. Streaming is
// not supported; callers always receive complete responses.
type Response struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	StopReason   string
	ResponseID   string
	CreatedAt    time.Time
}

// Incomplete reports whether the model stopped at the output token cap.
// Incomplete responses are still usable; callers flag them in metadata.
func (r *Response) Incomplete() bool {
	return r.StopReason == "max_tokens"
}

type config struct {
	baseURL        string
	maxRetries     int
	requestTimeout time.Duration
	minInterval    time.Duration
	httpClient     *http.Client
	logger         *slog.Logger
}

// Option is a functional option for Client.
type Option func(*config)

// WithBaseURL overrides the default Anthropic API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithMaxRetries sets the retry budget. Zero disables retries entirely.
func WithMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// WithRequestTimeout sets the per-request deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *config) {
		c.requestTimeout = d
	}
}

// WithMinRequestInterval sets the pacing floor between outbound requests.
func WithMinRequestInterval(d time.Duration) Option {
	return func(c *config) {
		c.minInterval = d
	}
}

// WithHTTPClient substitutes the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// Client is a summarization-oriented Anthropic API client. It is safe for
// concurrent use; pacing and usage accounting are shared across all callers
// of one instance.
type Client struct {
	api            anthropic.Client
	limiter        *rate.Limiter
	maxRetries     int
	requestTimeout time.Duration
	log            *slog.Logger

	mu    sync.Mutex
	stats types.UsageStats
}

// New constructs a Client. The API key must not be empty; everything else
// has defaults.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("claude: apiKey must not be empty")
	}

	cfg := &config{
		maxRetries:     DefaultMaxRetries,
		requestTimeout: DefaultRequestTimeout,
		minInterval:    DefaultMinRequestInterval,
		logger:         slog.Default(),
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.maxRetries < 0 {
		return nil, fmt.Errorf("claude: maxRetries must not be negative")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Retries are owned by this client, not the SDK.
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(cfg.httpClient))
	}

	return &Client{
		api:            anthropic.NewClient(reqOpts...),
		limiter:        rate.NewLimiter(rate.Every(cfg.minInterval), 1),
		maxRetries:     cfg.maxRetries,
		requestTimeout: cfg.requestTimeout,
		log:            cfg.logger,
	}, nil
}

// CreateSummary sends one completion request and returns the whole response.
// It validates the model against the registry before any network I/O, paces
// outbound requests process-wide, and retries per error class up to the
// configured budget. All errors carry the taxonomy from [types.Error].
func (c *Client) CreateSummary(ctx context.Context, system, user string, opts types.SummaryOptions) (*Response, error) {
	model, merr := resolveModel(opts.Model)
	if merr != nil {
		c.recordFailure(merr)
		return nil, merr
	}
	maxTokens := opts.OutputBudget()

	var lastErr *types.Error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoffFor(lastErr, attempt-1)
			c.log.Warn("retrying summarization request",
				"attempt", attempt, "backoff", wait, "code", lastErr.Code)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("claude: request abandoned during backoff: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("claude: request abandoned while pacing: %w", err)
		}

		resp, err := c.send(ctx, model, maxTokens, system, user, opts.Temperature)
		if err == nil {
			c.recordSuccess(model, resp)
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("claude: request cancelled: %w", ctx.Err())
		}

		serr := mapAPIError(err)
		c.recordFailure(serr)
		if !serr.Retryable {
			return nil, serr
		}
		lastErr = serr
	}
	return nil, lastErr
}

func (c *Client) send(ctx context.Context, model string, maxTokens int, system, user string, temperature float64) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return nil, err
	}

	var content strings.Builder
	for _, block := range msg.Content {
		content.WriteString(block.Text)
	}
	if content.Len() == 0 {
		return nil, types.NewInvalidResponse(apiName, "response carries no text content")
	}

	return &Response{
		Content:      content.String(),
		Model:        string(msg.Model),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
		StopReason:   string(msg.StopReason),
		ResponseID:   msg.ID,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// HealthCheck probes API reachability with a one-token request against the
// cheapest registered model.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(healthCheckModel),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return mapAPIError(err)
	}
	return nil
}

// EstimateCost projects the USD cost of a request without network I/O.
// Output tokens are assumed to hit the options' full output budget.
func (c *Client) EstimateCost(inputTokens, messageCount int, opts types.SummaryOptions) (types.CostEstimate, error) {
	model, err := resolveModel(opts.Model)
	if err != nil {
		return types.CostEstimate{}, err
	}
	outputTokens := opts.OutputBudget()
	return types.CostEstimate{
		EstimatedCostUSD: computeCost(model, inputTokens, outputTokens),
		InputTokens:      inputTokens,
		OutputTokens:     outputTokens,
		Model:            model,
		MessageCount:     messageCount,
	}, nil
}

// Usage returns a snapshot of the client's monotonic usage counters.
func (c *Client) Usage() types.UsageStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Client) recordSuccess(model string, resp *Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.TotalRequests++
	c.stats.TotalInputTokens += int64(resp.InputTokens)
	c.stats.TotalOutputTokens += int64(resp.OutputTokens)
	c.stats.TotalCostUSD += computeCost(model, resp.InputTokens, resp.OutputTokens)
	c.stats.LastRequestTime = time.Now().UTC()
}

func (c *Client) recordFailure(serr *types.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if serr.Code == types.CodeRateLimit {
		c.stats.RateLimitHits++
	} else {
		c.stats.Errors++
	}
	c.stats.LastRequestTime = time.Now().UTC()
}

// backoffFor picks the sleep before retry. Rate limits honor the remote
// hint; everything else backs off exponentially from one second.
func backoffFor(serr *types.Error, priorAttempt int) time.Duration {
	if serr.Code == types.CodeRateLimit && serr.RetryAfter > 0 {
		return serr.RetryAfter
	}
	return time.Duration(1<<priorAttempt) * time.Second
}
