// Package httpapi exposes the summarization engine over HTTP.
//
// The server mounts a small JSON API under /api/v1 next to the health and
// metrics endpoints. Summaries requested over HTTP carry their messages
// inline, so the API works without a Discord connection and is what the
// dashboard and batch tooling talk to.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumisage/chatscribe/internal/config"
	"github.com/lumisage/chatscribe/internal/health"
	"github.com/lumisage/chatscribe/internal/observe"
	"github.com/lumisage/chatscribe/pkg/types"
)

const (
	// maxBodyBytes caps request bodies. A full day of chat in a busy channel
	// serializes to well under 4 MiB.
	maxBodyBytes = 8 << 20

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Engine is the subset of the summarization engine the API needs.
type Engine interface {
	Summarize(ctx context.Context, req types.SummarizeRequest) (*types.SummaryResult, error)
	BatchSummarize(ctx context.Context, reqs []types.SummarizeRequest) []*types.SummaryResult
	EstimateCost(messages []types.Message, opts types.SummaryOptions) (types.CostEstimate, error)
	Usage() types.UsageStats
}

// Server serves the chatscribe HTTP API.
type Server struct {
	engine  Engine
	health  *health.Handler
	metrics *observe.Metrics
	cfg     config.ServerConfig
	log     *slog.Logger

	srv *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithMetrics sets the metrics used by the request middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a Server. The health handler may be nil, in which case the
// /healthz and /readyz routes are not mounted.
func New(cfg config.ServerConfig, engine Engine, healthHandler *health.Handler, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		health: healthHandler,
		cfg:    cfg,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Routes builds the full handler chain: API routes, health routes, the
// Prometheus scrape endpoint, and the tracing middleware around all of it.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/summarize", s.handleSummarize)
	mux.HandleFunc("POST /api/v1/summarize/batch", s.handleBatch)
	mux.HandleFunc("POST /api/v1/estimate", s.handleEstimate)
	mux.HandleFunc("GET /api/v1/usage", s.handleUsage)
	mux.Handle("GET /metrics", promhttp.Handler())

	if s.health != nil {
		s.health.Register(mux)
	}

	return observe.Middleware(s.metrics)(mux)
}

// Run starts the server and blocks until ctx is cancelled or the listener
// fails. On cancellation it drains in-flight requests before returning.
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.TLS != nil {
			s.log.Info("http server listening", "addr", s.cfg.ListenAddr, "tls", true)
			err = s.srv.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.log.Info("http server listening", "addr", s.cfg.ListenAddr, "tls", false)
			err = s.srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("httpapi: listen on %s: %w", s.cfg.ListenAddr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpapi: shutdown: %w", err)
	}
	return nil
}

// ─── Handlers ────────────────────────────────────────────────────────────────

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req types.SummarizeRequest
	if !s.decode(w, r, &req) {
		return
	}

	res, err := s.engine.Summarize(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// batchRequest is the wire shape of a batch summarization call.
type batchRequest struct {
	Requests []types.SummarizeRequest `json:"requests"`
}

// batchResponse wraps the per-request results. Slots keep the request order;
// a failed request carries its taxonomy code in Metadata.Error instead of
// failing the whole batch.
type batchResponse struct {
	Results []*types.SummaryResult `json:"results"`
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Requests) == 0 {
		s.writeError(w, r, types.NewBadRequest("httpapi", "requests must not be empty"))
		return
	}

	results := s.engine.BatchSummarize(r.Context(), req.Requests)
	s.writeJSON(w, http.StatusOK, batchResponse{Results: results})
}

// estimateRequest carries the inputs for a no-network cost projection.
type estimateRequest struct {
	Messages []types.Message      `json:"messages"`
	Options  types.SummaryOptions `json:"options"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if !s.decode(w, r, &req) {
		return
	}

	est, err := s.engine.EstimateCost(req.Messages, req.Options)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, est)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Usage())
}

// ─── Encoding helpers ────────────────────────────────────────────────────────

// errorResponse is the JSON error envelope. Code is the stable taxonomy code
// so clients can branch without parsing the message.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, r, types.NewBadRequest("httpapi", "invalid request body: "+err.Error()))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := types.CodeSummarizationFailed
	message := "summarization failed"
	if serr, ok := types.AsError(err); ok {
		code = serr.Code
		message = serr.Message
	}

	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "code", code, "err", err)
	} else {
		s.log.Debug("request rejected", "path", r.URL.Path, "code", code, "err", err)
	}
	s.writeJSON(w, status, errorResponse{Code: string(code), Message: message})
}

// statusFor maps taxonomy codes onto HTTP status codes. Caller mistakes map
// to 4xx, upstream and transient failures to 5xx.
func statusFor(code types.Code) int {
	switch code {
	case types.CodeBadRequest, types.CodeInvalidOptions:
		return http.StatusBadRequest
	case types.CodeInsufficientContent:
		return http.StatusUnprocessableEntity
	case types.CodePromptTooLong, types.CodeTokenLimitExceeded, types.CodeContextLengthExceeded:
		return http.StatusRequestEntityTooLarge
	case types.CodeRateLimit:
		return http.StatusTooManyRequests
	case types.CodeAuthenticationFailed, types.CodeInvalidResponse, types.CodeResponseParseFailed:
		return http.StatusBadGateway
	case types.CodeAPITimeout:
		return http.StatusGatewayTimeout
	case types.CodeModelUnavailable, types.CodeServiceUnavailable, types.CodeNetworkError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
