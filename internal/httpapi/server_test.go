package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lumisage/chatscribe/internal/config"
	"github.com/lumisage/chatscribe/internal/health"
	"github.com/lumisage/chatscribe/pkg/types"
)

// fakeEngine returns canned results so handlers can be tested without an
// LLM client.
type fakeEngine struct {
	result *types.SummaryResult
	err    error
	usage  types.UsageStats

	lastReq types.SummarizeRequest
}

func (f *fakeEngine) Summarize(_ context.Context, req types.SummarizeRequest) (*types.SummaryResult, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeEngine) BatchSummarize(ctx context.Context, reqs []types.SummarizeRequest) []*types.SummaryResult {
	results := make([]*types.SummaryResult, len(reqs))
	for i, req := range reqs {
		res := *f.result
		res.ChannelID = req.ChannelID
		results[i] = &res
	}
	return results
}

func (f *fakeEngine) EstimateCost(messages []types.Message, opts types.SummaryOptions) (types.CostEstimate, error) {
	if f.err != nil {
		return types.CostEstimate{}, f.err
	}
	return types.CostEstimate{
		EstimatedCostUSD: 0.0123,
		InputTokens:      4000,
		OutputTokens:     800,
		MessageCount:     len(messages),
	}, nil
}

func (f *fakeEngine) Usage() types.UsageStats { return f.usage }

func newTestServer(t *testing.T, engine Engine) *httptest.Server {
	t.Helper()
	s := New(config.ServerConfig{ListenAddr: ":0"}, engine, nil)
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func sampleEngine() *fakeEngine {
	return &fakeEngine{
		result: &types.SummaryResult{
			ID:           "sum-1",
			ChannelID:    "chan-1",
			SummaryText:  "The team agreed on the rollout plan.",
			MessageCount: 42,
			CreatedAt:    time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC),
		},
		usage: types.UsageStats{
			TotalRequests:    7,
			TotalInputTokens: 12000,
			TotalCostUSD:     0.42,
		},
	}
}

func TestSummarize_OK(t *testing.T) {
	t.Parallel()

	engine := sampleEngine()
	ts := newTestServer(t, engine)

	body := `{"channel_id":"chan-1","guild_id":"guild-1","messages":[{"id":"m1","content":"hi"}],"options":{"length":"brief"}}`
	resp := postJSON(t, ts.URL+"/api/v1/summarize", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}

	res := decodeBody[types.SummaryResult](t, resp)
	if res.ID != "sum-1" {
		t.Errorf("result ID = %q, want sum-1", res.ID)
	}
	if engine.lastReq.ChannelID != "chan-1" {
		t.Errorf("engine saw channel %q, want chan-1", engine.lastReq.ChannelID)
	}
	if engine.lastReq.Options.Length != types.LengthBrief {
		t.Errorf("engine saw length %q, want brief", engine.lastReq.Options.Length)
	}
}

func TestSummarize_InvalidBody(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, sampleEngine())

	resp := postJSON(t, ts.URL+"/api/v1/summarize", `{"messages": not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	errResp := decodeBody[errorResponse](t, resp)
	if errResp.Code != string(types.CodeBadRequest) {
		t.Errorf("error code = %q, want BAD_REQUEST", errResp.Code)
	}
}

func TestSummarize_UnknownField(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, sampleEngine())

	resp := postJSON(t, ts.URL+"/api/v1/summarize", `{"channel":"oops"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSummarize_EngineErrorMapsStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   types.Code
	}{
		{
			name:       "insufficient content",
			err:        types.NewInsufficientContent(2, 5),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   types.CodeInsufficientContent,
		},
		{
			name:       "rate limited",
			err:        types.NewRateLimit("anthropic", 30*time.Second),
			wantStatus: http.StatusTooManyRequests,
			wantCode:   types.CodeRateLimit,
		},
		{
			name:       "prompt too long",
			err:        types.NewPromptTooLong(200000, 100000),
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   types.CodePromptTooLong,
		},
		{
			name:       "timeout",
			err:        types.NewTimeout("anthropic", time.Minute),
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   types.CodeAPITimeout,
		},
		{
			name:       "model unavailable",
			err:        types.NewModelUnavailable("claude-instant"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   types.CodeModelUnavailable,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			engine := sampleEngine()
			engine.err = tc.err
			ts := newTestServer(t, engine)

			resp := postJSON(t, ts.URL+"/api/v1/summarize", `{"channel_id":"c","messages":[]}`)
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
			errResp := decodeBody[errorResponse](t, resp)
			if errResp.Code != string(tc.wantCode) {
				t.Errorf("error code = %q, want %q", errResp.Code, tc.wantCode)
			}
			if errResp.Message == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestBatch_PreservesOrder(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, sampleEngine())

	body := `{"requests":[
		{"channel_id":"chan-a","messages":[]},
		{"channel_id":"chan-b","messages":[]},
		{"channel_id":"chan-c","messages":[]}
	]}`
	resp := postJSON(t, ts.URL+"/api/v1/summarize/batch", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	batch := decodeBody[batchResponse](t, resp)
	if len(batch.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(batch.Results))
	}
	for i, want := range []string{"chan-a", "chan-b", "chan-c"} {
		if batch.Results[i].ChannelID != want {
			t.Errorf("result[%d] channel = %q, want %q", i, batch.Results[i].ChannelID, want)
		}
	}
}

func TestBatch_EmptyRejected(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, sampleEngine())

	resp := postJSON(t, ts.URL+"/api/v1/summarize/batch", `{"requests":[]}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestEstimate(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, sampleEngine())

	body := `{"messages":[{"id":"m1","content":"hello"},{"id":"m2","content":"world"}],"options":{}}`
	resp := postJSON(t, ts.URL+"/api/v1/estimate", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	est := decodeBody[types.CostEstimate](t, resp)
	if est.MessageCount != 2 {
		t.Errorf("message count = %d, want 2", est.MessageCount)
	}
	if est.EstimatedCostUSD != 0.0123 {
		t.Errorf("cost = %v, want 0.0123", est.EstimatedCostUSD)
	}
}

func TestUsage(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, sampleEngine())

	resp, err := http.Get(ts.URL + "/api/v1/usage")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	stats := decodeBody[types.UsageStats](t, resp)
	if stats.TotalRequests != 7 {
		t.Errorf("total requests = %d, want 7", stats.TotalRequests)
	}
	if stats.TotalCostUSD != 0.42 {
		t.Errorf("total cost = %v, want 0.42", stats.TotalCostUSD)
	}
}

func TestHealthRoutesMounted(t *testing.T) {
	t.Parallel()

	s := New(config.ServerConfig{}, sampleEngine(), health.New())
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, sampleEngine())

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code types.Code
		want int
	}{
		{types.CodeBadRequest, http.StatusBadRequest},
		{types.CodeInvalidOptions, http.StatusBadRequest},
		{types.CodeInsufficientContent, http.StatusUnprocessableEntity},
		{types.CodeContextLengthExceeded, http.StatusRequestEntityTooLarge},
		{types.CodeRateLimit, http.StatusTooManyRequests},
		{types.CodeAuthenticationFailed, http.StatusBadGateway},
		{types.CodeResponseParseFailed, http.StatusBadGateway},
		{types.CodeAPITimeout, http.StatusGatewayTimeout},
		{types.CodeNetworkError, http.StatusServiceUnavailable},
		{types.CodeSummarizationFailed, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := statusFor(tc.code); got != tc.want {
			t.Errorf("statusFor(%s) = %d, want %d", tc.code, got, tc.want)
		}
	}
}
