package claude

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/lumisage/chatscribe/pkg/types"
)

// defaultRateLimitBackoff applies when a 429 carries no usable retry hint.
const defaultRateLimitBackoff = 60 * time.Second

// retryHint matches backoff durations embedded in rate-limit error messages,
// e.g. "Please try again in 12.5s".
var retryHint = regexp.MustCompile(`(?i)try again in\s+(\d+(?:\.\d+)?)\s*s`)

// mapAPIError classifies a transport or SDK error into the taxonomy.
// Errors already carrying a taxonomy code pass through unchanged.
func mapAPIError(err error) *types.Error {
	if serr, ok := types.AsError(err); ok {
		return serr
	}

	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return mapStatus(apierr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewTimeout(apiName, DefaultRequestTimeout)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return types.NewTimeout(apiName, DefaultRequestTimeout)
	}
	return types.NewNetworkError(apiName, err)
}

func mapStatus(apierr *anthropic.Error) *types.Error {
	switch apierr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewAuthenticationError(apiName)
	case http.StatusTooManyRequests:
		return types.NewRateLimit(apiName, retryAfterHint(apierr))
	case http.StatusBadRequest:
		detail := apierr.Error()
		lower := strings.ToLower(detail)
		if strings.Contains(lower, "context length") || strings.Contains(lower, "prompt is too long") {
			return types.NewContextLengthExceeded(apiName)
		}
		return types.NewBadRequest(apiName, detail)
	case http.StatusNotFound:
		return types.NewBadRequest(apiName, apierr.Error())
	default:
		if apierr.StatusCode >= 500 {
			return types.NewServiceUnavailable(apiName, apierr)
		}
		return types.NewBadRequest(apiName, apierr.Error())
	}
}

// retryAfterHint extracts a backoff from the Retry-After header, then from
// the error message, then falls back to the default.
func retryAfterHint(apierr *anthropic.Error) time.Duration {
	if apierr.Response != nil {
		if h := apierr.Response.Header.Get("Retry-After"); h != "" {
			if secs, err := strconv.ParseFloat(h, 64); err == nil && secs > 0 {
				return time.Duration(secs * float64(time.Second))
			}
		}
	}
	if m := retryHint.FindStringSubmatch(apierr.Error()); m != nil {
		if secs, err := strconv.ParseFloat(m[1], 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return defaultRateLimitBackoff
}
