package types

import (
	"errors"
	"fmt"
	"time"
)

// Code is a stable machine-readable error identifier surfaced across the
// service boundary. Codes never change once shipped; wire format is the
// caller's concern.
type Code string

const (
	CodeInsufficientContent   Code = "INSUFFICIENT_CONTENT"
	CodeInvalidOptions        Code = "INVALID_OPTIONS"
	CodePromptTooLong         Code = "PROMPT_TOO_LONG"
	CodeTokenLimitExceeded    Code = "TOKEN_LIMIT_EXCEEDED"
	CodeResponseParseFailed   Code = "RESPONSE_PARSE_FAILED"
	CodeRateLimit             Code = "RATE_LIMIT"
	CodeAuthenticationFailed  Code = "AUTHENTICATION_FAILED"
	CodeNetworkError          Code = "NETWORK_ERROR"
	CodeAPITimeout            Code = "API_TIMEOUT"
	CodeModelUnavailable      Code = "MODEL_UNAVAILABLE"
	CodeContextLengthExceeded Code = "CONTEXT_LENGTH_EXCEEDED"
	CodeServiceUnavailable    Code = "SERVICE_UNAVAILABLE"
	CodeInvalidResponse       Code = "INVALID_RESPONSE"
	CodeBadRequest            Code = "BAD_REQUEST"
	CodeSummarizationFailed   Code = "SUMMARIZATION_FAILED"
)

// Error is the single error type for the whole taxonomy. Variants are
// distinguished by Code; shared fields carry everything a caller needs to
// react (retryability, suggested backoff) and everything an operator needs
// to diagnose (API name, wrapped cause).
type Error struct {
	// Code identifies the error variant.
	Code Code

	// Message is a terse machine-oriented description.
	Message string

	// UserMessage is safe to display to end users verbatim.
	UserMessage string

	// Retryable reports whether retrying the same request may succeed.
	Retryable bool

	// RetryAfter is the suggested backoff for retryable errors. Zero when
	// no hint is available.
	RetryAfter time.Duration

	// API names the remote service for transport-level errors ("anthropic").
	API string

	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match any *Error carrying the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// AsError unwraps err into a *Error if one is present in its chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code Code) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// NewInsufficientContent reports a post-filter message count below the
// configured minimum.
func NewInsufficientContent(got, min int) *Error {
	return &Error{
		Code:        CodeInsufficientContent,
		Message:     fmt.Sprintf("%d messages after filtering, need at least %d", got, min),
		UserMessage: "Not enough messages to summarize. Try a wider time range.",
	}
}

// NewInvalidOptions reports a malformed SummaryOptions value.
func NewInvalidOptions(detail string) *Error {
	return &Error{
		Code:        CodeInvalidOptions,
		Message:     detail,
		UserMessage: "The summarization options are invalid: " + detail,
	}
}

// NewPromptTooLong reports a prompt whose token estimate exceeds the budget
// even after truncation.
func NewPromptTooLong(estimated, max int) *Error {
	return &Error{
		Code:        CodePromptTooLong,
		Message:     fmt.Sprintf("prompt estimates at %d tokens, limit is %d", estimated, max),
		UserMessage: "The conversation is too long to summarize. Try a narrower time range or fewer messages.",
	}
}

// NewModelUnavailable reports a model identifier absent from the registry.
func NewModelUnavailable(model string) *Error {
	return &Error{
		Code:        CodeModelUnavailable,
		Message:     fmt.Sprintf("model %q is not in the model registry", model),
		UserMessage: "The requested AI model is not available.",
	}
}

// NewRateLimit reports a remote rate limit. retryAfter is the backoff parsed
// from the remote error, or the 60s default.
func NewRateLimit(api string, retryAfter time.Duration) *Error {
	return &Error{
		Code:        CodeRateLimit,
		Message:     fmt.Sprintf("%s rate limit exceeded", api),
		UserMessage: "The AI service is busy. Please try again shortly.",
		Retryable:   true,
		RetryAfter:  retryAfter,
		API:         api,
	}
}

// NewTimeout reports a request that exceeded its deadline.
func NewTimeout(api string, after time.Duration) *Error {
	return &Error{
		Code:        CodeAPITimeout,
		Message:     fmt.Sprintf("%s request timed out after %s", api, after),
		UserMessage: "The AI service took too long to respond. Please try again.",
		Retryable:   true,
		API:         api,
	}
}

// NewNetworkError reports a connection-level failure.
func NewNetworkError(api string, cause error) *Error {
	return &Error{
		Code:        CodeNetworkError,
		Message:     fmt.Sprintf("%s connection failed", api),
		UserMessage: "Could not reach the AI service. Please try again.",
		Retryable:   true,
		API:         api,
		Err:         cause,
	}
}

// NewAuthenticationError reports rejected credentials. Operator-visible,
// never retryable.
func NewAuthenticationError(api string) *Error {
	return &Error{
		Code:        CodeAuthenticationFailed,
		Message:     fmt.Sprintf("%s rejected the configured credentials", api),
		UserMessage: "The summarization service is misconfigured. Please contact an administrator.",
		API:         api,
	}
}

// NewContextLengthExceeded reports a request rejected by the remote model
// for exceeding its context window.
func NewContextLengthExceeded(api string) *Error {
	return &Error{
		Code:        CodeContextLengthExceeded,
		Message:     "request exceeds the model context window",
		UserMessage: "The conversation is too long for the AI model. Try a narrower time range.",
		API:         api,
	}
}

// NewServiceUnavailable reports a remote 5xx/overloaded condition.
func NewServiceUnavailable(api string, cause error) *Error {
	return &Error{
		Code:        CodeServiceUnavailable,
		Message:     fmt.Sprintf("%s is unavailable", api),
		UserMessage: "The AI service is temporarily unavailable. Please try again.",
		Retryable:   true,
		API:         api,
		Err:         cause,
	}
}

// NewBadRequest reports a request the remote API rejected as malformed.
func NewBadRequest(api, detail string) *Error {
	return &Error{
		Code:        CodeBadRequest,
		Message:     detail,
		UserMessage: "The summarization request was rejected by the AI service.",
		API:         api,
	}
}

// NewInvalidResponse reports a response whose shape does not match the
// expected protocol.
func NewInvalidResponse(api, detail string) *Error {
	return &Error{
		Code:        CodeInvalidResponse,
		Message:     detail,
		UserMessage: "The AI service returned an unexpected response. Please try again.",
		API:         api,
	}
}

// NewResponseParseFailed reports that every parser in the fallback chain
// failed to extract a summary.
func NewResponseParseFailed(warnings []string) *Error {
	msg := "no parser could extract a summary from the response"
	if len(warnings) > 0 {
		msg = fmt.Sprintf("%s: %v", msg, warnings)
	}
	return &Error{
		Code:        CodeResponseParseFailed,
		Message:     msg,
		UserMessage: "The AI response could not be understood. Please try again.",
	}
}

// WrapSummarizationFailed wraps an unexpected sub-component error. Errors
// already belonging to the taxonomy pass through unchanged.
func WrapSummarizationFailed(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsError(err); ok {
		return err
	}
	return &Error{
		Code:        CodeSummarizationFailed,
		Message:     "summarization pipeline failed",
		UserMessage: "Something went wrong while summarizing. Please try again.",
		Retryable:   true,
		Err:         err,
	}
}
