// Package types defines the shared data model for the chatscribe
// summarization pipeline: input messages, summarization options, results,
// and the error taxonomy surfaced across component boundaries.
//
// All timestamps are UTC. Values of these types are treated as immutable
// snapshots once handed to the pipeline.
package types

import (
	"fmt"
	"strings"
	"time"
)

// SummaryLength selects the system-prompt template and output token budget
// for a summarization request.
type SummaryLength string

const (
	LengthBrief         SummaryLength = "brief"
	LengthDetailed      SummaryLength = "detailed"
	LengthComprehensive SummaryLength = "comprehensive"
)

// IsValid reports whether l is a recognised summary length.
func (l SummaryLength) IsValid() bool {
	switch l {
	case LengthBrief, LengthDetailed, LengthComprehensive:
		return true
	}
	return false
}

// OutputBudget returns the output token budget associated with this length.
func (l SummaryLength) OutputBudget() int {
	switch l {
	case LengthDetailed:
		return 4000
	case LengthComprehensive:
		return 8000
	default:
		return 1000
	}
}

// Attachment describes a file attached to a message.
type Attachment struct {
	// Filename is the attachment's display name (e.g., "diagram.png").
	Filename string `json:"filename"`

	// ContentType is the MIME type reported by the chat platform, if any.
	ContentType string `json:"content_type,omitempty"`

	// Size is the attachment size in bytes. Zero when unknown.
	Size int `json:"size,omitempty"`
}

// CodeBlock is a fenced code block extracted from a message body.
type CodeBlock struct {
	// Language is the fence language tag ("go", "python", ...). May be empty.
	Language string `json:"language,omitempty"`

	// Code is the verbatim block content without the fences.
	Code string `json:"code"`
}

// Thread describes the thread a message belongs to.
type Thread struct {
	// ID is the thread's channel ID.
	ID string `json:"id"`

	// Name is the thread's display name.
	Name string `json:"name"`

	// StarterID is the ID of the message that started the thread. A message
	// whose own ID equals StarterID is the thread opener.
	StarterID string `json:"starter_id,omitempty"`
}

// Message is a single chat message as consumed by the summarization pipeline.
// Messages are produced by the upstream fetcher and never mutated.
type Message struct {
	// ID is the platform message ID.
	ID string `json:"id"`

	// AuthorID is the stable user ID of the author.
	AuthorID string `json:"author_id"`

	// AuthorName is the author's display name at fetch time.
	AuthorName string `json:"author_name"`

	// Content is the raw message text.
	Content string `json:"content"`

	// Timestamp is the message creation time in UTC.
	Timestamp time.Time `json:"timestamp"`

	// Attachments lists any file attachments.
	Attachments []Attachment `json:"attachments,omitempty"`

	// CodeBlocks lists fenced code blocks found in Content.
	CodeBlocks []CodeBlock `json:"code_blocks,omitempty"`

	// Thread is set when the message lives in (or started) a thread.
	Thread *Thread `json:"thread,omitempty"`

	// Bot reports whether the author is a bot account.
	Bot bool `json:"bot,omitempty"`
}

// CleanContent returns Content with surrounding and internal whitespace
// normalised to single spaces.
func (m *Message) CleanContent() string {
	return strings.Join(strings.Fields(m.Content), " ")
}

// HasSubstantialContent reports whether the message carries summarizable
// content: non-empty cleaned text, or at least one attachment when
// attachments are enabled.
func (m *Message) HasSubstantialContent(includeAttachments bool) bool {
	if m.CleanContent() != "" {
		return true
	}
	return includeAttachments && len(m.Attachments) > 0
}

// SummaryOptions holds every caller-tunable knob for a summarization request.
// Use DefaultOptions to obtain a value with documented defaults, then
// override fields as needed.
type SummaryOptions struct {
	// Length selects the system-prompt template and output token budget.
	Length SummaryLength `json:"length" yaml:"length"`

	// IncludeBots keeps bot-authored messages in the batch. Default false.
	IncludeBots bool `json:"include_bots" yaml:"include_bots"`

	// IncludeAttachments renders attachment descriptors into the prompt and
	// lets attachment-only messages count as substantial. Default true.
	IncludeAttachments bool `json:"include_attachments" yaml:"include_attachments"`

	// ExcludedUsers lists author IDs whose messages are dropped.
	ExcludedUsers []string `json:"excluded_users,omitempty" yaml:"excluded_users"`

	// MinMessages is the minimum post-filter message count; summarization
	// fails with INSUFFICIENT_CONTENT below it. Must be >= 1.
	MinMessages int `json:"min_messages" yaml:"min_messages"`

	// ExtractActionItems asks the model to extract action items. Default true.
	ExtractActionItems bool `json:"extract_action_items" yaml:"extract_action_items"`

	// ExtractTechnicalTerms asks the model to extract technical terms with
	// definitions. Default true.
	ExtractTechnicalTerms bool `json:"extract_technical_terms" yaml:"extract_technical_terms"`

	// Model is the LLM model identifier. Must be present in the client's
	// model registry.
	Model string `json:"model" yaml:"model"`

	// Temperature is the sampling temperature in [0, 2]. Default 0.3.
	Temperature float64 `json:"temperature" yaml:"temperature"`

	// MaxTokens overrides the length-derived output token budget when > 0.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens"`
}

// DefaultOptions returns the documented option defaults.
func DefaultOptions() SummaryOptions {
	return SummaryOptions{
		Length:                LengthBrief,
		IncludeBots:           false,
		IncludeAttachments:    true,
		MinMessages:           5,
		ExtractActionItems:    true,
		ExtractTechnicalTerms: true,
		Temperature:           0.3,
	}
}

// OutputBudget returns the effective output token cap: MaxTokens when set,
// otherwise the budget derived from Length.
func (o SummaryOptions) OutputBudget() int {
	if o.MaxTokens > 0 {
		return o.MaxTokens
	}
	return o.Length.OutputBudget()
}

// ExcludesUser reports whether the given author ID is in ExcludedUsers.
func (o SummaryOptions) ExcludesUser(userID string) bool {
	for _, u := range o.ExcludedUsers {
		if u == userID {
			return true
		}
	}
	return false
}

// Validate checks option ranges and enum membership. It returns an
// INVALID_OPTIONS error describing the first violation found.
func (o SummaryOptions) Validate() error {
	if o.Length != "" && !o.Length.IsValid() {
		return NewInvalidOptions(fmt.Sprintf("length %q is invalid; valid values: brief, detailed, comprehensive", o.Length))
	}
	if o.MinMessages < 1 {
		return NewInvalidOptions(fmt.Sprintf("min_messages %d is out of range; must be >= 1", o.MinMessages))
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		return NewInvalidOptions(fmt.Sprintf("temperature %.2f is out of range [0, 2]", o.Temperature))
	}
	if o.MaxTokens < 0 {
		return NewInvalidOptions(fmt.Sprintf("max_tokens %d must not be negative", o.MaxTokens))
	}
	return nil
}

// SummarizationContext carries optional channel framing rendered into the
// user prompt. It never affects the cache key.
type SummarizationContext struct {
	// ChannelName is the human-readable channel name.
	ChannelName string `json:"channel_name,omitempty"`

	// GuildName is the human-readable guild (server) name.
	GuildName string `json:"guild_name,omitempty"`

	// TotalParticipants is the number of distinct authors in the batch.
	TotalParticipants int `json:"total_participants,omitempty"`

	// TimeSpanHours is the conversation's span in hours.
	TimeSpanHours float64 `json:"time_span_hours,omitempty"`

	// Topic is an optional free-text topic tag.
	Topic string `json:"topic,omitempty"`

	// ChannelType is an optional channel type tag (e.g., "support").
	ChannelType string `json:"channel_type,omitempty"`
}

// ActionPriority is the urgency level of an extracted action item.
type ActionPriority string

const (
	PriorityLow      ActionPriority = "low"
	PriorityMedium   ActionPriority = "medium"
	PriorityHigh     ActionPriority = "high"
	PriorityCritical ActionPriority = "critical"
)

// ParsePriority coerces a free-text priority string to an ActionPriority.
// Unrecognised values map to PriorityMedium.
func ParsePriority(s string) ActionPriority {
	switch ActionPriority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	case PriorityCritical:
		return PriorityCritical
	default:
		return PriorityMedium
	}
}

// ActionItem is a follow-up task extracted from the conversation.
type ActionItem struct {
	Description string         `json:"description"`
	Assignee    string         `json:"assignee,omitempty"`
	Priority    ActionPriority `json:"priority"`
	Completed   bool           `json:"completed"`
}

// TechnicalTerm is a domain term extracted from the conversation.
type TechnicalTerm struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Context    string `json:"context,omitempty"`
}

// Participant summarises one author's contribution to the conversation.
type Participant struct {
	DisplayName      string   `json:"display_name"`
	MessageCount     int      `json:"message_count"`
	KeyContributions []string `json:"key_contributions,omitempty"`
}

// ParsingMetadata records which parsing strategy produced the summary and
// any warnings accumulated along the fallback chain.
type ParsingMetadata struct {
	// Method is the strategy that succeeded: "json", "markdown", or "freeform".
	Method string `json:"method"`

	// Warnings lists per-strategy failures recorded before Method succeeded.
	Warnings []string `json:"warnings,omitempty"`
}

// ParsedSummary is the Response Parser's output: a SummaryResult minus the
// framing fields (channel, guild, time range, message count) supplied by the
// Engine.
type ParsedSummary struct {
	SummaryText    string          `json:"summary_text"`
	KeyPoints      []string        `json:"key_points,omitempty"`
	ActionItems    []ActionItem    `json:"action_items,omitempty"`
	TechnicalTerms []TechnicalTerm `json:"technical_terms,omitempty"`
	Participants   []Participant   `json:"participants,omitempty"`
	Parsing        ParsingMetadata `json:"parsing"`
}

// SummaryMetadata carries LLM accounting and processing telemetry for a
// SummaryResult.
type SummaryMetadata struct {
	// Model is the LLM model that produced the summary.
	Model string `json:"claude_model"`

	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	ResponseID   string `json:"response_id,omitempty"`

	// ProcessingSeconds is the wall-clock pipeline duration.
	ProcessingSeconds float64 `json:"processing_time_seconds"`

	Parsing ParsingMetadata `json:"parsing"`

	// Incomplete is set when the model stopped at the output token cap.
	Incomplete bool `json:"incomplete,omitempty"`

	// Error marks a synthesized failure entry in batch results.
	Error bool `json:"error,omitempty"`

	// ErrorCode is the taxonomy code for a synthesized failure entry.
	ErrorCode Code `json:"error_code,omitempty"`
}

// SummaryResult is the pipeline's final product. It is immutable once
// returned: the Engine writes it to cache and hands it to the caller.
type SummaryResult struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`

	// StartTime and EndTime are derived from the min/max message timestamps,
	// never from the wall clock. StartTime <= EndTime always holds.
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// MessageCount is the number of messages that survived filtering.
	MessageCount int `json:"message_count"`

	SummaryText    string          `json:"summary_text"`
	KeyPoints      []string        `json:"key_points,omitempty"`
	ActionItems    []ActionItem    `json:"action_items,omitempty"`
	TechnicalTerms []TechnicalTerm `json:"technical_terms,omitempty"`
	Participants   []Participant   `json:"participants,omitempty"`

	Metadata  SummaryMetadata `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`

	// Context echoes the request context when one was supplied.
	Context *SummarizationContext `json:"context,omitempty"`
}

// UsageStats is a snapshot of an LLM client's monotonic usage counters.
type UsageStats struct {
	TotalRequests     int64     `json:"total_requests"`
	TotalInputTokens  int64     `json:"total_input_tokens"`
	TotalOutputTokens int64     `json:"total_output_tokens"`
	TotalCostUSD      float64   `json:"total_cost_usd"`
	Errors            int64     `json:"errors"`
	RateLimitHits     int64     `json:"rate_limit_hits"`
	LastRequestTime   time.Time `json:"last_request_time"`
}

// CostEstimate is the result of a no-network cost projection.
type CostEstimate struct {
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	InputTokens      int     `json:"input_tokens"`
	OutputTokens     int     `json:"output_tokens"`
	Model            string  `json:"model"`
	MessageCount     int     `json:"message_count"`
}
