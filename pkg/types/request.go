package types

// SummarizeRequest bundles everything one pipeline invocation needs. Batch
// callers submit a slice of these; the engine also uses it to build request
// signatures for batch deduplication.
type SummarizeRequest struct {
	Messages  []Message             `json:"messages"`
	Options   SummaryOptions        `json:"options"`
	Context   *SummarizationContext `json:"context,omitempty"`
	ChannelID string                `json:"channel_id"`
	GuildID   string                `json:"guild_id"`
}
