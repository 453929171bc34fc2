// Package prompt assembles the system and user prompts for a summarization
// request and enforces prompt token budgets.
//
// The Builder is pure: it performs no I/O and is safe for concurrent use.
// It never fails — when a batch cannot fit the budget the Engine detects the
// oversize from the returned token estimate and rejects it downstream.
package prompt

import (
	"fmt"
	"strings"

	"github.com/lumisage/chatscribe/pkg/types"
)

// messagesHeader opens the messages section of the user prompt. The
// truncation logic relies on this marker to keep all framing above it intact.
const messagesHeader = "## Messages"

// finalInstruction closes every user prompt.
const finalInstruction = "Return valid JSON only, with no surrounding prose or code fences."

// Built is the assembled prompt pair plus telemetry about the assembly.
type Built struct {
	// System is the system prompt selected from the length-keyed templates
	// (or the custom override) with any negative instructions appended.
	System string

	// User is the four-section user prompt.
	User string

	// EstimatedTokens estimates the combined system+user token count.
	EstimatedTokens int

	// Metadata describes how the prompt was assembled.
	Metadata Metadata
}

// Metadata is assembly telemetry carried alongside a built prompt.
type Metadata struct {
	// Template names the system template used: "brief", "detailed",
	// "comprehensive", or "custom".
	Template string

	// MessagesRendered is the number of messages included in the prompt.
	MessagesRendered int

	// ContextIncluded reports whether a context section was rendered.
	ContextIncluded bool
}

// Builder assembles prompts. The zero value uses the built-in length-keyed
// system templates; construct with [WithSystemTemplate] to override them.
type Builder struct {
	systemOverride string
}

// Option is a functional option for [NewBuilder].
type Option func(*Builder)

// WithSystemTemplate replaces the built-in length-keyed system templates
// with a custom template. The override is used verbatim for every length;
// negative extraction instructions are still appended.
func WithSystemTemplate(tpl string) Option {
	return func(b *Builder) { b.systemOverride = tpl }
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Build assembles the system and user prompts for one request. sctx may be
// nil; only fields present in it are rendered.
func (b *Builder) Build(messages []types.Message, opts types.SummaryOptions, sctx *types.SummarizationContext) Built {
	system, template := b.systemPrompt(opts)

	var sb strings.Builder

	contextIncluded := writeContextSection(&sb, sctx)
	writeFormatSection(&sb, opts)

	sb.WriteString(messagesHeader)
	sb.WriteString("\n\n")
	rendered := 0
	for _, m := range messages {
		if !m.HasSubstantialContent(opts.IncludeAttachments) {
			continue
		}
		if rendered > 0 {
			sb.WriteString("\n\n")
		}
		writeMessage(&sb, m, opts.IncludeAttachments)
		rendered++
	}

	sb.WriteString("\n\n")
	sb.WriteString(finalInstruction)

	user := sb.String()
	return Built{
		System:          system,
		User:            user,
		EstimatedTokens: EstimateTokens(system) + EstimateTokens(user),
		Metadata: Metadata{
			Template:         template,
			MessagesRendered: rendered,
			ContextIncluded:  contextIncluded,
		},
	}
}

// systemPrompt selects the system template and appends negative extraction
// instructions for disabled flags.
func (b *Builder) systemPrompt(opts types.SummaryOptions) (prompt, template string) {
	switch {
	case b.systemOverride != "":
		prompt, template = b.systemOverride, "custom"
	case opts.Length == types.LengthDetailed:
		prompt, template = systemDetailed, "detailed"
	case opts.Length == types.LengthComprehensive:
		prompt, template = systemComprehensive, "comprehensive"
	default:
		prompt, template = systemBrief, "brief"
	}

	if !opts.ExtractActionItems {
		prompt += noActionItems
	}
	if !opts.ExtractTechnicalTerms {
		prompt += noTechnicalTerms
	}
	return prompt, template
}

// writeContextSection renders the optional context block. Returns whether
// anything was written.
func writeContextSection(sb *strings.Builder, sctx *types.SummarizationContext) bool {
	if sctx == nil {
		return false
	}

	var lines []string
	if sctx.ChannelName != "" {
		lines = append(lines, "Channel: #"+sctx.ChannelName)
	}
	if sctx.GuildName != "" {
		lines = append(lines, "Server: "+sctx.GuildName)
	}
	if sctx.TotalParticipants > 0 {
		lines = append(lines, fmt.Sprintf("Participants: %d", sctx.TotalParticipants))
	}
	if sctx.TimeSpanHours > 0 {
		lines = append(lines, fmt.Sprintf("Time span: %.1f hours", sctx.TimeSpanHours))
	}
	if sctx.Topic != "" {
		lines = append(lines, "Topic: "+sctx.Topic)
	}
	if sctx.ChannelType != "" {
		lines = append(lines, "Channel type: "+sctx.ChannelType)
	}
	if len(lines) == 0 {
		return false
	}

	sb.WriteString("## Context\n")
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	return true
}

// writeFormatSection restates the target length and inclusion policy.
func writeFormatSection(sb *strings.Builder, opts types.SummaryOptions) {
	length := opts.Length
	if !length.IsValid() {
		length = types.LengthBrief
	}

	fmt.Fprintf(sb, "## Format Instructions\nProduce a %s summary.\n", length)
	if opts.IncludeBots {
		sb.WriteString("Bot messages are included and may be summarized.\n")
	} else {
		sb.WriteString("Bot messages have been excluded.\n")
	}
	if opts.IncludeAttachments {
		sb.WriteString("Attachment descriptors are listed inline; mention notable attachments.\n")
	}
	sb.WriteString("\n")
}

// writeMessage renders one message line:
//
//	**author** (HH:MM) content [Attachments: ...] [Code Block (lang): N chars] [Thread: name]
func writeMessage(sb *strings.Builder, m types.Message, includeAttachments bool) {
	fmt.Fprintf(sb, "**%s** (%s) %s", m.AuthorName, m.Timestamp.UTC().Format("15:04"), m.CleanContent())

	if includeAttachments && len(m.Attachments) > 0 {
		names := make([]string, len(m.Attachments))
		for i, a := range m.Attachments {
			names[i] = a.Filename
		}
		fmt.Fprintf(sb, " [Attachments: %s]", strings.Join(names, ", "))
	}
	for _, cb := range m.CodeBlocks {
		lang := cb.Language
		if lang == "" {
			lang = "text"
		}
		fmt.Fprintf(sb, " [Code Block (%s): %d chars]", lang, len(cb.Code))
	}
	if m.Thread != nil && m.Thread.Name != "" {
		fmt.Fprintf(sb, " [Thread: %s]", m.Thread.Name)
	}
}
