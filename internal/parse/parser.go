// Package parse converts LLM response text into a structured summary.
//
// Models drift between output formats no matter how firmly the prompt asks
// for JSON, so parsing runs a fallback chain: strict JSON extraction first,
// then markdown section headers, then a freeform salvage pass. The first
// strategy that succeeds wins; earlier failures are carried along as
// warnings in the parsing metadata.
package parse

import (
	"fmt"

	"github.com/lumisage/chatscribe/pkg/types"
)

// Caps applied during validation. Oversized fields are truncated, never
// rejected.
const (
	maxSummaryChars   = 2000
	maxKeyPoints      = 10
	maxActionItems    = 20
	maxTechnicalTerms = 15
	minKeyPointChars  = 6
)

// fallbackSummary replaces an empty summary_text after a successful parse.
const fallbackSummary = "No summary could be extracted from the model response."

type strategy struct {
	name string
	fn   func(string) (*types.ParsedSummary, error)
}

var strategies = []strategy{
	{"json", parseJSON},
	{"markdown", parseMarkdown},
	{"freeform", parseFreeform},
}

// Parse runs the fallback chain over content, then enhances the result with
// per-author statistics computed from messages and applies size caps. It
// fails with [types.CodeResponseParseFailed] only when every strategy fails.
func Parse(content string, messages []types.Message) (*types.ParsedSummary, error) {
	var warnings []string
	for _, s := range strategies {
		parsed, err := s.fn(content)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", s.name, err))
			continue
		}
		parsed.Parsing = types.ParsingMetadata{Method: s.name, Warnings: warnings}
		enhanceWithMessages(parsed, messages)
		validate(parsed)
		return parsed, nil
	}
	return nil, types.NewResponseParseFailed(warnings)
}

func validate(p *types.ParsedSummary) {
	if p.SummaryText == "" {
		p.SummaryText = fallbackSummary
	}
	p.SummaryText = clip(p.SummaryText, maxSummaryChars)

	kept := p.KeyPoints[:0]
	for _, kp := range p.KeyPoints {
		if len(kp) < minKeyPointChars {
			continue
		}
		kept = append(kept, kp)
	}
	p.KeyPoints = kept
	if len(p.KeyPoints) > maxKeyPoints {
		p.KeyPoints = p.KeyPoints[:maxKeyPoints]
	}
	if len(p.ActionItems) > maxActionItems {
		p.ActionItems = p.ActionItems[:maxActionItems]
	}
	if len(p.TechnicalTerms) > maxTechnicalTerms {
		p.TechnicalTerms = p.TechnicalTerms[:maxTechnicalTerms]
	}
}

// clip truncates s to at most limit runes so a multi-byte character is
// never split mid-sequence.
func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
