package parse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/lumisage/chatscribe/pkg/types"
)

// fencedBlock matches a fenced code block carrying a JSON object, with or
// without a language tag.
var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// extractJSON pulls a JSON object out of content: a fenced code block when
// present, otherwise the substring spanning the first '{' to the last '}'.
func extractJSON(content string) (string, bool) {
	if m := fencedBlock.FindStringSubmatch(content); m != nil {
		return m[1], true
	}
	first := strings.Index(content, "{")
	last := strings.LastIndex(content, "}")
	if first < 0 || last <= first {
		return "", false
	}
	return content[first : last+1], true
}

// rawSummary mirrors the declared output schema but tolerates the drift
// models actually produce: action items arrive as objects or bare strings,
// and priorities as free text.
type rawSummary struct {
	SummaryText    string                `json:"summary_text"`
	KeyPoints      []string              `json:"key_points"`
	ActionItems    []json.RawMessage     `json:"action_items"`
	TechnicalTerms []types.TechnicalTerm `json:"technical_terms"`
	Participants   []types.Participant   `json:"participants"`
}

type rawActionItem struct {
	Description string `json:"description"`
	Assignee    string `json:"assignee"`
	Priority    string `json:"priority"`
	Completed   bool   `json:"completed"`
}

func parseJSON(content string) (*types.ParsedSummary, error) {
	payload, ok := extractJSON(content)
	if !ok {
		return nil, fmt.Errorf("no JSON object in response")
	}
	var raw rawSummary
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	if strings.TrimSpace(raw.SummaryText) == "" && len(raw.KeyPoints) == 0 {
		return nil, fmt.Errorf("object carries no summary content")
	}

	parsed := &types.ParsedSummary{
		SummaryText:    strings.TrimSpace(raw.SummaryText),
		KeyPoints:      raw.KeyPoints,
		TechnicalTerms: raw.TechnicalTerms,
		Participants:   raw.Participants,
	}
	for i := range parsed.TechnicalTerms {
		parsed.TechnicalTerms[i].Term = strings.TrimSpace(parsed.TechnicalTerms[i].Term)
	}
	for _, item := range raw.ActionItems {
		ai, err := decodeActionItem(item)
		if err != nil || ai.Description == "" {
			continue
		}
		parsed.ActionItems = append(parsed.ActionItems, ai)
	}
	return parsed, nil
}

// decodeActionItem accepts both the schema's object form and the bare-string
// shorthand some models emit.
func decodeActionItem(raw json.RawMessage) (types.ActionItem, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return types.ActionItem{
			Description: strings.TrimSpace(s),
			Priority:    types.PriorityMedium,
		}, nil
	}
	var obj rawActionItem
	if err := json.Unmarshal(raw, &obj); err != nil {
		return types.ActionItem{}, err
	}
	return types.ActionItem{
		Description: strings.TrimSpace(obj.Description),
		Assignee:    strings.TrimSpace(obj.Assignee),
		Priority:    types.ParsePriority(obj.Priority),
		Completed:   obj.Completed,
	}, nil
}
