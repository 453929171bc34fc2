package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/lumisage/chatscribe/pkg/types"
)

var (
	// sectionHeader matches "## Summary"-style headers at levels 1-3.
	sectionHeader = regexp.MustCompile(`(?m)^#{1,3}\s+(.+?)\s*$`)

	// listItem matches bulleted and numbered list entries.
	listItem = regexp.MustCompile(`(?m)^\s*(?:[-*•]|\d+[.)])\s+(.+?)\s*$`)

	// participantLine matches "Name (N messages): contribution".
	participantLine = regexp.MustCompile(`^(.+?)\s*\((\d+)\s+messages?\)\s*:?\s*(.*)$`)

	// checkbox strips a leading "[x]" / "[ ]" task marker.
	checkbox = regexp.MustCompile(`^\[([ xX])\]\s*`)
)

func parseMarkdown(content string) (*types.ParsedSummary, error) {
	sections := splitSections(content)
	if len(sections) == 0 {
		return nil, fmt.Errorf("no section headers found")
	}

	parsed := &types.ParsedSummary{}
	for title, body := range sections {
		switch {
		case strings.Contains(title, "summary"):
			parsed.SummaryText = sectionText(body)
		case strings.Contains(title, "key point"):
			parsed.KeyPoints = listItems(body)
		case strings.Contains(title, "action item"):
			for _, item := range listItems(body) {
				parsed.ActionItems = append(parsed.ActionItems, markdownActionItem(item))
			}
		case strings.Contains(title, "technical term"):
			for _, item := range listItems(body) {
				if tt, ok := splitTerm(item); ok {
					parsed.TechnicalTerms = append(parsed.TechnicalTerms, tt)
				}
			}
		case strings.Contains(title, "participant"):
			for _, item := range listItems(body) {
				if p, ok := splitParticipant(item); ok {
					parsed.Participants = append(parsed.Participants, p)
				}
			}
		}
	}
	if parsed.SummaryText == "" && len(parsed.KeyPoints) == 0 {
		return nil, fmt.Errorf("sections carry no summary content")
	}
	return parsed, nil
}

// splitSections maps lowercased header titles to the text below them, up to
// the next header.
func splitSections(content string) map[string]string {
	headers := sectionHeader.FindAllStringSubmatchIndex(content, -1)
	sections := make(map[string]string, len(headers))
	for i, h := range headers {
		title := strings.ToLower(content[h[2]:h[3]])
		end := len(content)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		sections[title] = content[h[1]:end]
	}
	return sections
}

// sectionText strips list markers and blank lines, joining what remains
// into prose.
func sectionText(body string) string {
	var lines []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := listItem.FindStringSubmatch(line); m != nil {
			line = m[1]
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, " ")
}

func listItems(body string) []string {
	var items []string
	for _, m := range listItem.FindAllStringSubmatch(body, -1) {
		items = append(items, m[1])
	}
	return items
}

func markdownActionItem(item string) types.ActionItem {
	ai := types.ActionItem{Priority: types.PriorityMedium}
	if m := checkbox.FindStringSubmatch(item); m != nil {
		ai.Completed = m[1] != " "
		item = item[len(m[0]):]
	}
	ai.Description = strings.TrimSpace(item)
	return ai
}

func splitTerm(item string) (types.TechnicalTerm, bool) {
	term, definition, ok := strings.Cut(item, ":")
	if !ok {
		return types.TechnicalTerm{}, false
	}
	term = strings.TrimSpace(strings.Trim(term, "*`"))
	definition = strings.TrimSpace(definition)
	if term == "" || definition == "" {
		return types.TechnicalTerm{}, false
	}
	return types.TechnicalTerm{Term: term, Definition: definition}, true
}

func splitParticipant(item string) (types.Participant, bool) {
	m := participantLine.FindStringSubmatch(item)
	if m == nil {
		return types.Participant{}, false
	}
	count, err := strconv.Atoi(m[2])
	if err != nil {
		return types.Participant{}, false
	}
	p := types.Participant{
		DisplayName:  strings.TrimSpace(strings.Trim(m[1], "*`")),
		MessageCount: count,
	}
	if contribution := strings.TrimSpace(m[3]); contribution != "" {
		p.KeyContributions = []string{contribution}
	}
	return p, true
}
