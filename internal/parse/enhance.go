package parse

import (
	"sort"
	"strings"

	"github.com/lumisage/chatscribe/pkg/types"
)

const (
	snippetChars      = 50
	snippetsPerAuthor = 3
)

type authorStats struct {
	count    int
	snippets []string
}

// enhanceWithMessages reconciles the model's participant list with ground
// truth computed from the original messages: per-author message counts and
// up to three representative snippets. Authors the model missed are added;
// authors it named get their counts and contributions overwritten. The
// final list is ordered by message count descending.
func enhanceWithMessages(parsed *types.ParsedSummary, messages []types.Message) {
	if len(messages) == 0 {
		return
	}

	stats := make(map[string]*authorStats)
	var order []string
	for _, m := range messages {
		s, ok := stats[m.AuthorName]
		if !ok {
			s = &authorStats{}
			stats[m.AuthorName] = s
			order = append(order, m.AuthorName)
		}
		s.count++
		if clean := m.CleanContent(); clean != "" {
			s.snippets = append(s.snippets, snippet(clean))
		}
	}
	for _, s := range stats {
		// Keep the three longest snippets as the author's contributions.
		sort.SliceStable(s.snippets, func(i, j int) bool {
			return len(s.snippets[i]) > len(s.snippets[j])
		})
		if len(s.snippets) > snippetsPerAuthor {
			s.snippets = s.snippets[:snippetsPerAuthor]
		}
	}

	byName := make(map[string]int, len(parsed.Participants))
	for i, p := range parsed.Participants {
		byName[strings.ToLower(p.DisplayName)] = i
	}
	for _, name := range order {
		s := stats[name]
		if i, ok := byName[strings.ToLower(name)]; ok {
			parsed.Participants[i].MessageCount = s.count
			parsed.Participants[i].KeyContributions = s.snippets
			continue
		}
		parsed.Participants = append(parsed.Participants, types.Participant{
			DisplayName:      name,
			MessageCount:     s.count,
			KeyContributions: s.snippets,
		})
	}

	sort.SliceStable(parsed.Participants, func(i, j int) bool {
		return parsed.Participants[i].MessageCount > parsed.Participants[j].MessageCount
	})
}

func snippet(s string) string {
	return clip(s, snippetChars)
}
