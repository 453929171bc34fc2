package parse

import (
	"fmt"
	"strings"

	"github.com/lumisage/chatscribe/pkg/types"
)

// Freeform salvage keeps at most this many sentences as key points, and
// only sentences long enough to carry meaning.
const (
	maxSalvagedSentences = 5
	minSentenceChars     = 20
)

// parseFreeform is the last resort: the whole response becomes the summary
// text, and key points are salvaged from list lines or, failing that, from
// the longest-form sentences.
func parseFreeform(content string) (*types.ParsedSummary, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}

	keyPoints := listItems(text)
	if len(keyPoints) == 0 {
		for _, s := range splitSentences(text) {
			if len(s) <= minSentenceChars {
				continue
			}
			keyPoints = append(keyPoints, s)
			if len(keyPoints) == maxSalvagedSentences {
				break
			}
		}
	}
	return &types.ParsedSummary{SummaryText: text, KeyPoints: keyPoints}, nil
}

func splitSentences(text string) []string {
	var sentences []string
	var sb strings.Builder
	for _, r := range text {
		sb.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(sb.String()); s != "" {
				sentences = append(sentences, s)
			}
			sb.Reset()
		}
	}
	if s := strings.TrimSpace(sb.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
