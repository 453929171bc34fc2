package prompt

import (
	"fmt"
	"strings"
)

// charsPerToken is the character-to-token approximation used throughout the
// builder. It is deliberately conservative for English prose.
const charsPerToken = 4

// defaultPreserveRatio scales the token budget down when truncating so the
// estimate's error margin cannot push the final prompt back over the limit.
const defaultPreserveRatio = 0.8

// tooLongFallback is returned when the non-messages framing alone exceeds
// the budget. Callers must treat it as unsendable; OptimizePromptLength
// reports this case through its second return value.
const tooLongFallback = "The conversation content is too long to fit the configured prompt limits."

// messageBoundary precedes each rendered message after the first.
const messageBoundary = "\n\n**"

// EstimateTokens approximates the token count of s as ceil(len/4).
func EstimateTokens(s string) int {
	return (len(s) + charsPerToken - 1) / charsPerToken
}

// OptimizePromptLength returns a user prompt whose token estimate fits
// maxTokens, and whether the result is usable. Prompts already within budget
// are returned unchanged. Otherwise only the messages section is cut:
// everything before the section marker and the trailing instruction survive
// intact, the cut prefers a message boundary when at least half the section
// budget remains, and a single truncation notice records how much was
// dropped.
//
// When the framing alone exceeds the budget no truncation can help; the
// second return value is false and the returned placeholder must not be
// sent to the LLM.
//
// preserveRatio scales the working budget during truncation; values outside
// (0, 1] fall back to 0.8.
func OptimizePromptLength(userPrompt string, maxTokens int, preserveRatio float64) (string, bool) {
	if EstimateTokens(userPrompt) <= maxTokens {
		return userPrompt, true
	}
	if preserveRatio <= 0 || preserveRatio > 1 {
		preserveRatio = defaultPreserveRatio
	}

	markerIdx := strings.Index(userPrompt, messagesHeader)
	if markerIdx < 0 {
		// No messages section to cut; nothing sensible remains.
		return tooLongFallback, false
	}

	sectionStart := markerIdx + len(messagesHeader)
	head := userPrompt[:sectionStart]

	section := userPrompt[sectionStart:]
	tail := ""
	if tailIdx := strings.LastIndex(section, finalInstruction); tailIdx >= 0 {
		tail = section[tailIdx:]
		section = section[:tailIdx]
	}

	maxChars := int(float64(maxTokens)*preserveRatio) * charsPerToken
	noticeReserve := len(fmt.Sprintf("\n\n[Truncated %d characters to fit limits]\n\n", len(section)))
	budget := maxChars - len(head) - len(tail) - noticeReserve
	if budget <= 0 {
		return tooLongFallback, false
	}
	if budget >= len(section) {
		return userPrompt, true
	}

	cut := section[:budget]
	if boundary := strings.LastIndex(cut, messageBoundary); boundary >= budget/2 {
		cut = cut[:boundary]
	}

	dropped := len(section) - len(cut)
	return head + cut + fmt.Sprintf("\n\n[Truncated %d characters to fit limits]\n\n", dropped) + tail, true
}
