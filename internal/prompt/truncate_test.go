package prompt

import (
	"regexp"
	"strings"
	"testing"
)

func buildOversizedPrompt(messages int) string {
	var sb strings.Builder
	sb.WriteString("## Format Instructions\nProduce a brief summary.\n\n")
	sb.WriteString(messagesHeader)
	for i := 0; i < messages; i++ {
		sb.WriteString("\n\n**alice** (09:00) ")
		sb.WriteString(strings.Repeat("status update ", 20))
	}
	sb.WriteString("\n\n")
	sb.WriteString(finalInstruction)
	return sb.String()
}

func TestOptimizePromptLength(t *testing.T) {
	t.Run("within budget returns input unchanged", func(t *testing.T) {
		in := buildOversizedPrompt(3)
		got, ok := OptimizePromptLength(in, EstimateTokens(in), 0.8)
		if !ok {
			t.Fatal("in-budget prompt reported unusable")
		}
		if got != in {
			t.Error("prompt within budget should be returned verbatim")
		}
	})

	t.Run("framing survives truncation", func(t *testing.T) {
		in := buildOversizedPrompt(50)
		got, ok := OptimizePromptLength(in, EstimateTokens(in)/2, 0.8)
		if !ok {
			t.Fatal("truncatable prompt reported unusable")
		}
		if !strings.HasPrefix(got, "## Format Instructions") {
			t.Error("text before the messages section must survive")
		}
		if !strings.Contains(got, messagesHeader) {
			t.Error("messages header must survive")
		}
		if !strings.HasSuffix(got, finalInstruction) {
			t.Error("final instruction must survive")
		}
	})

	t.Run("result fits the scaled budget", func(t *testing.T) {
		in := buildOversizedPrompt(50)
		budget := EstimateTokens(in) / 2
		got, ok := OptimizePromptLength(in, budget, 0.8)
		if !ok {
			t.Fatal("truncatable prompt reported unusable")
		}
		if got == in {
			t.Fatal("expected the prompt to shrink")
		}
		if EstimateTokens(got) > budget {
			t.Errorf("truncated prompt estimates %d tokens, budget %d", EstimateTokens(got), budget)
		}
	})

	t.Run("exactly one truncation notice", func(t *testing.T) {
		in := buildOversizedPrompt(50)
		got, _ := OptimizePromptLength(in, EstimateTokens(in)/2, 0.8)
		notices := regexp.MustCompile(`\[Truncated \d+ characters to fit limits\]`).FindAllString(got, -1)
		if len(notices) != 1 {
			t.Fatalf("found %d truncation notices, want 1: %v", len(notices), notices)
		}
	})

	t.Run("cut lands on a message boundary", func(t *testing.T) {
		in := buildOversizedPrompt(50)
		got, _ := OptimizePromptLength(in, EstimateTokens(in)/2, 0.8)
		kept := got[strings.Index(got, messagesHeader)+len(messagesHeader):]
		kept = kept[:strings.Index(kept, "[Truncated")]
		kept = strings.TrimSpace(kept)
		if !strings.HasSuffix(kept, "status update") {
			t.Errorf("cut should end with a complete message, got tail %q", kept[len(kept)-40:])
		}
	})

	t.Run("tiny budget yields fallback", func(t *testing.T) {
		in := buildOversizedPrompt(50)
		got, ok := OptimizePromptLength(in, 10, 0.8)
		if ok {
			t.Error("framing-over-budget prompt reported usable")
		}
		if got != tooLongFallback {
			t.Errorf("expected fallback prompt, got %q", got)
		}
	})

	t.Run("missing messages section yields fallback", func(t *testing.T) {
		got, ok := OptimizePromptLength(strings.Repeat("x", 4000), 100, 0.8)
		if ok {
			t.Error("prompt without a messages section reported usable")
		}
		if got != tooLongFallback {
			t.Errorf("expected fallback prompt, got %q", got)
		}
	})

	t.Run("invalid preserve ratio falls back to default", func(t *testing.T) {
		in := buildOversizedPrompt(50)
		want, _ := OptimizePromptLength(in, EstimateTokens(in)/2, defaultPreserveRatio)
		for _, ratio := range []float64{0, -1, 1.5} {
			if got, _ := OptimizePromptLength(in, EstimateTokens(in)/2, ratio); got != want {
				t.Errorf("ratio %v should behave like the default", ratio)
			}
		}
	})
}
