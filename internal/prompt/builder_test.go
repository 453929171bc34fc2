package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/lumisage/chatscribe/pkg/types"
)

func testMessages() []types.Message {
	ts := time.Date(2025, 3, 14, 9, 26, 0, 0, time.UTC)
	return []types.Message{
		{ID: "1", AuthorID: "u1", AuthorName: "alice", Content: "Let's ship the cache rollout today.", Timestamp: ts},
		{ID: "2", AuthorID: "u2", AuthorName: "bob", Content: "I'll prepare the migration.", Timestamp: ts.Add(2 * time.Minute)},
		{ID: "3", AuthorID: "u1", AuthorName: "alice", Content: "", Timestamp: ts.Add(3 * time.Minute)},
	}
}

func TestBuilder_SystemPrompt(t *testing.T) {
	b := NewBuilder()
	msgs := testMessages()

	t.Run("length selects template", func(t *testing.T) {
		cases := []struct {
			length types.SummaryLength
			want   string
		}{
			{types.LengthBrief, "brief"},
			{types.LengthDetailed, "detailed"},
			{types.LengthComprehensive, "comprehensive"},
		}
		for _, tc := range cases {
			opts := types.DefaultOptions()
			opts.Length = tc.length
			built := b.Build(msgs, opts, nil)
			if built.Metadata.Template != tc.want {
				t.Errorf("length %s: template = %q, want %q", tc.length, built.Metadata.Template, tc.want)
			}
			if !strings.Contains(built.System, string(tc.length)) {
				t.Errorf("system prompt for %s should name the target length", tc.length)
			}
		}
	})

	t.Run("schema is always present", func(t *testing.T) {
		built := b.Build(msgs, types.DefaultOptions(), nil)
		for _, field := range []string{"summary_text", "key_points", "action_items", "technical_terms", "participants"} {
			if !strings.Contains(built.System, field) {
				t.Errorf("system prompt missing schema field %q", field)
			}
		}
	})

	t.Run("negative instructions for disabled extraction", func(t *testing.T) {
		opts := types.DefaultOptions()
		opts.ExtractActionItems = false
		opts.ExtractTechnicalTerms = false
		built := b.Build(msgs, opts, nil)
		if !strings.Contains(built.System, "Do not extract action items") {
			t.Error("expected negative action-item instruction")
		}
		if !strings.Contains(built.System, "Do not extract technical terms") {
			t.Error("expected negative technical-term instruction")
		}
	})

	t.Run("custom template override", func(t *testing.T) {
		custom := NewBuilder(WithSystemTemplate("You are a pirate summarizer."))
		built := custom.Build(msgs, types.DefaultOptions(), nil)
		if !strings.HasPrefix(built.System, "You are a pirate summarizer.") {
			t.Errorf("override not applied: %q", built.System)
		}
		if built.Metadata.Template != "custom" {
			t.Errorf("template = %q, want custom", built.Metadata.Template)
		}
	})
}

func TestBuilder_UserPrompt(t *testing.T) {
	b := NewBuilder()

	t.Run("section order", func(t *testing.T) {
		sctx := &types.SummarizationContext{ChannelName: "dev", GuildName: "Acme", TotalParticipants: 2}
		built := b.Build(testMessages(), types.DefaultOptions(), sctx)

		ctxIdx := strings.Index(built.User, "## Context")
		fmtIdx := strings.Index(built.User, "## Format Instructions")
		msgIdx := strings.Index(built.User, messagesHeader)
		finIdx := strings.Index(built.User, finalInstruction)
		if !(ctxIdx >= 0 && ctxIdx < fmtIdx && fmtIdx < msgIdx && msgIdx < finIdx) {
			t.Errorf("sections out of order: ctx=%d fmt=%d msg=%d fin=%d", ctxIdx, fmtIdx, msgIdx, finIdx)
		}
		if !built.Metadata.ContextIncluded {
			t.Error("metadata should record the context section")
		}
	})

	t.Run("nil context omits the section", func(t *testing.T) {
		built := b.Build(testMessages(), types.DefaultOptions(), nil)
		if strings.Contains(built.User, "## Context") {
			t.Error("context section should be absent without context")
		}
		if built.Metadata.ContextIncluded {
			t.Error("metadata should record the missing context section")
		}
	})

	t.Run("message rendering", func(t *testing.T) {
		built := b.Build(testMessages(), types.DefaultOptions(), nil)
		if !strings.Contains(built.User, "**alice** (09:26) Let's ship the cache rollout today.") {
			t.Errorf("message line not rendered as expected:\n%s", built.User)
		}
		if built.Metadata.MessagesRendered != 2 {
			t.Errorf("rendered %d messages, want 2 (empty message skipped)", built.Metadata.MessagesRendered)
		}
	})

	t.Run("attachment and code block descriptors", func(t *testing.T) {
		ts := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
		msgs := []types.Message{{
			ID: "1", AuthorID: "u1", AuthorName: "carol",
			Content:     "see attached",
			Timestamp:   ts,
			Attachments: []types.Attachment{{Filename: "trace.log"}, {Filename: "graph.png"}},
			CodeBlocks:  []types.CodeBlock{{Language: "go", Code: "func main() {}"}},
			Thread:      &types.Thread{ID: "t", Name: "incident-42"},
		}}
		built := b.Build(msgs, types.DefaultOptions(), nil)
		if !strings.Contains(built.User, "[Attachments: trace.log, graph.png]") {
			t.Error("attachments not rendered")
		}
		if !strings.Contains(built.User, "[Code Block (go): 14 chars]") {
			t.Error("code block not rendered")
		}
		if !strings.Contains(built.User, "[Thread: incident-42]") {
			t.Error("thread not rendered")
		}

		noAttach := types.DefaultOptions()
		noAttach.IncludeAttachments = false
		built = b.Build(msgs, noAttach, nil)
		if strings.Contains(built.User, "[Attachments:") {
			t.Error("attachments rendered despite include_attachments=false")
		}
	})

	t.Run("token estimate covers both prompts", func(t *testing.T) {
		built := b.Build(testMessages(), types.DefaultOptions(), nil)
		want := EstimateTokens(built.System) + EstimateTokens(built.User)
		if built.EstimatedTokens != want {
			t.Errorf("estimate = %d, want %d", built.EstimatedTokens, want)
		}
	})
}

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.in); got != tc.want {
			t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(tc.in), got, tc.want)
		}
	}
}
