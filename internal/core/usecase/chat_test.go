package usecase

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/alphaintel/knowledge-core/internal/core/domain"
)

func chatFixtures() (*searchServiceFake, *completionProviderFake, *conversationStoreFake, *organizationStoreFake) {
	searcher := &searchServiceFake{results: []domain.SearchResult{
		{
			PassageID:     "p-1",
			DocumentID:    "doc-a",
			DocumentTitle: "Stripe deal memo",
			Content:       strings.Repeat("Stripe context. ", 20),
			Similarity:    0.9,
			PageNumber:    2,
		},
		{
			PassageID:     "p-2",
			DocumentID:    "doc-b",
			DocumentTitle: "Fintech landscape",
			Content:       "Short passage.",
			Similarity:    0.75,
		},
	}}
	completions := &completionProviderFake{completion: &domain.Completion{
		Content:          "Stripe grew 40% YoY [1].",
		PromptTokens:     420,
		CompletionTokens: 31,
	}}
	conversations := &conversationStoreFake{turns: []domain.ChatTurn{
		{Role: domain.RoleUser, Content: "Earlier question"},
		{Role: domain.RoleAssistant, Content: "Earlier answer"},
	}}
	orgs := &organizationStoreFake{org: &domain.Organization{ID: "org-1", Name: "Benchmark Capital"}}
	return searcher, completions, conversations, orgs
}

func TestAnswerBuildsGroundedTurns(t *testing.T) {
	searcher, completions, conversations, orgs := chatFixtures()
	uc := NewChatUseCase(searcher, completions, conversations, orgs, testLogger(), "gpt-4-turbo-preview")

	resp, err := uc.Answer(context.Background(), "How did Stripe perform?", "conv-1", "org-1", domain.ChatOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(completions.lastTurns) != 4 {
		t.Fatalf("expected [system, 2 history, user], got %d turns", len(completions.lastTurns))
	}
	system := completions.lastTurns[0]
	if system.Role != domain.RoleSystem {
		t.Fatalf("first turn must be system, got %s", system.Role)
	}
	if !strings.Contains(system.Content, "Benchmark Capital") {
		t.Fatal("system prompt missing organization name")
	}
	if !strings.Contains(system.Content, `[1] From "Stripe deal memo" (page 2):`) {
		t.Fatalf("system prompt missing numbered context entry:\n%s", system.Content)
	}
	if !strings.Contains(system.Content, `[2] From "Fintech landscape":`) {
		t.Fatal("system prompt missing second context entry")
	}
	last := completions.lastTurns[len(completions.lastTurns)-1]
	if last.Role != domain.RoleUser || last.Content != "How did Stripe perform?" {
		t.Fatalf("last turn must be the user message, got %+v", last)
	}

	if completions.lastOpts.Temperature != 0.7 || completions.lastOpts.MaxTokens != 2000 {
		t.Fatalf("unexpected completion options: %+v", completions.lastOpts)
	}
	if searcher.lastOpts.Limit != 5 || searcher.lastOpts.Threshold != 0.7 {
		t.Fatalf("unexpected retrieval options: %+v", searcher.lastOpts)
	}

	if resp.Content != "Stripe grew 40% YoY [1]." {
		t.Fatalf("unexpected content: %q", resp.Content)
	}
	if resp.Model != "gpt-4-turbo-preview" {
		t.Fatalf("unexpected model: %q", resp.Model)
	}
	if resp.PromptTokens != 420 || resp.CompletionTokens != 31 {
		t.Fatalf("token usage not propagated: %+v", resp)
	}
}

func TestAnswerCitationsMatchRetrievedPassages(t *testing.T) {
	searcher, completions, conversations, orgs := chatFixtures()
	uc := NewChatUseCase(searcher, completions, conversations, orgs, testLogger(), "gpt-4-turbo-preview")

	resp, err := uc.Answer(context.Background(), "How did Stripe perform?", "conv-1", "org-1", domain.ChatOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(resp.Citations))
	}

	first := resp.Citations[0]
	if first.PassageID != "p-1" || first.DocumentTitle != "Stripe deal memo" || first.PageNumber != 2 {
		t.Fatalf("unexpected first citation: %+v", first)
	}
	if !strings.HasSuffix(first.Snippet, "...") {
		t.Fatalf("snippet must be ellipsis-terminated: %q", first.Snippet)
	}
	if len([]rune(first.Snippet)) > snippetLength+3 {
		t.Fatalf("snippet too long: %d runes", len([]rune(first.Snippet)))
	}
	if resp.Citations[1].Snippet != "Short passage...." {
		t.Fatalf("short content should keep full text plus ellipsis: %q", resp.Citations[1].Snippet)
	}
}

func TestAnswerWithZeroPassages(t *testing.T) {
	searcher, completions, conversations, orgs := chatFixtures()
	searcher.results = nil
	uc := NewChatUseCase(searcher, completions, conversations, orgs, testLogger(), "gpt-4-turbo-preview")

	resp, err := uc.Answer(context.Background(), "Anything about biotech?", "conv-1", "org-1", domain.ChatOptions{})
	if err != nil {
		t.Fatalf("zero passages must not be an error: %v", err)
	}
	if len(resp.Citations) != 0 {
		t.Fatalf("expected no citations, got %d", len(resp.Citations))
	}
	system := completions.lastTurns[0].Content
	if strings.Contains(system, "Relevant context from your knowledge base") {
		t.Fatal("empty retrieval must not emit a context block")
	}
	if !strings.Contains(system, "general questions about investing") {
		t.Fatal("system prompt missing general-guidance tail")
	}
}

func TestAnswerFallsBackOnOrganizationLookupFailure(t *testing.T) {
	searcher, completions, conversations, orgs := chatFixtures()
	orgs.err = errProvider
	uc := NewChatUseCase(searcher, completions, conversations, orgs, testLogger(), "gpt-4-turbo-preview")

	if _, err := uc.Answer(context.Background(), "Question", "conv-1", "org-1", domain.ChatOptions{}); err != nil {
		t.Fatalf("org lookup failure must not fail the chat: %v", err)
	}
	if !strings.Contains(completions.lastTurns[0].Content, "for a investment firm's internal knowledge base") {
		t.Fatalf("expected fallback organization name in prompt:\n%s", completions.lastTurns[0].Content)
	}
}

func TestAnswerOverridesModelAndSearchLimit(t *testing.T) {
	searcher, completions, conversations, orgs := chatFixtures()
	uc := NewChatUseCase(searcher, completions, conversations, orgs, testLogger(), "gpt-4-turbo-preview")

	resp, err := uc.Answer(context.Background(), "Question", "conv-1", "org-1", domain.ChatOptions{
		Model:       "gpt-4o",
		SearchLimit: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Model != "gpt-4o" || completions.lastOpts.Model != "gpt-4o" {
		t.Fatalf("model override ignored: %q", resp.Model)
	}
	if searcher.lastOpts.Limit != 3 {
		t.Fatalf("search limit override ignored: %d", searcher.lastOpts.Limit)
	}
}

func TestAnswerPropagatesProviderError(t *testing.T) {
	searcher, completions, conversations, orgs := chatFixtures()
	completions.err = errProvider
	uc := NewChatUseCase(searcher, completions, conversations, orgs, testLogger(), "gpt-4-turbo-preview")

	if _, err := uc.Answer(context.Background(), "Question", "conv-1", "org-1", domain.ChatOptions{}); err == nil {
		t.Fatal("expected provider error to propagate")
	}
}

func TestAnswerStreamReturnsEagerCitations(t *testing.T) {
	searcher, completions, conversations, orgs := chatFixtures()
	completions.stream = &completionStreamFake{increments: []string{"Stripe ", "grew ", "40%."}}
	uc := NewChatUseCase(searcher, completions, conversations, orgs, testLogger(), "gpt-4-turbo-preview")

	stream, err := uc.AnswerStream(context.Background(), "How did Stripe perform?", "conv-1", "org-1", domain.ChatOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stream.Citations) != 2 {
		t.Fatalf("expected eager citations, got %d", len(stream.Citations))
	}

	var full strings.Builder
	for {
		piece, err := stream.Stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		full.WriteString(piece)
	}
	if full.String() != "Stripe grew 40%." {
		t.Fatalf("unexpected streamed content: %q", full.String())
	}
}

func TestAnswerRejectsEmptyMessage(t *testing.T) {
	searcher, completions, conversations, orgs := chatFixtures()
	uc := NewChatUseCase(searcher, completions, conversations, orgs, testLogger(), "gpt-4-turbo-preview")

	if _, err := uc.Answer(context.Background(), "  ", "conv-1", "org-1", domain.ChatOptions{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
