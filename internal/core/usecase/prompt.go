package usecase

import (
	"fmt"
	"strings"

	"github.com/alphaintel/knowledge-core/internal/core/domain"
)

// buildSystemPrompt grounds the assistant persona in the retrieved passages.
// Passages are numbered so the model can cite them as [1], [2], ... and the
// citation list returned to the caller lines up with the same numbering.
func buildSystemPrompt(organizationName string, passages []domain.SearchResult) string {
	var context strings.Builder
	if len(passages) > 0 {
		context.WriteString("\n\nRelevant context from your knowledge base:\n\n")
		for i, p := range passages {
			if i > 0 {
				context.WriteString("\n\n---\n\n")
			}
			context.WriteString(fmt.Sprintf("[%d] From %q", i+1, p.DocumentTitle))
			if p.PageNumber > 0 {
				context.WriteString(fmt.Sprintf(" (page %d)", p.PageNumber))
			}
			context.WriteString(":\n")
			context.WriteString(p.Content)
		}
	}

	return fmt.Sprintf(`You are AlphaIntel, an AI assistant for a %s firm's internal knowledge base.

Your role is to help investment professionals find information, analyze deals, and leverage the firm's institutional knowledge.

IMPORTANT GUIDELINES:
1. Base your answers on the provided context from the knowledge base.
2. Always cite your sources using [1], [2], etc. format when referencing documents.
3. If the answer isn't in the provided context, clearly say "I don't have that information in the knowledge base."
4. Be concise but thorough. Investment professionals value precision.
5. When discussing deals or companies, maintain confidentiality appropriate for internal use.
6. For financial analysis, show your reasoning and calculations.
%s

If no relevant context is provided, you can still help with general questions about investing, finance, and business analysis.`,
		organizationName, context.String())
}

// snippetOf shortens passage content for a citation: at most snippetLength
// characters, ellipsis-terminated.
func snippetOf(content string) string {
	runes := []rune(content)
	if len(runes) > snippetLength {
		runes = runes[:snippetLength]
	}
	return string(runes) + "..."
}
