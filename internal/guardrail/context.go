package guardrail

import (
	"fmt"
	"strings"

	"github.com/sourcedesk/sourcedesk/internal/corpus"
)

// systemPrompt constrains generation to the supplied sources. Regulated
// advice categories are refused outright.
const systemPrompt = `You are a support assistant answering questions from a curated knowledge base.

Rules:
- Answer using ONLY the numbered sources provided below. Do not use outside knowledge.
- Cite every factual claim with its source marker, exactly as [Source N].
- If the sources do not cover the question, say so plainly instead of guessing.
- Do not give medical, legal, or financial advice; suggest contacting a qualified professional instead.
- Keep answers concise and direct.`

// previewLimit bounds the source content preview returned to clients.
const previewLimit = 200

// BuildContext renders retrieved candidates as numbered, citable blocks:
//
//	[Source 1: Title - Section]
//	<content>
//
// The numbering matches the indices the model is instructed to cite.
func BuildContext(candidates []corpus.Candidate) string {
	var b strings.Builder
	for i, c := range candidates {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		b.WriteString(fmt.Sprintf("[Source %d: %s", i+1, c.DocumentTitle))
		if c.SectionTitle != "" {
			b.WriteString(" - ")
			b.WriteString(c.SectionTitle)
		}
		b.WriteString("]\n")
		b.WriteString(c.Content)
	}
	return b.String()
}

// buildPrompt combines the source context and the user question into the
// user-turn prompt for a single completion request.
func buildPrompt(contextBlocks, query string) string {
	return fmt.Sprintf("Sources:\n\n%s\n\nQuestion: %s", contextBlocks, query)
}

// preview truncates chunk content for client-facing source listings,
// respecting rune boundaries.
func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLimit {
		return content
	}
	return string(runes[:previewLimit]) + "..."
}
