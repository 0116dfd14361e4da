package services

import (
	"fmt"
	"sort"
	"strings"

	"docqa/internal/models"
)

const singleDocSystemPrompt = `You are a document analysis assistant. Answer questions using ONLY the provided context.

CRITICAL RULES:
1. Use ONLY information explicitly written in the context below
2. Cite every fact with [Page X] or [Pages X-Y] format
3. ONLY use page numbers from the "VALID PAGES" list
4. NEVER describe images, figures, or pictures unless their descriptions are explicitly provided in the context
5. If asked about images/figures and no figure descriptions are in context, say: "No figure descriptions are available. Run 'Extract Tables' to analyze visual elements."
6. Never invent, imagine, or guess ANY content
7. Never use external knowledge

RESPONSE FORMAT:
- Direct, factual answers from the text only
- Every statement must have a citation
- If information isn't in context, clearly state what IS available instead
`

// AssembleContext formats chunks into a context block with page markers.
// Returns the context string and the sorted set of citable pages.
func AssembleContext(chunks []*models.ChunkContext) (string, []int) {
	contextParts := make([]string, 0, len(chunks))
	pageSet := make(map[int]bool)

	for _, chunk := range chunks {
		for p := chunk.PageStart; p <= chunk.PageEnd; p++ {
			pageSet[p] = true
		}

		var pageInfo string
		if chunk.PageStart == chunk.PageEnd {
			pageInfo = fmt.Sprintf("Page %d", chunk.PageStart)
		} else {
			pageInfo = fmt.Sprintf("Pages %d-%d", chunk.PageStart, chunk.PageEnd)
		}

		contextParts = append(contextParts, fmt.Sprintf("--- %s ---\n%s", pageInfo, chunk.Content))
	}

	validPages := make([]int, 0, len(pageSet))
	for p := range pageSet {
		validPages = append(validPages, p)
	}
	sort.Ints(validPages)

	return strings.Join(contextParts, "\n\n"), validPages
}

func formatPageList(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// BuildMessages builds the single-document prompt.
// Returns the messages and the valid citable pages.
func BuildMessages(chunks []*models.ChunkContext, question string) ([]models.ChatMessage, []int) {
	context, validPages := AssembleContext(chunks)

	userPrompt := fmt.Sprintf(`CONTEXT:
%s

VALID PAGES: %s
(You may ONLY cite these page numbers)

QUESTION: %s

ANSWER:`, context, formatPageList(validPages), question)

	messages := []models.ChatMessage{
		{Role: "system", Content: singleDocSystemPrompt},
		{Role: "user", Content: userPrompt},
	}
	return messages, validPages
}

// BuildMultiDocContext formats chunks from multiple documents, tagging each
// with its source document name. Returns the context string, the flattened
// chunk list, and the valid citable pages.
func BuildMultiDocContext(chunksByDoc map[string][]*models.ChunkContext, docNames map[string]string, docOrder []string) (string, []*models.ChunkContext, map[int]bool) {
	contextParts := []string{}
	allChunks := []*models.ChunkContext{}
	validPages := make(map[int]bool)

	for _, docID := range docOrder {
		chunks := chunksByDoc[docID]
		docName := docNames[docID]
		if docName == "" {
			docName = "Unknown"
		}

		for _, chunk := range chunks {
			pageRange := fmt.Sprintf("%d", chunk.PageStart)
			if chunk.PageStart != chunk.PageEnd {
				pageRange = fmt.Sprintf("%d-%d", chunk.PageStart, chunk.PageEnd)
			}
			contextParts = append(contextParts, fmt.Sprintf("[Document: %s | Pages %s]\n%s", docName, pageRange, chunk.Content))
			allChunks = append(allChunks, chunk)
			for p := chunk.PageStart; p <= chunk.PageEnd; p++ {
				validPages[p] = true
			}
		}
	}

	return strings.Join(contextParts, "\n\n"), allChunks, validPages
}

// BuildMultiDocMessages builds the prompt for a query spanning one or more
// documents. A single document gets a simpler instruction; multiple documents
// get a structured comparison format with per-document attribution.
func BuildMultiDocMessages(question, context string, docNames map[string]string, docOrder []string, validPages map[int]bool) []models.ChatMessage {
	orderedNames := make([]string, 0, len(docOrder))
	for _, docID := range docOrder {
		if name, ok := docNames[docID]; ok {
			orderedNames = append(orderedNames, name)
		}
	}

	pagesList := make([]int, 0, len(validPages))
	for p := range validPages {
		pagesList = append(pagesList, p)
	}
	sort.Ints(pagesList)

	var systemPrompt string
	if len(orderedNames) <= 1 {
		docName := "Unknown"
		if len(orderedNames) == 1 {
			docName = orderedNames[0]
		}
		systemPrompt = fmt.Sprintf(`You are a document analysis assistant. Answer questions using ONLY the provided context.

DOCUMENT: %s
VALID PAGES: %s

RULES:
1. Every factual claim MUST have a citation [Page X] or [Pages X-Y]
2. ONLY cite pages from the VALID PAGES list above
3. If information is not in the context, say "I cannot find this information in the provided document." with NO citation
4. Be concise and direct.`, docName, formatPageList(pagesList))
	} else {
		docFormatLines := make([]string, len(orderedNames))
		for i, name := range orderedNames {
			docFormatLines[i] = fmt.Sprintf("%s:\n- Finding... [Page X]", name)
		}

		systemPrompt = fmt.Sprintf(`You are a document analysis assistant. Answer questions using ONLY the provided context from multiple documents.

DOCUMENTS: %s
VALID PAGES: %s

RULES:
1. Every factual claim MUST have a citation [Page X] or [Pages X-Y]
2. ONLY cite pages from the VALID PAGES list above
3. When comparing documents, structure your answer clearly:
   - State findings from each document separately with citations
   - Then provide synthesis/comparison citing both sources
4. If information is not in the context, say "I cannot find this information in the provided documents." with NO citation
5. If documents have conflicting information, acknowledge the conflict and cite both.

ANSWER FORMAT FOR COMPARISONS:
%s

Comparison:
- Synthesis citing relevant pages [Pages X, Y]`, strings.Join(orderedNames, ", "), formatPageList(pagesList), strings.Join(docFormatLines, "\n\n"))
	}

	return []models.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("CONTEXT:\n%s\n\nQUESTION: %s", context, question)},
	}
}
