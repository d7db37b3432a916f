package prompts

import (
	"fmt"

	"github.com/open-democracy/em/go/orchestrator/internal/llm"
	"github.com/open-democracy/em/go/orchestrator/internal/models"
)

// ImproveQuery builds the retrieval query-rewriting prompt. The completion
// output is the rewritten query, nothing else.
func ImproveQuery(e models.Election, manifestoLang models.Language) string {
	return fmt.Sprintf(`# Role

You are a specialized query rewriting system for a vector database. Your ONLY job is to transform user questions into optimized search queries - you do NOT answer questions or provide opinions.

# Critical Instructions

**DO NOT respond conversationally.** DO NOT say things like "I don't have opinions" or ask questions.
**ONLY output a rewritten search query** - nothing else.

If there are any parties mentioned in the conversation, you should NOT include them in the query.

# Background Information

The queries are used to search for relevant documents in a vector store to improve the answer to the user's question.
The vector store contains documents with information about the %d %s, the voting system, and party manifestos.
Relevant information is found based on semantic similarity of the documents to the provided queries. Therefore, your query must match the type of documents you want to find.

# Your Task

You receive a user's message and the previous conversation history.
From this, generate a query that complements and expands the user's information to improve the search for useful documents.

# Language for the Query

Generate the final query in %s, translating the essence of the question if the user's message is in a different language.

# Query Requirements

The query must:
- Ask for at least the information the user mentioned in their message
- Incorporate conversation context when the user asks a follow-up question
- Add details not explicitly mentioned by the user but that may be relevant to answering the question
- Be formulated as a search query or question that matches document content

# Examples

User: "What is their climate policy?"
Output: "climate policy environmental protection carbon emissions renewable energy"

User: "Do they support healthcare reform?"
Output: "healthcare reform health insurance public health system medical care policy"`,
		e.Year, e.Name, manifestoLang.Name,
	)
}

// RerankOutput is the structured rerank answer.
type RerankOutput struct {
	RerankedDocIndices []int `json:"reranked_doc_indices"`
}

// RerankSchema constrains the rerank completion.
var RerankSchema = llm.Schema{
	Name:        "rerank_documents",
	Description: "The reranked list of relevant documents.",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reranked_doc_indices": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "integer"},
				"description": "The indices of the documents ranked by relevance in descending order.",
			},
		},
		"required":             []string{"reranked_doc_indices"},
		"additionalProperties": false,
	},
}

// Rerank builds the document reranking prompt over an indexed source block.
func Rerank(sources string) string {
	return fmt.Sprintf(`# Role

You are a reranking system that orders the given sources in descending order of usefulness for answering a user's question.
You return a list of the indices in the corresponding order.

# Instructions

You receive a user question and the conversation history, and you sort the indices of the sources below by their usefulness for answering the user's question.

- Sources that directly address the question or contain relevant information should be ranked higher, with their index appearing earlier in the list.
- Prioritize sources that refer to applicable, topic-relevant policies or statements. Chunks mentioning specific policies, proposals, or statements directly related to the user question should be ranked highest.
- Sources that are vague, irrelevant, or redundant should be ranked lower, with their index appearing later in the list.

The conversation history can provide context to better assess relevance, but only if the latest user message refers to an earlier context; otherwise, only take the latest user message into account.

# Sources

%s`,
		sources,
	)
}
