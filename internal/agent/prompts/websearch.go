package prompts

import (
	"fmt"
	"time"

	"github.com/open-democracy/em/go/orchestrator/internal/llm"
	"github.com/open-democracy/em/go/orchestrator/internal/models"
)

// WebSearchDecisionOutput is the structured web-search decision.
type WebSearchDecisionOutput struct {
	UseWebSearch bool   `json:"use_web_search"`
	Reason       string `json:"reason"`
}

// WebSearchDecisionSchema constrains the decision completion.
var WebSearchDecisionSchema = llm.Schema{
	Name:        "decide_web_search",
	Description: "Whether to enrich the answer with a live web search.",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"use_web_search": map[string]any{
				"type":        "boolean",
				"description": "Whether to trigger web search for additional context.",
			},
			"reason": map[string]any{
				"type":        "string",
				"description": "Short explanation of the decision for logging purposes.",
			},
		},
		"required":             []string{"use_web_search", "reason"},
		"additionalProperties": false,
	},
}

// DecideWebSearch builds the web-search decision prompt (generic branch only).
func DecideWebSearch(e models.Election, now time.Time, lang models.Language) string {
	return fmt.Sprintf(`# Role

Decide whether the assistant should enrich its answer with a live web search.

# Context

- Election: %s (%d)
- Today's date: %s
- Preferred answer language: %s

# Decision criteria

Use web search if the latest user message asks about:
- Recent developments after October 2023.
- Factual questions that likely require up-to-date news or statistics.
- Topics explicitly referencing "latest", "current", "today", or similar phrases.

Skip web search if:
- The question can be answered from timeless background knowledge.
- The user is asking about the platform itself.
- The conversation has already covered the answer with high confidence.
- The user is requesting guidance outside the project's scope.

Respond with true only when web search clearly adds value. Always provide a concise reason for your choice.`,
		e.Name, e.Year, formatDate(now), lang.Name,
	)
}

// GenericSearchQuery builds the query-generation prompt for the generic
// branch. The completion output is the search query itself.
func GenericSearchQuery(e models.Election, now time.Time, lang models.Language) string {
	return fmt.Sprintf(`# Role

You design concise, high-recall web search queries that surface current, trustworthy information for the user's request.

# Context

- Election: %s (%d)
- Preferred language for the query: %s
- Today's date: %s

You receive the full conversation so far. Generate a single search query that captures the latest user request, incorporating relevant context from previous turns if helpful.

# Instructions

1. Focus on the user's most recent question while using earlier turns for additional details.
2. Include concrete entities, time frames, and keywords that will retrieve authoritative sources.
3. If the conversation already mentions specific organisations, people, parties, or policies, keep them in the query unless they are clearly irrelevant.
4. Translate the query into %s if the latest user turn is not already in that language.
5. Return only the final search query with no explanation, prefixes, or quotation marks.`,
		e.Name, e.Year, lang.Name, formatDate(now), lang.Name,
	)
}

// TargetSearchQuery builds the query-generation prompt for one target's
// branch.
func TargetSearchQuery(e models.Election, p models.Party, now time.Time, lang models.Language) string {
	return fmt.Sprintf(`# Role

You write targeted web search queries to gather up-to-date information about a single political party.

# Context

- Election: %s (%d)
- Country: %s
- Party: %s (%s)
- Preferred query language: %s
- Today's date: %s

# Instructions

1. Focus on the user's latest request related to %s.
2. Include keywords that will surface policy statements, press releases, reputable news articles, or official documents about this party.
3. Mention the party name (%s) and %s if that is needed to disambiguate.
4. Add topical phrases (e.g., "climate policy", "housing plans") derived from the latest user question.
5. Translate the final query into %s if the user's latest message is not already in that language.
6. Return exactly one search query string, with no explanations or additional formatting.`,
		e.Name, e.Year, e.Country, p.FullName, p.ShortName, lang.Name, formatDate(now),
		p.FullName, p.FullName, e.Country, lang.Name,
	)
}
