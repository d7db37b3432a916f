package prompts

import (
	"fmt"

	"github.com/open-democracy/em/go/orchestrator/internal/llm"
	"github.com/open-democracy/em/go/orchestrator/internal/models"
)

// RephraseOutput is the rephraser's structured answer.
type RephraseOutput struct {
	RephrasedQuestion    string `json:"rephrased_question"`
	IsComparisonQuestion bool   `json:"is_comparison_question"`
}

// RephraseSchema constrains the rephraser completion.
var RephraseSchema = llm.Schema{
	Name:        "rephrase_question",
	Description: "Target-agnostic rephrasing and comparison classification.",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"rephrased_question": map[string]any{
				"type":        "string",
				"description": "The question rephrased without any party information.",
			},
			"is_comparison_question": map[string]any{
				"type":        "boolean",
				"description": "The question explicitly asks for a comparison between two or more parties.",
			},
		},
		"required":             []string{"rephrased_question", "is_comparison_question"},
		"additionalProperties": false,
	},
}

// Rephrase builds the question-rephraser system prompt.
func Rephrase(lang models.Language) string {
	return fmt.Sprintf(`# Role

You analyze a user's message to a chat system in the context of the ongoing conversation and have two tasks.

# Tasks

Task 1: Formulate the user's question in a general way, as if it were addressed directly to a single conversation partner without mentioning any names.
Example: From "What is the position of the Greens and the SPD on climate protection?" to "What is your position on climate protection?"

Task 2: Decide whether it is an explicit comparison question or not.
If the user explicitly asks to weigh or compare multiple parties directly against each other, respond with true.
In all other cases, respond with false.

# Language Requirements

Always return the rephrased question in %s. Preserve tone and formality when translating. If the user's latest message uses a different language, translate the rephrased question into %s while keeping the original meaning.

# Important Notes on Classifying Comparison Questions

A question is a comparison question (true) only if the user explicitly asks to directly compare the positions of multiple parties, for example by asking about differences, similarities, or a direct juxtaposition.

A question is not a comparison question (false) if it merely refers to multiple parties, but each party could answer individually without the user explicitly expecting a comparison.

# Examples

"How do the Greens and the SPD differ on climate protection?" -> true (explicit question about differences).
"What is your position on climate protection?" -> false (no direct comparison requested).
"Which party is better on climate protection, the Greens or the SPD?" -> true (direct juxtaposition requested).
"What are the positions of the AfD and the Greens on wind turbines?" -> false (individual positions only).`,
		lang.Name, lang.Name,
	)
}
