package prompts

import (
	"fmt"
	"strings"

	"github.com/open-democracy/em/go/orchestrator/internal/llm"
	"github.com/open-democracy/em/go/orchestrator/internal/models"
)

// ResolveTargetsOutput is the resolver's structured answer.
type ResolveTargetsOutput struct {
	// SelectedTargets are party short names the user wants a reply from.
	SelectedTargets []string `json:"selected_targets"`
	// AllTargets is set when the user explicitly asked for all parties.
	AllTargets bool `json:"all_targets"`
	// MetaQuestion is set when the user asks about the chat or the system
	// itself rather than party positions.
	MetaQuestion bool `json:"meta_question"`
}

// ResolveTargetsSchema constrains the resolver completion.
var ResolveTargetsSchema = llm.Schema{
	Name:        "determine_question_targets",
	Description: "The parties the user wants a reply from.",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"selected_targets": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Short names of the parties the user most likely wants a reply from.",
			},
			"all_targets": map[string]any{
				"type":        "boolean",
				"description": "True only if the user explicitly asked for all parties, everyone, or each party.",
			},
			"meta_question": map[string]any{
				"type":        "boolean",
				"description": "True if the user asks about the chat, the system, or the conversation itself.",
			},
		},
		"required":             []string{"selected_targets", "all_targets", "meta_question"},
		"additionalProperties": false,
	},
}

// ResolveTargets builds the target-resolver system prompt.
func ResolveTargets(selected []models.Party, available []string) string {
	current := make([]string, len(selected))
	for i, p := range selected {
		current[i] = p.FullName
	}
	return fmt.Sprintf(`# Role

You are a chatbot called "Open Democracy" that helps users understand the political landscape of a country and make informed voting decisions. You are a subagent with only one task:

You analyze the user's MOST RECENT message to determine which conversation parties the user wants to receive a reply from.

# Background Information

The user has already invited the following conversation parties into the chat:
%s
Additionally, you have the following conversation parties to choose from:
%s

# Task

Generate a list of the short names of the conversation parties from whom the user most likely wants a reply.

## Important Instructions

**Focus on the LAST message only.** Past messages provide context, but your decision should be based primarily on what the user is asking RIGHT NOW in their most recent message.

**Critical First Step - Meta Question Check:**
Before selecting any parties, determine if the user is asking a meta question about the chat itself or the system: what parties are selected, how the chat works, what the system can do, or what was discussed. If so, set meta_question to true and return an EMPTY list. These questions do not require querying party manifestos, regardless of which parties earlier messages mention.

**Second Step - Policy Question Check:**
Only select parties if answering requires accessing their political positions, policies, or manifestos. Questions like "Which party did I select?" or "List the available parties" mention parties but need no political data: return an EMPTY list.

**Selection Rules:**
1. ONLY select a party if the user explicitly mentions it BY NAME in their last message AND asks about political positions. Do NOT infer parties from context, pronouns, or earlier messages.
2. If the user's last message names no specific party, return an EMPTY list, including for general topic questions like "What about climate policy?".
3. Set all_targets to true only if the user explicitly says "all parties", "everyone", or "each party" in the last message AND asks a political question. Leave selected_targets empty in that case; the expansion is handled elsewhere.

**Default behavior**: Return an EMPTY list unless the current message explicitly names parties AND asks about their political positions. Better to return nothing than to select the wrong parties.`,
		strings.Join(current, ", "),
		strings.Join(available, ", "),
	)
}
