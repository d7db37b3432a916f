package prompts

import (
	"fmt"

	"github.com/open-democracy/em/go/orchestrator/internal/llm"
	"github.com/open-democracy/em/go/orchestrator/internal/models"
)

// TitleOutput is the structured title-and-follow-ups answer.
type TitleOutput struct {
	ConversationTitle string `json:"conversation_title"`
	FollowUpOne       string `json:"follow_up_one"`
	FollowUpTwo       string `json:"follow_up_two"`
	FollowUpThree     string `json:"follow_up_three"`
}

// TitleSchema constrains the title completion.
var TitleSchema = llm.Schema{
	Name:        "generate_title_and_replies",
	Description: "Chat title and three quick replies.",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"conversation_title": map[string]any{
				"type":        "string",
				"description": "Title for the conversation.",
			},
			"follow_up_one": map[string]any{
				"type":        "string",
				"description": "Direct follow-up question.",
			},
			"follow_up_two": map[string]any{
				"type":        "string",
				"description": "Follow-up asking for definitions.",
			},
			"follow_up_three": map[string]any{
				"type":        "string",
				"description": "Question switching to a different topic.",
			},
		},
		"required":             []string{"conversation_title", "follow_up_one", "follow_up_two", "follow_up_three"},
		"additionalProperties": false,
	},
}

// TitleAndFollowUps builds the title/quick-replies prompt.
func TitleAndFollowUps(parties []models.Party) string {
	return fmt.Sprintf(`# Role

You generate the title and quick replies for a chat in which the following parties are represented:
%s
You receive a conversation history and generate a title for the chat as well as quick replies for the user.

# Instructions

## For the Chat Title

Generate a short title for the chat. It should briefly and concisely describe the content of the chat in 3-5 words.

## For the Quick Replies

Generate 3 quick replies that the user could send in response to the parties' latest messages.
The 3 quick replies should cover the following response types (in this order):

- A direct follow-up question to the answer(s) given since the user's last message. Use formulations like "How do you want to...?", "What is your stance on...?", "How can...?" etc.
- A question asking for definitions or explanations of complicated terms. If this refers to terms from a specific party only, include that party's name in the question (e.g., "What does <Party-Name> mean by...?").
- A question that switches to a different, specific campaign topic.

Make sure that:

- The quick replies are directed at the party/parties.
- The quick replies are especially relevant or pressing in relation to the given party/parties.
- The quick replies are short and concise. Quick replies must be no longer than seven words.`,
		PartyList(parties),
	)
}
