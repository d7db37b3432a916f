package agent

import (
	"encoding/json"
	"time"

	"github.com/open-democracy/em/go/orchestrator/internal/models"
)

// EventType identifies an output event variant.
type EventType string

const (
	// EventAnswerType announces which answer shape the turn produces.
	EventAnswerType EventType = "answer_type"
	// EventAnswerDelta is one token of the generic or comparison answer.
	EventAnswerDelta EventType = "standard_answer_chunk"
	// EventTargetAnswerDelta is one token of a target-scoped answer.
	EventTargetAnswerDelta EventType = "multi_target_answer_chunk"
	// EventWebSources carries a branch's normalized web-search result.
	EventWebSources EventType = "web_search_sources"
	// EventCitation carries the documents grounding a target's answer.
	EventCitation EventType = "citation"
	// EventTitleAndFollowUps closes the content portion of the turn.
	EventTitleAndFollowUps EventType = "title_and_followups"
	// EventDone terminates a successful turn.
	EventDone EventType = "done"
	// EventError terminates a turn after a routing failure.
	EventError EventType = "error"
)

// SourceScope says which branch a web-search result belongs to.
type SourceScope string

const (
	ScopeGeneric    SourceScope = "generic"
	ScopeComparison SourceScope = "comparison"
	ScopeTarget     SourceScope = "target"
)

// Event is one element of the turn's output stream. Seq is assigned by the
// stream on publish; per-branch order is preserved, cross-branch interleaving
// is unspecified.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`

	// AnswerType is set on answer_type events: generic, comparison, single,
	// fanout.
	AnswerType string `json:"answer_type,omitempty"`
	// Delta is the token text on chunk events.
	Delta string `json:"delta,omitempty"`
	// Target is the party short name on target-scoped events.
	Target string `json:"target,omitempty"`

	Scope   SourceScope        `json:"scope,omitempty"`
	Summary string             `json:"summary,omitempty"`
	Sources []models.WebSource `json:"sources,omitempty"`

	Documents []models.DocumentChunk `json:"documents,omitempty"`

	Title     string   `json:"title,omitempty"`
	FollowUps []string `json:"follow_ups,omitempty"`

	Err string `json:"error,omitempty"`
}

// Marshal returns JSON for SSE payloads and logs.
func (e Event) Marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}
