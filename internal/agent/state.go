package agent

import (
	"github.com/open-democracy/em/go/orchestrator/internal/models"
)

// ConversationState is the per-turn working state. It is built fresh from the
// request and discarded when the turn ends; nothing survives across turns.
//
// Concurrent branches never write it directly: each branch produces a
// stateUpdate that is folded in at the join point via the merge functions
// below. Per-key map entries are owned by exactly one producer (the branch
// for that target, or the reserved generic/comparison scopes), so merges
// never contend on a key.
type ConversationState struct {
	Messages []models.ChatMessage

	Election models.Election

	// AvailableTargets is the election's full roster; SelectedTargets is the
	// subset the turn addresses.
	AvailableTargets []models.Party
	SelectedTargets  []models.Party
	TargetsLocked    bool
	IsComparison     bool

	ResponseLanguage  models.Language
	ManifestoLanguage models.Language

	// RetrievalEnabled gates the retrieval executor for this turn.
	RetrievalEnabled bool

	// WebSummaries and WebSources are keyed by target short name, or the
	// reserved keys "generic" and "comparison".
	WebSummaries map[string]string
	WebSources   map[string][]models.WebSource

	Title     string
	FollowUps [3]string

	// TargetTags accumulates which targets (or the "system" sentinel)
	// contributed to the turn. Append-only.
	TargetTags []string
}

// stateUpdate is one branch's contribution, merged at the fan-in point.
type stateUpdate struct {
	// Messages are generated answers to append to the conversation.
	Messages []models.ChatMessage

	WebSummaries map[string]string
	WebSources   map[string][]models.WebSource

	TargetTags []string
}

// merge folds src into u. Scalar per-key entries are last-writer-wins (each
// key has one producer); list-valued entries append; tags and messages
// concatenate. The operation is associative.
func (u *stateUpdate) merge(src stateUpdate) {
	u.Messages = append(u.Messages, src.Messages...)
	u.WebSummaries = mergeSummaries(u.WebSummaries, src.WebSummaries)
	u.WebSources = mergeSources(u.WebSources, src.WebSources)
	u.TargetTags = append(u.TargetTags, src.TargetTags...)
}

// apply folds a merged update into the turn state.
func (s *ConversationState) apply(u stateUpdate) {
	s.Messages = append(s.Messages, u.Messages...)
	s.WebSummaries = mergeSummaries(s.WebSummaries, u.WebSummaries)
	s.WebSources = mergeSources(s.WebSources, u.WebSources)
	s.TargetTags = append(s.TargetTags, u.TargetTags...)
}

// replaceLastMessage swaps the latest turn for its rephrased form. All
// downstream stages see only the rephrased question.
func (s *ConversationState) replaceLastMessage(content string) {
	if len(s.Messages) == 0 {
		return
	}
	last := s.Messages[len(s.Messages)-1]
	s.Messages[len(s.Messages)-1] = models.ChatMessage{
		ID:      last.ID,
		Role:    last.Role,
		Content: content,
	}
}

func mergeSummaries(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func mergeSources(dst, src map[string][]models.WebSource) map[string][]models.WebSource {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string][]models.WebSource, len(src))
	}
	for k, v := range src {
		dst[k] = append(dst[k], v...)
	}
	return dst
}

func shortNames(parties []models.Party) []string {
	names := make([]string, len(parties))
	for i, p := range parties {
		names[i] = p.ShortName
	}
	return names
}
