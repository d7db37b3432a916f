package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/open-democracy/em/go/orchestrator/internal/agent/prompts"
	"github.com/open-democracy/em/go/orchestrator/internal/models"
	"github.com/open-democracy/em/go/orchestrator/internal/roster"
)

func testState(selected ...models.Party) *ConversationState {
	return &ConversationState{
		Messages:        []models.ChatMessage{models.NewUserMessage("What about climate policy?")},
		Election:        testElection(),
		SelectedTargets: selected,
	}
}

func TestResolveReplacesSelection(t *testing.T) {
	fc := &fakeCompletion{resolve: prompts.ResolveTargetsOutput{SelectedTargets: []string{"CDU"}}}
	engine := newTestEngine(fc, nil, nil)
	spd, cdu := mkParty("SPD", "Social Democratic Party"), mkParty("CDU", "Christian Democratic Union")

	state := testState(spd)
	require.NoError(t, engine.resolveTargets(context.Background(), state, []models.Party{spd, cdu}))

	require.Len(t, state.SelectedTargets, 1)
	assert.Equal(t, "CDU", state.SelectedTargets[0].ShortName)
}

func TestResolveIsIdempotent(t *testing.T) {
	fc := &fakeCompletion{resolve: prompts.ResolveTargetsOutput{SelectedTargets: []string{"SPD"}}}
	engine := newTestEngine(fc, nil, nil)
	spd, cdu := mkParty("SPD", "Social Democratic Party"), mkParty("CDU", "Christian Democratic Union")
	available := []models.Party{spd, cdu}

	state := testState()
	require.NoError(t, engine.resolveTargets(context.Background(), state, available))
	first := shortNames(state.SelectedTargets)
	require.NoError(t, engine.resolveTargets(context.Background(), state, available))

	assert.Equal(t, first, shortNames(state.SelectedTargets))
}

func TestResolveKeepsPriorSelectionWithoutNewSignal(t *testing.T) {
	fc := &fakeCompletion{} // resolver returns nothing: no names, no flags
	engine := newTestEngine(fc, nil, nil)
	spd := mkParty("SPD", "Social Democratic Party")

	state := testState(spd)
	require.NoError(t, engine.resolveTargets(context.Background(), state, []models.Party{spd}))

	require.Len(t, state.SelectedTargets, 1)
	assert.Equal(t, "SPD", state.SelectedTargets[0].ShortName)
}

func TestResolveMetaQuestionClearsSelection(t *testing.T) {
	fc := &fakeCompletion{resolve: prompts.ResolveTargetsOutput{MetaQuestion: true}}
	engine := newTestEngine(fc, nil, nil)
	spd := mkParty("SPD", "Social Democratic Party")

	state := testState(spd)
	require.NoError(t, engine.resolveTargets(context.Background(), state, []models.Party{spd}))

	assert.Empty(t, state.SelectedTargets)
	assert.Contains(t, state.TargetTags, systemTag)
}

func TestResolveAllTargetsUsesExpansionPolicy(t *testing.T) {
	fc := &fakeCompletion{resolve: prompts.ResolveTargetsOutput{AllTargets: true}}
	engine := newTestEngine(fc, nil, nil)

	election := testElection()
	parties := []models.Party{
		mkParty("SPD", "Social Democratic Party"),
		mkParty("CDU", "Christian Democratic Union"),
		mkParty("TINY", "Tiny Party"),
	}
	policy, err := roster.Load("")
	require.NoError(t, err)
	engine.SetRosterPolicy(policy)

	state := testState()
	state.Election = election
	require.NoError(t, engine.resolveTargets(context.Background(), state, parties))

	// Zero policy: every available party counts as major.
	assert.ElementsMatch(t, []string{"SPD", "CDU", "TINY"}, shortNames(state.SelectedTargets))
}

func TestMatchPartiesIsCaseInsensitiveAndDeduplicates(t *testing.T) {
	spd := mkParty("SPD", "Social Democratic Party")
	cdu := mkParty("CDU", "Christian Democratic Union")
	available := []models.Party{spd, cdu}

	got := matchParties(available, []string{"spd", "Social Democratic Party", "CDU", "unknown"}, zap.NewNop())

	assert.Equal(t, []string{"SPD", "CDU"}, shortNames(got))
}

func TestRemainingRosterExcludesSelected(t *testing.T) {
	spd := mkParty("SPD", "Social Democratic Party")
	cdu := mkParty("CDU", "Christian Democratic Union")

	got := remainingRoster([]models.Party{spd, cdu}, []models.Party{spd})

	assert.Equal(t, []string{"CDU"}, got)
}
