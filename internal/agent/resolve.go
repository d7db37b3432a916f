package agent

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/open-democracy/em/go/orchestrator/internal/agent/prompts"
	"github.com/open-democracy/em/go/orchestrator/internal/llm"
	"github.com/open-democracy/em/go/orchestrator/internal/metrics"
	"github.com/open-democracy/em/go/orchestrator/internal/models"
	"github.com/open-democracy/em/go/orchestrator/internal/tracing"
)

// systemTag marks a turn that addressed the chat system itself rather than a
// political target.
const systemTag = "system"

// resolveTargets infers which targets the user wants addressed this turn and
// replaces the selection in state. Failure is fatal: routing correctness is a
// precondition for everything downstream.
func (e *Engine) resolveTargets(ctx context.Context, state *ConversationState, available []models.Party) error {
	ctx, span := tracing.StartStageSpan(ctx, "resolve_targets")
	defer span.End()
	start := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues("resolve_targets").Observe(time.Since(start).Seconds()) }()

	remaining := remainingRoster(available, state.SelectedTargets)

	var out prompts.ResolveTargetsOutput
	err := e.svc.Completion.CompleteStructured(ctx, llm.Request{
		SystemPrompt: prompts.ResolveTargets(state.SelectedTargets, remaining),
		Messages:     state.Messages,
	}, prompts.ResolveTargetsSchema, &out)
	if err != nil {
		metrics.StageFailures.WithLabelValues("resolve_targets", "fatal").Inc()
		return &RoutingError{Stage: "resolve_targets", Err: err}
	}

	switch {
	case out.MetaQuestion:
		// Meta questions about the chat or system route to the sentinel
		// target and get a generic answer without party grounding.
		state.SelectedTargets = nil
		state.TargetTags = append(state.TargetTags, systemTag)

	case out.AllTargets:
		expanded := e.roster.Load().Expand(
			state.Election.ID.String(),
			shortNames(available),
			shortNames(state.SelectedTargets),
			out.SelectedTargets,
		)
		state.SelectedTargets = matchParties(available, expanded, e.logger)

	case len(out.SelectedTargets) == 0:
		// No new signal: keep the prior selection unchanged.

	default:
		state.SelectedTargets = matchParties(available, out.SelectedTargets, e.logger)
	}

	e.logger.Info("Targets resolved",
		zap.Strings("selected", shortNames(state.SelectedTargets)),
		zap.Bool("all", out.AllTargets),
		zap.Bool("meta", out.MetaQuestion),
	)
	return nil
}

// remainingRoster lists the short names of available parties the user has not
// selected yet.
func remainingRoster(available, selected []models.Party) []string {
	chosen := make(map[string]struct{}, len(selected))
	for _, p := range selected {
		chosen[p.ShortName] = struct{}{}
	}
	var out []string
	for _, p := range available {
		if _, ok := chosen[p.ShortName]; !ok {
			out = append(out, p.ShortName)
		}
	}
	return out
}

// matchParties maps resolver-returned names back to party records. Matching
// is case-insensitive on both short and full names; unknown names are logged
// and skipped rather than failing the turn.
func matchParties(available []models.Party, names []string, logger *zap.Logger) []models.Party {
	var out []models.Party
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		needle := strings.ToLower(strings.TrimSpace(name))
		if needle == "" {
			continue
		}
		matched := false
		for _, p := range available {
			if strings.ToLower(p.ShortName) != needle && strings.ToLower(p.FullName) != needle {
				continue
			}
			if _, dup := seen[p.ShortName]; !dup {
				seen[p.ShortName] = struct{}{}
				out = append(out, p)
			}
			matched = true
			break
		}
		if !matched {
			logger.Warn("Resolver returned unknown target", zap.String("name", name))
		}
	}
	return out
}
