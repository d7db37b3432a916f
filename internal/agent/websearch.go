package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/open-democracy/em/go/orchestrator/internal/agent/prompts"
	"github.com/open-democracy/em/go/orchestrator/internal/llm"
	"github.com/open-democracy/em/go/orchestrator/internal/metrics"
	"github.com/open-democracy/em/go/orchestrator/internal/models"
	"github.com/open-democracy/em/go/orchestrator/internal/tracing"
)

// webSearchEnabled reports whether any search stage may run this turn. If the
// collaborator is absent the whole feature degrades away, regardless of the
// caller's flag.
func (e *Engine) webSearchEnabled(enabled bool) bool {
	return enabled && e.svc.Web != nil
}

// decideWebSearch asks whether a live search would add value to a generic
// answer. Only the no-target branch consults it. Failure is fatal, like the
// other routing-critical stages.
func (e *Engine) decideWebSearch(ctx context.Context, state *ConversationState) (bool, error) {
	ctx, span := tracing.StartStageSpan(ctx, "decide_web_search")
	defer span.End()
	start := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues("decide_web_search").Observe(time.Since(start).Seconds()) }()

	var out prompts.WebSearchDecisionOutput
	err := e.svc.Completion.CompleteStructured(ctx, llm.Request{
		SystemPrompt: prompts.DecideWebSearch(state.Election, e.now(), state.ResponseLanguage),
		Messages:     state.Messages,
	}, prompts.WebSearchDecisionSchema, &out)
	if err != nil {
		metrics.StageFailures.WithLabelValues("decide_web_search", "fatal").Inc()
		return false, &RoutingError{Stage: "decide_web_search", Err: err}
	}

	e.logger.Info("Web search decision",
		zap.Bool("use", out.UseWebSearch),
		zap.String("reason", out.Reason),
	)
	return out.UseWebSearch, nil
}

// executeWebSearch generates a branch-scoped query, runs the search, and
// normalizes the result. Any failure degrades to an empty result for this
// branch only; the branch's answer generation proceeds regardless.
func (e *Engine) executeWebSearch(ctx context.Context, state *ConversationState, scope string, queryPrompt string) (string, []models.WebSource) {
	ctx, span := tracing.StartStageSpan(ctx, "web_search")
	defer span.End()
	start := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues("web_search").Observe(time.Since(start).Seconds()) }()

	summary, sources, err := e.tryWebSearch(ctx, state, queryPrompt)
	if err != nil {
		metrics.WebSearches.WithLabelValues(scope, "degraded").Inc()
		metrics.StageFailures.WithLabelValues("web_search", "absorbed").Inc()
		e.logger.Warn("Web search degraded to empty result",
			zap.String("scope", scope),
			zap.Error(err),
		)
		return "", nil
	}
	metrics.WebSearches.WithLabelValues(scope, "ok").Inc()
	return summary, sources
}

func (e *Engine) tryWebSearch(ctx context.Context, state *ConversationState, queryPrompt string) (string, []models.WebSource, error) {
	queryCtx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout)
	defer cancel()
	query, err := e.svc.Completion.Complete(queryCtx, llm.Request{
		SystemPrompt: queryPrompt,
		Messages:     state.Messages,
	})
	if err != nil {
		return "", nil, fmt.Errorf("query generation: %w", err)
	}
	query = strings.TrimSpace(strings.Trim(strings.TrimSpace(query), `"`))
	if query == "" {
		return "", nil, fmt.Errorf("query generation returned empty query")
	}

	searchCtx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout)
	defer cancel()
	resp, err := e.svc.Web.Search(searchCtx, query)
	if err != nil {
		return "", nil, fmt.Errorf("search %q: %w", query, err)
	}
	return resp.Answer, resp.Sources, nil
}

// comparisonWebSearch runs one executor per compared target concurrently in a
// bounded task group. Per-target failures stay independent: a failed target
// simply contributes nothing.
func (e *Engine) comparisonWebSearch(ctx context.Context, state *ConversationState) stateUpdate {
	var (
		updates = make([]stateUpdate, len(state.SelectedTargets))
		g, gctx = errgroup.WithContext(ctx)
	)
	g.SetLimit(e.cfg.MaxFanout)

	for i, party := range state.SelectedTargets {
		g.Go(func() error {
			prompt := prompts.TargetSearchQuery(state.Election, party, e.now(), state.ResponseLanguage)
			summary, sources := e.executeWebSearch(gctx, state, party.ShortName, prompt)
			if summary == "" && len(sources) == 0 {
				return nil
			}
			updates[i] = stateUpdate{
				WebSummaries: map[string]string{party.ShortName: summary},
				WebSources:   map[string][]models.WebSource{party.ShortName: sources},
			}
			return nil
		})
	}
	// Executors degrade instead of failing, so the group never errors.
	_ = g.Wait()

	var merged stateUpdate
	for _, u := range updates {
		merged.merge(u)
	}
	return merged
}
