package agent

import (
	"context"
	"io"
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

// scopeGenericKey and scopeComparisonKey are the reserved web-result map keys
// for the non-target-scoped branches. Party short names never collide with
// them; the roster excludes both.
const (
	scopeGenericKey    = "generic"
	scopeComparisonKey = "comparison"
)

// generateGeneric produces the no-target answer, optionally augmented by a
// live web search when the decision stage asked for one.
func (e *Engine) generateGeneric(ctx context.Context, state *ConversationState, stream *TurnStream, useWeb bool) stateUpdate {
	ctx, span := tracing.StartStageSpan(ctx, "generate_generic")
	defer span.End()

	var update stateUpdate
	var webSummary string
	var webSources []models.WebSource
	if useWeb {
		prompt := prompts.GenericSearchQuery(state.Election, e.now(), state.ResponseLanguage)
		webSummary, webSources = e.executeWebSearch(ctx, state, scopeGenericKey, prompt)
		if webSummary != "" || len(webSources) > 0 {
			update.WebSummaries = map[string]string{scopeGenericKey: webSummary}
			update.WebSources = map[string][]models.WebSource{scopeGenericKey: webSources}
			stream.publish(Event{
				Type:    EventWebSources,
				Scope:   ScopeGeneric,
				Summary: webSummary,
				Sources: webSources,
			})
		}
	}

	answer := e.streamAnswer(ctx, "generate_generic", llm.Request{
		SystemPrompt: prompts.GenericAnswer(state.Election, state.AvailableTargets, webSummary, webSources, e.now(), state.ResponseLanguage),
		Messages:     state.Messages,
	}, func(delta string) {
		stream.publish(Event{Type: EventAnswerDelta, Delta: delta})
	})

	update.Messages = []models.ChatMessage{models.NewAssistantMessage(answer)}
	return update
}

// generateTargetAnswer runs the grounded sub-flow for one party: retrieval,
// optional web search, then a tagged token stream. It is the unit of work of
// both the single-target branch and the fan-out branch.
func (e *Engine) generateTargetAnswer(ctx context.Context, state *ConversationState, stream *TurnStream, party models.Party, useWeb bool) stateUpdate {
	ctx, span := tracing.StartStageSpan(ctx, "generate_target")
	defer span.End()

	var update stateUpdate
	update.TargetTags = []string{party.ShortName}

	var webSummary string
	var webSources []models.WebSource
	if useWeb {
		prompt := prompts.TargetSearchQuery(state.Election, party, e.now(), state.ResponseLanguage)
		webSummary, webSources = e.executeWebSearch(ctx, state, party.ShortName, prompt)
		if webSummary != "" || len(webSources) > 0 {
			update.WebSummaries = map[string]string{party.ShortName: webSummary}
			update.WebSources = map[string][]models.WebSource{party.ShortName: webSources}
			stream.publish(Event{
				Type:    EventWebSources,
				Scope:   ScopeTarget,
				Target:  party.ShortName,
				Summary: webSummary,
				Sources: webSources,
			})
		}
	}

	docs := e.retrieveDocuments(ctx, state, party)
	// Citations precede the first token so clients can resolve [n] references
	// as deltas arrive.
	stream.publish(Event{
		Type:      EventCitation,
		Target:    party.ShortName,
		Documents: docs,
	})

	answer := e.streamAnswer(ctx, "generate_target", llm.Request{
		SystemPrompt: prompts.SingleTargetAnswer(state.Election, party, docs, webSummary, webSources, e.now(), state.ResponseLanguage),
		Messages:     state.Messages,
	}, func(delta string) {
		stream.publish(Event{Type: EventTargetAnswerDelta, Target: party.ShortName, Delta: delta})
	})

	update.Messages = []models.ChatMessage{models.NewAssistantMessage(answer)}
	return update
}

// generateComparison produces one directly contrasting answer over all
// selected parties. Retrieval and web search run per party concurrently; the
// answer itself is a single untagged token stream.
func (e *Engine) generateComparison(ctx context.Context, state *ConversationState, stream *TurnStream, useWeb bool) stateUpdate {
	ctx, span := tracing.StartStageSpan(ctx, "generate_comparison")
	defer span.End()

	var update stateUpdate
	update.TargetTags = shortNames(state.SelectedTargets)

	if useWeb {
		webUpdate := e.comparisonWebSearch(ctx, state)
		for _, party := range state.SelectedTargets {
			summary := webUpdate.WebSummaries[party.ShortName]
			sources := webUpdate.WebSources[party.ShortName]
			if summary == "" && len(sources) == 0 {
				continue
			}
			stream.publish(Event{
				Type:    EventWebSources,
				Scope:   ScopeComparison,
				Target:  party.ShortName,
				Summary: summary,
				Sources: sources,
			})
		}
		update.merge(webUpdate)
	}

	docsByParty := e.comparisonRetrieve(ctx, state)
	var blocks strings.Builder
	for _, party := range state.SelectedTargets {
		docs := docsByParty[party.ShortName]
		stream.publish(Event{
			Type:      EventCitation,
			Target:    party.ShortName,
			Documents: docs,
		})
		blocks.WriteString(prompts.ComparisonPartyBlock(party, docs, update.WebSources[party.ShortName]))
	}

	answer := e.streamAnswer(ctx, "generate_comparison", llm.Request{
		SystemPrompt: prompts.ComparisonAnswer(state.Election, state.SelectedTargets, blocks.String(), e.now(), state.ResponseLanguage),
		Messages:     state.Messages,
	}, func(delta string) {
		stream.publish(Event{Type: EventAnswerDelta, Delta: delta})
	})

	update.Messages = []models.ChatMessage{models.NewAssistantMessage(answer)}
	return update
}

// comparisonRetrieve fetches each compared party's documents concurrently in
// a bounded task group.
func (e *Engine) comparisonRetrieve(ctx context.Context, state *ConversationState) map[string][]models.DocumentChunk {
	results := make([][]models.DocumentChunk, len(state.SelectedTargets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxFanout)
	for i, party := range state.SelectedTargets {
		g.Go(func() error {
			results[i] = e.retrieveDocuments(gctx, state, party)
			return nil
		})
	}
	_ = g.Wait()

	byParty := make(map[string][]models.DocumentChunk, len(results))
	for i, party := range state.SelectedTargets {
		byParty[party.ShortName] = results[i]
	}
	return byParty
}

// streamAnswer runs a streaming completion, forwarding each delta through
// emit, and returns the accumulated text. Generation failure is absorbed: the
// apology is emitted as the answer so the turn still terminates with a
// message.
func (e *Engine) streamAnswer(ctx context.Context, stage string, req llm.Request, emit func(delta string)) string {
	start := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout)
	defer cancel()

	text, err := e.consumeStream(ctx, req, emit)
	if err != nil {
		metrics.StageFailures.WithLabelValues(stage, "absorbed").Inc()
		e.logger.Warn("Answer generation failed, substituting apology",
			zap.String("stage", stage),
			zap.Error(err),
		)
		emit(apologyMessage)
		return apologyMessage
	}
	return text
}

func (e *Engine) consumeStream(ctx context.Context, req llm.Request, emit func(delta string)) (string, error) {
	stream, err := e.svc.Completion.StreamComplete(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var b strings.Builder
	for {
		delta, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if delta == "" {
			continue
		}
		b.WriteString(delta)
		emit(delta)
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", io.ErrUnexpectedEOF
	}
	return b.String(), nil
}
