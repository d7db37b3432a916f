// Package agent implements the conversational turn engine: it resolves which
// targets a user message addresses, rephrases the question, routes to one of
// four answer branches, augments with retrieval and web search, and streams
// the generated answer plus title and follow-ups as one ordered event stream.
package agent

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/open-democracy/em/go/orchestrator/internal/llm"
	"github.com/open-democracy/em/go/orchestrator/internal/metrics"
	"github.com/open-democracy/em/go/orchestrator/internal/models"
	"github.com/open-democracy/em/go/orchestrator/internal/roster"
	"github.com/open-democracy/em/go/orchestrator/internal/tracing"
	"github.com/open-democracy/em/go/orchestrator/internal/vectordb"
	"github.com/open-democracy/em/go/orchestrator/internal/websearch"
)

// Services are the engine's external collaborators. Vector and Web may be nil;
// the corresponding augmentation degrades away.
type Services struct {
	Completion llm.CompletionService
	Vector     vectordb.Searcher
	Web        websearch.Searcher
	Roster     *roster.Policy
}

// Config bounds the engine's concurrency and augmentation behavior.
type Config struct {
	// MaxFanout caps concurrent per-target sub-branches.
	MaxFanout int
	// StageTimeout bounds each external call.
	StageTimeout time.Duration
	// RetrievalTopK is how many chunks survive reranking.
	RetrievalTopK int
	// StreamBuffer sizes the event channel.
	StreamBuffer int
}

func (c *Config) applyDefaults() {
	if c.MaxFanout <= 0 {
		c.MaxFanout = 4
	}
	if c.StageTimeout <= 0 {
		c.StageTimeout = 60 * time.Second
	}
	if c.RetrievalTopK <= 0 {
		c.RetrievalTopK = 5
	}
	if c.StreamBuffer <= 0 {
		c.StreamBuffer = 64
	}
}

// Engine runs conversation turns.
type Engine struct {
	svc    Services
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	// roster holds the live expansion policy; SetRosterPolicy swaps it on
	// config reload without interrupting in-flight turns.
	roster atomic.Pointer[roster.Policy]
}

func NewEngine(svc Services, cfg Config, logger *zap.Logger) *Engine {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	if svc.Roster == nil {
		svc.Roster = &roster.Policy{}
	}
	e := &Engine{svc: svc, cfg: cfg, logger: logger, now: time.Now}
	e.roster.Store(svc.Roster)
	return e
}

// SetRosterPolicy replaces the "all parties" expansion policy. Each turn
// reads the policy at most once, during target resolution.
func (e *Engine) SetRosterPolicy(p *roster.Policy) {
	if p == nil {
		p = &roster.Policy{}
	}
	e.roster.Store(p)
}

// Request is one turn's input. The engine never mutates caller-owned slices.
type Request struct {
	Messages []models.ChatMessage

	Election models.Election
	// AvailableTargets is the election's full roster, supplied by the
	// persistence layer; the engine never reads storage itself.
	AvailableTargets []models.Party
	// SelectedTargets is the selection carried over from previous turns.
	SelectedTargets []models.Party
	// TargetsLocked pins the selection; the resolver stage is skipped.
	TargetsLocked bool

	ResponseLanguage  models.Language
	ManifestoLanguage models.Language

	EnableRetrieval bool
	EnableWebSearch bool
}

// Invoke validates the request, starts the turn in the background, and
// returns its event stream. Cancelling ctx cancels the turn cooperatively; no
// events are delivered after cancellation.
func (e *Engine) Invoke(ctx context.Context, req Request) (*TurnStream, error) {
	if len(req.Messages) == 0 {
		return nil, errNoMessages
	}
	if req.Messages[len(req.Messages)-1].Role != models.RoleUser {
		return nil, errLastMessageNotUser
	}

	messages := make([]models.ChatMessage, len(req.Messages))
	copy(messages, req.Messages)

	state := &ConversationState{
		Messages:          messages,
		Election:          req.Election,
		AvailableTargets:  req.AvailableTargets,
		SelectedTargets:   req.SelectedTargets,
		TargetsLocked:     req.TargetsLocked,
		ResponseLanguage:  req.ResponseLanguage,
		ManifestoLanguage: req.ManifestoLanguage,
		RetrievalEnabled:  req.EnableRetrieval,
	}

	stream := newTurnStream(ctx, e.cfg.StreamBuffer)
	go e.run(ctx, state, stream, req.EnableWebSearch)
	return stream, nil
}

func (e *Engine) run(ctx context.Context, state *ConversationState, stream *TurnStream, enableWebSearch bool) {
	defer stream.close()

	ctx, span := tracing.StartSpan(ctx, "agent.turn")
	defer span.End()

	metrics.TurnsStarted.Inc()
	start := time.Now()

	branch, err := e.route(ctx, state)
	if err != nil {
		e.failTurn(stream, err)
		metrics.TurnsCompleted.WithLabelValues(branch.String(), "error").Inc()
		return
	}

	stream.publish(Event{Type: EventAnswerType, AnswerType: answerTypeFor(branch)})

	web := e.webSearchEnabled(enableWebSearch)

	var update stateUpdate
	switch branch {
	case BranchNoTargets:
		useWeb := false
		if web {
			stageCtx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout)
			useWeb, err = e.decideWebSearch(stageCtx, state)
			cancel()
			if err != nil {
				e.failTurn(stream, err)
				metrics.TurnsCompleted.WithLabelValues(branch.String(), "error").Inc()
				return
			}
		}
		update = e.generateGeneric(ctx, state, stream, useWeb)

	case BranchSingleTarget:
		update = e.generateTargetAnswer(ctx, state, stream, state.SelectedTargets[0], web)

	case BranchMultiTargetComparison:
		update = e.generateComparison(ctx, state, stream, web)

	case BranchMultiTargetFanout:
		update = e.fanOut(ctx, state, stream, web)
	}
	state.apply(update)

	e.generateTitleAndFollowUps(ctx, state, stream)
	stream.publish(Event{Type: EventDone})

	status := "ok"
	if ctx.Err() != nil {
		status = "cancelled"
	}
	metrics.TurnsCompleted.WithLabelValues(branch.String(), status).Inc()
	metrics.TurnDuration.WithLabelValues(branch.String()).Observe(time.Since(start).Seconds())

	e.logger.Info("Turn completed",
		zap.String("branch", branch.String()),
		zap.String("status", status),
		zap.Int("targets", len(state.SelectedTargets)),
		zap.Duration("duration", time.Since(start)),
	)
}

// route runs the routing-critical stages and selects the branch. Any failure
// here is fatal for the turn.
func (e *Engine) route(ctx context.Context, state *ConversationState) (Branch, error) {
	if !state.TargetsLocked {
		stageCtx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout)
		err := e.resolveTargets(stageCtx, state, state.AvailableTargets)
		cancel()
		if err != nil {
			return BranchNoTargets, err
		}
	}

	stageCtx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout)
	err := e.rephraseQuestion(stageCtx, state)
	cancel()
	if err != nil {
		return BranchNoTargets, err
	}

	branch := Route(len(state.SelectedTargets), state.IsComparison)
	e.logger.Info("Branch selected",
		zap.String("branch", branch.String()),
		zap.Int("targets", len(state.SelectedTargets)),
		zap.Bool("comparison", state.IsComparison),
	)
	return branch, nil
}

// fanOut runs one independent single-target sub-flow per selected party. The
// sub-flows share nothing; their updates meet again only here, through the
// associative merge.
func (e *Engine) fanOut(ctx context.Context, state *ConversationState, stream *TurnStream, web bool) stateUpdate {
	metrics.FanoutBranches.Observe(float64(len(state.SelectedTargets)))

	updates := make([]stateUpdate, len(state.SelectedTargets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxFanout)
	for i, party := range state.SelectedTargets {
		g.Go(func() error {
			updates[i] = e.generateTargetAnswer(gctx, state, stream, party, web)
			return nil
		})
	}
	// Sub-flows absorb their own failures; the group never errors.
	_ = g.Wait()

	var merged stateUpdate
	for _, u := range updates {
		merged.merge(u)
	}
	return merged
}

func (e *Engine) failTurn(stream *TurnStream, err error) {
	e.logger.Error("Turn failed", zap.Error(err))
	stream.publish(Event{Type: EventError, Err: err.Error()})
}

func answerTypeFor(b Branch) string {
	switch b {
	case BranchSingleTarget:
		return "single"
	case BranchMultiTargetComparison:
		return "comparison"
	case BranchMultiTargetFanout:
		return "fanout"
	default:
		return "generic"
	}
}
