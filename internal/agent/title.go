package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/open-democracy/em/go/orchestrator/internal/agent/prompts"
	"github.com/open-democracy/em/go/orchestrator/internal/llm"
	"github.com/open-democracy/em/go/orchestrator/internal/metrics"
	"github.com/open-democracy/em/go/orchestrator/internal/tracing"
)

// generateTitleAndFollowUps runs once per turn, after every answer branch has
// joined, and closes the content portion of the stream with the conversation
// title and exactly three suggested replies. Failure is absorbed: the turn
// completes without the event.
func (e *Engine) generateTitleAndFollowUps(ctx context.Context, state *ConversationState, stream *TurnStream) {
	ctx, span := tracing.StartStageSpan(ctx, "title_and_followups")
	defer span.End()
	start := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues("title_and_followups").Observe(time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout)
	defer cancel()

	var out prompts.TitleOutput
	err := e.svc.Completion.CompleteStructured(ctx, llm.Request{
		SystemPrompt: prompts.TitleAndFollowUps(state.SelectedTargets),
		Messages:     state.Messages,
	}, prompts.TitleSchema, &out)
	if err != nil {
		metrics.StageFailures.WithLabelValues("title_and_followups", "absorbed").Inc()
		e.logger.Warn("Title generation failed, completing without it", zap.Error(err))
		return
	}

	state.Title = out.ConversationTitle
	state.FollowUps = [3]string{out.FollowUpOne, out.FollowUpTwo, out.FollowUpThree}

	stream.publish(Event{
		Type:      EventTitleAndFollowUps,
		Title:     state.Title,
		FollowUps: state.FollowUps[:],
	})
}
