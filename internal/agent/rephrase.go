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

// rephraseQuestion restates the latest utterance target-agnostically in the
// response language and classifies explicit-comparison intent. The rephrased
// text replaces the latest turn for every downstream stage.
func (e *Engine) rephraseQuestion(ctx context.Context, state *ConversationState) error {
	ctx, span := tracing.StartStageSpan(ctx, "rephrase_question")
	defer span.End()
	start := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues("rephrase_question").Observe(time.Since(start).Seconds()) }()

	var out prompts.RephraseOutput
	err := e.svc.Completion.CompleteStructured(ctx, llm.Request{
		SystemPrompt: prompts.Rephrase(state.ResponseLanguage),
		Messages:     state.Messages,
	}, prompts.RephraseSchema, &out)
	if err != nil {
		metrics.StageFailures.WithLabelValues("rephrase_question", "fatal").Inc()
		return &RoutingError{Stage: "rephrase_question", Err: err}
	}

	state.replaceLastMessage(out.RephrasedQuestion)
	state.IsComparison = out.IsComparisonQuestion

	e.logger.Debug("Question rephrased",
		zap.String("rephrased", out.RephrasedQuestion),
		zap.Bool("comparison", out.IsComparisonQuestion),
	)
	return nil
}
