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

// searchLimit is how many candidate chunks the vector store returns before
// reranking trims them to the configured top K.
const searchLimit = 20

// retrieveDocuments runs the improve-query, search, rerank pipeline for one
// party and returns the top chunks for answer grounding. When retrieval is
// unavailable or any step fails the stage degrades to no documents; grounded
// answering simply has less to work with.
func (e *Engine) retrieveDocuments(ctx context.Context, state *ConversationState, party models.Party) []models.DocumentChunk {
	if !state.RetrievalEnabled || e.svc.Vector == nil {
		return nil
	}

	ctx, span := tracing.StartStageSpan(ctx, "retrieve_documents")
	defer span.End()
	start := time.Now()
	defer func() { metrics.StageDuration.WithLabelValues("retrieve_documents").Observe(time.Since(start).Seconds()) }()

	query := e.improveQuery(ctx, state)

	searchCtx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout)
	defer cancel()
	docs, err := e.svc.Vector.Search(searchCtx, state.Election.ID, &party.ID, query, searchLimit, 0)
	if err != nil {
		metrics.StageFailures.WithLabelValues("retrieve_documents", "absorbed").Inc()
		e.logger.Warn("Document search failed",
			zap.String("party", party.ShortName),
			zap.Error(err),
		)
		return nil
	}
	if len(docs) == 0 {
		return nil
	}

	docs = e.rerankDocuments(ctx, state, docs)
	if len(docs) > e.cfg.RetrievalTopK {
		docs = docs[:e.cfg.RetrievalTopK]
	}
	metrics.RetrievalChunks.Observe(float64(len(docs)))
	return docs
}

// improveQuery rewrites the latest question into a manifesto-language search
// query. On failure the rephrased question itself is used as the query.
func (e *Engine) improveQuery(ctx context.Context, state *ConversationState) string {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout)
	defer cancel()

	query, err := e.svc.Completion.Complete(ctx, llm.Request{
		SystemPrompt: prompts.ImproveQuery(state.Election, state.ManifestoLanguage),
		Messages:     state.Messages,
	})
	query = strings.TrimSpace(query)
	if err != nil || query == "" {
		metrics.StageFailures.WithLabelValues("improve_query", "absorbed").Inc()
		e.logger.Warn("Query rewriting failed, falling back to raw question", zap.Error(err))
		return state.Messages[len(state.Messages)-1].Content
	}
	return query
}

// rerankDocuments orders search candidates by usefulness. Indices outside the
// candidate range or repeated are skipped; candidates the model omitted keep
// their search order at the tail. On failure the search order stands.
func (e *Engine) rerankDocuments(ctx context.Context, state *ConversationState, docs []models.DocumentChunk) []models.DocumentChunk {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout)
	defer cancel()

	var out prompts.RerankOutput
	err := e.svc.Completion.CompleteStructured(ctx, llm.Request{
		SystemPrompt: prompts.Rerank(prompts.FormatDocuments(docs)),
		Messages:     state.Messages,
	}, prompts.RerankSchema, &out)
	if err != nil {
		metrics.StageFailures.WithLabelValues("rerank_documents", "absorbed").Inc()
		e.logger.Warn("Reranking failed, keeping search order", zap.Error(err))
		return docs
	}

	used := make([]bool, len(docs))
	ranked := make([]models.DocumentChunk, 0, len(docs))
	for _, idx := range out.RerankedDocIndices {
		if idx < 0 || idx >= len(docs) || used[idx] {
			continue
		}
		used[idx] = true
		ranked = append(ranked, docs[idx])
	}
	for i, doc := range docs {
		if !used[i] {
			ranked = append(ranked, doc)
		}
	}
	return ranked
}
