package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/open-democracy/em/go/orchestrator/internal/circuitbreaker"
	"github.com/open-democracy/em/go/orchestrator/internal/llm"
	"github.com/open-democracy/em/go/orchestrator/internal/models"
	"github.com/open-democracy/em/go/orchestrator/internal/tracing"
)

// Config controls the Qdrant client.
type Config struct {
	Enabled    bool
	Host       string
	Port       int
	Collection string
	TopK       int
	Timeout    time.Duration
	EmbedModel string
}

// Searcher is the vector-search collaborator consumed by the engine.
// A nil partyID searches the pooled election corpus.
type Searcher interface {
	Search(ctx context.Context, electionID uuid.UUID, partyID *uuid.UUID, query string, limit, offset int) ([]models.DocumentChunk, error)
}

// Client is a minimal Qdrant HTTP client over the manifesto chunk collection.
type Client struct {
	cfg      Config
	base     string
	httpw    *circuitbreaker.HTTPWrapper
	embedder llm.Embedder
	logger   *zap.Logger
}

// New creates the Qdrant adapter. Queries are embedded via embedder before
// similarity search.
func New(cfg Config, embedder llm.Embedder, logger *zap.Logger) *Client {
	if cfg.Port == 0 {
		cfg.Port = 6333
	}
	if cfg.TopK == 0 {
		cfg.TopK = 20
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Collection == "" {
		cfg.Collection = "manifesto_chunks"
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		cfg:      cfg,
		base:     fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		httpw:    circuitbreaker.NewHTTPWrapper(httpClient, "qdrant", logger),
		embedder: embedder,
		logger:   logger,
	}
}

type queryRequest struct {
	Query       []float32      `json:"query"`
	Limit       int            `json:"limit"`
	Offset      int            `json:"offset,omitempty"`
	WithPayload bool           `json:"with_payload"`
	Filter      map[string]any `json:"filter,omitempty"`
}

type point struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type queryResponse struct {
	Result struct {
		Points []point `json:"points"`
	} `json:"result"`
	Status string `json:"status"`
}

// Search embeds query and runs a filtered similarity search, returning chunks
// ordered by descending relevance.
func (c *Client) Search(ctx context.Context, electionID uuid.UUID, partyID *uuid.UUID, query string, limit, offset int) ([]models.DocumentChunk, error) {
	if c == nil || !c.cfg.Enabled {
		return nil, fmt.Errorf("vectordb: search called while disabled")
	}
	if limit <= 0 {
		limit = c.cfg.TopK
	}

	vec, err := c.embedder.Embed(ctx, c.cfg.EmbedModel, query)
	if err != nil {
		return nil, fmt.Errorf("vectordb: embed query: %w", err)
	}

	must := []map[string]any{
		{"key": "election_id", "match": map[string]any{"value": electionID.String()}},
	}
	if partyID != nil {
		must = append(must, map[string]any{
			"key": "party_id", "match": map[string]any{"value": partyID.String()},
		})
	}

	reqBody := queryRequest{
		Query:       vec,
		Limit:       limit,
		Offset:      offset,
		WithPayload: true,
		Filter:      map[string]any{"must": must},
	}
	buf, _ := json.Marshal(reqBody)

	url := fmt.Sprintf("%s/collections/%s/points/query", c.base, c.cfg.Collection)
	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.httpw.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vectordb: query: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vectordb: qdrant status %d", resp.StatusCode)
	}

	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("vectordb: decode response: %w", err)
	}

	chunks := make([]models.DocumentChunk, 0, len(qr.Result.Points))
	for _, p := range qr.Result.Points {
		chunk := models.DocumentChunk{Score: p.Score}
		if t, ok := p.Payload["title"].(string); ok {
			chunk.Title = t
		}
		if t, ok := p.Payload["text"].(string); ok {
			chunk.Text = t
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}
