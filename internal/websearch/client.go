package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/open-democracy/em/go/orchestrator/internal/circuitbreaker"
	"github.com/open-democracy/em/go/orchestrator/internal/models"
	"github.com/open-democracy/em/go/orchestrator/internal/tracing"
)

// Config controls the Perplexity client.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	Timeout           time.Duration
	RequestsPerMinute int
}

// Response is the raw web-search result before engine-side normalization.
type Response struct {
	Query   string
	Answer  string
	Sources []models.WebSource
}

// Searcher is the live web-search collaborator. It may be absent for a turn;
// the engine must tolerate a nil Searcher by skipping every search stage.
type Searcher interface {
	Search(ctx context.Context, query string) (Response, error)
}

// Client calls the Perplexity chat completions API.
type Client struct {
	cfg     Config
	httpw   *circuitbreaker.HTTPWrapper
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates the Perplexity adapter.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.perplexity.ai"
	}
	if cfg.Model == "" {
		cfg.Model = "sonar"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 30
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Client{
		cfg:     cfg,
		httpw:   circuitbreaker.NewHTTPWrapper(httpClient, "perplexity", logger),
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), cfg.RequestsPerMinute),
		logger:  logger,
	}
}

type completionRequest struct {
	Model       string              `json:"model"`
	Temperature float64             `json:"temperature"`
	Messages    []completionMessage `json:"messages"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	SearchResults []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"search_results"`
	Citations []string `json:"citations"`
}

// Search runs one grounded completion against the live web.
func (c *Client) Search(ctx context.Context, query string) (Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("websearch: rate limit wait: %w", err)
	}

	body := completionRequest{
		Model:       c.cfg.Model,
		Temperature: 0,
		Messages: []completionMessage{
			{Role: "user", Content: query},
		},
	}
	buf, _ := json.Marshal(body)

	url := c.cfg.BaseURL + "/chat/completions"
	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	resp, err := c.httpw.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("websearch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("websearch: perplexity status %d", resp.StatusCode)
	}

	var cr completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return Response{}, fmt.Errorf("websearch: decode response: %w", err)
	}

	out := Response{Query: query}
	if len(cr.Choices) > 0 {
		out.Answer = cr.Choices[0].Message.Content
	}
	for _, r := range cr.SearchResults {
		out.Sources = append(out.Sources, models.WebSource{
			Title:       r.Title,
			URL:         r.URL,
			Snippet:     r.Snippet,
			PublishedAt: r.Date,
		})
	}
	// Older responses carry bare citation URLs only.
	if len(out.Sources) == 0 {
		for _, u := range cr.Citations {
			out.Sources = append(out.Sources, models.WebSource{Title: u, URL: u})
		}
	}
	out.Sources = Dedup(out.Sources)
	return out, nil
}

// Dedup removes duplicate sources by URL, preserving first-seen order.
func Dedup(sources []models.WebSource) []models.WebSource {
	seen := make(map[string]struct{}, len(sources))
	out := sources[:0:0]
	for _, s := range sources {
		if s.URL == "" {
			continue
		}
		if _, ok := seen[s.URL]; ok {
			continue
		}
		seen[s.URL] = struct{}{}
		out = append(out, s)
	}
	return out
}
