package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"go.uber.org/zap"

	"github.com/open-democracy/em/go/orchestrator/internal/models"
	"github.com/open-democracy/em/go/orchestrator/internal/tracing"
)

// Config holds the OpenAI-compatible endpoint configuration.
type Config struct {
	APIKey      string
	BaseURL     string // empty for api.openai.com; set for Azure or proxies
	Model       string // default model for non-streaming calls
	StreamModel string // default model for streamed generation
	Timeout     time.Duration
	Temperature float64
}

// OpenAI implements CompletionService against any OpenAI-compatible API.
type OpenAI struct {
	client *openai.Client
	cfg    Config
	logger *zap.Logger
}

// NewOpenAI creates the completion adapter.
func NewOpenAI(cfg Config, logger *zap.Logger) *OpenAI {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAI{client: &client, cfg: cfg, logger: logger}
}

func (o *OpenAI) params(req Request, streaming bool) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		if streaming {
			model = o.cfg.StreamModel
		} else {
			model = o.cfg.Model
		}
	}
	temperature := o.cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case models.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    msgs,
		Temperature: openai.Float(temperature),
	}
}

// Complete returns the full text of a non-streaming completion.
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "llm.complete")
	defer span.End()

	resp, err := o.client.Chat.Completions.New(ctx, o.params(req, false))
	if err != nil {
		return "", fmt.Errorf("llm complete: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm complete: empty choice list")
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteStructured requests a JSON-schema constrained response and decodes
// it into out.
func (o *OpenAI) CompleteStructured(ctx context.Context, req Request, schema Schema, out any) error {
	ctx, span := tracing.StartSpan(ctx, "llm.complete_structured")
	defer span.End()

	params := o.params(req, false)
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:        schema.Name,
				Description: openai.String(schema.Description),
				Schema:      schema.Definition,
				Strict:      openai.Bool(true),
			},
		},
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return fmt.Errorf("llm structured %s: %w", schema.Name, err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("llm structured %s: empty choice list", schema.Name)
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), out); err != nil {
		return fmt.Errorf("llm structured %s: decode: %w", schema.Name, err)
	}
	return nil
}

// StreamComplete starts a streaming completion.
func (o *OpenAI) StreamComplete(ctx context.Context, req Request) (Stream, error) {
	ctx, span := tracing.StartSpan(ctx, "llm.stream_complete")
	stream := o.client.Chat.Completions.NewStreaming(ctx, o.params(req, true))
	if err := stream.Err(); err != nil {
		span.End()
		return nil, fmt.Errorf("llm stream: %w", err)
	}
	return &openaiStream{inner: stream, done: func() { span.End() }}, nil
}

type openaiStream struct {
	inner *ssestream.Stream[openai.ChatCompletionChunk]
	done  func()
}

func (s *openaiStream) Recv() (string, error) {
	for s.inner.Next() {
		chunk := s.inner.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		// Skip empty keep-alive deltas but return genuine tokens, including
		// whitespace-only ones.
		if chunk.Choices[0].Delta.Content == "" {
			continue
		}
		return chunk.Choices[0].Delta.Content, nil
	}
	if err := s.inner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *openaiStream) Close() error {
	if s.done != nil {
		s.done()
		s.done = nil
	}
	return s.inner.Close()
}
