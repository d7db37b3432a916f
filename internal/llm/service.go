package llm

import (
	"context"

	"github.com/open-democracy/em/go/orchestrator/internal/models"
)

// Request is one completion call. SystemPrompt is prepended to the
// caller-supplied history.
type Request struct {
	SystemPrompt string
	Messages     []models.ChatMessage
	// Model overrides the configured default when set.
	Model string
	// Temperature overrides the configured default when non-nil.
	Temperature *float64
}

// Schema describes a JSON-schema structured output contract.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// Stream yields text deltas from a streaming completion. Recv returns io.EOF
// after the final delta.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// CompletionService is the completion collaborator consumed by the engine.
type CompletionService interface {
	// Complete returns the full text of a non-streaming completion.
	Complete(ctx context.Context, req Request) (string, error)
	// CompleteStructured requests a JSON response conforming to schema and
	// unmarshals it into out.
	CompleteStructured(ctx context.Context, req Request, schema Schema, out any) error
	// StreamComplete starts a streaming completion.
	StreamComplete(ctx context.Context, req Request) (Stream, error)
}
