package tracing

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitializeDisabled(t *testing.T) {
	err := Initialize(Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	// Helpers must work against the no-op tracer.
	ctx, span := StartStageSpan(context.Background(), "rephrase")
	assert.NotNil(t, ctx)
	span.End()

	ctx, span = StartHTTPSpan(context.Background(), "POST", "https://qdrant.example/query")
	assert.NotNil(t, ctx)
	span.End()
}

func TestW3CTraceparentEmptyWithoutSpan(t *testing.T) {
	assert.Empty(t, W3CTraceparent(context.Background()))
}

func TestInjectTraceparentSkipsInvalidContext(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://example.com", nil)
	require.NoError(t, err)

	InjectTraceparent(context.Background(), req)
	assert.Empty(t, req.Header.Get("traceparent"))
}
