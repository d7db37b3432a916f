package vectordb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, model, text string) ([]float32, error) {
	return f.vec, f.err
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return New(Config{
		Enabled:    true,
		Host:       u.Hostname(),
		Port:       port,
		Collection: "manifesto_chunks",
		TopK:       5,
	}, &fakeEmbedder{vec: []float32{0.1, 0.2}}, zap.NewNop())
}

func TestSearchFiltersAndMapsPayload(t *testing.T) {
	electionID, partyID := uuid.New(), uuid.New()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/manifesto_chunks/points/query", r.URL.Path)

		var body queryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []float32{0.1, 0.2}, body.Query)
		assert.Equal(t, 10, body.Limit)
		assert.True(t, body.WithPayload)

		must := body.Filter["must"].([]any)
		require.Len(t, must, 2)
		first := must[0].(map[string]any)
		assert.Equal(t, "election_id", first["key"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"result": map[string]any{
				"points": []map[string]any{
					{"id": 1, "score": 0.92, "payload": map[string]any{"title": "Climate", "text": "Reduce emissions."}},
					{"id": 2, "score": 0.85, "payload": map[string]any{"text": "No title here."}},
				},
			},
		})
	})

	chunks, err := client.Search(context.Background(), electionID, &partyID, "climate policy", 10, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Climate", chunks[0].Title)
	assert.Equal(t, 0.92, chunks[0].Score)
	assert.Empty(t, chunks[1].Title)
	assert.Equal(t, "No title here.", chunks[1].Text)
}

func TestSearchWithoutPartyFilter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body queryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		must := body.Filter["must"].([]any)
		assert.Len(t, must, 1)
		// Zero limit falls back to the configured top K.
		assert.Equal(t, 5, body.Limit)

		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "result": map[string]any{"points": []any{}}})
	})

	chunks, err := client.Search(context.Background(), uuid.New(), nil, "q", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSearchDisabled(t *testing.T) {
	client := New(Config{}, &fakeEmbedder{}, zap.NewNop())
	_, err := client.Search(context.Background(), uuid.New(), nil, "q", 5, 0)
	assert.Error(t, err)
}

func TestSearchEmbedFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("search must not be reached when embedding fails")
	})
	client.embedder = &fakeEmbedder{err: assert.AnError}

	_, err := client.Search(context.Background(), uuid.New(), nil, "q", 5, 0)
	assert.ErrorContains(t, err, "embed query")
}

func TestSearchNonOKStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oops", http.StatusBadGateway)
	})

	_, err := client.Search(context.Background(), uuid.New(), nil, "q", 5, 0)
	assert.ErrorContains(t, err, "502")
}
