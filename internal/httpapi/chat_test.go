package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/open-democracy/em/go/orchestrator/internal/agent"
	"github.com/open-democracy/em/go/orchestrator/internal/agent/prompts"
	"github.com/open-democracy/em/go/orchestrator/internal/db"
	"github.com/open-democracy/em/go/orchestrator/internal/llm"
	"github.com/open-democracy/em/go/orchestrator/internal/models"
)

type scriptedCompletion struct{}

func (scriptedCompletion) Complete(ctx context.Context, req llm.Request) (string, error) {
	return "query", nil
}

func (scriptedCompletion) CompleteStructured(ctx context.Context, req llm.Request, schema llm.Schema, out any) error {
	switch schema.Name {
	case "determine_question_targets":
		*out.(*prompts.ResolveTargetsOutput) = prompts.ResolveTargetsOutput{}
	case "rephrase_question":
		*out.(*prompts.RephraseOutput) = prompts.RephraseOutput{RephrasedQuestion: "What is your position?"}
	case "generate_title_and_replies":
		*out.(*prompts.TitleOutput) = prompts.TitleOutput{
			ConversationTitle: "Greeting",
			FollowUpOne:       "What can you do?",
			FollowUpTwo:       "What is a manifesto?",
			FollowUpThree:     "What about climate?",
		}
	}
	return nil
}

func (scriptedCompletion) StreamComplete(ctx context.Context, req llm.Request) (llm.Stream, error) {
	return &scriptedStream{deltas: []string{"Hi ", "there."}}, nil
}

type scriptedStream struct {
	deltas []string
	idx    int
}

func (s *scriptedStream) Recv() (string, error) {
	if s.idx < len(s.deltas) {
		d := s.deltas[s.idx]
		s.idx++
		return d, nil
	}
	return "", io.EOF
}

func (s *scriptedStream) Close() error { return nil }

func newTestServer(t *testing.T) (*httptest.Server, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	repo := db.NewRepository(sqlx.NewDb(mockDB, "postgres"), zap.NewNop())

	engine := agent.NewEngine(agent.Services{Completion: scriptedCompletion{}}, agent.Config{
		StageTimeout: 2 * time.Second,
	}, zap.NewNop())

	mux := http.NewServeMux()
	NewChatHandler(engine, repo, zap.NewNop()).RegisterRoutes(mux)
	RegisterHealth(mux, func() bool { return true })

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, mock
}

func expectElection(mock sqlmock.Sqlmock, id uuid.UUID) {
	mock.ExpectQuery(`FROM elections`).WithArgs(id).WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "country", "year", "election_date", "url", "default_language", "manifesto_language"}).
			AddRow(id, "Federal Election", "Germany", 2025, time.Now(), "https://election.example", "en", "de"))
	mock.ExpectQuery(`FROM parties`).WithArgs(id).WillReturnRows(
		sqlmock.NewRows([]string{"id", "shortname", "fullname", "description", "url", "given_name", "family_name"}))
}

func TestHandleChatStreamsEvents(t *testing.T) {
	srv, mock := newTestServer(t)
	electionID := uuid.New()
	expectElection(mock, electionID)

	body := `{"election_id":"` + electionID.String() + `","messages":[{"role":"user","content":"Hello"}]}`
	resp, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	sse := string(raw)

	assert.Contains(t, sse, "event: answer_type")
	assert.Contains(t, sse, `"answer_type":"generic"`)
	assert.Contains(t, sse, "event: standard_answer_chunk")
	assert.Contains(t, sse, "event: title_and_followups")
	assert.Contains(t, sse, "event: done")
}

func TestHandleChatRejectsBadRequests(t *testing.T) {
	srv, mock := newTestServer(t)

	// Malformed JSON.
	resp, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Bad election id.
	resp, err = http.Post(srv.URL+"/chat", "application/json",
		strings.NewReader(`{"election_id":"nope","messages":[{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown election.
	electionID := uuid.New()
	mock.ExpectQuery(`FROM elections`).WithArgs(electionID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	resp, err = http.Post(srv.URL+"/chat", "application/json",
		strings.NewReader(`{"election_id":"`+electionID.String()+`","messages":[{"role":"user","content":"hi"}]}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleChatRejectsUnsupportedRole(t *testing.T) {
	srv, mock := newTestServer(t)
	electionID := uuid.New()
	expectElection(mock, electionID)

	body := `{"election_id":"` + electionID.String() + `","messages":[{"role":"system","content":"hi"}]}`
	resp, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestToChatMessages(t *testing.T) {
	msgs, err := toChatMessages([]chatMessage{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.NotEmpty(t, msgs[0].ID)
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
