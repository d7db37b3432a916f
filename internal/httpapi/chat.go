// Package httpapi exposes the turn engine over HTTP: a chat endpoint that
// streams turn events via Server-Sent Events, plus health probes.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/open-democracy/em/go/orchestrator/internal/agent"
	"github.com/open-democracy/em/go/orchestrator/internal/db"
	"github.com/open-democracy/em/go/orchestrator/internal/models"
)

// ChatHandler serves POST /chat as an SSE stream of turn events.
type ChatHandler struct {
	engine *agent.Engine
	repo   *db.Repository
	logger *zap.Logger
}

func NewChatHandler(engine *agent.Engine, repo *db.Repository, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{engine: engine, repo: repo, logger: logger}
}

// RegisterRoutes registers the chat endpoint on the provided mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat", h.handleChat)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	ElectionID       string        `json:"election_id"`
	Messages         []chatMessage `json:"messages"`
	SelectedTargets  []string      `json:"selected_targets"`
	TargetsLocked    bool          `json:"targets_locked"`
	ResponseLanguage *struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"response_language"`
	EnableRetrieval bool `json:"enable_retrieval"`
	EnableWebSearch bool `json:"enable_web_search"`
}

func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	electionID, err := uuid.Parse(req.ElectionID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "election_id must be a UUID")
		return
	}

	ctx := r.Context()
	election, err := h.repo.GetElection(ctx, electionID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "election not found")
		return
	}
	if err != nil {
		h.logger.Error("Election lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	available, err := h.repo.ListParties(ctx, electionID)
	if err != nil {
		h.logger.Error("Party roster lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage unavailable")
		return
	}

	var selected []models.Party
	if len(req.SelectedTargets) > 0 {
		selected, err = h.repo.GetPartiesByShortNames(ctx, electionID, req.SelectedTargets)
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "unknown target in selected_targets")
			return
		}
		if err != nil {
			h.logger.Error("Selected-target lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "storage unavailable")
			return
		}
	}

	messages, err := toChatMessages(req.Messages)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	responseLang := models.LanguageFromCode(election.DefaultLanguage)
	if req.ResponseLanguage != nil && req.ResponseLanguage.Code != "" {
		responseLang = models.LanguageFromCode(req.ResponseLanguage.Code)
		if req.ResponseLanguage.Name != "" {
			responseLang.Name = req.ResponseLanguage.Name
		}
	}

	stream, err := h.engine.Invoke(ctx, agent.Request{
		Messages:          messages,
		Election:          election,
		AvailableTargets:  available,
		SelectedTargets:   selected,
		TargetsLocked:     req.TargetsLocked,
		ResponseLanguage:  responseLang,
		ManifestoLanguage: models.LanguageFromCode(election.ManifestoLanguage),
		EnableRetrieval:   req.EnableRetrieval,
		EnableWebSearch:   req.EnableWebSearch,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.streamEvents(w, r, stream)
}

// streamEvents forwards turn events as SSE until the stream closes or the
// client disconnects.
func (h *ChatHandler) streamEvents(w http.ResponseWriter, r *http.Request, stream *agent.TurnStream) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Initial comment establishes the stream before the first event.
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	// Heartbeat keeps connections alive through proxies.
	hb := time.NewTicker(15 * time.Second)
	defer hb.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Chat client disconnected")
			return
		case <-hb.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case evt, ok := <-stream.Events():
			if !ok {
				return
			}
			fmt.Fprintf(w, "id: %d\n", evt.Seq)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", evt.Marshal())
			flusher.Flush()
		}
	}
}

func toChatMessages(in []chatMessage) ([]models.ChatMessage, error) {
	out := make([]models.ChatMessage, 0, len(in))
	for i, m := range in {
		switch models.Role(m.Role) {
		case models.RoleUser:
			out = append(out, models.NewUserMessage(m.Content))
		case models.RoleAssistant:
			out = append(out, models.NewAssistantMessage(m.Content))
		default:
			return nil, fmt.Errorf("message %d: unsupported role %q", i, m.Role)
		}
	}
	return out, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
