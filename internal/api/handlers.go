package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/conversation"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/messaging"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/models"
	"github.com/JagritiYatra/jyaibotmeta-sub001/internal/store"
)

// MessageRequest is the body of POST /messages.
type MessageRequest struct {
	From      string `json:"from"`
	Body      string `json:"body"`
	MessageID string `json:"message_id,omitempty"`
}

// MessageResult is the result of a handled message.
type MessageResult struct {
	Reply  string            `json:"reply"`
	Intent models.IntentType `json:"intent,omitempty"`
	TurnID string            `json:"turn_id,omitempty"`
}

func (s *Server) messagesHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.messagesHandler: failed to decode JSON", "error", err)
		respond(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	from, err := messaging.CanonicalizePhone(req.From)
	if err != nil {
		respond(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	reply, err := s.turns.HandleMessage(r.Context(), conversation.InboundMessage{
		SenderID:  from,
		Text:      req.Body,
		MessageID: req.MessageID,
	})
	if err != nil {
		slog.Error("Server.messagesHandler: turn failed", "from", from, "error", err)
		respond(w, http.StatusInternalServerError, models.Error("Failed to handle message"))
		return
	}
	if reply.NoReply {
		respond(w, http.StatusOK, models.Ignored("No reply for this message"))
		return
	}
	respond(w, http.StatusOK, models.Success(MessageResult{
		Reply:  reply.Text,
		Intent: reply.Intent,
		TurnID: reply.TurnID,
	}))
}

func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.members.GetProfile(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respond(w, http.StatusNotFound, models.Error("Profile not found"))
		return
	}
	if err != nil {
		slog.Error("Server.profileHandler: lookup failed", "userID", id, "error", err)
		respond(w, http.StatusInternalServerError, models.Error("Failed to load profile"))
		return
	}
	respond(w, http.StatusOK, models.Success(p))
}

func (s *Server) memoryHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	mem, err := s.members.GetMemory(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respond(w, http.StatusNotFound, models.Error("Memory not found"))
		return
	}
	if err != nil {
		slog.Error("Server.memoryHandler: lookup failed", "userID", id, "error", err)
		respond(w, http.StatusInternalServerError, models.Error("Failed to load memory"))
		return
	}
	respond(w, http.StatusOK, models.Success(mem))
}

func (s *Server) resetSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.turns.ResetSession(r.Context(), id); err != nil {
		slog.Error("Server.resetSessionHandler: reset failed", "userID", id, "error", err)
		respond(w, http.StatusInternalServerError, models.Error("Failed to reset session"))
		return
	}
	slog.Info("Server.resetSessionHandler: session reset", "userID", id)
	respond(w, http.StatusOK, models.SuccessWithMessage("Session reset", nil))
}

// Health is the body of GET /health.
type Health struct {
	Status    string `json:"status"`
	Transport string `json:"transport"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, Health{
		Status:    "healthy",
		Transport: s.opts.Transport,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	})
}

// encodeFailureBody is sent when a response body cannot be encoded.
const encodeFailureBody = `{"status":"error","message":"Internal server error"}` + "\n"

// respond encodes body as JSON before touching w, so an encoding failure can
// still turn into a clean 500.
func respond(w http.ResponseWriter, status int, body any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		slog.Error("api.respond: encode failed", "status", status, "error", err)
		status = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(encodeFailureBody)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("api.respond: write failed", "error", err)
	}
}
