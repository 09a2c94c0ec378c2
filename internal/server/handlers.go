package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/KaramelBytes/worklens-cli/internal/chat"
)

type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

type askResponse struct {
	SessionID string `json:"session_id"`
	chat.Answer
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	id := uuid.New()
	if req.SessionID != "" {
		parsed, err := uuid.Parse(req.SessionID)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid session_id")
			return
		}
		id = parsed
	}
	engine, _ := s.session(id, true)
	s.logger.Debug("ask request", zap.String("session", id.String()), zap.Int("question_len", len(req.Question)))

	ans := engine.Answer(r.Context(), req.Question, s.ds, s.schema)
	s.respondJSON(w, http.StatusOK, askResponse{SessionID: id.String(), Answer: ans})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.stats)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"sheet":   s.ds.Name,
		"rows":    s.ds.Len(),
		"columns": s.ds.Columns(),
		"mapping": s.schema,
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.view)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"history": engine.History()})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.sessionFromPath(w, r)
	if !ok {
		return
	}
	engine.ClearHistory()
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) sessionFromPath(w http.ResponseWriter, r *http.Request) (*chat.Engine, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid session id")
		return nil, false
	}
	engine, ok := s.session(id, false)
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return engine, true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
