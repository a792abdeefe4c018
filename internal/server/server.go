package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"soulchat-backend/internal/config"
	"soulchat-backend/internal/dialogue"
	"soulchat-backend/internal/jobs"
	"soulchat-backend/internal/logger"
	"soulchat-backend/internal/types"
)

type Server struct {
	router     *chi.Mux
	cfg        config.Config
	store      dialogue.Store
	pipeline   *dialogue.Pipeline
	summarizer *dialogue.Summarizer
	queue      *jobs.Queue
	log        *logger.Logger
}

func NewServer(cfg config.Config, store dialogue.Store, pipeline *dialogue.Pipeline,
	summarizer *dialogue.Summarizer, queue *jobs.Queue, log *logger.Logger) *Server {

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s := &Server{
		router:     r,
		cfg:        cfg,
		store:      store,
		pipeline:   pipeline,
		summarizer: summarizer,
		queue:      queue,
		log:        log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Post("/api/chat", s.handleChat)
	s.router.Get("/api/chat/result/{jobID}", s.handleJobResult)
	s.router.Post("/api/summary", s.handleSummary)
	s.router.Get("/api/history", s.handleHistory)
	s.router.Post("/api/history/clear", s.handleClear)
	s.router.Post("/api/credentials", s.handleCredentials)
	s.router.Get("/api/providers", s.handleProviders)
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleChat validates the turn and enqueues it; the caller polls
// /api/chat/result/{jobID} for the outcome.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	sid := s.sessionID(r, w, req.SessionID)

	in := dialogue.TurnInput{
		SessionID: sid,
		Text:      req.Message,
		Provider:  req.Provider,
		Model:     req.Model,
		TempKeys:  req.APIKeys,
	}
	jobID := s.queue.Submit(jobs.Task{
		SessionKey: sid,
		Run: func(ctx context.Context, _ func(any)) (any, error) {
			return s.pipeline.ProcessTurn(ctx, in)
		},
	})
	s.log.Info("turn submitted", "session_id", sid, "job_id", jobID)

	w.Header().Set("X-Session-Id", sid)
	s.writeJSON(w, http.StatusAccepted, types.SubmitResponse{SessionID: sid, JobID: jobID})
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if jobID == "" {
		s.writeError(w, http.StatusBadRequest, "job id is required")
		return
	}
	st := s.queue.Status(jobID)
	s.writeJSON(w, http.StatusOK, types.JobResultResponse{
		JobID:  jobID,
		State:  string(st.State),
		Result: st.Payload,
		Error:  st.Error,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	sid := s.sessionID(r, w, req.SessionID)
	keys := req.APIKeys

	jobID := s.queue.Submit(jobs.Task{
		SessionKey: sid,
		Run: func(ctx context.Context, _ func(any)) (any, error) {
			summary, err := s.summarizer.Summarize(ctx, sid, keys)
			if err != nil {
				return nil, err
			}
			return map[string]string{"summary": summary}, nil
		},
	})
	s.log.Info("summary submitted", "session_id", sid, "job_id", jobID)

	w.Header().Set("X-Session-Id", sid)
	s.writeJSON(w, http.StatusAccepted, types.SubmitResponse{SessionID: sid, JobID: jobID})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(r, w, "")
	history, err := s.store.History(r.Context(), sid)
	if err != nil {
		s.log.Error("history read failed", "session_id", sid, "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, types.HistoryResponse{SessionID: sid, Messages: history})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	sid := s.sessionID(r, w, "")
	if err := s.store.ClearSession(r.Context(), sid); err != nil {
		s.log.Error("session clear failed", "session_id", sid, "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "sessionId": sid})
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	var req types.CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, ok := s.cfg.Providers[req.Provider]; !ok {
		s.writeError(w, http.StatusBadRequest, "unknown provider")
		return
	}
	if strings.TrimSpace(req.APIKey) == "" {
		s.writeError(w, http.StatusBadRequest, "apiKey is required")
		return
	}
	sid := s.sessionID(r, w, "")
	if err := s.store.PutCredential(r.Context(), sid, req.Provider, req.APIKey); err != nil {
		s.log.Error("credential save failed", "session_id", sid, "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "session store unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	resp := types.ProvidersResponse{
		DefaultProvider: s.cfg.DefaultProvider,
		DefaultModel:    s.cfg.DefaultModel,
	}
	for name, p := range s.cfg.Providers {
		resp.Providers = append(resp.Providers, types.ProviderSummary{
			Name:          name,
			Models:        p.Models,
			KeyRequired:   p.KeyRequired,
			KeyConfigured: p.KeyConfigured(),
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// sessionID resolves the session identifier: explicit request field, cookie,
// header, query parameter, or a freshly minted one (cookie set).
func (s *Server) sessionID(r *http.Request, w http.ResponseWriter, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if sid, err := GetSessionCookie(r); err == nil && sid != "" {
		return sid
	}
	if sid := r.Header.Get("X-Session-Id"); sid != "" {
		return sid
	}
	if sid := r.URL.Query().Get("sessionId"); sid != "" {
		return sid
	}
	sid := uuid.NewString()
	s.log.Debug("creating new session", "session_id", sid, "path", r.URL.Path)
	SetSessionCookie(w, sid)
	return sid
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, types.ErrorResponse{Error: msg})
}
