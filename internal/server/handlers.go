package server

import (
	"context"
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/autovoyce/autovoyce/internal/pipeline"
	"github.com/autovoyce/autovoyce/internal/youtube"
)

// writeJSON writes a JSON response with proper error handling.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"active_sessions": s.registry.Len(),
	})
}

type uploadRequest struct {
	UserQuery string `json:"user_query"`
}

type uploadResponse struct {
	SessionID string          `json:"session_id"`
	Namespace string          `json:"namespace"`
	Status    string          `json:"status"`
	Videos    []youtube.Video `json:"videos"`
}

// handleUpload runs the synchronous search stage and mints the session the
// rest of the flow is scoped to. The session cookie lets the frontend omit
// session_id on subsequent requests.
func (s *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserQuery == "" {
		writeError(w, http.StatusBadRequest, "user_query is required")
		return
	}

	videos, err := s.searcher.Search(r.Context(), req.UserQuery)
	if err != nil {
		log.Error().Err(err).Str("query", req.UserQuery).Msg("Video search failed")
		writeError(w, http.StatusBadGateway, "video search failed")
		return
	}

	sessionID, namespace := s.registry.Create()
	s.setSessionCookie(w, sessionID)

	log.Info().
		Str("sessionId", sessionID).
		Str("namespace", namespace).
		Int("videos", len(videos)).
		Msg("Session created, search complete")

	writeJSON(w, http.StatusOK, uploadResponse{
		SessionID: sessionID,
		Namespace: namespace,
		Status:    "search_complete",
		Videos:    videos,
	})
}

// setSessionCookie stores the session id client-side. Non-HttpOnly so the
// frontend can read it for the status stream URL; SameSite=None because the
// frontend is served from a different origin.
func (s *Service) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   sessionCookieMaxAge,
		HttpOnly: false,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

type processRequest struct {
	VideoIDs  []string `json:"video_ids"`
	SessionID string   `json:"session_id"`
}

type processResponse struct {
	SessionID  string `json:"session_id"`
	Namespace  string `json:"namespace"`
	Status     string `json:"status"`
	VideoCount int    `json:"video_count"`
}

// handleProcess dispatches the background pipeline for the caller-selected
// videos and returns immediately; progress is observed on the status stream.
func (s *Service) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.cookieSession(r)
	}
	if sessionID == "" {
		writeError(w, http.StatusUnauthorized, "no session found, call /upload first")
		return
	}

	namespace, ok := s.registry.Namespace(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found or expired")
		return
	}

	if len(req.VideoIDs) == 0 {
		writeError(w, http.StatusBadRequest, "video_ids must not be empty")
		return
	}

	s.registry.Touch(sessionID)

	state := &pipeline.State{
		VideoIDs:  req.VideoIDs,
		Namespace: namespace,
		SessionID: sessionID,
	}
	accepted := s.dispatcher.Dispatch(sessionID, func(ctx context.Context) {
		s.runner.Run(ctx, state)
	})
	if !accepted {
		writeError(w, http.StatusServiceUnavailable, "processing queue is full, retry later")
		return
	}

	writeJSON(w, http.StatusOK, processResponse{
		SessionID:  sessionID,
		Namespace:  namespace,
		Status:     "processing",
		VideoCount: len(req.VideoIDs),
	})
}

type queryRequest struct {
	UserQuery string `json:"user_query"`
	SessionID string `json:"session_id"`
}

type queryResponse struct {
	Response  string `json:"response"`
	Namespace string `json:"namespace"`
}

// handleQuery answers a question against the session's namespace. The
// session id is resolved from the header, then the body, then the cookie.
func (s *Service) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserQuery == "" {
		writeError(w, http.StatusBadRequest, "user_query is required")
		return
	}

	sessionID := r.Header.Get(SessionHeaderName)
	if sessionID == "" {
		sessionID = req.SessionID
	}
	if sessionID == "" {
		sessionID = s.cookieSession(r)
	}
	if sessionID == "" {
		writeError(w, http.StatusUnauthorized, "no session found")
		return
	}

	namespace, ok := s.registry.Namespace(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found or expired")
		return
	}
	s.registry.Touch(sessionID)

	key := namespace + "\x00" + req.UserQuery
	answer, err, _ := s.queryGroup.Do(key, func() (any, error) {
		chunks, err := s.retriever.Search(r.Context(), namespace, req.UserQuery, s.cfg.QueryTopK)
		if err != nil {
			return nil, err
		}
		return s.answerer.Answer(r.Context(), req.UserQuery, chunks)
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("sessionId", sessionID).
			Str("namespace", namespace).
			Msg("Query failed")
		writeError(w, http.StatusBadGateway, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Response:  answer.(string),
		Namespace: namespace,
	})
}

func (s *Service) cookieSession(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
