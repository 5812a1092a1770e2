package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"carbon_dashboard/internal/catalog"
	"carbon_dashboard/internal/logger"
	"carbon_dashboard/internal/metrics"
	"carbon_dashboard/internal/models"
	"carbon_dashboard/internal/news"
	"carbon_dashboard/internal/view"
)

// Archive is the read side of the optional article archive.
type Archive interface {
	Ping(ctx context.Context) error
	RecentArticles(ctx context.Context, limit int) ([]models.NewsArticle, error)
}

// Server exposes both views over HTTP. The views are mounted by the caller.
type Server struct {
	catalog *catalog.View
	news    *news.View
	archive Archive
}

// NewServer wires the handlers. archive may be nil when no database is configured.
func NewServer(catalogView *catalog.View, newsView *news.View, archive Archive) *Server {
	return &Server{catalog: catalogView, news: newsView, archive: archive}
}

// Routes returns the mux wrapped in request-id and logging middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/projects", s.GetProjects)
	mux.HandleFunc("POST /api/projects/retry", s.RetryProjects)
	mux.HandleFunc("GET /api/news", s.GetNews)
	mux.HandleFunc("POST /api/news/refresh", s.RefreshNews)
	mux.HandleFunc("POST /api/news/retry", s.RetryNews)
	mux.HandleFunc("POST /api/news/sources/{source}/toggle", s.ToggleSource)
	mux.HandleFunc("PUT /api/news/topic", s.SelectTopic)
	mux.HandleFunc("PUT /api/news/autorefresh", s.SetAutoRefresh)
	mux.HandleFunc("GET /api/news/archive", s.GetArchive)
	mux.HandleFunc("GET /health", s.HealthCheck)
	mux.Handle("GET /metrics", metrics.Handler())

	handler := RequestIDMiddleware(mux)
	return LoggingMiddleware(handler)
}

// HealthCheck answers 200, or 503 when the archive is configured but unreachable.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if s.archive != nil {
		if err := s.archive.Ping(r.Context()); err != nil {
			logger.Log.WithField("request_id", RequestID(r.Context())).Warnf("Archive ping failed: %v", err)
			respondWithError(w, http.StatusServiceUnavailable, "archive unavailable")
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) GetProjects(w http.ResponseWriter, r *http.Request) {
	snap := s.catalog.Snapshot()
	respondWithJSON(w, statusFor(snap.Status), snap)
}

// RetryProjects reloads the catalog from the primary registry.
func (s *Server) RetryProjects(w http.ResponseWriter, r *http.Request) {
	err := s.catalog.Retry(r.Context())
	if s.conflict(w, r, err) {
		return
	}
	snap := s.catalog.Snapshot()
	respondWithJSON(w, statusFor(snap.Status), snap)
}

func (s *Server) GetNews(w http.ResponseWriter, r *http.Request) {
	snap := s.news.Snapshot()
	respondWithJSON(w, statusFor(snap.Status), snap)
}

// RefreshNews runs a manual cycle. It is refused while one is running and
// while the view is in the error state.
func (s *Server) RefreshNews(w http.ResponseWriter, r *http.Request) {
	s.runNews(w, r, s.news.Refresh)
}

func (s *Server) RetryNews(w http.ResponseWriter, r *http.Request) {
	s.runNews(w, r, s.news.Retry)
}

func (s *Server) runNews(w http.ResponseWriter, r *http.Request, run func(context.Context) error) {
	err := run(r.Context())
	if s.conflict(w, r, err) {
		return
	}
	snap := s.news.Snapshot()
	respondWithJSON(w, statusFor(snap.Status), snap)
}

func (s *Server) ToggleSource(w http.ResponseWriter, r *http.Request) {
	src, err := models.ParseSource(r.PathValue("source"))
	if err != nil {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}

	changed, err := s.news.ToggleSource(src)
	if errors.Is(err, news.ErrUnknownSource) {
		respondWithError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !changed {
		respondWithError(w, http.StatusConflict, "at least one source must stay selected")
		return
	}
	respondWithJSON(w, http.StatusOK, s.news.Snapshot())
}

func (s *Server) SelectTopic(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Topic *string `json:"topic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Topic == nil {
		respondWithError(w, http.StatusBadRequest, "body must be {\"topic\": string}")
		return
	}

	s.news.SelectTopic(strings.TrimSpace(*body.Topic))
	respondWithJSON(w, http.StatusOK, s.news.Snapshot())
}

func (s *Server) SetAutoRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		respondWithError(w, http.StatusBadRequest, "body must be {\"enabled\": bool}")
		return
	}

	if err := s.news.SetAutoRefresh(*body.Enabled); err != nil {
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, s.news.Snapshot())
}

// GetArchive returns the newest archived articles, limit in [1, 100], default 10.
func (s *Server) GetArchive(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		respondWithError(w, http.StatusNotFound, "archive is not configured")
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	articles, err := s.archive.RecentArticles(r.Context(), limit)
	if err != nil {
		logger.Log.WithField("request_id", RequestID(r.Context())).Errorf("Archive query failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "archive query failed")
		return
	}
	respondWithJSON(w, http.StatusOK, articles)
}

// conflict writes the response for state errors and reports whether it did.
// Fetch failures are not handled here: the snapshot carries them.
func (s *Server) conflict(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, view.ErrRefreshInFlight), errors.Is(err, view.ErrRetryRequired):
		respondWithError(w, http.StatusConflict, err.Error())
		return true
	case errors.Is(err, view.ErrUnmounted):
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
		return true
	case errors.Is(err, context.Canceled):
		respondWithError(w, http.StatusServiceUnavailable, "request cancelled")
		return true
	}
	logger.Log.WithField("request_id", RequestID(r.Context())).Debugf("Cycle failed: %v", err)
	return false
}

func statusFor(s view.Status) int {
	if s == view.StatusError {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
