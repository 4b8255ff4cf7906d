package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BTreeMap/ResumePipe/internal/models"
)

// bearerAuth rejects requests without "Authorization: Bearer <token>".
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				slog.Warn("Server.bearerAuth: unauthorized admin request", "path", r.URL.Path)
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// healthHandler provides a health check endpoint for monitoring and load balancing
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// usersHandler handles GET /admin/users
func (s *Server) usersHandler(w http.ResponseWriter, r *http.Request) {
	if s.opts.Usage == nil {
		writeError(w, http.StatusServiceUnavailable, "Usage log not configured")
		return
	}
	records, err := s.opts.Usage.List(r.Context())
	if err != nil {
		slog.Error("Server.usersHandler: failed to list usage", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read usage log")
		return
	}
	if records == nil {
		records = []models.UsageRecord{}
	}
	slog.Debug("Server.usersHandler: returning users", "count", len(records))
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"users": records,
		"count": len(records),
	}))
}

// sessionsHandler handles GET /admin/sessions
func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	if s.opts.Sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "Sessions not available")
		return
	}
	timers := s.opts.Sessions.Timers()
	if timers == nil {
		timers = []models.TimerInfo{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"active": s.opts.Sessions.Active(),
		"timers": timers,
		"count":  len(timers),
	}))
}

// mediaHandler serves documents published for Twilio to fetch.
func (s *Server) mediaHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path, ok := s.opts.Twilio.MediaFile(name)
	if !ok {
		writeError(w, http.StatusNotFound, "Media not found")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, path)
}
