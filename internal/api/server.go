// Package api exposes the operator's read-only HTTP surface over the
// screening ledger.
package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/arxmedia/resume-screener/internal/evaluate"
	"github.com/arxmedia/resume-screener/internal/export"
	"github.com/arxmedia/resume-screener/internal/ledger"
	"github.com/arxmedia/resume-screener/internal/models"
	"github.com/arxmedia/resume-screener/internal/schema"
)

// Server handles HTTP requests
type Server struct {
	store   *ledger.Store
	dataDir string
	logger  *zap.SugaredLogger
}

// NewServer creates a new API server over the ledger. Exported reports
// land in dataDir.
func NewServer(store *ledger.Store, dataDir string, logger *zap.SugaredLogger) *Server {
	return &Server{store: store, dataDir: dataDir, logger: logger}
}

// Router returns the HTTP router
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /threads", s.handleThreads)
	mux.HandleFunc("GET /threads/{id}", s.handleThread)
	mux.HandleFunc("GET /report", s.handleReport)
	mux.HandleFunc("POST /export", s.handleExport)
	mux.HandleFunc("GET /", s.handleRoot)

	return s.loggingMiddleware(mux)
}

// handleRoot provides API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "Resume Screener",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"GET /health":       "Health check",
			"GET /threads":      "List screening threads",
			"GET /threads/{id}": "Full state of one thread",
			"GET /report":       "Completed applications with verdicts",
			"POST /export":      "Write the Excel report to the data directory",
		},
	})
}

// handleHealth provides a health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// handleThreads lists active and completed threads.
func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	active, err := s.store.ActiveThreads()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	completed, err := s.store.CompletedThreads()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"active":    active,
		"completed": completed,
	})
}

// handleThread returns the full state of one thread, including its
// conversation and any background check.
func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	state, found, err := s.store.Lookup(id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		s.respondError(w, http.StatusNotFound, "thread not found")
		return
	}

	response := map[string]interface{}{
		"state":   state,
		"verdict": evaluate.Evaluate(state.Fields, schema.Requirements()),
	}
	if check, found, err := s.store.GetBackgroundCheck(id); err == nil && found {
		response["background_check"] = check
	}

	s.respondJSON(w, http.StatusOK, response)
}

// handleReport returns completed applications with their verdicts.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	completed, err := s.store.CompletedThreads()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type entry struct {
		State   models.ThreadState `json:"state"`
		Verdict models.Verdict     `json:"verdict"`
	}
	report := make([]entry, 0, len(completed))
	for _, state := range completed {
		report = append(report, entry{
			State:   state,
			Verdict: evaluate.Evaluate(state.Fields, schema.Requirements()),
		})
	}

	s.respondJSON(w, http.StatusOK, report)
}

// handleExport writes the Excel report and returns its path.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	completed, err := s.store.CompletedThreads()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	checks := make(map[string]models.BackgroundCheck, len(completed))
	for _, state := range completed {
		if check, found, err := s.store.GetBackgroundCheck(state.ThreadID); err == nil && found {
			checks[state.ThreadID] = check
		}
	}

	path := filepath.Join(s.dataDir, "completed_applications.xlsx")
	if err := export.ExportCompleted(completed, checks, path); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"path":   path,
	})
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorw("failed to encode JSON response", "error", err)
	}
}

// respondError sends an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debugw("http request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}
