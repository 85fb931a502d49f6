package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/formsense/repcount/internal/config"
	"github.com/formsense/repcount/internal/db"
	"github.com/formsense/repcount/internal/engine"
	"github.com/formsense/repcount/internal/httputil"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	manager *engine.Manager
	db      *db.DB
}

func NewServer(manager *engine.Manager, database *db.DB) *Server {
	return &Server{
		manager: manager,
		db:      database,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", s.createSession)
	mux.HandleFunc("GET /api/sessions/recent", s.listRecentSessions)
	mux.HandleFunc("POST /api/sessions/{id}/frames", s.processFrame)
	mux.HandleFunc("POST /api/sessions/{id}/exercise", s.setExercise)
	mux.HandleFunc("POST /api/sessions/{id}/identify", s.identifyExercise)
	mux.HandleFunc("POST /api/sessions/{id}/reset", s.resetSession)
	mux.HandleFunc("GET /api/sessions/{id}/summary", s.showSummary)
	mux.HandleFunc("GET /api/sessions/{id}/reps", s.listRepEvents)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.endSession)
	mux.HandleFunc("GET /api/exercises", s.listExercises)
	mux.HandleFunc("GET /api/exercises/{id}", s.showExercise)
	mux.HandleFunc("GET /api/params", s.showParams)
	mux.HandleFunc("PUT /api/params", s.updateParams)
	return mux
}

type createSessionRequest struct {
	Exercise string `json:"exercise"`
}

type sessionResponse struct {
	SessionID  string `json:"session_id"`
	ExerciseID string `json:"exercise_id"`
	Exercise   string `json:"exercise_name"`
	Fallback   bool   `json:"fallback"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	id, prof, fallback := s.manager.CreateSession(req.Exercise)
	httputil.WriteJSON(w, http.StatusCreated, sessionResponse{
		SessionID:  id,
		ExerciseID: prof.ID,
		Exercise:   prof.Name,
		Fallback:   fallback,
	})
}

type frameRequest struct {
	Angles    []float64 `json:"angles"`
	Timestamp time.Time `json:"timestamp"`
}

// processFrame ingests one feature vector. The default path is synchronous
// and returns the per-frame result; ?async=1 hands the frame to the
// session's ordered queue and returns 202 immediately.
func (s *Server) processFrame(w http.ResponseWriter, r *http.Request) {
	var req frameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}
	fv := engine.FeatureVector{Angles: req.Angles, Timestamp: req.Timestamp}

	sessionID := r.PathValue("id")
	if r.URL.Query().Get("async") == "1" {
		if err := s.manager.Enqueue(sessionID, fv); err != nil {
			s.sessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	result, err := s.manager.Process(sessionID, fv)
	if err != nil {
		s.sessionError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

type exerciseRequest struct {
	Exercise string `json:"exercise"`
}

func (s *Server) setExercise(w http.ResponseWriter, r *http.Request) {
	var req exerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Exercise == "" {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Missing exercise")
		return
	}

	prof, fallback, err := s.manager.SetExercise(r.PathValue("id"), req.Exercise)
	if err != nil {
		s.sessionError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sessionResponse{
		SessionID:  r.PathValue("id"),
		ExerciseID: prof.ID,
		Exercise:   prof.Name,
		Fallback:   fallback,
	})
}

type identifyResponse struct {
	Recognized bool    `json:"recognized"`
	ExerciseID string  `json:"exercise_id,omitempty"`
	Exercise   string  `json:"exercise_name,omitempty"`
	Similarity float64 `json:"similarity"`
}

func (s *Server) identifyExercise(w http.ResponseWriter, r *http.Request) {
	result, err := s.manager.Identify(r.PathValue("id"))
	if err != nil {
		s.sessionError(w, err)
		return
	}

	resp := identifyResponse{Recognized: result.Recognized, Similarity: result.Similarity}
	if result.Recognized {
		resp.ExerciseID = result.Profile.ID
		resp.Exercise = result.Profile.Name
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Reset(r.PathValue("id")); err != nil {
		s.sessionError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

type summaryResponse struct {
	SessionID     string  `json:"session_id"`
	ExerciseID    string  `json:"exercise_id"`
	RepCount      int     `json:"rep_count"`
	MeanFormScore float64 `json:"mean_form_score"`
	DurationMs    int64   `json:"duration_ms"`
	SampleCount   int     `json:"sample_count"`
}

func summaryToResponse(sum engine.Summary) summaryResponse {
	return summaryResponse{
		SessionID:     sum.SessionID,
		ExerciseID:    sum.ExerciseID,
		RepCount:      sum.RepCount,
		MeanFormScore: sum.MeanFormScore,
		DurationMs:    sum.Duration.Milliseconds(),
		SampleCount:   sum.SampleCount,
	}
}

func (s *Server) showSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.manager.Summary(r.PathValue("id"))
	if err != nil {
		s.sessionError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summaryToResponse(sum))
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	sum, err := s.manager.EndSession(r.PathValue("id"))
	if err != nil {
		s.sessionError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summaryToResponse(sum))
}

func (s *Server) listRecentSessions(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "No database configured")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			httputil.WriteJSONError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	summaries, err := s.db.RecentSummaries(limit)
	if err != nil {
		log.Printf("Error querying recent summaries: %v", err)
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Failed to query summaries")
		return
	}
	if summaries == nil {
		summaries = []db.SummaryRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, summaries)
}

func (s *Server) listRepEvents(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "No database configured")
		return
	}

	events, err := s.db.RepEventsForSession(r.PathValue("id"))
	if err != nil {
		log.Printf("Error querying rep events: %v", err)
		httputil.WriteJSONError(w, http.StatusInternalServerError, "Failed to query rep events")
		return
	}
	if events == nil {
		events = []db.RepEventRecord{}
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

type exerciseSummary struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	MinAngleRange float64 `json:"min_angle_range"`
	HasReference  bool    `json:"has_reference"`
}

// listExercises returns the registered exercise profiles; ?q= filters by
// name using the same matching rules as exercise selection.
func (s *Server) listExercises(w http.ResponseWriter, r *http.Request) {
	registry := s.manager.Registry()

	if q := r.URL.Query().Get("q"); q != "" {
		prof, err := registry.MatchByName(q)
		if err != nil {
			httputil.WriteJSON(w, http.StatusOK, []exerciseSummary{})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, []exerciseSummary{{
			ID:            prof.ID,
			Name:          prof.Name,
			MinAngleRange: prof.MinAngleRange,
			HasReference:  len(prof.Reference) > 0,
		}})
		return
	}

	all := registry.All()
	out := make([]exerciseSummary, 0, len(all))
	for _, prof := range all {
		out = append(out, exerciseSummary{
			ID:            prof.ID,
			Name:          prof.Name,
			MinAngleRange: prof.MinAngleRange,
			HasReference:  len(prof.Reference) > 0,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// showExercise returns one full profile by identifier, thresholds and
// reference trajectory included.
func (s *Server) showExercise(w http.ResponseWriter, r *http.Request) {
	prof, err := s.manager.Registry().Lookup(r.PathValue("id"))
	if err != nil {
		httputil.WriteJSONError(w, http.StatusNotFound, "Exercise not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, prof)
}

func (s *Server) showParams(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.manager.Tuning())
}

// updateParams replaces the tuning applied to sessions created from now on.
// Existing sessions keep the snapshot they were created with.
func (s *Server) updateParams(w http.ResponseWriter, r *http.Request) {
	var cfg config.TuningConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := cfg.Validate(); err != nil {
		httputil.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.manager.UpdateTuning(&cfg)
	httputil.WriteJSON(w, http.StatusOK, &cfg)
}

func (s *Server) sessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, engine.ErrSessionNotFound) {
		httputil.WriteJSONError(w, http.StatusNotFound, "Session not found")
		return
	}
	log.Printf("Session operation failed: %v", err)
	httputil.WriteJSONError(w, http.StatusInternalServerError, "Internal error")
}
