package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"weather-dashboard/controller"
	"weather-dashboard/datasource"
	"weather-dashboard/models"
	"weather-dashboard/search"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Dashboard is the refresh pipeline the API drives
type Dashboard interface {
	Status() controller.Status
	SelectLocation(ctx context.Context, loc models.Location) error
	SetUnits(ctx context.Context, units models.Units) error
	Retry(ctx context.Context) error
}

// Searcher receives search box input
type Searcher interface {
	Input(text string)
	State() search.State
}

// RecentStore is the recent search list
type RecentStore interface {
	Add(loc models.Location) (bool, error)
	List() []models.Location
	Clear() error
}

// Deps are the components behind the API
type Deps struct {
	Dashboard Dashboard
	Resolver  datasource.LocationResolver
	Search    Searcher
	Recent    RecentStore
}

// Server represents the API server
type Server struct {
	deps   Deps
	server *http.Server
	logger *slog.Logger
}

// NewServer creates a new API server listening on addr
func NewServer(deps Deps, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{deps: deps, logger: logger}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(s.requestLogger)
	router.Use(traceContext)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealthCheck)
		r.Get("/weather", s.handleGetWeather)
		r.Post("/location", s.handleSelectLocation)
		r.Put("/units", s.handleSetUnits)
		r.Post("/refresh", s.handleRefresh)
		r.Put("/search", s.handleSearchInput)
		r.Get("/search", s.handleGetSearch)
		r.Get("/geocode", s.handleGeocode)
		r.Get("/recent", s.handleGetRecent)
		r.Delete("/recent", s.handleClearRecent)
	})
	return router
}

// Handler returns the HTTP handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins the API server and blocks until it is shut down
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type weatherResponse struct {
	controller.Status
	Error string `json:"error,omitempty"`
}

func newWeatherResponse(st controller.Status) weatherResponse {
	return weatherResponse{Status: st, Error: st.ErrorMessage()}
}

type searchResponse struct {
	search.State
	Error string `json:"error,omitempty"`
}

// handleGetWeather returns the current dashboard status
func (s *Server) handleGetWeather(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newWeatherResponse(s.deps.Dashboard.Status()))
}

// handleSelectLocation records the location as a recent search and refreshes the dashboard for it
func (s *Server) handleSelectLocation(w http.ResponseWriter, r *http.Request) {
	var loc models.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid location: %v", err))
		return
	}
	loc.Name = strings.TrimSpace(loc.Name)
	if loc.Name == "" || !loc.ValidCoords() {
		writeError(w, http.StatusBadRequest, "location needs a name and valid coordinates")
		return
	}

	if s.deps.Recent != nil {
		if _, err := s.deps.Recent.Add(loc); err != nil {
			s.logger.Warn("failed to persist recent search", "location", loc.String(), "err", err)
		}
	}

	s.respondCycle(w, s.deps.Dashboard.SelectLocation(r.Context(), loc))
}

// handleSetUnits switches the unit system
func (s *Server) handleSetUnits(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Units string `json:"units"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}
	units, err := models.ParseUnits(body.Units)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respondCycle(w, s.deps.Dashboard.SetUnits(r.Context(), units))
}

// handleRefresh re-runs the last refresh cycle
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.respondCycle(w, s.deps.Dashboard.Retry(r.Context()))
}

// respondCycle maps the outcome of a refresh cycle to a status code
func (s *Server) respondCycle(w http.ResponseWriter, err error) {
	st := s.deps.Dashboard.Status()
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, newWeatherResponse(st))
	case errors.Is(err, datasource.ErrSuperseded):
		writeJSON(w, http.StatusConflict, newWeatherResponse(st))
	default:
		writeJSON(w, http.StatusBadGateway, newWeatherResponse(st))
	}
}

// handleSearchInput feeds a keystroke into the debounced search
func (s *Server) handleSearchInput(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
		return
	}
	s.deps.Search.Input(body.Query)
	writeJSON(w, http.StatusAccepted, s.searchState())
}

// handleGetSearch returns the dropdown state
func (s *Server) handleGetSearch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.searchState())
}

func (s *Server) searchState() searchResponse {
	st := s.deps.Search.State()
	resp := searchResponse{State: st}
	if st.Err != nil {
		resp.Error = st.Err.Error()
	}
	return resp
}

// handleGeocode resolves a query immediately, bypassing the debounce
func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	results, err := s.deps.Resolver.ResolveByQuery(r.Context(), query)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"query":   query,
			"results": results,
			"count":   len(results),
		})
	case errors.Is(err, datasource.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("no locations found for %q", query))
	default:
		s.logger.Warn("geocoding failed", "query", query, "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// handleGetRecent lists recent searches, most recent first
func (s *Server) handleGetRecent(w http.ResponseWriter, r *http.Request) {
	recent := s.deps.Recent.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"locations": recent,
		"count":     len(recent),
	})
}

// handleClearRecent empties the recent search list
func (s *Server) handleClearRecent(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Recent.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealthCheck provides a simple health check endpoint
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}

// requestLogger logs each request through slog
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"requestID", middleware.GetReqID(r.Context()),
		)
	})
}

// traceContext continues a trace propagated by the caller
func traceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
