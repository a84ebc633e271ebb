// Package server exposes an aggregation source over HTTP.
//
// The search route speaks the same wire format as the remote search service,
// so one facetmap can point its remote source at another. The treemap routes
// render the current root (optionally zoomed) as SVG or JSON frames.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lumipallolabs/facetmap/internal/core"
	"github.com/lumipallolabs/facetmap/internal/hierarchy"
	"github.com/lumipallolabs/facetmap/internal/render"
	"github.com/lumipallolabs/facetmap/internal/search"
)

// Server answers aggregation and treemap requests from one source
type Server struct {
	index   string
	querier search.Querier
	opts    core.Options
	logger  *log.Logger
}

// New creates a server for index; logger may be nil
func New(index string, q search.Querier, opts core.Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{index: index, querier: q, opts: opts, logger: logger}
}

// Router returns the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/v1/index/{index}/search", s.handleSearch)
	r.Get("/treemap.svg", s.handleSVG)
	r.Get("/frame.json", s.handleFrame)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"took", time.Since(start),
			"id", middleware.GetReqID(r.Context()))
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleSearch runs one aggregation
// POST /v1/index/{index}/search
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if idx := chi.URLParam(r, "index"); idx != s.index {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown index " + idx})
		return
	}

	var req search.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	resp, err := s.querier.Query(r.Context(), req)
	if err != nil {
		s.logger.Warn("query failed", "request", req.String(), "err", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// frame builds the frame for ?zoom=a/b
func (s *Server) frame(r *http.Request) (render.Frame, int, error) {
	c, err := core.NewController(s.opts, nil)
	if err != nil {
		return render.Frame{}, http.StatusInternalServerError, err
	}
	var names []string
	if z := strings.Trim(r.URL.Query().Get("zoom"), "/"); z != "" {
		names = strings.Split(z, "/")
	}
	if err := c.Run(r.Context(), s.querier, names...); err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, core.ErrNotDrillable):
			status = http.StatusNotFound
		case errors.Is(err, hierarchy.ErrEmptyInput):
			// nothing to draw; the source answered fine
			status = http.StatusUnprocessableEntity
		}
		return render.Frame{}, status, err
	}
	return c.Frame(), http.StatusOK, nil
}

// handleSVG renders the treemap
// GET /treemap.svg?zoom=name
func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	frame, status, err := s.frame(r)
	if err != nil {
		writeJSON(w, status, errorBody{Error: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if err := render.NewSVG(w).Render(frame); err != nil {
		s.logger.Warn("write svg", "err", err)
	}
}

// handleFrame returns the laid-out frame
// GET /frame.json?zoom=name
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	frame, status, err := s.frame(r)
	if err != nil {
		writeJSON(w, status, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, frame)
}
