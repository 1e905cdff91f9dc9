package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"multiverse/app"
	"multiverse/domain/blueprint"
	"multiverse/domain/core"
	"multiverse/domain/frame"
	"multiverse/domain/result"
	"multiverse/internal"
	"multiverse/internal/config"
)

// Server exposes the multiverse engine over JSON HTTP. The dataset is loaded
// once at startup; every request carries its own blueprint spec, so clients
// can probe decision grids without mutating server state.
type Server struct {
	svc    *app.Multiverse
	data   *frame.Frame
	run    config.RunConfig
	logger *internal.Logger
}

// NewServer creates an API server over a loaded dataset
func NewServer(svc *app.Multiverse, data *frame.Frame, run config.RunConfig) *Server {
	return &Server{
		svc:    svc,
		data:   data,
		run:    run,
		logger: internal.DefaultLogger.WithComponent("api"),
	}
}

// Router builds the HTTP routing table
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/count", s.handleCount)
		r.Post("/grid", s.handleGrid)
		r.Post("/exclusions", s.handleExclusions)
		r.Post("/run", s.handleRun)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"rows":    s.data.Rows(),
		"columns": len(s.data.Names()),
	})
}

// handleCount sizes the decision product without materializing the grid
func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	bp, ok := s.decodeBlueprint(w, r)
	if !ok {
		return
	}
	total, err := s.svc.TotalCount(bp)
	if err != nil {
		s.writeBlueprintError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"pipelines":      total,
		"filter_factors": s.svc.FilterFactorCount(bp),
	})
}

// handleGrid materializes the grid and returns one summary per pipeline
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	bp, ok := s.decodeBlueprint(w, r)
	if !ok {
		return
	}
	g, err := s.svc.Expand(bp)
	if err != nil {
		s.writeBlueprintError(w, err)
		return
	}

	type pipelineSummary struct {
		ID        core.PipelineID   `json:"id"`
		Filters   []string          `json:"filters"`
		Model     string            `json:"model"`
		Variables map[string]string `json:"variables,omitempty"`
	}
	summaries := make([]pipelineSummary, 0, g.Len())
	for _, p := range g.Pipelines {
		summaries = append(summaries, pipelineSummary{
			ID:        p.ID,
			Filters:   p.Filters,
			Model:     p.ModelCode,
			Variables: p.Variables,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"hash":      g.Hash,
		"pipelines": summaries,
	})
}

// handleExclusions reports what each filter predicate alone would remove
func (s *Server) handleExclusions(w http.ResponseWriter, r *http.Request) {
	bp, ok := s.decodeBlueprint(w, r)
	if !ok {
		return
	}
	summary, err := s.svc.FilterExclusionSummary(bp)
	if err != nil {
		s.writeBlueprintError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"exclusions": summary})
}

// handleRun executes the full multiverse and returns the tidy result table.
// ?mode=long switches the unpacking to one row per (statistic, decision).
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	bp, ok := s.decodeBlueprint(w, r)
	if !ok {
		return
	}
	mode := result.Wide
	if r.URL.Query().Get("mode") == string(result.Long) {
		mode = result.Long
	}

	g, err := s.svc.Expand(bp)
	if err != nil {
		s.writeBlueprintError(w, err)
		return
	}

	report, err := s.svc.RunMultiverse(r.Context(), g, app.RunOptions{
		Workers:    s.run.Workers,
		FitTimeout: s.run.FitTimeout,
	})
	if err != nil {
		s.logger.Error("run failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	rows, err := app.Reveal(g, report.Records, mode, r.URL.Query().Get("params"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	relRows, err := app.RevealReliabilities(g, report.Records, mode)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":        report.RunID,
		"manifest":      report.Manifest,
		"failed":        report.Failed,
		"rows":          rows,
		"reliabilities": relRows,
	})
}

func (s *Server) decodeBlueprint(w http.ResponseWriter, r *http.Request) (*blueprint.Blueprint, bool) {
	var spec app.BlueprintSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid blueprint JSON: "+err.Error())
		return nil, false
	}
	return spec.Build(s.data), true
}

// writeBlueprintError maps validation problems to 422 and everything else
// to 500.
func (s *Server) writeBlueprintError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if core.IsValidationError(err) || core.IsTemplateBindingError(err) ||
		errors.Is(err, core.ErrEmptyDecisionGroup) {
		status = http.StatusUnprocessableEntity
	}
	s.writeError(w, status, err.Error())
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encode response: %v", err)
	}
}
