package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	service "github.com/okian/hoopstat/internal/app"
)

// handlePlayers handles GET /api/v1/players?name=...
func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	players, err := playersParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := s.pipeline.FetchPlayerData(r.Context(), players)
	if len(out) == 0 {
		s.writeError(w, r, ErrNoResult)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCompare handles GET /api/v1/compare?name=...
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	players, err := playersParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c := s.pipeline.ComparePlayers(r.Context(), players)
	if c.Players == nil {
		s.writeError(w, r, ErrNoResult)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type reportRequest struct {
	Players []string `json:"players"`
}

// handleReport handles POST /api/v1/reports.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid JSON body: %w", ErrBadRequest, err))
		return
	}
	if len(req.Players) == 0 {
		s.writeError(w, r, service.ErrNoPlayers)
		return
	}
	report := s.pipeline.GenerateReport(r.Context(), req.Players)
	if report.ID == "" {
		s.writeError(w, r, ErrNoResult)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

// handleFeatures handles GET /api/v1/features?name=...&target=&components=&method=
func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	players, err := playersParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	req := service.FeatureRequest{
		Target:        strings.TrimSpace(q.Get("target")),
		OutlierMethod: strings.TrimSpace(q.Get("method")),
	}
	if v := q.Get("components"); v != "" {
		if req.Components, err = strconv.Atoi(v); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: components must be an integer", ErrBadRequest))
			return
		}
	}
	out, err := s.pipeline.AnalyzeFeatures(r.Context(), players, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if out.Features.Rows() == 0 {
		s.writeError(w, r, ErrNoResult)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleValidate handles GET /api/v1/validate?name=...
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	players, err := playersParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.pipeline.ValidatePlayers(r.Context(), players))
}

// handleExport handles GET /api/v1/export?name=...&format=json|csv|xlsx
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	path, err := s.pipeline.ExportPlayer(r.Context(), r.URL.Query().Get("name"), format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"path": path})
}

// handleSummary handles GET /api/v1/summary?name=...
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	players, err := playersParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := s.pipeline.Summarize(r.Context(), players)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

// handleTeam handles GET /api/v1/teams/{team}.
func (s *Server) handleTeam(w http.ResponseWriter, r *http.Request) {
	out := s.pipeline.TeamStats(r.Context(), chi.URLParam(r, "team"))
	if len(out) == 0 {
		s.writeError(w, r, ErrNoResult)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
