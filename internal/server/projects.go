package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/civicworks/permit-cli/internal/gis"
	"github.com/civicworks/permit-cli/internal/model"
	"github.com/civicworks/permit-cli/internal/screening"
	"github.com/civicworks/permit-cli/internal/session"
)

// projectRequest is the browser's save and submit body: the form with its
// checklist, the latest screening results, and an optional geometry upload.
type projectRequest struct {
	Form      model.ProjectForm     `json:"form"`
	Checklist []model.ChecklistItem `json:"checklist,omitempty"`
	Screening *screening.Results    `json:"screening,omitempty"`
	Upload    *gis.Container        `json:"upload,omitempty"`
}

func (req *projectRequest) geo() screening.Results {
	if req.Screening != nil {
		return *req.Screening
	}
	return screening.NewResults()
}

func (s *Server) handleSaveProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, eris.Wrap(err, "decode request body"))
		return
	}

	geo := req.geo()
	if err := s.portal.SaveProjectSnapshot(r.Context(), &req.Form, geo, req.Upload); err != nil {
		respondError(w, http.StatusBadGateway, err)
		return
	}

	if id, err := req.Form.NumericID(); err == nil {
		s.session.Put(id, session.Snapshot{Form: req.Form, Geo: geo, Checklist: req.Checklist})
	}

	respondJSON(w, http.StatusOK, map[string]any{"form": req.Form})
}

func (s *Server) handleSubmitPayloads(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathProjectID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, eris.Wrap(err, "decode request body"))
		return
	}
	// The path is authoritative for which project is being submitted.
	req.Form.ID = strconv.FormatInt(projectID, 10)

	geo := req.geo()
	eval, err := s.portal.SubmitDecisionPayloads(r.Context(), &req.Form, geo, req.Checklist)
	if err != nil {
		respondError(w, http.StatusBadGateway, err)
		return
	}

	s.session.Put(projectID, session.Snapshot{Form: req.Form, Geo: geo, Checklist: req.Checklist})

	respondJSON(w, http.StatusOK, map[string]any{
		"total":           eval.Total,
		"completedTitles": eval.CompletedTitles,
		"isComplete":      eval.IsComplete,
	})
}

func (s *Server) handleLoadProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathProjectID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	// A fresh snapshot from this server's own writes beats a backend
	// round-trip; ?refresh=1 forces the reload.
	if r.URL.Query().Get("refresh") == "" {
		if snap, ok := s.session.Get(projectID); ok {
			respondJSON(w, http.StatusOK, map[string]any{
				"form":      snap.Form,
				"checklist": snap.Checklist,
				"screening": snap.Geo,
				"cached":    true,
			})
			return
		}
	}

	loaded, err := s.portal.LoadProject(r.Context(), projectID)
	if err != nil {
		respondError(w, http.StatusNotFound, err)
		return
	}

	s.session.Put(projectID, session.Snapshot{
		Form:      loaded.Form,
		Geo:       loaded.Geo,
		Checklist: loaded.Checklist,
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"form":      loaded.Form,
		"checklist": loaded.Checklist,
		"screening": loaded.Geo,
		"status":    loaded.Status,
	})
}

func (s *Server) handleEvictSession(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathProjectID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	s.session.Evict(projectID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	tree, err := s.portal.FetchProjectHierarchy(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"projects": projectList(tree)})
}

func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Latitude    float64         `json:"latitude"`
		Longitude   float64         `json:"longitude"`
		Geometry    json.RawMessage `json:"geometry,omitempty"`
		BufferMiles float64         `json:"bufferMiles,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, eris.Wrap(err, "decode request body"))
		return
	}

	buffer := req.BufferMiles
	if buffer == 0 {
		buffer = s.cfg.BufferMiles
	}

	results := s.screener.Run(r.Context(), screening.Area{
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Geometry:    req.Geometry,
		BufferMiles: buffer,
	})

	respondJSON(w, http.StatusOK, map[string]any{
		"results":   results,
		"narrative": screening.Narrative(results),
	})
}

func pathProjectID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, eris.Errorf("project id %q is not numeric", raw)
	}
	return id, nil
}
