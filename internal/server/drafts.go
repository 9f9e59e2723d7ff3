package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/civicworks/permit-cli/internal/model"
	"github.com/civicworks/permit-cli/internal/screening"
	"github.com/civicworks/permit-cli/internal/store"
)

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	draft, ok := decodeDraftBody(w, r)
	if !ok {
		return
	}

	created, err := s.drafts.CreateDraft(r.Context(), draft)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	draft, ok := decodeDraftBody(w, r)
	if !ok {
		return
	}
	draft.ID = chi.URLParam(r, "id")

	if err := s.drafts.UpdateDraft(r.Context(), draft); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, draft)
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := s.drafts.GetDraft(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, draft)
}

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	filter := store.DraftFilter{}
	switch r.URL.Query().Get("synced") {
	case "":
	case "true":
		v := true
		filter.Synced = &v
	case "false":
		v := false
		filter.Synced = &v
	default:
		respondError(w, http.StatusBadRequest, eris.New("synced must be true or false"))
		return
	}

	drafts, err := s.drafts.ListDrafts(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"drafts": drafts})
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.drafts.DeleteDraft(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSyncDraft pushes a draft to the backend as a project snapshot and
// records the assigned project id on the draft.
func (s *Server) handleSyncDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	draft, err := s.drafts.GetDraft(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}

	geo := draftGeo(draft)
	if err := s.portal.SaveProjectSnapshot(ctx, &draft.Form, geo, nil); err != nil {
		respondError(w, http.StatusBadGateway, err)
		return
	}

	projectID, err := draft.Form.NumericID()
	if err != nil {
		respondError(w, http.StatusBadGateway, err)
		return
	}
	if err := s.drafts.MarkDraftSynced(ctx, draft.ID, projectID); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.drafts.UpdateDraft(ctx, *draft); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"draftId":   draft.ID,
		"projectId": projectID,
	})
}

func draftGeo(draft *model.Draft) screening.Results {
	if draft.Geo != nil {
		return *draft.Geo
	}
	return screening.NewResults()
}

func decodeDraftBody(w http.ResponseWriter, r *http.Request) (model.Draft, bool) {
	var draft model.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		respondError(w, http.StatusBadRequest, eris.Wrap(err, "decode request body"))
		return model.Draft{}, false
	}
	return draft, true
}

func respondStoreError(w http.ResponseWriter, err error) {
	if eris.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, err)
		return
	}
	respondError(w, http.StatusInternalServerError, err)
}
