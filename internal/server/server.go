// Package server exposes the portal over HTTP: a JSON API for the browser
// frontend plus a credential-injecting proxy to the PostgREST backend, so
// the anon key never ships to the client.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/civicworks/permit-cli/internal/gis"
	"github.com/civicworks/permit-cli/internal/model"
	"github.com/civicworks/permit-cli/internal/payload"
	"github.com/civicworks/permit-cli/internal/portal"
	"github.com/civicworks/permit-cli/internal/screening"
	"github.com/civicworks/permit-cli/internal/session"
	"github.com/civicworks/permit-cli/internal/store"
)

// Portal is the slice of the persistence service the HTTP layer uses.
type Portal interface {
	SaveProjectSnapshot(ctx context.Context, form *model.ProjectForm, geo screening.Results, upload *gis.Container) error
	SubmitDecisionPayloads(ctx context.Context, form *model.ProjectForm, geo screening.Results, checklist []model.ChecklistItem) (payload.Evaluation, error)
	LoadProject(ctx context.Context, projectID int64) (portal.LoadedProject, error)
	FetchProjectHierarchy(ctx context.Context) ([]portal.ProjectNode, error)
}

// Screener runs geospatial screening for a project area.
type Screener interface {
	Run(ctx context.Context, area screening.Area) screening.Results
}

// Config carries the server's own settings plus what the backend proxy
// needs to inject credentials.
type Config struct {
	AllowedOrigins []string
	BackendURL     string
	BackendAnonKey string
	BufferMiles    float64
}

// Server wires the portal service, screening runner and draft store behind
// the HTTP API. The session store caches each project's last-saved state so
// navigation within the portal does not round-trip to the backend.
type Server struct {
	portal   Portal
	screener Screener
	drafts   store.Store
	session  *session.Store
	cfg      Config
}

// New creates a Server. drafts may be nil, which disables the draft routes.
func New(p Portal, scr Screener, drafts store.Store, cfg Config) *Server {
	return &Server{
		portal:   p,
		screener: scr,
		drafts:   drafts,
		session:  session.NewStore(),
		cfg:      cfg,
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Prefer"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/projects", s.handleListProjects)
		r.Post("/projects", s.handleSaveProject)
		r.Get("/projects/{id}", s.handleLoadProject)
		r.Post("/projects/{id}/payloads", s.handleSubmitPayloads)
		r.Delete("/projects/{id}/session", s.handleEvictSession)
		r.Post("/screen", s.handleScreen)

		if s.drafts != nil {
			r.Route("/drafts", func(r chi.Router) {
				r.Get("/", s.handleListDrafts)
				r.Post("/", s.handleCreateDraft)
				r.Get("/{id}", s.handleGetDraft)
				r.Put("/{id}", s.handleUpdateDraft)
				r.Delete("/{id}", s.handleDeleteDraft)
				r.Post("/{id}/sync", s.handleSyncDraft)
			})
		}
	})

	if s.cfg.BackendURL != "" {
		r.Handle("/rest/v1/*", s.backendProxy())
	}

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		zap.L().Error("server: request failed", zap.Error(err))
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
