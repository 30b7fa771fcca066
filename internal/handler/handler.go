// Package handler serves the studyhub backend API: question lookup, the
// answer judge, the per-identity session store and the favorites and
// wrong-question mirror.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/studyhub/internal/model"
	"github.com/pavelanni/studyhub/internal/store"
)

const defaultMaxPageSize = 200

// Explainer generates an explanation for a question that has none stored.
type Explainer interface {
	Explain(ctx context.Context, q model.Question, submitted, lang string) (string, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store     *store.Store
	explainer Explainer
	config    model.ServerConfig
	log       *slog.Logger
}

// New creates a new Handler. explainer may be nil.
func New(s *store.Store, explainer Explainer, cfg model.ServerConfig) *Handler {
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = defaultMaxPageSize
	}
	return &Handler{
		store:     s,
		explainer: explainer,
		config:    cfg,
		log:       slog.Default().With("component", "handler"),
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.identity)

		r.Get("/questions", h.handleSearchQuestions)
		r.Get("/questions/count", h.handleCountQuestions)
		r.Get("/questions/{questionID}", h.handleGetQuestion)
		r.Post("/answers", h.handleSubmitAnswer)

		r.Group(func(r chi.Router) {
			r.Use(requireIdentity)

			r.Get("/sessions", h.handleListSessions)
			r.Put("/sessions/{sessionID}", h.handleUpsertSession)
			r.Post("/sessions/migrate", h.handleMigrateSessions)

			r.Get("/favorites", h.handleListFavorites)
			r.Post("/favorites/{questionID}/toggle", h.handleToggleFavorite)
			r.Get("/wrong", h.handleListWrong)
			r.Delete("/wrong/{questionID}", h.handleRemoveWrong)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin)

			r.Get("/owners", h.handleOwners)
			r.Get("/export", h.handleExport)
			r.Post("/purge", h.handlePurge)
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.QuestionCount()
	if err != nil {
		h.writeError(w, r, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "questions": count})
}
