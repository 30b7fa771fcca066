package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/studyhub/internal/model"
)

// migrateRequest mirrors the client's bulk migration body.
type migrateRequest struct {
	Sessions []model.AnswerSession `json:"sessions"`
	Legacy   []model.AnswerRecord  `json:"legacy,omitempty"`
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	owner := model.IdentityFromContext(r.Context()).Owner()
	sessions, err := h.store.ListSessions(owner)
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	if sessions == nil {
		sessions = []model.AnswerSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *Handler) handleUpsertSession(w http.ResponseWriter, r *http.Request) {
	var sess model.AnswerSession
	if err := decodeJSON(r, &sess); err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	id := chi.URLParam(r, "sessionID")
	if sess.SessionID == "" {
		sess.SessionID = id
	}
	if sess.SessionID != id || sess.StartTime.IsZero() {
		h.writeError(w, r, 0, fmt.Errorf("%w: session id mismatch or missing start time", errBadRequest))
		return
	}
	if sess.QuestionsAnswered < 0 || sess.CorrectCount < 0 || sess.CorrectCount > sess.QuestionsAnswered {
		h.writeError(w, r, 0, fmt.Errorf("%w: inconsistent session counters", errBadRequest))
		return
	}

	owner := model.IdentityFromContext(r.Context()).Owner()
	if err := h.store.UpsertSession(owner, sess); err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMigrateSessions imports locally created sessions and the legacy flat
// answer history in one call. Legacy records are stored as attempts without
// a session.
func (h *Handler) handleMigrateSessions(w http.ResponseWriter, r *http.Request) {
	var req migrateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	owner := model.IdentityFromContext(r.Context()).Owner()

	migrated, err := h.store.MigrateSessions(owner, req.Sessions)
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}

	legacy := 0
	for _, rec := range req.Legacy {
		if rec.QuestionID <= 0 {
			continue
		}
		if err := h.store.RecordAttempt(owner, "", rec.QuestionID, rec.SubmittedAnswer, rec.IsCorrect); err != nil {
			h.writeError(w, r, 0, fmt.Errorf("migrate legacy record %d: %w", rec.QuestionID, err))
			return
		}
		legacy++
	}

	h.log.Info("sessions migrated", "owner", owner, "sessions", migrated, "legacy", legacy)
	writeJSON(w, http.StatusOK, map[string]int{"migrated": migrated, "legacy": legacy})
}
