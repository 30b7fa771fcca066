package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pavelanni/studyhub/internal/i18n"
	"github.com/pavelanni/studyhub/internal/model"
	"github.com/pavelanni/studyhub/internal/practice"
)

const explainTimeout = 30 * time.Second

// handleSubmitAnswer judges one submission. For a scoped caller the attempt
// is recorded and an incorrect answer joins the caller's wrong set.
func (h *Handler) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req model.JudgeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	req.SubmittedAnswer = strings.TrimSpace(req.SubmittedAnswer)
	if req.QuestionID <= 0 || req.SubmittedAnswer == "" {
		h.writeError(w, r, 0, fmt.Errorf("%w: question id and answer are required", errBadRequest))
		return
	}

	q, err := h.store.GetQuestion(req.QuestionID)
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}

	correct := practice.AnswersMatch(req.SubmittedAnswer, q.Answer)
	res := model.JudgeResult{
		IsCorrect:     correct,
		CorrectAnswer: q.Answer,
		Explanation:   h.explanation(r.Context(), q, req.SubmittedAnswer),
	}

	if owner := model.IdentityFromContext(r.Context()).Owner(); owner != "" {
		if err := h.store.RecordAttempt(owner, req.SessionID, q.ID, req.SubmittedAnswer, correct); err != nil {
			h.log.Warn("failed to record attempt", "owner", owner, "question_id", q.ID, "error", err)
		}
		if !correct {
			if err := h.store.AddWrong(owner, q.ID, req.SubmittedAnswer); err != nil {
				h.log.Warn("failed to add wrong question", "owner", owner, "question_id", q.ID, "error", err)
			}
		}
	}

	h.log.Debug("answer judged", "question_id", q.ID, "correct", correct, "session_id", req.SessionID)
	writeJSON(w, http.StatusOK, res)
}

// explanation returns the stored explanation or generates and stores one.
// Generation failures leave the explanation empty.
func (h *Handler) explanation(ctx context.Context, q model.Question, submitted string) string {
	if q.Explanation != "" || h.explainer == nil {
		return q.Explanation
	}
	ctx, cancel := context.WithTimeout(ctx, explainTimeout)
	defer cancel()

	text, err := h.explainer.Explain(ctx, q, submitted, i18n.Language(ctx))
	if err != nil {
		h.log.Warn("explanation generation failed", "question_id", q.ID, "error", err)
		return ""
	}
	if err := h.store.SetExplanation(q.ID, text); err != nil {
		h.log.Warn("failed to store explanation", "question_id", q.ID, "error", err)
	}
	return text
}
