package handler

import (
	"net/http"

	"github.com/pavelanni/studyhub/internal/model"
)

const defaultPageSize = 20

func (h *Handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "questionID")
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	q, err := h.store.GetQuestion(id)
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// handleSearchQuestions returns one page of matches. Answers and
// explanations are withheld from list results.
func (h *Handler) handleSearchQuestions(w http.ResponseWriter, r *http.Request) {
	filters := model.FilterFromValues(r.URL.Query())
	page := queryInt(r, "page", 1)
	pageSize := min(queryInt(r, "page_size", defaultPageSize), h.config.MaxPageSize)

	questions, total, err := h.store.SearchQuestions(filters, page, pageSize)
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	for i := range questions {
		questions[i].Answer = ""
		questions[i].Explanation = ""
	}
	if questions == nil {
		questions = []model.Question{}
	}
	writeJSON(w, http.StatusOK, model.QuestionPage{
		Questions: questions,
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
	})
}

// handleCountQuestions returns the size of the question bank, or of the
// filtered set when filters are given.
func (h *Handler) handleCountQuestions(w http.ResponseWriter, r *http.Request) {
	filters := model.FilterFromValues(r.URL.Query())

	var count int
	var err error
	if filters.IsEmpty() {
		count, err = h.store.QuestionCount()
	} else {
		_, count, err = h.store.SearchQuestions(filters, 1, 1)
	}
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}
