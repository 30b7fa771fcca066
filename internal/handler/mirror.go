package handler

import (
	"net/http"

	"github.com/pavelanni/studyhub/internal/model"
)

func (h *Handler) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "questionID")
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	if _, err := h.store.GetQuestion(id); err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	owner := model.IdentityFromContext(r.Context()).Owner()
	fav, err := h.store.ToggleFavorite(owner, id)
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorite": fav})
}

func (h *Handler) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	owner := model.IdentityFromContext(r.Context()).Owner()
	favs, err := h.store.ListFavorites(owner)
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	if favs == nil {
		favs = []model.FavoriteEntry{}
	}
	writeJSON(w, http.StatusOK, favs)
}

func (h *Handler) handleListWrong(w http.ResponseWriter, r *http.Request) {
	owner := model.IdentityFromContext(r.Context()).Owner()
	entries, err := h.store.ListWrong(owner)
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	if entries == nil {
		entries = []model.WrongQuestionEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleRemoveWrong(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "questionID")
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	owner := model.IdentityFromContext(r.Context()).Owner()
	if err := h.store.RemoveWrong(owner, id); err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
