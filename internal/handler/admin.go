package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pavelanni/studyhub/internal/excel"
	"github.com/pavelanni/studyhub/internal/model"
)

func (h *Handler) handleOwners(w http.ResponseWriter, r *http.Request) {
	owners, err := h.store.OwnerSummaries()
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	if owners == nil {
		owners = []model.OwnerSummary{}
	}
	writeJSON(w, http.StatusOK, owners)
}

// handleExport returns answered sessions as JSON or, with format=xlsx, as a
// workbook. The owner query parameter narrows the export to one owner.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	results, err := h.store.ExportSessions(owner)
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		if results == nil {
			results = []model.SessionResult{}
		}
		writeJSON(w, http.StatusOK, model.SessionExport{
			GeneratedAt: time.Now().UTC(),
			Owner:       owner,
			Sessions:    results,
		})
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="sessions.xlsx"`)
		if err := excel.WriteSessions(w, results); err != nil {
			h.log.Error("failed to write sessions workbook", "error", err)
		}
	default:
		h.writeError(w, r, 0, fmt.Errorf("%w: unknown export format", errBadRequest))
	}
}

// handlePurge deletes empty sessions older than the older_than duration,
// defaulting to the configured session TTL.
func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	ttl := h.config.SessionTTL
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			h.writeError(w, r, 0, fmt.Errorf("%w: invalid older_than %q", errBadRequest, raw))
			return
		}
		ttl = d
	}
	if ttl <= 0 {
		h.writeError(w, r, 0, fmt.Errorf("%w: no session ttl configured", errBadRequest))
		return
	}

	purged, err := h.store.PurgeEmptySessions(time.Now().Add(-ttl))
	if err != nil {
		h.writeError(w, r, 0, err)
		return
	}
	h.log.Info("purged empty sessions", "count", purged, "older_than", ttl)
	writeJSON(w, http.StatusOK, map[string]int64{"purged": purged})
}
